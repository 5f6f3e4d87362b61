package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/billingportal/session"
	"github.com/stripe/stripe-go/v81/subscription"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Client interface for Stripe operations
type Client interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	VerifyWebhook(payload []byte, signature, secret string) (*stripe.Event, error)
}

type client struct {
	apiKey string
}

// NewClient creates a new Stripe client
func NewClient(apiKey string) Client {
	stripe.Key = apiKey
	return &client{apiKey: apiKey}
}

// GetSubscription retrieves a subscription by ID
func (c *client) GetSubscription(_ context.Context, subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// ListSubscriptions lists a customer's subscriptions, newest first
func (c *client) ListSubscriptions(_ context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}

	var out []*stripe.Subscription

	iter := subscription.List(params)
	for iter.Next() {
		out = append(out, iter.Subscription())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return out, nil
}

// CancelSubscription cancels a subscription at period end
func (c *client) CancelSubscription(_ context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	return sub, nil
}

// CreateBillingPortalSession creates a billing portal session
func (c *client) CreateBillingPortalSession(_ context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing portal session: %w", err)
	}

	return sess, nil
}

// VerifyWebhook verifies a webhook signature
func (c *client) VerifyWebhook(payload []byte, signature, secret string) (*stripe.Event, error) {
	// ConstructEventWithOptions ignores the API version mismatch between the
	// pinned SDK and the account's webhook settings.
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify webhook: %w", err)
	}

	return &event, nil
}
