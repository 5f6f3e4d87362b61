// Package subscription keeps the users table in step with Stripe: webhook
// events drive the normal flow, and an admin-triggered resync repairs drift.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v81"

	"github.com/tranquilae/Tranquilae-sub003/models"
	stripeClient "github.com/tranquilae/Tranquilae-sub003/stripe"
)

// ServiceInterface defines the subscription service interface
type ServiceInterface interface {
	ProcessWebhookEvent(ctx context.Context, event *stripe.Event) error
	SyncFromStripe(ctx context.Context, userID string) error
	CreateBillingPortalSession(ctx context.Context, userID, returnURL string) (string, error)
}

const freePlanID = "free"

// Service handles subscription business logic
type Service struct {
	stripeClient stripeClient.Client
	userRepo     models.UserRepository
	logger       *log.Logger
}

// NewService creates a new subscription service
func NewService(stripeClient stripeClient.Client, userRepo models.UserRepository, logger *log.Logger) *Service {
	return &Service{
		stripeClient: stripeClient,
		userRepo:     userRepo,
		logger:       logger,
	}
}

// ProcessWebhookEvent applies a verified Stripe event to the users table.
// Unknown event types are acknowledged and ignored.
func (s *Service) ProcessWebhookEvent(ctx context.Context, event *stripe.Event) error {
	s.logger.Printf("Processing webhook event: %s (ID: %s)", event.Type, event.ID)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChange(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	default:
		s.logger.Printf("Ignoring webhook event type: %s", event.Type)
		return nil
	}
}

func (s *Service) handleSubscriptionChange(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}

	if sub.Customer == nil {
		return errors.New("subscription event has no customer")
	}

	user, err := s.userRepo.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Customer created outside this system. Acknowledge so Stripe
			// stops retrying.
			s.logger.Printf("No user for Stripe customer %s, ignoring event %s", sub.Customer.ID, event.ID)
			return nil
		}

		return fmt.Errorf("failed to look up user for customer %s: %w", sub.Customer.ID, err)
	}

	plan := planFromSubscription(&sub)

	err = s.userRepo.UpdateSubscription(ctx, user.ID, sub.Customer.ID, plan, string(sub.Status))
	if err != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", user.ID, err)
	}

	s.logger.Printf("Updated user %s subscription: plan=%s status=%s", user.ID, plan, sub.Status)

	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}

	if sub.Customer == nil {
		return errors.New("subscription event has no customer")
	}

	user, err := s.userRepo.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("failed to look up user for customer %s: %w", sub.Customer.ID, err)
	}

	err = s.userRepo.UpdateSubscription(ctx, user.ID, sub.Customer.ID, freePlanID, "canceled")
	if err != nil {
		return fmt.Errorf("failed to downgrade user %s: %w", user.ID, err)
	}

	s.logger.Printf("Downgraded user %s to free plan after subscription deletion", user.ID)

	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session event: %w", err)
	}

	// ClientReferenceID carries our user id through checkout. It links the
	// new Stripe customer back to the account.
	if sess.ClientReferenceID == "" || sess.Customer == nil {
		s.logger.Printf("Checkout session %s has no client reference, ignoring", sess.ID)
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, sess.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", sess.ClientReferenceID, err)
	}

	err = s.userRepo.UpdateSubscription(ctx, user.ID, sess.Customer.ID, user.SubscriptionPlanID, user.SubscriptionStatus)
	if err != nil {
		return fmt.Errorf("failed to link customer %s to user %s: %w", sess.Customer.ID, user.ID, err)
	}

	// The subscription.created event fills in plan and status; a resync
	// covers the case where it arrived before the customer link existed.
	return s.SyncFromStripe(ctx, user.ID)
}

// SyncFromStripe re-reads the user's subscriptions from Stripe and rewrites
// the local fields. Used by the admin "force billing resync" operation.
func (s *Service) SyncFromStripe(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.StripeCustomerID == "" {
		return fmt.Errorf("user %s has no Stripe customer", userID)
	}

	subs, err := s.stripeClient.ListSubscriptions(ctx, user.StripeCustomerID)
	if err != nil {
		return fmt.Errorf("failed to list Stripe subscriptions: %w", err)
	}

	current := pickCurrent(subs)
	if current == nil {
		err = s.userRepo.UpdateSubscription(ctx, userID, user.StripeCustomerID, freePlanID, "canceled")
		if err != nil {
			return fmt.Errorf("failed to reset subscription for user %s: %w", userID, err)
		}

		s.logger.Printf("Resync: user %s has no live subscription, reset to free", userID)

		return nil
	}

	plan := planFromSubscription(current)

	err = s.userRepo.UpdateSubscription(ctx, userID, user.StripeCustomerID, plan, string(current.Status))
	if err != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", userID, err)
	}

	s.logger.Printf("Resync: user %s plan=%s status=%s", userID, plan, current.Status)

	return nil
}

// CreateBillingPortalSession creates a Stripe billing portal session URL for
// the user.
func (s *Service) CreateBillingPortalSession(ctx context.Context, userID, returnURL string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if user.StripeCustomerID == "" {
		return "", errors.New("user has no billing account")
	}

	sess, err := s.stripeClient.CreateBillingPortalSession(ctx, user.StripeCustomerID, returnURL)
	if err != nil {
		return "", err
	}

	return sess.URL, nil
}

// pickCurrent prefers an active subscription, then a trialing one, then the
// first of whatever remains.
func pickCurrent(subs []*stripe.Subscription) *stripe.Subscription {
	var trialing *stripe.Subscription

	for _, sub := range subs {
		switch sub.Status {
		case stripe.SubscriptionStatusActive:
			return sub
		case stripe.SubscriptionStatusTrialing:
			if trialing == nil {
				trialing = sub
			}
		}
	}

	if trialing != nil {
		return trialing
	}

	return nil
}

func planFromSubscription(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return freePlanID
	}

	price := sub.Items.Data[0].Price

	if price.LookupKey != "" {
		return price.LookupKey
	}

	if price.Nickname != "" {
		return price.Nickname
	}

	return price.ID
}

var _ ServiceInterface = (*Service)(nil)
