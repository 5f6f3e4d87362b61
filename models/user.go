package models

import (
	"context"
	"time"
)

// User roles and account statuses.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// User represents a registered user in the system. Authentication itself is
// delegated to the hosted identity provider; this row mirrors the subject id
// from the session token.
type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	Role               string    `json:"role"`
	Status             string    `json:"status"`
	StripeCustomerID   string    `json:"-"`
	SubscriptionPlanID string    `json:"subscription_plan_id"`
	SubscriptionStatus string    `json:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds admin privilege.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserRepository manages user operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (User, error)
	Create(ctx context.Context, user *User) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateSubscription(ctx context.Context, id, customerID, planID, status string) error
}
