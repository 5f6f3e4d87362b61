package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// userRepository implements models.UserRepository.
type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) models.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, email, COALESCE(display_name, ''), role, status,
	COALESCE(stripe_customer_id, ''), COALESCE(subscription_plan_id, 'free'),
	COALESCE(subscription_status, ''), created_at, updated_at
`

func (repo *userRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return repo.scanOne(repo.db.QueryRowContext(ctx, q, id))
}

func (repo *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return repo.scanOne(repo.db.QueryRowContext(ctx, q, email))
}

func (repo *userRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`

	return repo.scanOne(repo.db.QueryRowContext(ctx, q, customerID))
}

func (repo *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (id, email, display_name, role, status, subscription_plan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	if user.Role == "" {
		user.Role = models.RoleUser
	}

	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	if user.SubscriptionPlanID == "" {
		user.SubscriptionPlanID = "free"
	}

	_, err := repo.db.ExecContext(ctx, q,
		user.ID, user.Email, user.DisplayName, user.Role, user.Status,
		user.SubscriptionPlanID, user.CreatedAt, user.UpdatedAt,
	)

	return err
}

func (repo *userRepository) UpdateEmail(ctx context.Context, id, email string) error {
	const q = `UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`

	return repo.execOne(ctx, q, id, email)
}

func (repo *userRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`

	return repo.execOne(ctx, q, id, status)
}

func (repo *userRepository) UpdateSubscription(ctx context.Context, id, customerID, planID, status string) error {
	const q = `
		UPDATE users
		SET stripe_customer_id = $2, subscription_plan_id = $3, subscription_status = $4, updated_at = NOW()
		WHERE id = $1
	`

	return repo.execOne(ctx, q, id, customerID, planID, status)
}

func (repo *userRepository) scanOne(row *sql.Row) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.Status,
		&user.StripeCustomerID, &user.SubscriptionPlanID, &user.SubscriptionStatus,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}

		return models.User{}, err
	}

	return user, nil
}

func (repo *userRepository) execOne(ctx context.Context, q string, args ...any) error {
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return models.ErrNotFound
	}

	return nil
}
