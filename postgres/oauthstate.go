package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// OAuthStateRepository persists pending OAuth flow states in postgres.
type OAuthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

func (r *OAuthStateRepository) Save(ctx context.Context, state *models.OAuthState) error {
	const q = `
		INSERT INTO oauth_states (state, user_id, service_name, code_verifier, redirect_uri, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, q,
		state.State,
		state.UserID,
		string(state.ServiceName),
		nullString(state.CodeVerifier),
		state.RedirectURI,
		strings.Join(state.Scopes, " "),
		state.ExpiresAt,
		state.CreatedAt,
	)

	return err
}

// GetAndDelete removes the row as it reads it; DELETE ... RETURNING makes the
// consume atomic so a state can never be accepted twice, even under
// concurrent callbacks.
func (r *OAuthStateRepository) GetAndDelete(ctx context.Context, state string) (*models.OAuthState, error) {
	const q = `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, user_id, service_name, code_verifier, redirect_uri, scopes, expires_at, created_at
	`

	var (
		record   models.OAuthState
		service  string
		verifier sql.NullString
		scopes   string
	)

	err := r.db.QueryRowContext(ctx, q, state).Scan(
		&record.State,
		&record.UserID,
		&service,
		&verifier,
		&record.RedirectURI,
		&scopes,
		&record.ExpiresAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	record.ServiceName = models.ServiceName(service)
	record.CodeVerifier = verifier.String
	record.Scopes = splitScopes(scopes)

	return &record, nil
}

func (r *OAuthStateRepository) Delete(ctx context.Context, state string) error {
	const q = `DELETE FROM oauth_states WHERE state = $1`

	_, err := r.db.ExecContext(ctx, q, state)

	return err
}

func (r *OAuthStateRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM oauth_states WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Fields(s)
}
