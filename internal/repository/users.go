package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"televent/internal/models"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureExists upserts a user row so a first-seen caller can start
// owning events immediately; collisions on user_id are no-ops.
func (r *UserRepository) EnsureExists(ctx context.Context, userID int64, handle, timezone string) error {
	const query = `
		INSERT INTO users (user_id, handle, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID, handle, timezone)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	const query = `
		SELECT user_id, handle, timezone, sync_token, ctag, created_at, updated_at
		FROM users WHERE user_id = $1`

	u := &models.User{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Handle, &u.Timezone, &u.SyncToken, &u.CTag, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByHandle resolves a user by its CalDAV collection handle, used to
// turn the {identifier} path segment into a user row when it isn't a
// bare numeric user id.
func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	const query = `
		SELECT user_id, handle, timezone, sync_token, ctag, created_at, updated_at
		FROM users WHERE handle = $1`

	u := &models.User{}
	err := r.db.QueryRow(ctx, query, handle).Scan(
		&u.UserID, &u.Handle, &u.Timezone, &u.SyncToken, &u.CTag, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// IncrementSyncToken bumps a user's monotonic sync cursor and ctag
// within tx, returning the new token value. Every event mutation
// calls this exactly once, inside the same transaction as the event
// row write, per the collection-consistency invariant.
func IncrementSyncToken(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	const query = `
		UPDATE users
		SET sync_token = sync_token + 1,
		    ctag = (sync_token + 1)::text,
		    updated_at = now()
		WHERE user_id = $1
		RETURNING sync_token`

	var token int64
	if err := tx.QueryRow(ctx, query, userID).Scan(&token); err != nil {
		return 0, err
	}
	return token, nil
}
