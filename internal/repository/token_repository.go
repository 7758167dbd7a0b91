package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// TokenRepository is the revocation ledger: one durable record per issued
// token, flagged on revocation but never deleted.
type TokenRepository interface {
	// Record inserts a fresh record with both flags false. A duplicate token
	// value is an error; issuance must always produce a unique token string.
	Record(ctx context.Context, token, userID string) error

	// Revoke flags a single record. Reports whether a record was found;
	// an absent record is not an error (logout is idempotent).
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAll flags every record owned by the user that is not already
	// both-flagged, in a single atomic statement. Returns the affected token
	// values so callers can purge caches. Idempotent.
	RevokeAll(ctx context.Context, userID string) ([]string, error)

	// Rotate performs the login write sequence inside one transaction:
	// revoke everything the user holds, then record the new token.
	Rotate(ctx context.Context, userID, token string) ([]string, error)

	// Status returns the record for a token value, or pgx.ErrNoRows when no
	// record exists. Callers treat absence as unusable.
	Status(ctx context.Context, token string) (*domain.SessionToken, error)
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a Postgres-backed ledger.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

const revokeAllQuery = `
        UPDATE session_tokens
        SET revoked=TRUE, expired=TRUE
        WHERE user_id=$1 AND NOT (revoked AND expired)
        RETURNING token`

const recordQuery = `
        INSERT INTO session_tokens (token, user_id)
        VALUES ($1, $2)`

func (r *tokenRepository) Record(ctx context.Context, token, userID string) error {
	_, err := r.pool.Exec(ctx, recordQuery, token, userID)
	return err
}

func (r *tokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	const query = `
        UPDATE session_tokens
        SET revoked=TRUE, expired=TRUE
        WHERE token=$1`

	cmd, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *tokenRepository) RevokeAll(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, revokeAllQuery, userID)
	if err != nil {
		return nil, err
	}
	return collectTokens(rows)
}

func (r *tokenRepository) Rotate(ctx context.Context, userID, token string) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, revokeAllQuery, userID)
	if err != nil {
		return nil, err
	}
	revoked, err := collectTokens(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, recordQuery, token, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return revoked, nil
}

func (r *tokenRepository) Status(ctx context.Context, token string) (*domain.SessionToken, error) {
	const query = `
        SELECT token, user_id, revoked, expired, created_at
        FROM session_tokens WHERE token=$1`

	var record domain.SessionToken
	if err := r.pool.QueryRow(ctx, query, token).Scan(
		&record.Token,
		&record.UserID,
		&record.Revoked,
		&record.Expired,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func collectTokens(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
