package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// memUserRepo is an in-memory UserRepository for service tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, *user)
	}
	return users, nil
}

func (r *memUserRepo) EmailTakenByOther(_ context.Context, email, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) NationalIDTakenByOther(_ context.Context, nationalID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.NationalID == nationalID && user.ID != id {
			return true, nil
		}
	}
	return false, nil
}

// memTokenRepo is an in-memory revocation ledger for service tests.
type memTokenRepo struct {
	mu      sync.Mutex
	records map[string]*domain.SessionToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{records: make(map[string]*domain.SessionToken)}
}

func (r *memTokenRepo) Record(_ context.Context, token, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record(token, userID)
}

func (r *memTokenRepo) record(token, userID string) error {
	if _, ok := r.records[token]; ok {
		return fmt.Errorf("duplicate token %q", token)
	}
	r.records[token] = &domain.SessionToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *memTokenRepo) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[token]
	if !ok {
		return false, nil
	}
	record.Revoked = true
	record.Expired = true
	return true, nil
}

func (r *memTokenRepo) RevokeAll(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeAll(userID), nil
}

func (r *memTokenRepo) revokeAll(userID string) []string {
	var revoked []string
	for _, record := range r.records {
		if record.UserID != userID || (record.Revoked && record.Expired) {
			continue
		}
		record.Revoked = true
		record.Expired = true
		revoked = append(revoked, record.Token)
	}
	return revoked
}

func (r *memTokenRepo) Rotate(_ context.Context, userID, token string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := r.revokeAll(userID)
	if err := r.record(token, userID); err != nil {
		return nil, err
	}
	return revoked, nil
}

func (r *memTokenRepo) Status(_ context.Context, token string) (*domain.SessionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (r *memTokenRepo) usableCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, record := range r.records {
		if record.UserID == userID && record.Usable() {
			count++
		}
	}
	return count
}

func (r *memTokenRepo) snapshot() map[string]domain.SessionToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.SessionToken, len(r.records))
	for token, record := range r.records {
		out[token] = *record
	}
	return out
}
