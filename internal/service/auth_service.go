package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/config"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/repository"
)

// ErrUserNotFound is returned when no account matches the lookup key.
var ErrUserNotFound = errors.New("user not found")

// ErrBadCredentials is returned when the password does not match.
var ErrBadCredentials = errors.New("invalid credentials")

// ErrUserDisabled is returned when the account's enabled flag is false.
var ErrUserDisabled = errors.New("user disabled")

// ErrEmailTaken is returned when registration reuses an existing email.
var ErrEmailTaken = errors.New("email already registered")

// AuthService coordinates the session lifecycle: credential check, token
// issuance, single-session rotation and revocation.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	cache      *repository.RevocationCache
	codec      *auth.TokenCodec
	dispatcher events.Dispatcher
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.TokenRepository
	Cache      *repository.RevocationCache
	Dispatcher events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.TokenRepo,
		cache:      deps.Cache,
		codec:      auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Login authenticates the user and rotates their session: every previously
// issued token is revoked in the same transaction that records the new one,
// so at most one live token per user exists at any time.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrUserNotFound
		}
		return "", time.Time{}, err
	}
	if !user.Enabled {
		return "", time.Time{}, ErrUserDisabled
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrBadCredentials
	}

	token, expiresAt, err := s.codec.Issue(user)
	if err != nil {
		return "", time.Time{}, err
	}

	revoked, err := s.tokens.Rotate(ctx, user.ID, token)
	if err != nil {
		return "", time.Time{}, err
	}
	// the ledger stays authoritative; a failed cache write only costs a
	// Postgres lookup on the next replay
	_ = s.cache.MarkUnusable(ctx, revoked...)

	s.publish(ctx, events.EventUserLoggedIn, user.ID, events.UserLoggedInPayload{
		Email:          user.Email,
		TokensRevoked:  len(revoked),
		TokenExpiresAt: expiresAt,
	})
	return token, expiresAt, nil
}

// Logout revokes the given token. An unknown token is a no-op, not a
// failure: logging out an already-invalid session must always succeed.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	found, err := s.tokens.Revoke(ctx, token)
	if err != nil {
		return err
	}
	_ = s.cache.MarkUnusable(ctx, token)

	s.publish(ctx, events.EventUserLoggedOut, "", events.UserLoggedOutPayload{TokenFound: found})
	return nil
}

// RevokeAllForUser invalidates every token the user holds. Used when an
// account is disabled or deleted.
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID, reason string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	revoked, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	_ = s.cache.MarkUnusable(ctx, revoked...)

	s.publish(ctx, events.EventTokensRevoked, userID, events.TokensRevokedPayload{
		Count:  len(revoked),
		Reason: reason,
	})
	return nil
}

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Role       string
	BirthDate  *time.Time
	Phone      string
	NationalID string
}

// Register validates and creates a new enabled account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Email == "" {
		return nil, errors.New("email is required")
	}
	if !validEmail(input.Email) {
		return nil, errors.New("invalid email format")
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if !validPassword(input.Password) {
		return nil, errors.New("password must be at least 8 characters with an upper-case letter, a lower-case letter, a digit and a special character")
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	if len(input.Phone) != 9 || !digitsOnly(input.Phone) {
		return nil, errors.New("phone must have 9 digits")
	}
	if len(input.NationalID) != 8 || !digitsOnly(input.NationalID) {
		return nil, errors.New("national ID must have 8 digits")
	}
	if input.BirthDate != nil && input.BirthDate.After(time.Now()) {
		return nil, errors.New("birth date cannot be in the future")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
		BirthDate:    input.BirthDate,
		Phone:        input.Phone,
		NationalID:   input.NationalID,
		Enabled:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Email: user.Email,
		Role:  user.Role,
	})
	return user, nil
}

// Codec exposes the underlying token codec for middleware usage.
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.codec
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
