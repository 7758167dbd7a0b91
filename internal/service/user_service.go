package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/repository"
)

// UserService covers account administration: listing, profile updates,
// enable/disable, password change and deletion. Operations that invalidate
// sessions delegate revocation to the auth service.
type UserService struct {
	users      repository.UserRepository
	authSvc    *AuthService
	dispatcher events.Dispatcher
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, authSvc *AuthService, dispatcher events.Dispatcher, bcryptCost int) *UserService {
	return &UserService{users: users, authSvc: authSvc, dispatcher: dispatcher, bcryptCost: bcryptCost}
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// GetByID returns a single account.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateUserInput carries the optional profile fields; nil means unchanged.
// Enabled flag and password are updated through their own operations.
type UpdateUserInput struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Role       *string
	BirthDate  *time.Time
	Phone      *string
	NationalID *string
}

// Update applies a partial profile update with field validation.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if input.FirstName != nil {
		if *input.FirstName == "" {
			return errors.New("first name cannot be empty")
		}
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		if *input.LastName == "" {
			return errors.New("last name cannot be empty")
		}
		user.LastName = *input.LastName
	}
	if input.Email != nil {
		if !validEmail(*input.Email) {
			return errors.New("invalid email format")
		}
		taken, err := s.users.EmailTakenByOther(ctx, *input.Email, id)
		if err != nil {
			return err
		}
		if taken {
			return errors.New("email already in use by another user")
		}
		user.Email = *input.Email
	}
	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return err
		}
		user.Role = role
	}
	if input.BirthDate != nil {
		if input.BirthDate.After(time.Now()) {
			return errors.New("birth date cannot be in the future")
		}
		user.BirthDate = input.BirthDate
	}
	if input.Phone != nil {
		if len(*input.Phone) != 9 || !digitsOnly(*input.Phone) {
			return errors.New("phone must have 9 digits")
		}
		user.Phone = *input.Phone
	}
	if input.NationalID != nil {
		if len(*input.NationalID) != 8 || !digitsOnly(*input.NationalID) {
			return errors.New("national ID must have 8 digits")
		}
		taken, err := s.users.NationalIDTakenByOther(ctx, *input.NationalID, id)
		if err != nil {
			return err
		}
		if taken {
			return errors.New("national ID already registered by another user")
		}
		user.NationalID = *input.NationalID
	}

	return s.users.Update(ctx, user)
}

// ChangeStatus flips the enabled flag. Disabling an account revokes every
// session token the user holds.
func (s *UserService) ChangeStatus(ctx context.Context, id string, enabled bool) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	user.Enabled = enabled
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if !enabled {
		if err := s.authSvc.RevokeAllForUser(ctx, id, "user_disabled"); err != nil {
			return err
		}
	}

	s.publish(ctx, events.EventUserStatusChanged, id, events.UserStatusChangedPayload{Enabled: enabled})
	return nil
}

// NewPasswordResult reports the outcome of a password change attempt.
type NewPasswordResult struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// ChangePassword updates the caller's own password after verifying the
// current one. Policy violations are reported in the result, not as errors.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*NewPasswordResult, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if auth.ComparePassword(user.PasswordHash, currentPassword) != nil {
		return &NewPasswordResult{Message: "current password is incorrect", Success: false}, nil
	}
	if auth.ComparePassword(user.PasswordHash, newPassword) == nil {
		return &NewPasswordResult{Message: "new password cannot equal the current one", Success: false}, nil
	}
	if !validPassword(newPassword) {
		return &NewPasswordResult{
			Message: "password must be at least 8 characters with an upper-case letter, a lower-case letter, a digit and a special character",
			Success: false,
		}, nil
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventPasswordChanged, userID, nil)
	return &NewPasswordResult{Message: "password updated", Success: true}, nil
}

// Delete removes the account. All of the user's tokens are revoked first so
// the ledger keeps the audit trail even though the user row goes away.
func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authSvc.RevokeAllForUser(ctx, id, "user_deleted"); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserDeleted, id, events.UserDeletedPayload{Email: user.Email})
	return nil
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
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
