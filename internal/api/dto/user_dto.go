package dto

import (
	"time"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// UserSummaryResponse is the listing shape: no birth date, phone or password.
type UserSummaryResponse struct {
	ID        string      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Enabled   bool        `json:"enabled"`
}

// UserDataResponse is the full account shape, password excepted.
type UserDataResponse struct {
	ID         string      `json:"id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	BirthDate  *string     `json:"birth_date,omitempty"`
	Phone      string      `json:"phone"`
	NationalID string      `json:"national_id"`
	Enabled    bool        `json:"enabled"`
}

// UpdateUserRequest carries optional profile fields; absent fields are untouched.
type UpdateUserRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Role       *string `json:"role,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	NationalID *string `json:"national_id,omitempty"`
}

// ChangePasswordRequest payload for changing the session user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// NewUserSummary maps a domain user to its listing shape.
func NewUserSummary(user domain.User) UserSummaryResponse {
	return UserSummaryResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      user.Role,
		Enabled:   user.Enabled,
	}
}

// NewUserData maps a domain user to its full response shape.
func NewUserData(user *domain.User) UserDataResponse {
	resp := UserDataResponse{
		ID:         user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Role:       user.Role,
		Phone:      user.Phone,
		NationalID: user.NationalID,
		Enabled:    user.Enabled,
	}
	if user.BirthDate != nil {
		formatted := user.BirthDate.Format(time.DateOnly)
		resp.BirthDate = &formatted
	}
	return resp
}
