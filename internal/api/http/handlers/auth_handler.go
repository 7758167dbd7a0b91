package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/dto"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/service"
	apperrors "github.com/spec-kit/user-access-service/pkg/util"
)

// AuthHandler exposes login, register and logout.
type AuthHandler struct {
	auth         *service.AuthService
	cookieMaxAge int
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookieMaxAge int) *AuthHandler {
	return &AuthHandler{auth: authService, cookieMaxAge: cookieMaxAge}
}

// Login handles POST /auth/login. On success the session token travels back
// as the USER_SESSION cookie; an unknown email is a 404, preserving the
// upstream contract even though it leaks account existence.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewBadRequest("email and password required")
	}

	token, _, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return apperrors.NewNotFound("user not found")
		case errors.Is(err, service.ErrBadCredentials):
			return apperrors.NewUnauthorized("invalid credentials")
		case errors.Is(err, service.ErrUserDisabled):
			return apperrors.NewForbidden("account disabled, contact an administrator")
		}
		return apperrors.MapError(err)
	}

	auth.SetSessionCookie(c, token, h.cookieMaxAge)
	return c.SendStatus(http.StatusOK)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	input := service.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Phone:      req.Phone,
		NationalID: req.NationalID,
	}
	if req.BirthDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			return apperrors.NewBadRequest("birth_date must be YYYY-MM-DD")
		}
		input.BirthDate = &parsed
	}

	if _, err := h.auth.Register(c.Context(), input); err != nil {
		return apperrors.NewBadRequest(err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Logout handles POST /auth/logout. Idempotent: an absent or already-dead
// token still yields 200 and a cleared cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := c.Cookies(auth.SessionCookieName); token != "" {
		if err := h.auth.Logout(c.Context(), token); err != nil {
			return apperrors.MapError(err)
		}
	}
	auth.ClearSessionCookie(c)
	return c.SendStatus(http.StatusOK)
}
