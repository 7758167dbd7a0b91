package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/dto"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/service"
	apperrors "github.com/spec-kit/user-access-service/pkg/util"
)

// UsersHandler exposes account administration endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/v1/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}

	summaries := make([]dto.UserSummaryResponse, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, dto.NewUserSummary(user))
	}
	return c.JSON(summaries)
}

// GetByID handles GET /api/v1/users/:id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(dto.NewUserData(user))
}

// Me handles GET /api/v1/users/me: the session user's own data.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	return c.JSON(dto.NewUserData(principal.User))
}

// Update handles PATCH /api/v1/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	input := service.UpdateUserInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Role:       req.Role,
		Phone:      req.Phone,
		NationalID: req.NationalID,
	}
	if req.BirthDate != nil {
		parsed, err := time.Parse(time.DateOnly, *req.BirthDate)
		if err != nil {
			return apperrors.NewBadRequest("birth_date must be YYYY-MM-DD")
		}
		input.BirthDate = &parsed
	}

	if err := h.users.Update(c.Context(), c.Params("id"), input); err != nil {
		return mapUserError(err)
	}
	return c.SendStatus(http.StatusOK)
}

// ChangeStatus handles PATCH /api/v1/users/:id/status/:enabled. Disabling an
// account revokes all of its session tokens.
func (h *UsersHandler) ChangeStatus(c *fiber.Ctx) error {
	enabled, err := strconv.ParseBool(c.Params("enabled"))
	if err != nil {
		return apperrors.NewBadRequest("enabled must be true or false")
	}

	if err := h.users.ChangeStatus(c.Context(), c.Params("id"), enabled); err != nil {
		return mapUserError(err)
	}
	return c.SendStatus(http.StatusOK)
}

// ChangePassword handles PATCH /api/v1/users/password for the session user.
// Policy violations come back as 200 with success=false, matching the
// upstream contract.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	result, err := h.users.ChangePassword(c.Context(), principal.User.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return mapUserError(err)
	}
	return c.JSON(result)
}

// Delete handles DELETE /api/v1/users/:id. Deleting the session user's own
// account also clears their cookie.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.users.Delete(c.Context(), id); err != nil {
		return mapUserError(err)
	}

	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User.ID == id {
		auth.ClearSessionCookie(c)
	}
	return c.SendStatus(http.StatusOK)
}

func mapUserError(err error) error {
	if errors.Is(err, service.ErrUserNotFound) {
		return apperrors.NewNotFound("user not found")
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewBadRequest(err.Error())
}
