package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/api/http/handlers"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Users  *handlers.UsersHandler
	Gate   *auth.SessionGate
}

// RegisterRoutes wires HTTP routes. The session gate runs on every request;
// its public allow-list covers login and register.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/logout", cfg.Auth.Logout)

	users := app.Group("/api/v1/users")
	users.Get("/me", auth.RequireAuthenticated(), cfg.Users.Me)
	users.Patch("/password", auth.RequireAuthenticated(), cfg.Users.ChangePassword)

	admin := []domain.Role{domain.RoleAdmin, domain.RoleSupervisor}
	users.Get("/", auth.RequireRoles(admin...), cfg.Users.List)
	users.Get("/:id", auth.RequireRoles(admin...), cfg.Users.GetByID)
	users.Patch("/:id/status/:enabled", auth.RequireRoles(admin...), cfg.Users.ChangeStatus)
	users.Patch("/:id", auth.RequireRoles(admin...), cfg.Users.Update)
	users.Delete("/:id", auth.RequireRoles(admin...), cfg.Users.Delete)
}
