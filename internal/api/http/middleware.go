package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/observability"
	apperrors "github.com/spec-kit/user-access-service/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware normalizes every failure to the {status, error,
// message} envelope and recovers panics.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				appErr := toAppError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), appErr.Reason)
				}
				if appErr.Status >= 500 {
					logger.Error("request failed", zap.Error(appErr))
				}
				c.Status(appErr.Status)
				_ = c.JSON(fiber.Map{
					"status":  appErr.Status,
					"error":   appErr.Reason,
					"message": appErr.Message,
				})
				err = nil
			}
		}()
		return c.Next()
	}
}

func toAppError(err error) *apperrors.AppError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return apperrors.NewAppError(fiberErr.Code, http.StatusText(fiberErr.Code), fiberErr.Message)
	}
	return apperrors.ToAppError(err)
}
