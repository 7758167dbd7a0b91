package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/observability"
	"github.com/spec-kit/user-access-service/internal/repository"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "USER_SESSION"

const (
	principalKey = "auth_principal"
	disabledKey  = "auth_disabled"
)

// Gate outcome labels for metrics.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
)

// Principal represents the authenticated caller for the rest of the request.
type Principal struct {
	User *domain.User
	Role domain.Role
}

// SessionGate is the per-request authentication middleware. Every failure
// mode collapses to "no identity established"; the role guards are the only
// place a 401 or 403 is produced.
type SessionGate struct {
	codec       *TokenCodec
	users       repository.UserRepository
	tokens      repository.TokenRepository
	cache       *repository.RevocationCache
	metrics     *observability.Metrics
	logger      *zap.Logger
	publicPaths map[string]struct{}
}

// NewSessionGate constructs the gate. publicPaths are matched exactly and
// case-sensitively and bypass the gate entirely.
func NewSessionGate(
	codec *TokenCodec,
	users repository.UserRepository,
	tokens repository.TokenRepository,
	cache *repository.RevocationCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
	publicPaths ...string,
) *SessionGate {
	pathSet := make(map[string]struct{}, len(publicPaths))
	for _, path := range publicPaths {
		pathSet[path] = struct{}{}
	}
	return &SessionGate{
		codec:       codec,
		users:       users,
		tokens:      tokens,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		publicPaths: pathSet,
	}
}

// Handle establishes (or declines to establish) the caller's identity. It
// never returns an error for a bad token: a request without identity simply
// proceeds anonymous and the role guards decide its fate.
func (g *SessionGate) Handle(c *fiber.Ctx) error {
	if _, ok := g.publicPaths[c.Path()]; ok {
		return c.Next()
	}

	token := c.Cookies(SessionCookieName)
	if token == "" {
		return g.anonymous(c)
	}

	if _, ok := PrincipalFromContext(c); ok {
		return c.Next()
	}

	claims, err := g.codec.Verify(token)
	if err != nil {
		return g.anonymous(c)
	}

	user, err := g.users.GetByEmail(c.Context(), claims.Subject)
	if err != nil {
		// a verifiable token for an unknown subject is an inconsistency;
		// fail closed rather than propagate
		return g.anonymous(c)
	}

	// the enabled check runs before the ledger check: disabling an account
	// revokes its tokens, and a revoked-but-genuine token for a disabled
	// account should still read as "disabled" rather than plain anonymous
	if !user.Enabled {
		c.Locals(disabledKey, true)
		return g.anonymous(c)
	}

	if dead, _ := g.cache.IsUnusable(c.Context(), token); dead {
		return g.anonymous(c)
	}

	record, err := g.tokens.Status(c.Context(), token)
	if err != nil || !record.Usable() {
		if err == nil {
			if cacheErr := g.cache.MarkUnusable(c.Context(), token); cacheErr != nil {
				g.logger.Warn("revocation cache write failed", zap.Error(cacheErr))
			}
		}
		return g.anonymous(c)
	}

	c.Locals(principalKey, &Principal{User: user, Role: claims.Role})
	g.metrics.RecordAuthOutcome(OutcomeAuthenticated)
	return c.Next()
}

func (g *SessionGate) anonymous(c *fiber.Ctx) error {
	g.metrics.RecordAuthOutcome(OutcomeAnonymous)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// DisabledFromContext reports whether the request carried a valid token for a
// disabled account, so the guards can answer 403 instead of 401.
func DisabledFromContext(c *fiber.Ctx) bool {
	val, ok := c.Locals(disabledKey).(bool)
	return ok && val
}

// SetSessionCookie attaches the session token to the response.
func SetSessionCookie(c *fiber.Ctx, token string, maxAgeSeconds int) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HTTPOnly: true,
	})
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
}
