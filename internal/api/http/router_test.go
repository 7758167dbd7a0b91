package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/api/http/handlers"
	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/config"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	"github.com/spec-kit/user-access-service/internal/observability"
	"github.com/spec-kit/user-access-service/internal/repository"
	"github.com/spec-kit/user-access-service/internal/service"
)

const testPassword = "Valid1@pw"

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
	if _, ok := r.records[token]; ok {
		return fmt.Errorf("duplicate token %q", token)
	}
	r.records[token] = &domain.SessionToken{Token: token, UserID: userID, CreatedAt: time.Now()}
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
	var revoked []string
	for _, record := range r.records {
		if record.UserID == userID && record.Usable() {
			record.Revoked = true
			record.Expired = true
			revoked = append(revoked, record.Token)
		}
	}
	return revoked, nil
}

func (r *memTokenRepo) Rotate(ctx context.Context, userID, token string) ([]string, error) {
	revoked, err := r.RevokeAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return revoked, r.Record(ctx, token, userID)
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

type testStack struct {
	app     *fiber.App
	users   *memUserRepo
	tokens  *memTokenRepo
	authSvc *service.AuthService
	userSvc *service.UserService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "router-secret",
			SessionTTLMilli: int64(time.Hour / time.Millisecond),
			BcryptCost:      4,
		},
	}

	users := newMemUserRepo()
	tokens := newMemTokenRepo()
	cache := repository.NewRevocationCache(nil, time.Hour)
	dispatcher := events.NewInMemoryDispatcher()

	authSvc := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:   users,
		TokenRepo:  tokens,
		Cache:      cache,
		Dispatcher: dispatcher,
	})
	userSvc := service.NewUserService(users, authSvc, dispatcher, cfg.Auth.BcryptCost)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	gate := auth.NewSessionGate(
		authSvc.Codec(), users, tokens, cache, metrics, logger,
		"/auth/login", "/auth/register",
	)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("test", "test", nil, nil),
		Auth:   handlers.NewAuthHandler(authSvc, cfg.Auth.CookieMaxAge()),
		Users:  handlers.NewUsersHandler(userSvc),
		Gate:   gate,
	})

	return &testStack{app: app, users: users, tokens: tokens, authSvc: authSvc, userSvc: userSvc}
}

func (s *testStack) seedUser(t *testing.T, email string, role domain.Role, enabled bool) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{
		FirstName:    "Ana",
		LastName:     "Torres",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        "987654321",
		NationalID:   "12345678",
		Enabled:      enabled,
	}
	if err := s.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user
}

func (s *testStack) do(t *testing.T, method, path, sessionToken string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: sessionToken})
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, path, err)
	}
	return resp
}

func (s *testStack) login(t *testing.T, email, password string) (*http.Response, string) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookieName && cookie.Value != "" {
			return resp, cookie.Value
		}
	}
	return resp, ""
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestLoginUnknownEmailReturns404(t *testing.T) {
	s := newTestStack(t)

	resp, token := s.login(t, "a@x.com", testPassword)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if token != "" {
		t.Fatal("no session cookie may be set on failed login")
	}
	body := decodeEnvelope(t, resp)
	if body["status"] != float64(404) || body["error"] != "Not Found" {
		t.Fatalf("unexpected envelope: %v", body)
	}
}

func TestLoginWrongPasswordReturns401(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	resp, token := s.login(t, "a@x.com", "Wrong1@pw")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if token != "" {
		t.Fatal("no session cookie may be set on failed login")
	}
	if _, err := s.tokens.Status(context.Background(), token); err == nil {
		t.Fatal("no ledger record may exist after failed login")
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	resp, token := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if token == "" {
		t.Fatal("expected USER_SESSION cookie")
	}

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookieName {
			sessionCookie = cookie
		}
	}
	if !sessionCookie.HttpOnly || sessionCookie.Path != "/" {
		t.Fatalf("cookie must be http-only with path /: %+v", sessionCookie)
	}
	if sessionCookie.MaxAge != 3600 {
		t.Fatalf("cookie max-age = %d, want 3600", sessionCookie.MaxAge)
	}
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	resp, first := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()
	resp, second := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()

	resp = s.do(t, http.MethodGet, "/api/v1/users/me", first, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("first session status = %d, want 401", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/api/v1/users/me", second, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second session status = %d, want 200", resp.StatusCode)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	resp, token := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()

	resp = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookieName {
			if cookie.Value != "" || !cookie.Expires.Before(time.Now()) {
				t.Fatalf("logout must expire the session cookie: %+v", cookie)
			}
		}
	}

	resp = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("post-logout status = %d, want 401", resp.StatusCode)
	}

	// logging out again with the same dead token is still a 200
	resp = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat logout status = %d, want 200", resp.StatusCode)
	}
}

func TestRoleGating(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "regular@x.com", domain.RoleRegular, true)
	s.seedUser(t, "admin@x.com", domain.RoleAdmin, true)

	resp, regularToken := s.login(t, "regular@x.com", testPassword)
	resp.Body.Close()
	resp, adminToken := s.login(t, "admin@x.com", testPassword)
	resp.Body.Close()

	// no cookie at all: 401
	resp = s.do(t, http.MethodGet, "/api/v1/users", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["message"] != "not authenticated" {
		t.Fatalf("unexpected 401 message: %v", body)
	}

	// valid token, wrong role: 403
	resp = s.do(t, http.MethodGet, "/api/v1/users", regularToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular status = %d, want 403", resp.StatusCode)
	}
	body = decodeEnvelope(t, resp)
	if body["message"] != "insufficient role" {
		t.Fatalf("unexpected 403 message: %v", body)
	}

	// admin: 200 with summaries
	resp = s.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", resp.StatusCode)
	}
	var summaries []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
}

func TestPublicPathBypassesExpiredCookie(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	expiredCodec := auth.NewTokenCodec("router-secret", time.Millisecond)
	expired, _, err := expiredCodec.Issue(&domain.User{Email: "a@x.com", Role: domain.RoleRegular})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	resp := s.do(t, http.MethodPost, "/auth/login", expired, map[string]string{
		"email":    "a@x.com",
		"password": testPassword,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with expired cookie present: status = %d, want 200", resp.StatusCode)
	}
}

func TestDisabledUserGetsDistinct403(t *testing.T) {
	s := newTestStack(t)
	user := s.seedUser(t, "a@x.com", domain.RoleRegular, true)
	s.seedUser(t, "admin@x.com", domain.RoleAdmin, true)

	resp, token := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()
	resp, adminToken := s.login(t, "admin@x.com", testPassword)
	resp.Body.Close()

	resp = s.do(t, http.MethodPatch, "/api/v1/users/"+user.ID+"/status/false", adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d, want 200", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disabled user status = %d, want 403", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["message"] != "account disabled, contact an administrator" {
		t.Fatalf("unexpected disabled message: %v", body)
	}

	// a fresh login as the disabled user also fails with 403
	resp, _ = s.login(t, "a@x.com", testPassword)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disabled login status = %d, want 403", resp.StatusCode)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestStack(t)

	resp := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name":  "Ana",
		"last_name":   "Torres",
		"email":       "bad-email",
		"password":    testPassword,
		"role":        "REGULAR",
		"phone":       "987654321",
		"national_id": "12345678",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid register status = %d, want 400", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["error"] != "Bad Request" {
		t.Fatalf("unexpected envelope: %v", body)
	}

	resp = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name":  "Ana",
		"last_name":   "Torres",
		"email":       "a@x.com",
		"password":    testPassword,
		"role":        "REGULAR",
		"phone":       "987654321",
		"national_id": "12345678",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("valid register status = %d, want 204", resp.StatusCode)
	}

	resp, token := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || token == "" {
		t.Fatalf("login after register: status = %d, token set = %v", resp.StatusCode, token != "")
	}
}

func TestMeReturnsSessionUser(t *testing.T) {
	s := newTestStack(t)
	s.seedUser(t, "a@x.com", domain.RoleRegular, true)

	resp, token := s.login(t, "a@x.com", testPassword)
	resp.Body.Close()

	resp = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["email"] != "a@x.com" {
		t.Fatalf("me email = %v, want a@x.com", body["email"])
	}
	if _, ok := body["password_hash"]; ok {
		t.Fatal("password hash must never be serialized")
	}
}

func TestDeleteSelfClearsCookie(t *testing.T) {
	s := newTestStack(t)
	admin := s.seedUser(t, "admin@x.com", domain.RoleAdmin, true)

	resp, token := s.login(t, "admin@x.com", testPassword)
	resp.Body.Close()

	resp = s.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	cleared := false
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookieName && cookie.Value == "" && cookie.Expires.Before(time.Now()) {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("deleting own account must clear the session cookie")
	}
}
