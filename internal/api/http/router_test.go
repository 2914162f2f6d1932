package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/contact-service/internal/api/http/handlers"
	"github.com/spec-kit/contact-service/internal/auth"
	"github.com/spec-kit/contact-service/internal/events"
	"github.com/spec-kit/contact-service/internal/observability"
	"github.com/spec-kit/contact-service/internal/repository"
	"github.com/spec-kit/contact-service/internal/repository/memory"
	"github.com/spec-kit/contact-service/internal/service"
)

type testServer struct {
	app *fiber.App
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, limit fiber.Handler) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    "router-test-secret",
		Issuer:    "contact-service",
		Audience:  "contact-service-web",
		AccessTTL: time.Minute,
	})
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher("bcrypt", 4)
	require.NoError(t, err)

	users := memory.NewUsers()
	refresh := memory.NewRefreshTokens(users, repository.RefreshTokenOptions{Generate: auth.GenerateRefreshSecret})
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:         users,
		RefreshTokenRepo: refresh,
		Tokens:           tokens,
		Hasher:           hasher,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	contactService := service.NewContactService(service.ContactDependencies{
		ContactRepo: memory.NewContacts(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        5 * time.Second,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	app.Get("/boom", func(*fiber.Ctx) error { panic("boom") })
	app.Get("/broken", func(*fiber.Ctx) error { return errors.New("db down at 10.0.0.5") })

	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("contact-service", "test", map[string]handlers.Pinger{
			"postgres": failingPinger{},
		}),
		Users:          handlers.NewUsersHandler(authService, handlers.CookieOptions{Secure: true}),
		Contacts:       handlers.NewContactsHandler(contactService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users),
		RateLimit:      limit,
		Metrics:        metrics,
	})
	return &testServer{app: app}
}

type call struct {
	method  string
	path    string
	body    interface{}
	bearer  string
	cookies []*nethttp.Cookie
}

func (s *testServer) do(t *testing.T, c call) (*nethttp.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func registerBody(username, email string) map[string]string {
	return map[string]string{
		"firstName":       "Alice",
		"lastName":        "Smith",
		"email":           email,
		"username":        username,
		"password":        "Secret123!",
		"confirmPassword": "Secret123!",
	}
}

func (s *testServer) register(t *testing.T, username, email string) (string, string) {
	t.Helper()
	resp, body := s.do(t, call{method: "POST", path: "/Users/Register", body: registerBody(username, email)})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	return body["token"].(string), body["refreshToken"].(string)
}

func cookieNamed(resp *nethttp.Response, name string) *nethttp.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestRoutes_RegisterAndConflict(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, call{method: "POST", path: "/Users/Register", body: registerBody("alice", "alice@x.com")})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["result"])
	require.NotEmpty(t, body["token"])
	require.NotEmpty(t, body["refreshToken"])

	access := cookieNamed(resp, auth.AccessTokenCookie)
	require.NotNil(t, access)
	require.Equal(t, body["token"], access.Value)
	require.True(t, access.Secure)
	require.True(t, access.HttpOnly)
	require.Equal(t, nethttp.SameSiteNoneMode, access.SameSite)
	require.NotNil(t, cookieNamed(resp, auth.RefreshTokenCookie))

	resp, body = s.do(t, call{method: "POST", path: "/Users/Register", body: registerBody("alice", "other@x.com")})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, false, body["result"])
	require.Equal(t, "Username or Email already exists.", body["error"])
	require.Equal(t, "CONFLICT", body["code"])
}

func TestRoutes_RegisterValidation(t *testing.T) {
	s := newTestServer(t, nil)
	req := registerBody("al", "nope")
	req["confirmPassword"] = "different"

	resp, body := s.do(t, call{method: "POST", path: "/Users/Register", body: req})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILED", body["code"])
	fields := body["errors"].(map[string]interface{})
	require.Contains(t, fields, "username")
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "confirmPassword")
}

func TestRoutes_LoginFailuresMatch(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice", "alice@x.com")

	wrongResp, wrong := s.do(t, call{method: "POST", path: "/Users/Login", body: map[string]string{"username": "alice", "password": "wrong"}})
	unknownResp, unknown := s.do(t, call{method: "POST", path: "/Users/Login", body: map[string]string{"username": "bob", "password": "wrong"}})

	require.Equal(t, nethttp.StatusBadRequest, wrongResp.StatusCode)
	require.Equal(t, wrongResp.StatusCode, unknownResp.StatusCode)
	require.Equal(t, "Invalid credentials.", wrong["error"])
	require.Equal(t, wrong, unknown)

	resp, body := s.do(t, call{method: "POST", path: "/Users/Login", body: map[string]string{"username": "alice", "password": "Secret123!"}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["result"])
}

func TestRoutes_RefreshRotatesAndRejectsReuse(t *testing.T) {
	s := newTestServer(t, nil)
	token, refresh := s.register(t, "alice", "alice@x.com")

	resp, body := s.do(t, call{method: "POST", path: "/Users/Tokens/Refresh", body: map[string]string{"token": token, "refreshToken": refresh}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.NotEqual(t, token, body["token"])
	require.NotEqual(t, refresh, body["refreshToken"])

	resp, body = s.do(t, call{method: "POST", path: "/Users/Tokens/Refresh", body: map[string]string{"token": token, "refreshToken": refresh}})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid token.", body["error"])
	require.Equal(t, "INVALID_TOKEN", body["code"])
}

func TestRoutes_RefreshFromCookies(t *testing.T) {
	s := newTestServer(t, nil)
	token, refresh := s.register(t, "alice", "alice@x.com")

	resp, body := s.do(t, call{method: "POST", path: "/Users/Tokens/Refresh", cookies: []*nethttp.Cookie{
		{Name: auth.AccessTokenCookie, Value: token},
		{Name: auth.RefreshTokenCookie, Value: refresh},
	}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["result"])
}

func TestRoutes_LogoutRevokes(t *testing.T) {
	s := newTestServer(t, nil)
	token, refresh := s.register(t, "alice", "alice@x.com")

	resp, body := s.do(t, call{method: "POST", path: "/Users/Logout", body: map[string]string{"refreshToken": refresh}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["result"])
	cleared := cookieNamed(resp, auth.RefreshTokenCookie)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	resp, _ = s.do(t, call{method: "POST", path: "/Users/Tokens/Refresh", body: map[string]string{"token": token, "refreshToken": refresh}})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)

	_, body = s.do(t, call{method: "POST", path: "/Users/Logout", body: map[string]string{"refreshToken": "unknown"}})
	require.Equal(t, false, body["result"])
}

func TestRoutes_AccountEndpointsRequireAuth(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.register(t, "alice", "alice@x.com")

	resp, body := s.do(t, call{method: "GET", path: "/Users"})
	require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", body["code"])

	resp, _ = s.do(t, call{method: "GET", path: "/Users", bearer: "garbage"})
	require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, call{method: "GET", path: "/Users", bearer: token})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["username"])
	require.NotContains(t, body, "passwordHash")

	resp, body = s.do(t, call{method: "GET", path: "/Users", cookies: []*nethttp.Cookie{{Name: auth.AccessTokenCookie, Value: token}}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["username"])
}

func TestRoutes_UpdatePasswordAndDetails(t *testing.T) {
	s := newTestServer(t, nil)
	token, _ := s.register(t, "alice", "alice@x.com")

	resp, body := s.do(t, call{method: "PUT", path: "/Users", bearer: token, body: map[string]string{
		"oldPassword": "wrong1", "newPassword": "NewSecret1!", "confirmPassword": "NewSecret1!",
	}})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_OLD_PASSWORD", body["code"])

	resp, _ = s.do(t, call{method: "PUT", path: "/Users", bearer: token, body: map[string]string{
		"oldPassword": "Secret123!", "newPassword": "NewSecret1!", "confirmPassword": "NewSecret1!",
	}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, body = s.do(t, call{method: "PUT", path: "/Users/Details", bearer: token, body: map[string]string{"lastName": "Jones"}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "Alice", body["firstName"])
	require.Equal(t, "Jones", body["lastName"])
}

func TestRoutes_ContactsAreScopedToCaller(t *testing.T) {
	s := newTestServer(t, nil)
	alice, _ := s.register(t, "alice", "alice@x.com")
	bob, _ := s.register(t, "bobby", "bob@x.com")

	resp, body := s.do(t, call{method: "POST", path: "/Contacts", bearer: alice, body: map[string]string{
		"firstName": "Carol", "contactNumber": "+15550100", "emailAddress": "carol@x.com",
	}})
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	require.Equal(t, "/Contacts/"+id, resp.Header.Get("Location"))

	resp, body = s.do(t, call{method: "GET", path: "/Contacts?search=car", bearer: alice})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["total"])

	resp, _ = s.do(t, call{method: "GET", path: "/Contacts/" + id, bearer: bob})
	require.Equal(t, nethttp.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, call{method: "PUT", path: "/Contacts/" + id, bearer: alice, body: map[string]string{"lastName": "Baker"}})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "Baker", body["lastName"])
	require.Equal(t, "Carol", body["firstName"])

	resp, _ = s.do(t, call{method: "DELETE", path: "/Contacts/" + id, bearer: bob})
	require.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(t, call{method: "DELETE", path: "/Contacts/" + id, bearer: alice})
	require.Equal(t, nethttp.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, call{method: "GET", path: "/Contacts"})
	require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_ErrorRendering(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, call{method: "GET", path: "/boom"})
	require.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Internal server error.", body["error"])
	require.Equal(t, "INTERNAL_ERROR", body["code"])

	resp, body = s.do(t, call{method: "GET", path: "/broken"})
	require.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Internal server error.", body["error"])
	require.NotContains(t, body, "errors")

	resp, body = s.do(t, call{method: "GET", path: "/nowhere"})
	require.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	require.Equal(t, false, body["result"])
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, call{method: "GET", path: "/health/live"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "alive", body["status"])

	resp, body = s.do(t, call{method: "GET", path: "/health/ready"})
	require.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "connection refused", body["errors"].(map[string]interface{})["postgres"])

	req := httptest.NewRequest("GET", "/metrics", nil)
	mresp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "test_http_requests_total")
}

func TestRoutes_RateLimitOnAuthEndpoints(t *testing.T) {
	s := newTestServer(t, NewRateLimitPerIP(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))
	login := map[string]string{"username": "nobody", "password": "x"}

	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, call{method: "POST", path: "/Users/Login", body: login})
		require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	}
	resp, body := s.do(t, call{method: "POST", path: "/Users/Login", body: login})
	require.Equal(t, nethttp.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "RATE_LIMITED", body["code"])
	require.Equal(t, "1", resp.Header.Get("Retry-After"))

	resp, _ = s.do(t, call{method: "GET", path: "/health/live"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestRoutes_RegisterChecksTrimmedValues(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, call{method: "POST", path: "/Users/Register", body: registerBody(" bob ", "bob@x.com")})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["errors"].(map[string]interface{}), "username")

	blank := registerBody("bobby", "bob@x.com")
	blank["firstName"] = "   "
	resp, body = s.do(t, call{method: "POST", path: "/Users/Register", body: blank})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["errors"].(map[string]interface{}), "firstName")

	token, _ := s.register(t, "  carol  ", " carol@x.com ")
	_, body = s.do(t, call{method: "GET", path: "/Users", bearer: token})
	require.Equal(t, "carol", body["username"])
	require.Equal(t, "carol@x.com", body["email"])
}

func TestRoutes_MultibytePasswordIsValidationError(t *testing.T) {
	s := newTestServer(t, nil)
	req := registerBody("alice", "alice@x.com")
	req["password"] = strings.Repeat("密", 30)
	req["confirmPassword"] = req["password"]

	resp, body := s.do(t, call{method: "POST", path: "/Users/Register", body: req})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_FAILED", body["code"])
	require.Equal(t, "must be at most 72 bytes", body["errors"].(map[string]interface{})["password"])
}
