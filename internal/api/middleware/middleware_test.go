package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuthAcceptsUserToken(t *testing.T) {
	auth := NewAuthMiddleware(testSecret)
	id := uuid.New()
	token, err := IssueToken(testSecret, id, RoleAuthenticated, time.Hour)
	require.NoError(t, err)

	var got *User
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.False(t, got.IsService())
	assert.Equal(t, id, *got.HostScope())
}

func TestRequireAuthServiceRole(t *testing.T) {
	auth := NewAuthMiddleware(testSecret)
	token, err := IssueToken(testSecret, uuid.Nil, RoleServiceRole, time.Hour)
	require.NoError(t, err)

	user, err := auth.Verify(token)
	require.NoError(t, err)
	assert.True(t, user.IsService())
	assert.Nil(t, user.HostScope())
}

func TestRequireAuthRejects(t *testing.T) {
	auth := NewAuthMiddleware(testSecret)
	h := auth.RequireAuth(http.HandlerFunc(okHandler))

	expired, _ := IssueToken(testSecret, uuid.New(), RoleAuthenticated, -time.Hour)
	wrongKey, _ := IssueToken("another-secret", uuid.New(), RoleAuthenticated, time.Hour)
	noAud, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
		{"no audience", "Bearer " + noAud},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/templates", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestAccessTokenQueryOnlyOnWebsocket(t *testing.T) {
	auth := NewAuthMiddleware(testSecret)
	h := auth.RequireAuth(http.HandlerFunc(okHandler))
	token, _ := IssueToken(testSecret, uuid.New(), RoleAuthenticated, time.Hour)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates?access_token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireServiceRole(t *testing.T) {
	auth := NewAuthMiddleware(testSecret)
	h := auth.RequireServiceRole(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-config/cleanup", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), &User{ID: uuid.New(), Role: RoleAuthenticated})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), &User{Role: RoleServiceRole})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRateLimiter(client, zerolog.Nop(), cfg), mr
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})
	h := rl.Middleware(http.HandlerFunc(okHandler))
	token, _ := IssueToken(testSecret, uuid.New(), RoleAuthenticated, time.Hour)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/emergency-notification", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, send().Code, "request %d", i)
	}
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterIgnoresUnverifiedSubjects(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{Auth: NewAuthMiddleware(testSecret)})
	h := rl.Middleware(http.HandlerFunc(okHandler))

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/emergency-notification", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// A fresh forged subject per request still shares the IP bucket.
	for i := 0; i < 10; i++ {
		forged, _ := IssueToken("attacker-controlled-secret-of-32-chars", uuid.New(), RoleAuthenticated, time.Hour)
		require.Equal(t, http.StatusOK, send(forged), "request %d", i)
	}
	forged, _ := IssueToken("attacker-controlled-secret-of-32-chars", uuid.New(), RoleAuthenticated, time.Hour)
	assert.Equal(t, http.StatusTooManyRequests, send(forged))

	// Verified users behind the same IP get their own buckets.
	alice, _ := IssueToken(testSecret, uuid.New(), RoleAuthenticated, time.Hour)
	bob, _ := IssueToken(testSecret, uuid.New(), RoleAuthenticated, time.Hour)
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, send(alice), "alice %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusOK, send(bob))
}

func TestRateLimiterUserKey(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{Auth: NewAuthMiddleware(testSecret)})
	id := uuid.New()
	valid, _ := IssueToken(testSecret, id, RoleAuthenticated, time.Hour)
	service, _ := IssueToken(testSecret, uuid.Nil, RoleServiceRole, time.Hour)
	expired, _ := IssueToken(testSecret, id, RoleAuthenticated, -time.Hour)

	keyFor := func(token string) string {
		req := httptest.NewRequest(http.MethodPost, "/analyze-message", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return rl.userKey(req)
	}

	assert.Equal(t, "ratelimit:user:"+id.String(), keyFor(valid))
	assert.Equal(t, "ratelimit:user:"+RoleServiceRole, keyFor(service))
	assert.Equal(t, "ratelimit:ip:203.0.113.9", keyFor(expired))
	assert.Equal(t, "ratelimit:ip:203.0.113.9", keyFor("not.a.jwt"))
	assert.Equal(t, "ratelimit:ip:203.0.113.9", keyFor(""))
}

func TestRateLimiterUnlistedRoute(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})
	h := rl.Middleware(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiterWhitelistAndBlock(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{Whitelist: []string{"10.1.0.0/16"}})
	h := rl.Middleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.True(t, rl.isWhitelisted("10.1.2.3"))

	rl.blocker.Block(req.Context(), "192.0.2.1", time.Minute, "test")
	blocked := httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", nil)
	blocked.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, blocked)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFindLimitPrefersFirstMatch(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})

	limit := rl.findLimit(httptest.NewRequest(http.MethodPost, "/whatsapp-webhook", nil))
	require.NotNil(t, limit)
	assert.Equal(t, 600, limit.Requests)

	limit = rl.findLimit(httptest.NewRequest(http.MethodPost, "/whatsapp-config/test", nil))
	require.NotNil(t, limit)
	assert.Equal(t, "POST /whatsapp-config", limit.Pattern)
}

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(16)(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(strings.Repeat("x", 32)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/search?q=%3Cscript%3E", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties/../etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestNormalizePath(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, "/conversations/:id/messages", normalizePath("/conversations/"+id+"/messages"))
	assert.Equal(t, "/conversations/:id/read", normalizePath("/conversations/"+id+"/read"))
	assert.Equal(t, "/properties/:id", normalizePath("/properties/"+id))
	assert.Equal(t, "/properties", normalizePath("/properties"))
}
