package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserContextKey contextKey = "user"

// Supabase roles.
const (
	RoleAuthenticated = "authenticated"
	RoleServiceRole   = "service_role"
)

// Claims are the Supabase access token claims the API relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// User is the authenticated caller attached to the request context.
type User struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// IsService reports whether the caller uses the service role key.
func (u *User) IsService() bool {
	return u.Role == RoleServiceRole
}

// HostScope returns the host filter for store queries: nil for the service
// role, the caller's own ID otherwise.
func (u *User) HostScope() *uuid.UUID {
	if u.IsService() {
		return nil
	}
	id := u.ID
	return &id
}

// AuthMiddleware verifies Supabase-issued bearer tokens.
type AuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(jwtSecret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		user, err := m.Verify(raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireServiceRole must run after RequireAuth.
func (m *AuthMiddleware) RequireServiceRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.IsService() {
			jsonError(w, http.StatusForbidden, "service role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Verify parses and validates a token.
func (m *AuthMiddleware) Verify(raw string) (*User, error) {
	if len(m.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, err
	}

	if claims.Role == RoleServiceRole {
		return &User{Role: RoleServiceRole}, nil
	}
	if !slices.Contains(claims.Audience, RoleAuthenticated) {
		return nil, errors.New("unexpected audience")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("invalid subject")
	}
	role := claims.Role
	if role == "" {
		role = RoleAuthenticated
	}
	return &User{ID: id, Email: claims.Email, Role: role}, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on websocket upgrades, so /ws also accepts ?access_token=.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.URL.Path == "/ws" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// IssueToken signs a token the way Supabase does. Used by the CLI and tests.
func IssueToken(secret string, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if role != RoleServiceRole {
		claims.Subject = userID.String()
		claims.Audience = jwt.ClaimStrings{RoleAuthenticated}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// WithUser attaches a user to a context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
