package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"earnings/models"
	"earnings/service"
)

// ErrInvalidToken is returned by a TokenVerifier for rejected tokens
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier resolves a bearer token to the auth provider's user id
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// SupabaseVerifier checks access tokens against the Supabase auth server
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier creates a verifier for the project at baseURL
func NewSupabaseVerifier(baseURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type supabaseUser struct {
	ID string `json:"id"`
}

// Verify asks the auth server who owns the token
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to reach auth server: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return uuid.Nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return uuid.Nil, fmt.Errorf("auth server returned status %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// UserLookup loads the application user row for an auth id
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type callerKey struct{}

// Authenticator turns a bearer token into the caller's user row
type Authenticator struct {
	verifier TokenVerifier
	users    UserLookup
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(verifier TokenVerifier, users UserLookup) *Authenticator {
	return &Authenticator{verifier: verifier, users: users}
}

// Middleware rejects requests without a valid token for an active user
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := a.verifier.Verify(r.Context(), token)
		if errors.Is(err, ErrInvalidToken) {
			writeFailure(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		user, err := a.users.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if user == nil {
			writeFailure(w, http.StatusUnauthorized, "user profile not found")
			return
		}
		if !user.IsActive {
			writeFailure(w, http.StatusForbidden, "user is inactive")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFrom returns the authenticated user stored on the request context
func CallerFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(callerKey{}).(*models.User)
	return user
}

// requireAdmin wraps handlers that only admins may reach
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.RequireRole(CallerFrom(r.Context()), service.AdminRoles...); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

// CronSecret guards scheduled trigger endpoints with a shared secret sent as
// a bearer token or the X-Cron-Secret header
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Cron-Secret")
			if provided == "" {
				provided = bearerToken(r)
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.WithFields(log.Fields{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				}).Warn("Rejected cron request with bad secret")
				writeFailure(w, http.StatusUnauthorized, "invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
