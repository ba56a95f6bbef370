package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/supabase"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	errUnauthorized = errors.New("missing or invalid bearer token")
	errForbidden    = errors.New("admin role required")
)

// UserLookup resolves an access token with the auth provider.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// AuthConfig verifies Supabase access tokens locally with the project JWT
// secret and falls back to Users when the secret is unset or rejects the token.
type AuthConfig struct {
	JWTSecret string
	Users     UserLookup
}

type supabaseClaims struct {
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

type authenticator struct {
	secret []byte
	users  UserLookup
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{users: cfg.Users}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	}
	return a
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (a *authenticator) authenticate(ctx context.Context, token string) (*supabase.User, error) {
	if token == "" {
		return nil, errUnauthorized
	}

	if a.secret != nil {
		user, err := a.verify(token)
		if err == nil {
			return user, nil
		}
		zap.L().Debug("Local token verification failed", zap.Error(err))
	}

	if a.users == nil {
		return nil, errUnauthorized
	}
	user, err := a.users.GetUser(ctx, token)
	if errors.Is(err, supabase.ErrUnauthorized) {
		return nil, errUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("auth lookup: %w", err)
	}
	return user, nil
}

func (a *authenticator) verify(token string) (*supabase.User, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &supabase.User{
		ID:           claims.Subject,
		Email:        claims.Email,
		Phone:        claims.Phone,
		Role:         claims.Role,
		AppMetadata:  claims.AppMetadata,
		UserMetadata: claims.UserMetadata,
	}, nil
}

type userContextKey struct{}

func withUser(ctx context.Context, u *supabase.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

func userFrom(ctx context.Context) *supabase.User {
	u, _ := ctx.Value(userContextKey{}).(*supabase.User)
	return u
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.authenticate(r.Context(), bearerToken(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// requireAdmin accepts the admin role from the token or from the participant row.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil {
			s.fail(w, r, errUnauthorized)
			return
		}
		if !user.IsAdmin() {
			p, err := s.svc.ResolveParticipant(r.Context(), user.ID, user.Email)
			if err != nil || p.Role != models.RoleAdmin {
				zap.L().Warn("Admin access denied", zap.String("user_id", user.ID), zap.String("path", r.URL.Path))
				s.fail(w, r, errForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
