package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"inkwell/internal/auth"
	"inkwell/internal/db"
	"inkwell/internal/models"
)

type contextKey string

const currentUserKey contextKey = "currentUser"

var errNoAuthHeader = errors.New("no authorization header")

// UserResolver looks up a token subject whose session epoch is still current.
type UserResolver interface {
	FindByIDAndEpoch(ctx context.Context, id bson.ObjectID, epoch string) (*models.User, error)
}

type AuthMiddleware struct {
	tokens *auth.TokenService
	users  UserResolver
}

func NewAuthMiddleware(tokens *auth.TokenService, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// RequireAuth rejects the request unless it carries a valid bearer access
// token for a live session. The resolved user is bound to the request
// context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		user, err := m.resolve(r.Context(), token)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth tolerates a completely absent Authorization header and binds
// no identity. A header that is present but malformed, or a token that fails
// validation, is still fatal: a bad token is never silently ignored.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if errors.Is(err, errNoAuthHeader) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		user, err := m.resolve(r.Context(), token)
		if err != nil {
			unauthorized(w, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := m.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != auth.TokenAccess {
		return nil, errors.New("token is not an access token")
	}

	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, err
	}

	// The epoch match covers both a deleted user and an invalidated session.
	user, err := m.users.FindByIDAndEpoch(ctx, id, claims.SessionEpoch)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the identity bound by the guard, or nil when the
// request was allowed through OptionalAuth without one.
func CurrentUser(r *http.Request) *models.User {
	if user, ok := r.Context().Value(currentUserKey).(*models.User); ok {
		return user
	}
	return nil
}

var _ UserResolver = (*db.UserRepository)(nil)
