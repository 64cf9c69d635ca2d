package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/auth"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

type contextKey string

const UserKey contextKey = "user"

// TokenHeader carries the session JWT on every protected request.
const TokenHeader = "token"

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Authenticator struct {
	Tokens TokenVerifier
	Users  UserLookup
	Log    *zap.Logger
}

// AuthError is a rejected authentication with the status to answer with.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// Authenticate resolves token to a user. The returned user never carries a password hash.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "No token provided"}
	}

	userID, err := a.Tokens.Verify(token)
	if err != nil {
		a.Log.Debug("token rejected", zap.String("reason", auth.Reason(err)), zap.Error(err))
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Unauthorized: " + err.Error()}
	}

	user, err := a.Users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AuthError{Status: http.StatusNotFound, Message: "User not found"}
	}
	if err != nil {
		a.Log.Error("load user for token", zap.String("user_id", userID), zap.Error(err))
		return nil, &AuthError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}

	user.Password = ""
	return user, nil
}

// ProtectRoute gates next behind the token header and attaches the caller to the context.
func (a *Authenticator) ProtectRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r.Context(), strings.TrimSpace(r.Header.Get(TokenHeader)))
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				writeError(w, authErr.Status, authErr.Message)
				return
			}
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the user attached by ProtectRoute.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
