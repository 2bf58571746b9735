package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ateliercolor/presstrack/internal/status"
)

// NoneAuthenticator is used in dev. A token of the form "username:role" is
// honored so local dashboards can impersonate any actor; anything else maps to
// an admin preparer.
type NoneAuthenticator struct{}

func NewNoneAuthenticator() (*NoneAuthenticator, error) {
	return &NoneAuthenticator{}, nil
}

func (n *NoneAuthenticator) VerifyToken(_ context.Context, token string) (User, error) {
	user := User{
		ID:       "local",
		Username: "admin",
		Role:     status.RolePreparer,
	}

	if name, roleValue, found := strings.Cut(token, ":"); found {
		if role, ok := status.ParseRole(roleValue); ok {
			user.ID = name
			user.Username = name
			user.Role = role
		}
	}
	return user, nil
}

func (n *NoneAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := n.VerifyToken(r.Context(), bearerToken(r))
		ctx := NewTokenContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
}
