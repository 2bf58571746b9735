package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/ateliercolor/presstrack/internal/status"
)

type tokenKeyType struct{}

var tokenKey tokenKeyType

// User is the authenticated actor bound to a request or connection.
type User struct {
	ID       string
	Username string
	Role     status.Role
}

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return User{}, false
	}
	return val.(User), true
}

func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find user in context")
	}
	return user
}

func NewTokenContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, tokenKey, u)
}
