package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ateliercolor/presstrack/internal/config"
)

// Authenticator is consulted once per HTTP request and once per realtime
// connection handshake; no subscription is honored before VerifyToken
// succeeds.
type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
	VerifyToken(ctx context.Context, token string) (User, error)
}

const (
	JwtAuthentication  string = "jwt"
	NoneAuthentication string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case JwtAuthentication:
		return NewJwtAuthenticator(authConfig.JwtSecret)
	default:
		return NewNoneAuthenticator()
	}
}
