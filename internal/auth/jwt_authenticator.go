package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ateliercolor/presstrack/internal/status"
)

type JwtAuthenticator struct {
	secret []byte
}

func NewJwtAuthenticator(secret string) (*JwtAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt authentication requires a signing secret")
	}
	return &JwtAuthenticator{secret: []byte(secret)}, nil
}

// VerifyToken validates the HMAC signature and maps the claims to a User. The
// role claim must be one of the known actor roles.
func (a *JwtAuthenticator) VerifyToken(_ context.Context, token string) (User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return User{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, errors.New("unexpected claims type")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return User{}, errors.New("token has no subject")
	}

	roleValue, _ := claims["role"].(string)
	role, ok := status.ParseRole(roleValue)
	if !ok {
		return User{}, fmt.Errorf("token carries unknown role %q", roleValue)
	}

	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}

	return User{ID: sub, Username: username, Role: role}, nil
}

func (a *JwtAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing authorization token", http.StatusUnauthorized)
			return
		}

		user, err := a.VerifyToken(r.Context(), token)
		if err != nil {
			zap.S().Named("auth").Debugf("token rejected: %v", err)
			http.Error(w, "invalid authorization token", http.StatusUnauthorized)
			return
		}

		ctx := NewTokenContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
