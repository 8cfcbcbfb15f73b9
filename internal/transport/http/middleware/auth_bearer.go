package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/identity"
	"github.com/pribylovaa/go-discussions/internal/pkg/log"
	"github.com/pribylovaa/go-discussions/internal/transport/http/apierrors"
)

// AuthConfig — параметры проверки access-токенов внешнего auth-сервиса.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

// accessClaims — формат access-токена auth-сервиса; name — отображаемое имя.
type accessClaims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

// AuthBearer проверяет Bearer-токен (HS256, issuer, audience, exp) и кладёт
// identity.Principal в контекст. Без валидного токена — 401/unauthenticated.
func AuthBearer(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, prefix) {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			p, err := parseToken(cfg, strings.TrimSpace(auth[len(prefix):]))
			if err != nil {
				log.From(r.Context()).Warn("unauthenticated", "err", err)
				apierrors.WriteError(w, r, fmt.Errorf("%w: %w", apierrors.ErrUnauthenticated, err))
				return
			}

			ctx := identity.Into(r.Context(), p)
			ctx = log.With(ctx, "user_id", p.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(cfg AuthConfig, tokenStr string) (identity.Principal, error) {
	if tokenStr == "" {
		return identity.Principal{}, errInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(cfg.Audience...))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(*jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		},
		opts...,
	)
	if err != nil {
		return identity.Principal{}, err
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return identity.Principal{}, errInvalidToken
	}

	// uid — основной claim; sub — запасной.
	raw := claims.UserID
	if raw == "" {
		raw = claims.Subject
	}

	uid, err := uuid.Parse(raw)
	if err != nil || uid == uuid.Nil {
		return identity.Principal{}, errInvalidToken
	}

	return identity.Principal{UserID: uid, Name: strings.TrimSpace(claims.Name)}, nil
}
