package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/board-platform/internal/platform/api"
)

type ctxKeyUserID struct{}
type ctxKeyUserToken struct{}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

// UserTokenFromContext returns the raw bearer token of the caller. It is
// forwarded to the identity service on profile lookups.
func UserTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserToken{}).(string)
	return v
}

func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyUserToken{}, token)
}

type Claims struct {
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireUser validates the Bearer token and injects user_id and the raw
// token into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Unauthorized(w, "UNAUTHORIZED", "user token required", "")
				return
			}
			raw := strings.TrimSpace(parts[1])
			claims, err := verifier.Parse(raw)
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Unauthorized(w, "UNAUTHORIZED", "invalid user token", "")
				return
			}
			ctx := WithUserID(r.Context(), claims.Subject)
			ctx = WithUserToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
