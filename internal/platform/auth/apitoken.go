package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/example/board-platform/internal/platform/api"
)

// APITokenHeader carries the platform-level token every client must send.
const APITokenHeader = "X-Api-Token"

// RequireAPIToken rejects requests whose API token does not match token.
// An empty token disables the check (development only).
func RequireAPIToken(token string) func(next http.Handler) http.Handler {
	want := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			got := []byte(strings.TrimSpace(r.Header.Get(APITokenHeader)))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				api.Unauthorized(w, "INVALID_API_TOKEN", "missing or invalid API token", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
