package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"log"
	"net/http"
	"strings"
)

// adminTokenMiddleware requires "Authorization: Bearer <token>" when token is
// non-empty. An empty token leaves the routes open, matching the websocket
// restartGame/endGame events which any player may send.
func adminTokenMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			got := sha256.Sum256([]byte(given))
			// Compare fixed-size digests so timing does not leak the token length.
			if !ok || !hmac.Equal(got[:], want[:]) {
				log.Printf("🔒 Unauthorized %s %s from %s", r.Method, r.URL.Path, GetClientIP(r))
				writeError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
