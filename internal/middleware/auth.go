package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyHeader carries the shared secret on API requests.
const APIKeyHeader = "x-api-key"

// APIKeyQueryParam is accepted instead of the header where browsers cannot
// set headers, i.e. the WebSocket feed.
const APIKeyQueryParam = "api_key"

// APIKey rejects requests whose x-api-key header does not match key.
func APIKey(key string) func(http.Handler) http.Handler {
	return apiKey(key, false)
}

// APIKeyOrQuery is APIKey that also accepts the key as an api_key query parameter.
func APIKeyOrQuery(key string) func(http.Handler) http.Handler {
	return apiKey(key, true)
}

func apiKey(key string, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if got == "" && allowQuery {
				got = r.URL.Query().Get(APIKeyQueryParam)
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				slog.Warn("Invalid API key attempt", "path", r.URL.Path, "ip", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
