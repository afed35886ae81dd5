package httpserver

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// newCheckOrigin returns the upgrader's CheckOrigin. Requests without an
// Origin header (non-browser clients) are always accepted; "*" accepts all.
func newCheckOrigin(allowed []string) func(r *http.Request) bool {
	allowAll := slices.Contains(allowed, "*")
	normalized := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		normalized = append(normalized, strings.TrimSuffix(strings.ToLower(origin), "/"))
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}

		if slices.Contains(normalized, strings.TrimSuffix(strings.ToLower(origin), "/")) {
			return true
		}

		slog.WarnContext(r.Context(), "WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}
