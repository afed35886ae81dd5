package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://game.example.com", "http://localhost:3000/"}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"empty origin", "", true},
		{"listed origin", "https://game.example.com", true},
		{"case insensitive", "https://GAME.example.com", true},
		{"trailing slash in config", "http://localhost:3000", true},
		{"different host", "https://evil.com", false},
		{"different port", "https://game.example.com:9090", false},
		{"http instead of https", "http://game.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newCheckOrigin(allowed)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/lobby/connect", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNewCheckOrigin_Wildcard(t *testing.T) {
	checker := newCheckOrigin([]string{"*"})
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/lobby/connect", nil)
	r.Header.Set("Origin", "https://anything.example")

	assert.True(t, checker(r))
}
