package reqctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/maruel/awth/internal/docdb"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"ipv4", "10.0.0.1:1234", nil, "10.0.0.1"},
		{"ipv6", "[::1]:8080", nil, "::1"},
		{"no port", "10.0.0.1", nil, "10.0.0.1"},
		{"forwarded", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	ctx := context.Background()
	if got := UserID(ctx); got != docdb.Sentinel {
		t.Errorf("UserID() = %d on empty context", got)
	}
	if got := UserID(WithUserID(ctx, 42)); got != 42 {
		t.Errorf("UserID() = %d, want 42", got)
	}
	if got := ClientIP(WithClientIP(ctx, "1.2.3.4")); got != "1.2.3.4" {
		t.Errorf("ClientIP() = %q", got)
	}
}
