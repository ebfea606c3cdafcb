package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"missing", "", false},
		{"kept", "abc-123", true},
		{"too long", strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q body %q", got, w.Body.String())
			}
			if tt.keep && got != tt.header {
				t.Errorf("got %q, want %q", got, tt.header)
			}
			if !tt.keep && got == tt.header {
				t.Errorf("expected generated id, got client value")
			}
		})
	}
}

func TestLimitConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	r := gin.New()
	r.Use(LimitConcurrentRequests(1))
	r.GET("/", func(c *gin.Context) {
		if c.Query("block") == "1" {
			close(entered)
			<-release
		}
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?block=1", nil))
		done <- w.Code
	}()
	<-entered

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got %d, want 429", w.Code)
	}

	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first request: got %d, want 200", code)
	}
}

func TestDeviceIdentity(t *testing.T) {
	r := gin.New()
	r.Use(DeviceIdentity())
	var got device.Identity
	r.GET("/", func(c *gin.Context) {
		got, _ = GetDeviceIdentity(c)
		c.Status(http.StatusOK)
	})

	t.Run("headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?device_url=ignored", nil)
		req.Header.Set(HeaderDeviceAddress, "http://10.0.0.1")
		req.Header.Set(HeaderDeviceUsername, "admin")
		req.Header.Set(HeaderDevicePassword, "secret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
		want := device.Identity{Address: "http://10.0.0.1", Username: "admin", Password: "secret"}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("query fallback", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?device_url=cam1&username=op", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got %d", w.Code)
		}
		if got.Address != "cam1" || got.Username != "op" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("missing address", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?username=op", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("got %d, want 400", w.Code)
		}
	})
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"preset_1", true},
		{"", false},
		{"has space", false},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		if got := validToken(tt.in); got != tt.want {
			t.Errorf("validToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
