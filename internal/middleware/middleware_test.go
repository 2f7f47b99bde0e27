package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/service"
)

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
}

func TestRequireJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuth()
	student, _ := auth.GenerateToken(service.TokenTypeStudent, "u7")
	admin, _ := auth.GenerateToken(service.TokenTypeAdmin, "a1")

	r := gin.New()
	echo := func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.ID+"|"+user.Token)
	}
	r.GET("/student", RequireStudentJWT(auth), echo)
	r.GET("/admin", RequireAdminJWT(auth), echo)
	r.GET("/ws", RequireStudentWSAuth(auth), echo)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"student header", "/student", "Bearer " + student, http.StatusOK, "u7|" + student},
		{"student missing", "/student", "", http.StatusUnauthorized, ""},
		{"student query ignored", "/student?token=" + student, "", http.StatusUnauthorized, ""},
		{"student garbage", "/student", "Bearer nope", http.StatusUnauthorized, ""},
		{"admin on student route", "/student", "Bearer " + admin, http.StatusForbidden, ""},
		{"admin header", "/admin", "Bearer " + admin, http.StatusOK, "a1|" + admin},
		{"student on admin route", "/admin", "Bearer " + student, http.StatusForbidden, ""},
		{"ws query", "/ws?token=" + student, "", http.StatusOK, "u7|" + student},
		{"ws missing", "/ws", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("u1") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("u2") {
		t.Fatal("buckets are per key")
	}

	now = now.Add(time.Second)
	if !rl.Allow("u1") {
		t.Fatal("bucket should refill after the interval")
	}

	now = now.Add(10 * time.Second)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("idle buckets kept: %d", len(rl.visitors))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", NewRateLimiter(1, time.Hour).Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestBrotli(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Brotli(64))
	big := strings.Repeat("attempt ", 100)
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("big response not compressed: %v", w.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil || string(plain) != big {
		t.Fatalf("decoded body mismatch (err=%v, %d bytes)", err, len(plain))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small response = %q %v", w.Body.String(), w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/big", nil))
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != big {
		t.Error("client without br got an encoded body")
	}
}
