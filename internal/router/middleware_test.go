package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/couponbook/internal/constants"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	if generated := strings.TrimSpace(w2.Header().Get(requestIDHeader)); generated == "" {
		t.Fatal("generated request id should not be empty")
	}
}

func TestNotFoundHandlerUsesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(notFoundHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	r.ServeHTTP(w, req)

	// 业务包络统一返回 HTTP 200，错误体现在 status_code
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var resp struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}
	if resp.Msg != "route not found" {
		t.Fatalf("msg want 'route not found' got %q", resp.Msg)
	}
}

func TestPartnerIdentityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(PartnerIdentityMiddleware())
	r.GET("/books", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"partner_id": c.GetString(constants.ContextKeyPartnerID)})
	})

	// 缺少身份头：业务码 401
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	r.ServeHTTP(w, req)
	var failed struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if failed.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", failed.StatusCode)
	}

	// 携带身份头：透传进上下文
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/books", nil)
	req2.Header.Set(constants.HeaderPartnerID, "partner-a")
	r.ServeHTTP(w2, req2)
	var ok map[string]string
	if err := json.Unmarshal(w2.Body.Bytes(), &ok); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if ok["partner_id"] != "partner-a" {
		t.Fatalf("partner_id want partner-a got %s", ok["partner_id"])
	}
}

func TestUserIdentityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(UserIdentityMiddleware())
	r.GET("/my-codes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(constants.ContextKeyUserID)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/my-codes", nil)
	req.Header.Set(constants.HeaderUserID, " user@example.com ")
	r.ServeHTTP(w, req)
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["user_id"] != "user@example.com" {
		t.Fatalf("user_id should be trimmed, got %q", resp["user_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/my-codes", nil)
	r.ServeHTTP(w2, req2)
	var failed struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &failed); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if failed.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", failed.StatusCode)
	}
}
