package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func formContext(next string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	body := url.Values{"next": {next}}.Encode()
	c.Request = httptest.NewRequest(http.MethodPost, "/ticket/1/assign", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c
}

func TestRedirectTarget(t *testing.T) {
	const fallback = "/ticket/1"

	tests := []struct {
		name string
		next string
		want string
	}{
		{"empty", "", fallback},
		{"local path", "/super-admin-dashboard", "/super-admin-dashboard"},
		{"local path with query", "/super-admin-dashboard?status=Open", "/super-admin-dashboard?status=Open"},
		{"protocol relative", "//evil.com", fallback},
		{"backslash host", `/\evil.com`, fallback},
		{"backslash anywhere", `/tickets\..\evil`, fallback},
		{"absolute url", "https://evil.com/", fallback},
		{"relative path", "evil.com", fallback},
		{"scheme only", "javascript:alert(1)", fallback},
		{"embedded newline", "/ok\r\nLocation: https://evil.com", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redirectTarget(formContext(tt.next), fallback))
		})
	}
}
