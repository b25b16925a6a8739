package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(apiKeys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(WithBearerAuth(apiKeys))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	return router
}

func TestWithBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		apiKeys    []string
		authHeader string
		wantStatus int
	}{
		{
			name:       "missing header",
			apiKeys:    []string{"sk-1"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			apiKeys:    []string{"sk-1"},
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty token",
			apiKeys:    []string{"sk-1"},
			authHeader: "Bearer ",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			apiKeys:    []string{"sk-1"},
			authHeader: "Bearer sk-2",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "matching key",
			apiKeys:    []string{"sk-1", "sk-2"},
			authHeader: "Bearer sk-2",
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty list accepts any token",
			authHeader: "Bearer anything",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthRouter(tt.apiKeys)

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			require.Equal(t, tt.wantStatus, recorder.Code)

			if tt.wantStatus != http.StatusOK {
				require.Contains(t, recorder.Body.String(), "unauthorized")
			}
		})
	}
}

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequireJSON())
	router.POST("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// JSON bodies pass.
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	// Non-JSON bodies are rejected.
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	// Empty bodies and GETs are exempt.
	req = httptest.NewRequest(http.MethodPost, "/echo", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	req = httptest.NewRequest(http.MethodGet, "/echo", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
}
