package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(username, password string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger("/health"))
	r.GET("/progress", Authorization(username, password), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAuthorization_OpenWithoutCredentials(t *testing.T) {
	router := newTestRouter("", "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/progress", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorization(t *testing.T) {
	router := newTestRouter("analyst", "s3cret")

	tests := []struct {
		name     string
		user     string
		pass     string
		withAuth bool
		want     int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong password", user: "analyst", pass: "nope", withAuth: true, want: http.StatusUnauthorized},
		{name: "wrong user", user: "admin", pass: "s3cret", withAuth: true, want: http.StatusUnauthorized},
		{name: "valid", user: "analyst", pass: "s3cret", withAuth: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/progress", nil)
			if tt.withAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), ErrUnauthorized.Error())
			}
		})
	}
}
