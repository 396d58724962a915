package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareMintsCookieForFirstVisit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := NewManager("test-secret", time.Hour)

	var seen string
	router := gin.New()
	router.Use(mgr.Middleware())
	router.GET("/", func(c *gin.Context) {
		id, err := UserID(c)
		require.NoError(t, err)
		seen = id
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, seen)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
}

func TestMiddlewareReusesExistingCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := NewManager("test-secret", time.Hour)

	var firstID, secondID string
	router := gin.New()
	router.Use(mgr.Middleware())
	router.GET("/", func(c *gin.Context) {
		id, _ := UserID(c)
		if firstID == "" {
			firstID = id
		} else {
			secondID = id
		}
		c.Status(http.StatusOK)
	})

	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/", nil))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range w1.Result().Cookies() {
		req2.AddCookie(ck)
	}
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	assert.Equal(t, firstID, secondID)
}

func TestTamperedCookieIsRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := NewManager("test-secret", time.Hour)
	other := NewManager("different-secret", time.Hour)

	token, err := other.sign("attacker-chosen-id")
	require.NoError(t, err)

	_, err = mgr.fromCookie(&http.Request{Header: http.Header{"Cookie": []string{cookieName + "=" + token}}})
	assert.Error(t, err)
}
