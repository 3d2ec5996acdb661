package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	claims *casdoorsdk.Claims
	err    error
	got    string
}

func (v *stubVerifier) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	v.got = token
	return v.claims, v.err
}

func newRouter(verifier TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(verifier, slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, LearnerID(c))
	})
	return r
}

func do(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_DevelopmentHeader(t *testing.T) {
	r := newRouter(nil)

	w := do(r, map[string]string{LearnerHeader: "learner-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "learner-1", w.Body.String())

	w = do(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_BearerToken(t *testing.T) {
	v := &stubVerifier{claims: &casdoorsdk.Claims{User: casdoorsdk.User{Id: "u-42", Owner: "bandup", Name: "lan"}}}
	r := newRouter(v)

	w := do(r, map[string]string{"Authorization": "Bearer abc.def.ghi"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", w.Body.String())
	assert.Equal(t, "abc.def.ghi", v.got)
}

func TestMiddleware_FallsBackToOwnerAndName(t *testing.T) {
	v := &stubVerifier{claims: &casdoorsdk.Claims{User: casdoorsdk.User{Owner: "bandup", Name: "lan"}}}

	w := do(newRouter(v), map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, "bandup/lan", w.Body.String())
}

func TestMiddleware_Rejects(t *testing.T) {
	v := &stubVerifier{err: errors.New("token expired")}
	r := newRouter(v)

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{"Authorization": "Basic xyz"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{"Authorization": "Bearer tok"}).Code)
}
