package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oessenger/oessenger/internal/testutil"
	"github.com/oessenger/oessenger/internal/types"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &App{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &App{}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware_ValidToken(t *testing.T) {
	app := &App{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
	assert.NoError(t, err)

	var gotUserId int
	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserId, _ = UserId(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(createJwtCookie(token, time.Hour))

	handler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 42, gotUserId, "expected user id from token claims")
	assert.NotEmpty(t, rr.Header().Get("Cache-Control"), "expected cache-control header to be set")
}

func Test_authMiddleware_MissingCookie(t *testing.T) {
	app := &App{log: testutil.TestLogger(t)}

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expected handler not to be called")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func Test_authMiddleware_BadToken(t *testing.T) {
	app := &App{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expected handler not to be called")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(createJwtCookie("not.a.token", time.Hour))

	handler(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimit(t *testing.T) {
	app := &App{
		log:          testutil.TestLogger(t),
		loginLimiter: newIPRateLimiter(rate.Limit(1), 2),
	}

	handler := app.rateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// burst of 2 is allowed, the third request is throttled
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// a different client IP has its own bucket
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
