package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/NT912/Finwise---final-sub002/internal/infra/security"
)

var testSecret = []byte(strings.Repeat("k", security.MinSecretLength))

func newTestCodec(t *testing.T, now time.Time) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTokenCodec(security.TokenCodecConfig{Secret: testSecret, Issuer: "finwise", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	codec.WithClock(func() time.Time { return now })
	return codec
}

func newAuthRouter(t *testing.T, codec *security.TokenCodec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), RequireAuth(codec, zaptest.NewLogger(t)))
	router.GET("/me", func(c *gin.Context) {
		fromGin, _ := GetAuthenticatedUserID(c)
		fromCtx, _ := SubjectFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"gin": fromGin, "ctx": fromCtx})
	})
	return router
}

func doAuth(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	return body.Code
}

func TestRequireAuthAttachesSubject(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, now)
	token, err := codec.Issue("u1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	rr := doAuth(newAuthRouter(t, codec), "Bearer "+token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != `{"ctx":"u1","gin":"u1"}` {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	router := newAuthRouter(t, newTestCodec(t, time.Now()))

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz", "token-without-scheme"} {
		rr := doAuth(router, header)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
		if code := decodeCode(t, rr); code != "MissingToken" {
			t.Fatalf("header %q: expected MissingToken, got %s", header, code)
		}
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	router := newAuthRouter(t, newTestCodec(t, time.Now()))

	rr := doAuth(router, "Bearer not.a.jwt")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := decodeCode(t, rr); code != "InvalidToken" {
		t.Fatalf("expected InvalidToken, got %s", code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := newTestCodec(t, issuedAt).Issue("u1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	router := newAuthRouter(t, newTestCodec(t, issuedAt.Add(2*time.Hour)))
	rr := doAuth(router, "bearer "+token)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := decodeCode(t, rr); code != "ExpiredToken" {
		t.Fatalf("expected ExpiredToken, got %s", code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":      {"abc", true},
		"bearer abc":      {"abc", true},
		"  Bearer  abc  ": {"abc", true},
		"Bearer":          {"", false},
		"Token abc":       {"", false},
		"":                {"", false},
	}
	for header, want := range cases {
		token, ok := BearerToken(header)
		if token != want.token || ok != want.ok {
			t.Fatalf("%q: expected (%q,%v), got (%q,%v)", header, want.token, want.ok, token, ok)
		}
	}
}
