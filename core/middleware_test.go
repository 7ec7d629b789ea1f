package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"BEARER abc", "", false},
		{"Token abc", "", false},
		{"Bearer  abc", " abc", true}, // extra space belongs to the token and fails decode later
	}
	for _, tc := range cases {
		token, ok := ExtractBearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("ExtractBearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func newAuthProbe(codec *TokenCodec, revoked RevocationList) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BearerAuthMiddleware(codec, revoked))
	r.GET("/whoami", func(c *gin.Context) {
		if p, ok := CurrentPrincipal(c); ok {
			c.JSON(http.StatusOK, gin.H{"username": p.Username})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": ""})
	})
	return r
}

func whoami(t *testing.T, r *gin.Engine, authorization string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("whoami status = %d", w.Code)
	}
	var body struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad whoami body: %v", err)
	}
	return body.Username
}

func TestBearerAuthMiddleware(t *testing.T) {
	codec := newTestCodec(t)
	revoked := NewMemoryRevocationList()
	r := newAuthProbe(codec, revoked)

	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if got := whoami(t, r, "Bearer "+token); got != "alice" {
		t.Fatalf("valid token principal = %q, want alice", got)
	}
	if got := whoami(t, r, ""); got != "" {
		t.Fatalf("missing header attached principal %q", got)
	}
	if got := whoami(t, r, "bearer "+token); got != "" {
		t.Fatalf("lowercase prefix attached principal %q", got)
	}
	if got := whoami(t, r, token); got != "" {
		t.Fatalf("bare token attached principal %q", got)
	}

	// Revocation takes precedence over signature/expiry validity.
	if err := revoked.Revoke(context.Background(), token, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if got := whoami(t, r, "Bearer "+token); got != "" {
		t.Fatalf("revoked token attached principal %q", got)
	}
}

func TestBearerAuthMiddlewareExpired(t *testing.T) {
	codec := newTestCodec(t)
	r := newAuthProbe(codec, NewMemoryRevocationList())

	token, err := codec.IssueWithTTL("alice", -time.Second)
	if err != nil {
		t.Fatalf("IssueWithTTL error: %v", err)
	}
	if got := whoami(t, r, "Bearer "+token); got != "" {
		t.Fatalf("expired token attached principal %q", got)
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec := newTestCodec(t)
	revoked := NewMemoryRevocationList()
	accounts := newFakeAccountRepo()
	hash, _ := HashPassword("pw")
	accounts.seed("admin", hash, "admin@localhost", RoleAdmin)
	accounts.seed("alice", hash, "alice@localhost", RoleUser)

	r := gin.New()
	r.Use(BearerAuthMiddleware(codec, revoked))
	r.GET("/user-only", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/admin-only", RequireRole(accounts, RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(path, authorization string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	adminToken, _ := codec.Issue("admin")
	userToken, _ := codec.Issue("alice")
	ghostToken, _ := codec.Issue("ghost")

	if code := get("/user-only", ""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous /user-only = %d, want 401", code)
	}
	if code := get("/user-only", "Bearer "+userToken); code != http.StatusOK {
		t.Fatalf("user /user-only = %d, want 200", code)
	}
	if code := get("/admin-only", ""); code != http.StatusUnauthorized {
		t.Fatalf("anonymous /admin-only = %d, want 401", code)
	}
	if code := get("/admin-only", "Bearer "+userToken); code != http.StatusForbidden {
		t.Fatalf("user /admin-only = %d, want 403", code)
	}
	if code := get("/admin-only", "Bearer "+adminToken); code != http.StatusOK {
		t.Fatalf("admin /admin-only = %d, want 200", code)
	}
	// Valid token whose account was deleted is not trusted.
	if code := get("/admin-only", "Bearer "+ghostToken); code != http.StatusUnauthorized {
		t.Fatalf("ghost /admin-only = %d, want 401", code)
	}

	// A failing account store is a server error, not a missing account.
	accounts.failFind = errors.New("connection refused")
	if code := get("/admin-only", "Bearer "+adminToken); code != http.StatusInternalServerError {
		t.Fatalf("/admin-only during store outage = %d, want 500", code)
	}
}
