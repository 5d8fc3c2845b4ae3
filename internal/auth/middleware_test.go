package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// echoUID writes the uid RequireAuth stored in the context.
var echoUID = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	uid, ok := UserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(uid))
})

func serveWithAuth(t *testing.T, ts *TokenService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	RequireAuth(ts)(echoUID).ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(alice)

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := serveWithAuth(t, ts, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != alice.UID {
		t.Errorf("uid = %q, want %q", got, alice.UID)
	}
}

func TestRequireAuth_Cookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(alice)

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	rec := serveWithAuth(t, ts, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAuth_Missing(t *testing.T) {
	ts := newTestTokenService(t)

	rec := serveWithAuth(t, ts, httptest.NewRequest(http.MethodGet, "/contacts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequireAuth_Expired(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.GenerateWithDuration(alice, -time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if rec := serveWithAuth(t, ts, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuth_BadHeaderDoesNotFallBackToCookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(alice)

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	if rec := serveWithAuth(t, ts, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTokenFromRequest(t *testing.T) {
	cases := []struct {
		name   string
		header string
		cookie string
		want   string
		wantOK bool
	}{
		{"bearer", "Bearer abc", "", "abc", true},
		{"lowercase scheme", "bearer abc", "", "abc", true},
		{"bearer without token", "Bearer ", "", "", false},
		{"cookie", "", "xyz", "xyz", true},
		{"header wins", "Bearer abc", "xyz", "abc", true},
		{"nothing", "", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
			}

			got, ok := TokenFromRequest(req)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("TokenFromRequest() = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := IdentityFromContext(req.Context()); ok {
		t.Error("IdentityFromContext() on a bare context should report false")
	}
	if _, ok := UserIDFromContext(WithIdentity(req.Context(), Identity{})); ok {
		t.Error("an identity without uid is not authenticated")
	}
}
