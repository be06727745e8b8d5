package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestMiddlewareChain_Session_CSRF_GETThenPOST は
// GETで発行されたセッションとCSRFトークンを使ってPOSTが通ることを検証する。
func TestMiddlewareChain_Session_CSRF_GETThenPOST(t *testing.T) {
	store := newTestStore(t)

	sessionMW := NewSessionMiddleware(store, SessionCookieConfig{MaxAge: 3600})
	csrfMW := NewCSRFMiddleware(CSRFConfig{})

	var postSessionID string
	handler := sessionMW(csrfMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			postSessionID, _ = SessionIDFromContext(r.Context())
			w.WriteHeader(http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusOK)
	})))

	// 1. GETでCookieを受け取る
	getReq := httptest.NewRequest(http.MethodGet, "/", nil)
	getW := httptest.NewRecorder()
	handler.ServeHTTP(getW, getReq)

	var sessionC, csrfC *http.Cookie
	for _, c := range getW.Result().Cookies() {
		switch c.Name {
		case sessionCookieName:
			sessionC = c
		case csrfCookieName:
			csrfC = c
		}
	}
	if sessionC == nil || csrfC == nil {
		t.Fatalf("expected both cookies, got session=%v csrf=%v", sessionC, csrfC)
	}

	// 2. フォームでPOSTする
	form := url.Values{CSRFFormField: {csrfC.Value}}
	postReq := httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(form.Encode()))
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.AddCookie(sessionC)
	postReq.AddCookie(csrfC)
	postW := httptest.NewRecorder()
	handler.ServeHTTP(postW, postReq)

	if postW.Result().StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", postW.Result().StatusCode, http.StatusSeeOther)
	}
	if postSessionID != sessionC.Value {
		t.Errorf("session id = %q, want %q", postSessionID, sessionC.Value)
	}
	if store.Count() != 1 {
		t.Errorf("store count = %d, want 1", store.Count())
	}
}

// TestMiddlewareChain_POSTWithoutToken_Returns403 は
// セッションがあってもCSRFトークンがなければ拒否されることを検証する。
func TestMiddlewareChain_POSTWithoutToken_Returns403(t *testing.T) {
	store := newTestStore(t)

	handler := NewSessionMiddleware(store, SessionCookieConfig{})(
		NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})),
	)

	req := httptest.NewRequest(http.MethodPost, "/start", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestMiddlewareChain_RecoveryAndSecurityHeaders は
// panicが500に変換され、セキュリティヘッダーが付与されることを検証する。
func TestMiddlewareChain_RecoveryAndSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		accept   string
		hsts     bool
		wantType string
		wantHSTS bool
	}{
		{"api returns json", "/api/session/", "text/html", false, "application/json", false},
		{"page returns html", "/", "text/html,application/xhtml+xml", true, "text/html; charset=utf-8", true},
		{"page without accept returns json", "/", "", false, "application/json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSecurityHeadersMiddleware(SecurityHeadersConfig{HSTS: tt.hsts})(
				NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					panic("boom")
				})))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("X-Frame-Options = %q, want DENY", got)
			}
			if got := resp.Header.Get("Content-Security-Policy"); !strings.Contains(got, "https://simpleicons.org") {
				t.Errorf("Content-Security-Policy = %q, should allow simpleicons images", got)
			}
			if got := resp.Header.Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
