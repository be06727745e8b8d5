package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/metrics"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
	"github.com/hitoshi/fitfolio/internal/security"
	"github.com/hitoshi/fitfolio/internal/session"
	"github.com/hitoshi/fitfolio/internal/view"
)

const testOrigin = "http://localhost:3000"

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter(t *testing.T) (http.Handler, *session.Store, *prometheus.Registry) {
	t.Helper()

	store := session.NewStore(session.Config{})
	t.Cleanup(store.Close)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	renderer, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	deps := &RouterDeps{
		Sessions:          store,
		SessionCookie:     middleware.SessionCookieConfig{MaxAge: 3600},
		CSRF:              middleware.CSRFConfig{},
		CORSAllowedOrigin: testOrigin,
		RateLimiter:       limiter,
		Logger:            discardLogger(),
		Metrics:           collector,
		Gatherer:          reg,
		Flow:              NewFlowService(flow.NewRunner(testStepDelay), security.NewInputSanitizer(0), collector, discardLogger()),
		Renderer:          renderer,
		Catalog:           model.DefaultCatalog(),
	}
	return NewRouter(deps), store, reg
}

// newBrowser はCookieを保持しリダイレクトを追わないクライアントを返す。
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func csrfFromJar(t *testing.T, client *http.Client, base string) string {
	t.Helper()
	u, _ := url.Parse(base)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == "csrf_token" {
			return c.Value
		}
	}
	t.Fatal("csrf cookie not found")
	return ""
}

func postForm(t *testing.T, client *http.Client, target string, values url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(target, values)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	resp.Body.Close()
	return resp
}

// --- 運用ルート ---

func TestNewRouter_Health_DoesNotCreateSession(t *testing.T) {
	router, store, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if store.Count() != 0 {
		t.Errorf("store count = %d, want 0", store.Count())
	}
}

func TestNewRouter_Metrics_ExposesStatusCounter(t *testing.T) {
	router, _, _ := createTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `fitfolio_http_status_total{status_code="200"}`) {
		t.Errorf("metrics output missing status counter:\n%s", w.Body.String())
	}
}

func TestNewRouter_Static_ServesStylesheet(t *testing.T) {
	router, _, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/styles.css", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestNewRouter_UnknownRoute_Returns404(t *testing.T) {
	router, _, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feeds", nil))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// --- HTML画面 ---

func TestNewRouter_Index_SetsCookiesAndSecurityHeaders(t *testing.T) {
	router, store, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
	}
	if !names["fitfolio_session"] || !names["csrf_token"] {
		t.Errorf("cookies = %v, want fitfolio_session and csrf_token", names)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
	if store.Count() != 1 {
		t.Errorf("store count = %d, want 1", store.Count())
	}
}

func TestNewRouter_POST_RequiresCSRF(t *testing.T) {
	router, _, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestNewRouter_HTMLFlow_WithBrowser(t *testing.T) {
	router, _, _ := createTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := newBrowser(t)

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	token := csrfFromJar(t, client, srv.URL)

	for _, path := range []string{"/start", "/connect/github", "/next"} {
		if resp := postForm(t, client, srv.URL+path, url.Values{"csrf_token": {token}}); resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("POST %s: status = %d, want %d", path, resp.StatusCode, http.StatusSeeOther)
		}
	}

	resp = postForm(t, client, srv.URL+"/candidate", url.Values{
		"csrf_token": {token},
		"company":    {"Acme"},
		"job":        {"Backend"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("POST /candidate: status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}

	// 分析中はmeta refreshで再読み込みされ、完了すると結果画面になる
	var body string
	for i := 0; i < 200; i++ {
		resp, err := client.Get(srv.URL + "/")
		if err != nil {
			t.Fatalf("GET /: %v", err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		body = string(b)
		if strings.Contains(body, `data-page="result"`) {
			break
		}
		if !strings.Contains(body, `http-equiv="refresh"`) {
			t.Fatalf("analysis page should auto-refresh:\n%s", body)
		}
		time.Sleep(testStepDelay)
	}
	if !strings.Contains(body, "Acme 맞춤 포트폴리오") {
		t.Fatalf("expected result page, got:\n%s", body)
	}
	if !strings.Contains(body, `id="analysis-complete"`) {
		t.Errorf("result page should show the completion message:\n%s", body)
	}

	if resp := postForm(t, client, srv.URL+"/restart", url.Values{"csrf_token": {token}}); resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("POST /restart: status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
}

// --- JSON API ---

func TestNewRouter_CSRFTokenEndpoint_NoSessionRequired(t *testing.T) {
	router, store, _ := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["token"] == "" {
		t.Error("expected non-empty token")
	}
	if store.Count() != 0 {
		t.Errorf("store count = %d, want 0", store.Count())
	}
}

func TestNewRouter_CORSPreflight_AllowsConfiguredOrigin(t *testing.T) {
	router, store, _ := createTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/session/platforms", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-CSRF-Token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, testOrigin)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
	if store.Count() != 0 {
		t.Errorf("preflight should not create a session, store count = %d", store.Count())
	}
}

func TestNewRouter_CORSPreflight_RejectsOtherOrigin(t *testing.T) {
	router, _, _ := createTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestNewRouter_API_WithHeaderToken(t *testing.T) {
	router, _, _ := createTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := newBrowser(t)

	resp, err := client.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/session: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	token := csrfFromJar(t, client, srv.URL)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/session/transitions", strings.NewReader(`{"target": "connect"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("POST transitions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Page != "connect" {
		t.Errorf("page = %q, want %q", body.Page, "connect")
	}
}
