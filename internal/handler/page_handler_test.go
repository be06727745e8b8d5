package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/html"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
	"github.com/hitoshi/fitfolio/internal/session"
	"github.com/hitoshi/fitfolio/internal/view"
)

// --- モック定義 ---

// mockRenderer はPageRendererのモック実装。
type mockRenderer struct {
	renderFn func(w io.Writer, data view.PageData) error
}

func (m *mockRenderer) Render(w io.Writer, data view.PageData) error {
	if m.renderFn != nil {
		return m.renderFn(w, data)
	}
	return nil
}

// --- テストヘルパー ---

func newTestPageHandler(t *testing.T) (*PageHandler, *session.Entry) {
	t.Helper()
	svc, _, entry := newTestFlow(t)
	renderer, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return NewPageHandler(svc, renderer, model.DefaultCatalog()), entry
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, entry *session.Entry) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), entry))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// bodyPage はレンダリング結果のbody要素のdata-page属性を返す。
func bodyPage(t *testing.T, body io.Reader) string {
	t.Helper()
	doc, err := html.Parse(body)
	if err != nil {
		t.Fatalf("html.Parse: %v", err)
	}
	var page string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			for _, a := range n.Attr {
				if a.Key == "data-page" {
					page = a.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	resp := w.Result()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
}

// --- GET / テスト ---

func TestPageHandler_Show_RendersCurrentPage(t *testing.T) {
	h, entry := newTestPageHandler(t)

	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), entry)
	w := httptest.NewRecorder()

	h.Show(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if page := bodyPage(t, resp.Body); page != "landing" {
		t.Errorf("page = %q, want %q", page, "landing")
	}
}

func TestPageHandler_Show_NoSession_Returns401(t *testing.T) {
	h, _ := newTestPageHandler(t)

	w := httptest.NewRecorder()
	h.Show(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestPageHandler_Show_RenderFailure_Returns500(t *testing.T) {
	svc, _, entry := newTestFlow(t)
	h := NewPageHandler(svc, &mockRenderer{
		renderFn: func(w io.Writer, data view.PageData) error {
			io.WriteString(w, "<html>partial")
			return errors.New("template exploded")
		},
	}, model.DefaultCatalog())

	w := httptest.NewRecorder()
	h.Show(w, withSession(httptest.NewRequest(http.MethodGet, "/", nil), entry))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "partial") {
		t.Error("partial HTML should not be written")
	}
}

func TestPageHandler_Show_PassesCSRFTokenAndDelay(t *testing.T) {
	svc, _, entry := newTestFlow(t)

	var got view.PageData
	h := NewPageHandler(svc, &mockRenderer{
		renderFn: func(w io.Writer, data view.PageData) error {
			got = data
			return nil
		},
	}, model.DefaultCatalog())

	// CSRFミドルウェアを通してトークンをコンテキストに入れる
	handler := middleware.NewCSRFMiddleware(middleware.CSRFConfig{})(http.HandlerFunc(h.Show))
	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), entry)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "known-token"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.CSRFToken != "known-token" {
		t.Errorf("CSRFToken = %q, want %q", got.CSRFToken, "known-token")
	}
	if got.Refresh != testStepDelay {
		t.Errorf("Refresh = %v, want %v", got.Refresh, testStepDelay)
	}
	if len(got.Catalog.Platforms) != 4 {
		t.Errorf("catalog platforms = %d, want 4", len(got.Catalog.Platforms))
	}
}

// --- POST テスト ---

func TestPageHandler_Start_RedirectsToConnect(t *testing.T) {
	h, entry := newTestPageHandler(t)

	w := httptest.NewRecorder()
	h.Start(w, withSession(formRequest("/start", nil), entry))

	assertRedirect(t, w)
	if got := currentPage(entry); got != flow.PageConnect {
		t.Errorf("page = %q, want %q", got, flow.PageConnect)
	}
}

func TestPageHandler_Start_FromWrongPage_RerendersWith409(t *testing.T) {
	h, entry := newTestPageHandler(t)
	entry.Do(func(c *flow.Controller) error { return c.RequestTransition(flow.PageConnect) })

	w := httptest.NewRecorder()
	h.Start(w, withSession(formRequest("/start", nil), entry))

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	if page := bodyPage(t, resp.Body); page != "connect" {
		t.Errorf("page = %q, want %q", page, "connect")
	}
}

func TestPageHandler_Connect_And_Next(t *testing.T) {
	h, entry := newTestPageHandler(t)
	entry.Do(func(c *flow.Controller) error { return c.RequestTransition(flow.PageConnect) })

	// 連携なしで次へ進むと409
	w := httptest.NewRecorder()
	h.Next(w, withSession(formRequest("/next", nil), entry))
	if w.Result().StatusCode != http.StatusConflict {
		t.Fatalf("next without platform: status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
	if !strings.Contains(w.Body.String(), model.NewNoPlatformConnectedError().Action) {
		t.Error("expected corrective notice for missing platform")
	}

	// 連携
	w = httptest.NewRecorder()
	req := withChiURLParam(withSession(formRequest("/connect/tistory", nil), entry), "platform", "tistory")
	h.Connect(w, req)
	assertRedirect(t, w)

	// 次へ
	w = httptest.NewRecorder()
	h.Next(w, withSession(formRequest("/next", nil), entry))
	assertRedirect(t, w)
	if got := currentPage(entry); got != flow.PageInput {
		t.Errorf("page = %q, want %q", got, flow.PageInput)
	}
}

func TestPageHandler_Connect_UnknownPlatform_Returns400(t *testing.T) {
	h, entry := newTestPageHandler(t)
	entry.Do(func(c *flow.Controller) error { return c.RequestTransition(flow.PageConnect) })

	w := httptest.NewRecorder()
	req := withChiURLParam(withSession(formRequest("/connect/myspace", nil), entry), "platform", "myspace")
	h.Connect(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPageHandler_SubmitCandidate_MissingField_KeepsInput(t *testing.T) {
	h, entry := newTestPageHandler(t)
	svc := h.flow
	moveToInput(t, svc, entry)

	w := httptest.NewRecorder()
	h.SubmitCandidate(w, withSession(formRequest("/candidate", url.Values{
		"company": {"SK 하이닉스"},
		"job":     {"   "},
	}), entry))

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	body := w.Body.String()
	if !strings.Contains(body, "회사명과 직무를 모두 입력해주세요.") {
		t.Error("expected notice asking for both fields")
	}
	if !strings.Contains(body, `value="SK 하이닉스"`) {
		t.Error("expected the entered company to be kept in the form")
	}
	if got := currentPage(entry); got != flow.PageInput {
		t.Errorf("page = %q, want %q", got, flow.PageInput)
	}
}

func TestPageHandler_FullFlow_ReachesResultAndRestarts(t *testing.T) {
	h, entry := newTestPageHandler(t)

	steps := []struct {
		name string
		call func(w http.ResponseWriter, r *http.Request)
		req  *http.Request
	}{
		{"start", h.Start, formRequest("/start", nil)},
		{"connect", h.Connect, withChiURLParam(formRequest("/connect/github", nil), "platform", "github")},
		{"next", h.Next, formRequest("/next", nil)},
		{"candidate", h.SubmitCandidate, formRequest("/candidate", url.Values{"company": {"Acme"}, "job": {"Backend"}})},
	}
	for _, s := range steps {
		w := httptest.NewRecorder()
		s.call(w, withSession(s.req, entry))
		if w.Result().StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: status = %d, want %d", s.name, w.Result().StatusCode, http.StatusSeeOther)
		}
	}

	waitForPage(t, entry, flow.PageResult)

	w := httptest.NewRecorder()
	h.Show(w, withSession(httptest.NewRequest(http.MethodGet, "/", nil), entry))
	body := w.Body.String()
	if !strings.Contains(body, "Acme 맞춤 포트폴리오") {
		t.Error("result page should show the company header")
	}

	w = httptest.NewRecorder()
	h.Restart(w, withSession(formRequest("/restart", nil), entry))
	assertRedirect(t, w)
	if got := currentPage(entry); got != flow.PageLanding {
		t.Errorf("page = %q, want %q", got, flow.PageLanding)
	}
}
