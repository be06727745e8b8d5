package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
	"github.com/hitoshi/fitfolio/internal/view"
)

// PageRenderer は画面を描画するインターフェース。
type PageRenderer interface {
	Render(w io.Writer, data view.PageData) error
}

// PageHandler はサーバーサイドで描画するHTML画面のハンドラー。
// 状態を変更する操作はすべて303で / にリダイレクトする。
type PageHandler struct {
	flow     *FlowService
	renderer PageRenderer
	catalog  model.Catalog
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(svc *FlowService, renderer PageRenderer, catalog model.Catalog) *PageHandler {
	return &PageHandler{
		flow:     svc,
		renderer: renderer,
		catalog:  catalog,
	}
}

// Show は現在の画面を描画する。
// GET /
func (h *PageHandler) Show(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}
	h.render(w, r, http.StatusOK, h.flow.State(entry), "")
}

// Start はランディングから連携画面へ進む。
// POST /start
func (h *PageHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, flow.PageConnect)
}

// Connect はプラットフォームを連携する。
// POST /connect/{platform}
func (h *PageHandler) Connect(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	if err := h.flow.Connect(entry, chi.URLParam(r, "platform")); err != nil {
		h.renderError(w, r, h.flow.State(entry), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Next は連携画面から入力画面へ進む。
// POST /next
func (h *PageHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, flow.PageInput)
}

// SubmitCandidate は志望企業と職種を保存して分析を開始する。
// POST /candidate
func (h *PageHandler) SubmitCandidate(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	company := r.PostFormValue("company")
	job := r.PostFormValue("job")

	if err := h.flow.SubmitCandidate(entry, company, job); err != nil {
		st := h.flow.State(entry)
		// 入力途中の値をフォームに残す
		st.Company, st.Job = company, job
		h.renderError(w, r, st, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Restart は結果画面からランディングに戻り、セッションを初期化する。
// POST /restart
func (h *PageHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, flow.PageLanding)
}

func (h *PageHandler) transition(w http.ResponseWriter, r *http.Request, target flow.Page) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	if err := h.flow.Transition(entry, target); err != nil {
		h.renderError(w, r, h.flow.State(entry), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderError は現在の画面にエラーメッセージを添えて再描画する。
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, st SessionState, err error) {
	apiErr := toAPIError(err)
	if apiErr == nil {
		slog.Error("internal server error", slog.String("error", err.Error()))
		apiErr = model.NewInternalError()
	}
	h.render(w, r, mapAPIErrorToHTTPStatus(apiErr), st, apiErr.Action)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, st SessionState, notice string) {
	connected := make(map[flow.Platform]bool, len(st.Platforms))
	for _, p := range st.Platforms {
		connected[p] = true
	}

	data := view.PageData{
		Page:        st.Page,
		CSRFToken:   middleware.CSRFTokenFromContext(r.Context()),
		Catalog:     h.catalog,
		Connected:   connected,
		CanProceed:  len(st.Platforms) > 0,
		Company:     st.Company,
		Job:         st.Job,
		Progress:    st.Progress,
		HasProgress: st.HasProgress,
		Refresh:     h.flow.StepDelay(),
		Notice:      notice,
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", string(st.Page)),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
