package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
)

// APIHandler は別フロントエンド向けのJSON APIハンドラー。
type APIHandler struct {
	flow *FlowService
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(svc *FlowService) *APIHandler {
	return &APIHandler{flow: svc}
}

// platformRequest はプラットフォーム連携リクエストのボディ。
type platformRequest struct {
	Platform string `json:"platform"`
}

// transitionRequest は画面遷移リクエストのボディ。
type transitionRequest struct {
	Target string `json:"target"`
}

// candidateRequest は志望企業・職種の保存リクエストのボディ。
type candidateRequest struct {
	Company string `json:"company"`
	Job     string `json:"job"`
}

// progressResponse は分析ステップのAPIレスポンス。
type progressResponse struct {
	Step     int     `json:"step"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
	Percent  int     `json:"percent"`
	Message  string  `json:"message"`
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	Page      string            `json:"page"`
	Platforms []string          `json:"platforms"`
	Company   string            `json:"company"`
	Job       string            `json:"job"`
	Progress  *progressResponse `json:"progress,omitempty"`
}

// progressStatusResponse は分析進捗ポーリングのAPIレスポンス。
type progressStatusResponse struct {
	Page     string            `json:"page"`
	Progress *progressResponse `json:"progress,omitempty"`
	Done     bool              `json:"done"`
}

// GetSession はセッション状態を返す。
// GET /api/session
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.flow.State(entry)))
}

// ConnectPlatform はプラットフォームを連携する。
// POST /api/session/platforms
func (h *APIHandler) ConnectPlatform(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	var req platformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("JSON 본문을 해석할 수 없습니다"))
		return
	}
	if req.Platform == "" {
		handleServiceError(w, model.NewInvalidRequestError("platform 값이 비어 있습니다"))
		return
	}

	if err := h.flow.Connect(entry, req.Platform); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.flow.State(entry)))
}

// RequestTransition は画面遷移を要求する。
// POST /api/session/transitions
func (h *APIHandler) RequestTransition(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("JSON 본문을 해석할 수 없습니다"))
		return
	}
	target, err := flow.ParsePage(req.Target)
	if err != nil {
		handleServiceError(w, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := h.flow.Transition(entry, target); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.flow.State(entry)))
}

// SetCandidate は志望企業と職種を保存する。
// PUT /api/session/candidate
func (h *APIHandler) SetCandidate(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("JSON 본문을 해석할 수 없습니다"))
		return
	}

	if err := h.flow.SetCandidate(entry, req.Company, req.Job); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.flow.State(entry)))
}

// Reset はセッションを初期状態に戻す。
// POST /api/session/reset
func (h *APIHandler) Reset(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	h.flow.Reset(entry)
	writeJSON(w, http.StatusOK, toSessionResponse(h.flow.State(entry)))
}

// GetProgress は分析の進捗を返す。結果画面に到達していればdoneがtrueになる。
// GET /api/session/progress
func (h *APIHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	entry, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionNotFound(w)
		return
	}

	st := h.flow.State(entry)
	writeJSON(w, http.StatusOK, progressStatusResponse{
		Page:     string(st.Page),
		Progress: toProgressResponse(st),
		Done:     st.Page == flow.PageResult,
	})
}

func toSessionResponse(st SessionState) sessionResponse {
	platforms := make([]string, len(st.Platforms))
	for i, p := range st.Platforms {
		platforms[i] = string(p)
	}
	return sessionResponse{
		Page:      string(st.Page),
		Platforms: platforms,
		Company:   st.Company,
		Job:       st.Job,
		Progress:  toProgressResponse(st),
	}
}

func toProgressResponse(st SessionState) *progressResponse {
	if !st.HasProgress {
		return nil
	}
	return &progressResponse{
		Step:     st.Progress.Step,
		Total:    st.Progress.Total,
		Fraction: st.Progress.Fraction,
		Percent:  st.Progress.Percent(),
		Message:  st.Progress.Message,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
