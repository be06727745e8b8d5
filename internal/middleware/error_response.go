package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/fitfolio/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラーはセッション状態に依存するため、キャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteSessionNotFound はセッションがコンテキストにない場合のレスポンスを書き込む。
func WriteSessionNotFound(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionNotFoundError())
}

// WriteCSRFFailure はCSRF検証失敗の403レスポンスを書き込む。
func WriteCSRFFailure(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
}

// WriteRateLimited は429レスポンスをRetry-After秒数付きで書き込む。
func WriteRateLimited(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
