package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
)

// toAPIError はフロー操作のエラーをAPIErrorに変換する。
// 変換できないエラーはnilを返す。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var fieldErr *flow.FieldError
	if errors.As(err, &fieldErr) {
		return model.NewMissingFieldError(fieldErr.Fields)
	}

	var platformErr *flow.PlatformError
	if errors.As(err, &platformErr) {
		return model.NewInvalidPlatformError(platformErr.Value)
	}

	var transErr *flow.TransitionError
	if errors.As(err, &transErr) {
		// connect -> input は表にある辺なので、拒否理由は連携なししかない
		if transErr.From == flow.PageConnect && transErr.To == flow.PageInput {
			return model.NewNoPlatformConnectedError()
		}
		return model.NewIllegalTransitionError(string(transErr.From), string(transErr.To), transErr.Reason)
	}

	return nil
}

// handleServiceError はフロー操作のエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeIllegalTransition:
		return http.StatusConflict
	case model.ErrCodeMissingField:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidPlatform, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeSessionNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
