// Package model はプレゼンテーション層で扱うモデルとエラー形式を定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: flow, validation, session, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeIllegalTransition = "ILLEGAL_TRANSITION"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeInvalidPlatform   = "INVALID_PLATFORM"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeCSRFInvalid       = "CSRF_INVALID"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewIllegalTransitionError は許可されていない画面遷移のエラーを生成する。
func NewIllegalTransitionError(from, to, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeIllegalTransition,
		Message:  fmt.Sprintf("'%s' 화면에서 '%s' 화면으로 이동할 수 없습니다: %s", from, to, reason),
		Category: "flow",
		Action:   "현재 단계를 먼저 완료해주세요.",
	}
}

// NewNoPlatformConnectedError はデータ連携なしで次へ進もうとした場合のエラーを生成する。
func NewNoPlatformConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeIllegalTransition,
		Message:  "연동된 플랫폼이 없습니다.",
		Category: "flow",
		Action:   "하나 이상의 플랫폼을 연동한 뒤 다음 단계로 진행해주세요.",
	}
}

// NewMissingFieldError は志望企業・職種の未入力エラーを生成する。
func NewMissingFieldError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("필수 항목이 비어 있습니다: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "회사명과 직무를 모두 입력해주세요.",
	}
}

// NewInvalidPlatformError は未知のプラットフォームエラーを生成する。
func NewInvalidPlatformError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("지원하지 않는 플랫폼입니다: %s", value),
		Category: "validation",
		Action:   "github, linkedin, tistory, behance 중 하나를 지정해주세요.",
	}
}

// NewInvalidRequestError はリクエスト形式の不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("잘못된 요청입니다: %s", reason),
		Category: "validation",
		Action:   "요청 형식을 확인해주세요.",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "세션을 찾을 수 없습니다.",
		Category: "session",
		Action:   "페이지를 새로고침한 뒤 다시 시도해주세요.",
	}
}

// NewCSRFInvalidError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "요청을 확인할 수 없습니다.",
		Category: "session",
		Action:   "페이지를 새로고침한 뒤 다시 시도해주세요.",
	}
}

// NewRateLimitedError はリクエスト過多のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "요청이 너무 많습니다.",
		Category: "system",
		Action:   "잠시 후 다시 시도해주세요.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "내부 오류가 발생했습니다.",
		Category: "system",
		Action:   "잠시 후 다시 시도해주세요.",
	}
}
