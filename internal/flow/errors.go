package flow

import (
	"errors"
	"fmt"
	"strings"
)

// 操作失敗の分類。errors.Isで判定する。
var (
	// ErrIllegalTransition は現在の画面から要求された画面への遷移が許可されていないことを示す。
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrMissingField は志望企業または職種が未入力であることを示す。
	ErrMissingField = errors.New("missing field")
	// ErrInvalidPlatform は既知の集合に含まれないプラットフォームが渡されたことを示す。
	// 利用者の入力ミスではなく呼び出し側の契約違反として扱う。
	ErrInvalidPlatform = errors.New("invalid platform")
)

// TransitionError は拒否された遷移の詳細を保持する。
type TransitionError struct {
	From   Page
	To     Page
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// Unwrap はErrIllegalTransitionを返す。
func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// FieldError は未入力の項目名を保持する。
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing field: %s", strings.Join(e.Fields, ", "))
}

// Unwrap はErrMissingFieldを返す。
func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// PlatformError は不正なプラットフォーム値を保持する。
type PlatformError struct {
	Value string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("invalid platform %q", e.Value)
}

// Unwrap はErrInvalidPlatformを返す。
func (e *PlatformError) Unwrap() error {
	return ErrInvalidPlatform
}
