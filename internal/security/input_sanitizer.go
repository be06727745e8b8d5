// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizer は利用者が入力した志望企業・職種からHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去し、エンティティを復元した平文を返す。
// エンティティ復元でタグが現れた場合は、安定するまで除去を繰り返す。
// 画面への出力時のエスケープはhtml/templateが行う。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxInputRunes は1項目あたりの最大文字数。
const DefaultMaxInputRunes = 100

// maxStripPasses はタグ除去とエンティティ復元を繰り返す上限回数。
// 上限内に収束しなければ山括弧とアンパサンドを捨てる。
const maxStripPasses = 8

// InputSanitizerService はフォーム入力を平文に正規化するインターフェース。
type InputSanitizerService interface {
	// Sanitize はタグを除去し、前後の空白を取り除いた平文を返す。
	// 最大文字数を超える部分は切り捨てる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
type inputSanitizer struct {
	policy   *bluemonday.Policy
	maxRunes int
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// maxRunesが0以下の場合はDefaultMaxInputRunesを使用する。
func NewInputSanitizer(maxRunes int) *inputSanitizer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxInputRunes
	}
	return &inputSanitizer{
		policy:   bluemonday.StrictPolicy(),
		maxRunes: maxRunes,
	}
}

// Sanitize はタグを除去した平文を返す。
func (s *inputSanitizer) Sanitize(raw string) string {
	plain := normalizeSpace(s.strip(raw))

	if utf8.RuneCountInString(plain) > s.maxRunes {
		// 切り詰めでエンティティの断片が残ることがあるため再度除去する
		plain = normalizeSpace(s.strip(string([]rune(plain)[:s.maxRunes])))
	}
	return plain
}

// strip はタグ除去とエンティティ復元を結果が変わらなくなるまで繰り返す。
// 戻り値はStrictPolicyを通しても変化しない平文。
func (s *inputSanitizer) strip(in string) string {
	for i := 0; i < maxStripPasses; i++ {
		// StrictPolicyは & などをエンティティ化するため平文に戻す
		out := html.UnescapeString(s.policy.Sanitize(in))
		if out == in {
			return out
		}
		in = out
	}
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || r == '&' {
			return -1
		}
		return r
	}, in)
}

func normalizeSpace(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
