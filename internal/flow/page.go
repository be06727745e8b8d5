// Package flow はポートフォリオ作成フローの画面遷移を管理する。
//
// 1セッション分の状態（現在の画面、連携済みプラットフォーム、志望企業、職種）を保持し、
// 遷移表と前提条件に従って画面遷移を許可または拒否する。
// Controllerはゴルーチンセーフではない。並行アクセスは呼び出し側で直列化すること。
package flow

import "fmt"

// Page はフローを構成する画面を表す。
type Page string

const (
	// PageLanding はトップ画面。セッションの初期状態。
	PageLanding Page = "landing"
	// PageConnect はデータ連携画面。
	PageConnect Page = "connect"
	// PageInput は志望企業・職種の入力画面。
	PageInput Page = "input"
	// PageAnalysis は分析中画面。
	PageAnalysis Page = "analysis"
	// PageResult は結果画面。
	PageResult Page = "result"
)

// pages は画面の表示順。
var pages = []Page{PageLanding, PageConnect, PageInput, PageAnalysis, PageResult}

// Pages は全画面を表示順で返す。
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// Valid は画面が5種類のいずれかであるかを判定する。
func (p Page) Valid() bool {
	switch p {
	case PageLanding, PageConnect, PageInput, PageAnalysis, PageResult:
		return true
	default:
		return false
	}
}

// String はfmt.Stringerを実装する。
func (p Page) String() string {
	return string(p)
}

// ParsePage は文字列を画面に変換する。
func ParsePage(s string) (Page, error) {
	p := Page(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown page %q", s)
	}
	return p, nil
}
