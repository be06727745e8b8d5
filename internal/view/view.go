// Package view はHTML画面の描画と静的ファイルの配信を提供する。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PageData は画面描画に渡すデータ。
type PageData struct {
	Page      flow.Page
	CSRFToken string
	Catalog   model.Catalog

	// connect
	Connected  map[flow.Platform]bool
	CanProceed bool

	// input, result
	Company string
	Job     string

	// analysis
	Progress    flow.Progress
	HasProgress bool
	Refresh     time.Duration

	// Notice は検証エラーなどのユーザー向けメッセージ。
	Notice string
}

// RefreshSeconds はmeta refreshに使う秒数を返す。
// ステップを取りこぼさないよう、ステップ間隔以下の整数秒に切り捨てる（最小1秒）。
func (d PageData) RefreshSeconds() int {
	sec := int(d.Refresh / time.Second)
	if sec < 1 {
		return 1
	}
	return sec
}

// Renderer はページごとに事前パースしたテンプレートを保持する。
type Renderer struct {
	pages map[flow.Page]*template.Template
}

var funcs = template.FuncMap{
	"highlighted": func(c model.Catalog, skill string) bool { return c.IsHighlighted(skill) },
	"rewrite":     func(c model.Catalog, company string) string { return c.AIRewrite(company) },
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[flow.Page]*template.Template, len(flow.Pages()))}
	for _, p := range flow.Pages() {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+p.String()+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", p, err)
		}
		r.pages[p] = tmpl
	}
	return r, nil
}

// Render はdata.Pageに対応する画面を書き込む。
func (r *Renderer) Render(w io.Writer, data PageData) error {
	tmpl, ok := r.pages[data.Page]
	if !ok {
		return fmt.Errorf("no template for page %q", data.Page)
	}
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", data.Page, err)
	}
	return nil
}

// StaticHandler は/static/配下のファイルを配信するハンドラーを返す。
// prefixを取り除いたパスで埋め込みファイルを引く。
func StaticHandler(prefix string) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(prefix, http.FileServerFS(sub))
}
