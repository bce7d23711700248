// Package render は公開サイトのHTML描画とRSSフィード生成を提供する。
// エントリ本文のJSONを既知のブロック型に展開し、リッチテキストは
// 描画直前に必ずサニタイズする。
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/security"
)

// block はエントリ本文の1ブロック。未知のフィールドは無視される。
type block struct {
	Type        string `json:"type"`
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	Image       string `json:"image"`
	CTALabel    string `json:"cta_label"`
	CTALink     string `json:"cta_link"`
	Body        string `json:"body"`
	Src         string `json:"src"`
	Alt         string `json:"alt"`
	Caption     string `json:"caption"`
}

// pageContent はエントリ本文のJSON構造。
type pageContent struct {
	Title  string  `json:"title"`
	Blocks []block `json:"blocks"`
}

// renderedBlock はテンプレートに渡す描画済みブロック。
// BodyHTMLはサニタイズ済みのHTMLのみを保持する。
type renderedBlock struct {
	Type        string
	Headline    string
	Subheadline string
	Image       string
	CTALabel    string
	CTALink     string
	BodyHTML    template.HTML
	Src         string
	Alt         string
	Caption     string
}

// pageData はページテンプレートのルートデータ。
type pageData struct {
	SpaceName string
	Title     string
	Blocks    []renderedBlock
}

const pageTemplate = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{if .Title}}{{.Title}} - {{end}}{{.SpaceName}}</title>
</head>
<body>
<header><a href="/">{{.SpaceName}}</a></header>
<main>
{{range .Blocks}}{{if eq .Type "hero"}}<section class="hero">
<h1>{{.Headline}}</h1>
{{if .Subheadline}}<p>{{.Subheadline}}</p>{{end}}
{{if .Image}}<img src="{{.Image}}" alt="">{{end}}
{{if .CTALabel}}<a class="cta" href="{{.CTALink}}">{{.CTALabel}}</a>{{end}}
</section>
{{else if eq .Type "text"}}<section class="text">
{{.BodyHTML}}
</section>
{{else if eq .Type "image"}}<figure>
<img src="{{.Src}}" alt="{{.Alt}}">
{{if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}
</figure>
{{end}}{{end}}
</main>
</body>
</html>
`

// Renderer はエントリをHTMLページとして描画する。
type Renderer struct {
	sanitizer security.ContentSanitizerService
	tmpl      *template.Template
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) (*Renderer, error) {
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return &Renderer{sanitizer: sanitizer, tmpl: tmpl}, nil
}

// RenderEntry はエントリをHTMLページとして書き出す。
// 本文JSONが壊れている場合はエラーを返す（描画を黙って空にしない）。
// リッチテキストブロックは保存時の内容にかかわらずここで再サニタイズされる。
func (r *Renderer) RenderEntry(w io.Writer, space *model.Space, entry *model.Entry) error {
	var content pageContent
	if entry.Content != "" {
		if err := json.Unmarshal([]byte(entry.Content), &content); err != nil {
			return fmt.Errorf("failed to decode entry content: %w", err)
		}
	}

	title := content.Title
	if title == "" {
		title = entry.Name
	}

	data := pageData{
		SpaceName: space.Name,
		Title:     title,
		Blocks:    make([]renderedBlock, 0, len(content.Blocks)),
	}
	for _, b := range content.Blocks {
		rb := renderedBlock{
			Type:        b.Type,
			Headline:    b.Headline,
			Subheadline: b.Subheadline,
			Image:       b.Image,
			CTALabel:    b.CTALabel,
			CTALink:     b.CTALink,
			Src:         b.Src,
			Alt:         b.Alt,
			Caption:     b.Caption,
		}
		if b.Type == "text" {
			rb.BodyHTML = template.HTML(r.sanitizer.Sanitize(b.Body))
		}
		data.Blocks = append(data.Blocks, rb)
	}

	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render entry: %w", err)
	}
	return nil
}
