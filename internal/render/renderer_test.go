package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/security"
)

func testSpace() *model.Space {
	return &model.Space{ID: "space-1", Name: "My Site", Identifier: "default"}
}

func TestRenderEntry_Blocks(t *testing.T) {
	r, err := NewRenderer(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	entry := &model.Entry{
		Name: "Home",
		Content: `{
			"title": "Welcome",
			"blocks": [
				{"type": "hero", "headline": "Hello", "subheadline": "sub", "cta_label": "Start", "cta_link": "https://example.com"},
				{"type": "text", "body": "<p>rich <strong>text</strong></p>"},
				{"type": "image", "src": "https://cdn.example.com/a.png", "alt": "pic", "caption": "cap"}
			]
		}`,
	}

	var buf bytes.Buffer
	if err := r.RenderEntry(&buf, testSpace(), entry); err != nil {
		t.Fatalf("RenderEntry returned error: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<title>Welcome - My Site</title>",
		"<h1>Hello</h1>",
		"<p>sub</p>",
		`href="https://example.com"`,
		"<strong>text</strong>",
		`<img src="https://cdn.example.com/a.png" alt="pic">`,
		"<figcaption>cap</figcaption>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q:\n%s", want, html)
		}
	}
}

// リッチテキストは描画時に再サニタイズされる。
// DBに直接scriptが書き込まれていても出力には残らない
func TestRenderEntry_SanitizesStoredHTML(t *testing.T) {
	r, err := NewRenderer(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	entry := &model.Entry{
		Name:    "Evil",
		Content: `{"blocks":[{"type":"text","body":"<p>ok</p><script>alert(1)</script>"}]}`,
	}

	var buf bytes.Buffer
	if err := r.RenderEntry(&buf, testSpace(), entry); err != nil {
		t.Fatalf("RenderEntry returned error: %v", err)
	}
	if strings.Contains(buf.String(), "<script") {
		t.Errorf("script leaked into rendered page:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "<p>ok</p>") {
		t.Errorf("safe markup was dropped:\n%s", buf.String())
	}
}

func TestRenderEntry_BrokenContent(t *testing.T) {
	r, err := NewRenderer(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	entry := &model.Entry{Name: "Broken", Content: `{not json`}

	var buf bytes.Buffer
	if err := r.RenderEntry(&buf, testSpace(), entry); err == nil {
		t.Fatal("expected error for broken content JSON")
	}
}

func TestRenderEntry_EmptyContent(t *testing.T) {
	r, err := NewRenderer(security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	entry := &model.Entry{Name: "Blank", Content: ""}

	var buf bytes.Buffer
	if err := r.RenderEntry(&buf, testSpace(), entry); err != nil {
		t.Fatalf("RenderEntry returned error: %v", err)
	}
	// タイトルはエントリ名にフォールバックする
	if !strings.Contains(buf.String(), "<title>Blank - My Site</title>") {
		t.Errorf("title fallback missing:\n%s", buf.String())
	}
}

// 生成したフィードが実際のRSSパーサーで読めることを検証する
func TestWriteFeed_RoundTripWithGofeed(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := published.Add(-24 * time.Hour)

	entries := []model.EntryWithContentType{
		{Entry: model.Entry{Slug: "home", Name: "Home", PublishedAt: &published}},
		{Entry: model.Entry{Slug: "about-us", Name: "About Us", PublishedAt: &older}},
	}

	var buf bytes.Buffer
	if err := WriteFeed(&buf, testSpace(), entries, "https://site.example.com/"); err != nil {
		t.Fatalf("WriteFeed returned error: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("generated feed is not parseable: %v", err)
	}

	if parsed.Title != "My Site" {
		t.Errorf("feed title = %q", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("feed has %d items, want 2", len(parsed.Items))
	}
	if parsed.Items[0].Link != "https://site.example.com/p/home" {
		t.Errorf("item link = %q", parsed.Items[0].Link)
	}
	if parsed.Items[0].PublishedParsed == nil || !parsed.Items[0].PublishedParsed.Equal(published) {
		t.Errorf("item published = %v, want %v", parsed.Items[0].PublishedParsed, published)
	}
}

func TestWriteFeed_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFeed(&buf, testSpace(), nil, "https://site.example.com"); err != nil {
		t.Fatalf("WriteFeed returned error: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("empty feed is not parseable: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("feed has %d items, want 0", len(parsed.Items))
	}
}
