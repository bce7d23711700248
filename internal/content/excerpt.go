package content

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractExcerpt はHTML断片からプレーンテキストの抜粋を生成する。
// script/style内のテキストは無視し、連続する空白は1つにまとめる。
// maxRunesを超える場合はルーン境界で切り詰めて省略記号を付ける。
func ExtractExcerpt(fragment string, maxRunes int) string {
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return truncateRunes(collapseWhitespace(b.String()), maxRunes)
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isNonContentTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isNonContentTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isNonContentTag(name string) bool {
	return name == "script" || name == "style"
}

// collapseWhitespace は連続する空白文字を1つのスペースにまとめる。
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes はルーン単位で文字列を切り詰める。
func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
