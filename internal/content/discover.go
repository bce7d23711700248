package content

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedKind は検出したフィードの種類（RSS/Atom）を表す。
type feedKind string

const (
	feedKindRSS  feedKind = "rss"
	feedKindAtom feedKind = "atom"
)

// feedCandidate はHTMLのheadから検出されたフィード候補。
type feedCandidate struct {
	URL  string
	Kind feedKind
}

// feedContentTypes はフィードとして直接認識するContent-Type。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes は汎用XMLのContent-Type（ボディ解析で判定する）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// isDirectFeed はContent-Typeとボディから、レスポンスがRSS/Atomフィード
// そのものかどうかを判定する。
func isDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	isXML := false
	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	return isRSSOrAtomXML(body)
}

// isRSSOrAtomXML はXMLボディの先頭部分からRSS/Atomフィードかを判定する。
func isRSSOrAtomXML(body []byte) bool {
	// XMLプロローグ + ルート要素の判定には先頭4KBで十分
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") {
		return true
	}
	if strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	if strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom") {
		return true
	}
	return false
}

// isHTMLContentType はContent-TypeがHTMLかどうかを判定する。
func isHTMLContentType(contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// parseFeedLinksFromHTML はHTMLのheadからrel="alternate"のRSS/Atomリンクを検出する。
// 相対URLはbaseURLを基準に絶対URLへ解決される。
func parseFeedLinksFromHTML(htmlBody []byte, baseURL string) []feedCandidate {
	var candidates []feedCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				// bodyに入ったらheadの解析は終了
				return candidates
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}

			var kind feedKind
			switch linkType {
			case "application/rss+xml":
				kind = feedKindRSS
			case "application/atom+xml":
				kind = feedKindAtom
			default:
				continue
			}

			resolved := resolveURL(baseU, href)
			if resolved == "" {
				continue
			}
			candidates = append(candidates, feedCandidate{URL: resolved, Kind: kind})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLへ解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// selectBestFeed は候補から取り込みに使うフィードを選択する。
// 優先順位: 同一ホスト > Atom > 先頭。
func selectBestFeed(candidates []feedCandidate, inputURL string) *feedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	inputHost := extractHost(inputURL)

	bestIdx := 0
	bestScore := -1
	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == inputHost {
			score += 100
		}
		if c.Kind == feedKindAtom {
			score += 10
		}
		// 同スコアはインデックスが小さい方を優先する
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
