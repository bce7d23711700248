package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/revicx/blade/internal/model"
)

// rssDoc はRSS 2.0ドキュメントのルート要素。
type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	GUID    string `xml:"guid"`
	PubDate string `xml:"pubDate,omitempty"`
}

// WriteFeed は公開済みエントリの一覧をRSS 2.0として書き出す。
// 各エントリのリンクは baseURL + /p/{slug}。日付はRFC1123Z形式。
func WriteFeed(w io.Writer, space *model.Space, entries []model.EntryWithContentType, baseURL string) error {
	baseURL = strings.TrimSuffix(baseURL, "/")

	channel := rssChannel{
		Title:       space.Name,
		Link:        baseURL + "/",
		Description: fmt.Sprintf("%s の公開エントリ", space.Name),
		Items:       make([]rssItem, 0, len(entries)),
	}

	var newest time.Time
	for _, e := range entries {
		item := rssItem{
			Title: e.Name,
			Link:  fmt.Sprintf("%s/p/%s", baseURL, e.Slug),
			GUID:  fmt.Sprintf("%s/p/%s", baseURL, e.Slug),
		}
		if e.PublishedAt != nil {
			item.PubDate = e.PublishedAt.Format(time.RFC1123Z)
			if e.PublishedAt.After(newest) {
				newest = *e.PublishedAt
			}
		}
		channel.Items = append(channel.Items, item)
	}
	if !newest.IsZero() {
		channel.LastBuildDate = newest.Format(time.RFC1123Z)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write feed header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(rssDoc{Version: "2.0", Channel: channel}); err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return nil
}
