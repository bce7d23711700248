package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/render"
)

// homeEntrySlug は公開サイトのトップページとして描画されるスラッグ。
const homeEntrySlug = "home"

// SiteSpaceResolver は公開サイトが描画するスペースを解決するインターフェース。
type SiteSpaceResolver interface {
	ResolveSiteSpace(ctx context.Context) (*model.Space, error)
}

// EntryRenderer はエントリをHTMLに描画するインターフェース。
type EntryRenderer interface {
	RenderEntry(w io.Writer, space *model.Space, entry *model.Entry) error
}

// SiteHandler は公開サイト（HTMLとRSS）のハンドラー。認証不要。
type SiteHandler struct {
	resolver  SiteSpaceResolver
	reader    PublishedContentReader
	renderer  EntryRenderer
	collector metrics.MetricsCollector
	logger    *slog.Logger
	baseURL   string
}

// NewSiteHandler はSiteHandlerを生成する。
func NewSiteHandler(
	resolver SiteSpaceResolver,
	reader PublishedContentReader,
	renderer EntryRenderer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	baseURL string,
) *SiteHandler {
	return &SiteHandler{
		resolver:  resolver,
		reader:    reader,
		renderer:  renderer,
		collector: collector,
		logger:    logger,
		baseURL:   baseURL,
	}
}

// Home はトップページ（"home"エントリ）を描画する。
// GET /
func (h *SiteHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderSlug(w, r, homeEntrySlug)
}

// Page は公開済みエントリのページを描画する。下書きは404になる。
// GET /p/{slug}
func (h *SiteHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderSlug(w, r, chi.URLParam(r, "slug"))
}

func (h *SiteHandler) renderSlug(w http.ResponseWriter, r *http.Request, slug string) {
	start := time.Now()

	s, ok := h.siteSpace(w, r)
	if !ok {
		return
	}

	entry, err := h.reader.GetPublishedEntry(r.Context(), s.ID, slug)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEntryNotFound {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("failed to load entry for rendering",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderEntry(w, s, entry); err != nil {
		// ヘッダー送信後のため、ログのみ
		h.logger.Error("failed to render entry",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return
	}

	h.collector.RecordRenderLatency(time.Since(start))
}

// Feed は公開済みエントリのRSSフィードを返す。
// GET /feed.xml
func (h *SiteHandler) Feed(w http.ResponseWriter, r *http.Request) {
	s, ok := h.siteSpace(w, r)
	if !ok {
		return
	}

	entries, err := h.reader.ListPublishedEntries(r.Context(), s.ID)
	if err != nil {
		h.logger.Error("failed to list entries for feed",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if err := render.WriteFeed(w, s, entries, h.baseURL); err != nil {
		h.logger.Error("failed to write feed",
			slog.String("error", err.Error()),
		)
	}
}

// siteSpace は公開サイトのスペースを解決する。未設定の場合は404。
func (h *SiteHandler) siteSpace(w http.ResponseWriter, r *http.Request) (*model.Space, bool) {
	s, err := h.resolver.ResolveSiteSpace(r.Context())
	if err != nil {
		h.logger.Error("failed to resolve site space",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if s == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return s, true
}
