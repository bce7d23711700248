package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/security"
	"github.com/revicx/blade/internal/space"
)

// excerptMaxRunes は取り込み時に生成する抜粋の最大長。
const excerptMaxRunes = 200

// Importer は外部RSS/Atomフィードから下書きエントリを取り込む。
// ユーザー指定URLへのアクセスは必ずSSRFガード経由で行い、
// 取り込んだHTMLはサニタイズしてから保存する。
type Importer struct {
	svc         *Service
	ssrfGuard   security.SSRFGuardService
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	maxItems    int
}

// NewImporter はImporterを生成する。
func NewImporter(
	svc *Service,
	ssrfGuard security.SSRFGuardService,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	maxItems int,
) *Importer {
	if maxItems <= 0 {
		maxItems = 20
	}
	return &Importer{
		svc:         svc,
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		maxItems:    maxItems,
	}
}

// importedBlock は取り込みエントリの本文ブロック。
type importedBlock struct {
	Type string `json:"type"`
	Body string `json:"body,omitempty"`
}

// importedContent は取り込みエントリのJSON本文。
type importedContent struct {
	Title     string          `json:"title"`
	SourceURL string          `json:"source_url,omitempty"`
	Excerpt   string          `json:"excerpt,omitempty"`
	Blocks    []importedBlock `json:"blocks"`
}

// ImportFeed は指定URLのフィードを取得し、記事を下書きエントリとして作成する。
// 編集権限が必要。取り込み先にはpageコンテンツタイプを使用する。
// slugが衝突した記事はスキップされ、作成した件数を返す。
func (i *Importer) ImportFeed(ctx context.Context, spaceID, userID, feedURL string) (int, error) {
	if _, err := i.svc.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return 0, err
	}

	// SSRF検証: 接続前の静的チェック。接続時の検証はsafeurlクライアントが行う
	if err := i.ssrfGuard.ValidateURL(feedURL); err != nil {
		return 0, model.NewImportFailedError(err.Error())
	}

	pageType, err := i.svc.contentTypeRepo.FindBySpaceAndType(ctx, spaceID, "page")
	if err != nil {
		return 0, fmt.Errorf("failed to find page content type: %w", err)
	}
	if pageType == nil {
		return 0, model.NewContentTypeNotFoundError()
	}

	parsed, err := i.fetchAndParse(ctx, feedURL)
	if err != nil {
		return 0, model.NewImportFailedError(err.Error())
	}

	created := 0
	for idx, item := range parsed.Items {
		if idx >= i.maxItems {
			break
		}
		if item == nil || item.Title == "" {
			continue
		}

		entry, err := i.buildDraftEntry(spaceID, pageType.ID, item)
		if err != nil {
			i.logger.Warn("フィード記事の変換に失敗しました（スキップ）",
				slog.String("space_id", spaceID),
				slog.String("item_title", item.Title),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := i.svc.entryRepo.Create(ctx, entry); err != nil {
			// slug衝突は再取り込み時の正常系。その他のエラーは中断する
			var apiErr *model.APIError
			if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeConflict {
				continue
			}
			return created, fmt.Errorf("failed to create imported entry: %w", err)
		}
		created++
	}

	i.logger.Info("フィードの取り込みが完了しました",
		slog.String("space_id", spaceID),
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("entries_created", created),
	)
	return created, nil
}

// fetchAndParse はSSRFガード付きクライアントでフィードを取得しパースする。
// 指定URLがHTMLページの場合はheadのalternateリンクからフィードを自動検出する。
func (i *Importer) fetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	contentType, body, err := i.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	// HTMLページならフィードリンクを検出して取得し直す
	if !isDirectFeed(contentType, body) && isHTMLContentType(contentType) {
		candidates := parseFeedLinksFromHTML(body, feedURL)
		best := selectBestFeed(candidates, feedURL)
		if best == nil {
			return nil, fmt.Errorf("no feed found at %s", feedURL)
		}

		// 検出先URLもユーザー入力由来として再検証する
		if err := i.ssrfGuard.ValidateURL(best.URL); err != nil {
			return nil, fmt.Errorf("discovered feed URL rejected: %w", err)
		}

		i.logger.Info("HTMLページからフィードを自動検出しました",
			slog.String("page_url", feedURL),
			slog.String("feed_url", best.URL),
		)
		if _, body, err = i.fetch(ctx, best.URL); err != nil {
			return nil, err
		}
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return parsed, nil
}

// fetch は1つのURLをSSRFガード付きクライアントで取得する。
func (i *Importer) fetch(ctx context.Context, rawURL string) (contentType string, body []byte, err error) {
	client := i.ssrfGuard.NewSafeClient(i.timeout, i.maxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("invalid request: %w", err)
	}
	req.Header.Set("User-Agent", "Blade/1.0 Feed Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, i.maxBodySize))
	if err != nil {
		return "", nil, fmt.Errorf("read failed: %w", err)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// buildDraftEntry はフィード記事を下書きエントリに変換する。
// 本文HTMLはサニタイズされ、プレーンテキストの抜粋が付与される。
func (i *Importer) buildDraftEntry(spaceID, contentTypeID string, item *gofeed.Item) (*model.Entry, error) {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	sanitized := i.sanitizer.Sanitize(raw)

	content := importedContent{
		Title:     item.Title,
		SourceURL: item.Link,
		Excerpt:   ExtractExcerpt(raw, excerptMaxRunes),
		Blocks:    []importedBlock{{Type: "text", Body: sanitized}},
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}

	slug := space.NormalizeIdentifier(item.Title)
	if slug == "" {
		// タイトルが識別子文字を含まない場合（日本語のみ等）はランダムなslugを振る
		slug = "imported-" + uuid.New().String()[:8]
	}

	now := time.Now()
	return &model.Entry{
		ID:            uuid.New().String(),
		SpaceID:       spaceID,
		ContentTypeID: contentTypeID,
		Slug:          slug,
		Name:          item.Title,
		Content:       string(encoded),
		IsPublished:   false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
