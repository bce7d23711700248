package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/revicx/blade/internal/model"
)

// デフォルトコンポーネントのスキーマ定義。この層では不透明なJSON。
const (
	heroSchema  = `{"fields":{"headline":{"type":"text"},"subheadline":{"type":"text"},"image":{"type":"asset"},"cta_label":{"type":"text"},"cta_link":{"type":"link"}}}`
	textSchema  = `{"fields":{"body":{"type":"richtext"}}}`
	imageSchema = `{"fields":{"src":{"type":"asset"},"alt":{"type":"text"},"caption":{"type":"text"}}}`

	pageTypeSchema = `{"blocks":["hero","text","image"],"fields":{"title":{"type":"text"},"description":{"type":"text"}}}`

	homeEntryContent = `{"title":"Home","blocks":[{"type":"hero","headline":"Welcome","subheadline":"Your new space is ready."},{"type":"text","body":"<p>Edit this entry in the admin panel to get started.</p>"}]}`
)

// EnsureSpaceDefaults は新規スペースに初期コンテンツを冪等に投入する。
// hero/text/imageコンポーネント、pageコンテンツタイプ、公開済みhomeエントリを作成する。
// 既に存在するレコードは変更しないため、何度呼んでも安全。
func (s *Service) EnsureSpaceDefaults(ctx context.Context, spaceID string) error {
	now := time.Now()

	components := []*model.Component{
		{Name: "Hero", Type: "hero", IsRoot: true, Schema: heroSchema},
		{Name: "Text", Type: "text", IsRoot: true, IsNestable: true, Schema: textSchema},
		{Name: "Image", Type: "image", IsRoot: true, IsNestable: true, Schema: imageSchema},
	}
	for _, c := range components {
		c.ID = uuid.New().String()
		c.SpaceID = spaceID
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := s.componentRepo.UpsertByType(ctx, c); err != nil {
			return fmt.Errorf("failed to seed component %s: %w", c.Type, err)
		}
	}

	pageType := &model.ContentType{
		ID:        uuid.New().String(),
		SpaceID:   spaceID,
		Name:      "Page",
		Type:      "page",
		Schema:    pageTypeSchema,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contentTypeRepo.UpsertByType(ctx, pageType); err != nil {
		return fmt.Errorf("failed to seed page content type: %w", err)
	}

	// UpsertByTypeは既存行を変更しないため、エントリの紐付け先は必ず再取得する
	persisted, err := s.contentTypeRepo.FindBySpaceAndType(ctx, spaceID, "page")
	if err != nil {
		return fmt.Errorf("failed to find page content type: %w", err)
	}
	if persisted == nil {
		return fmt.Errorf("page content type missing after seed")
	}

	home := &model.Entry{
		ID:            uuid.New().String(),
		SpaceID:       spaceID,
		ContentTypeID: persisted.ID,
		Slug:          "home",
		Name:          "Home",
		Content:       homeEntryContent,
		IsPublished:   true,
		PublishedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.entryRepo.UpsertBySlug(ctx, home); err != nil {
		return fmt.Errorf("failed to seed home entry: %w", err)
	}

	slog.Info("space defaults ensured", slog.String("space_id", spaceID))
	return nil
}
