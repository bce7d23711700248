// Package content はコンポーネント、コンテンツタイプ、エントリの管理を提供する。
// スキーマとエントリ本文はこの層にとって不透明なJSONとして扱い、検証しない。
package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
	"github.com/revicx/blade/internal/space"
)

// Authorizer はスペースに対する読み書き権限の判定インターフェース。
// space.Serviceが実装する。全ての判定はこのインターフェース経由で行い、
// このパッケージ内で所有者やロールを直接参照しない。
type Authorizer interface {
	CanAccessSpace(ctx context.Context, spaceID, userID string) (*model.Space, error)
	CanEditSpace(ctx context.Context, spaceID, userID string) (*model.Space, error)
}

// Service はコンテンツ管理のビジネスロジックを提供する。
type Service struct {
	authz           Authorizer
	componentRepo   repository.ComponentRepository
	contentTypeRepo repository.ContentTypeRepository
	entryRepo       repository.EntryRepository
}

// NewService はServiceを生成する。
func NewService(
	authz Authorizer,
	componentRepo repository.ComponentRepository,
	contentTypeRepo repository.ContentTypeRepository,
	entryRepo repository.EntryRepository,
) *Service {
	return &Service{
		authz:           authz,
		componentRepo:   componentRepo,
		contentTypeRepo: contentTypeRepo,
		entryRepo:       entryRepo,
	}
}

// --- コンポーネント ---

// ListComponents はスペースのコンポーネント一覧を返す。読み取りアクセスが必要。
func (s *Service) ListComponents(ctx context.Context, spaceID, userID string) ([]*model.Component, error) {
	if _, err := s.authz.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}
	components, err := s.componentRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

// ComponentParams はコンポーネント作成のパラメータ。
type ComponentParams struct {
	Name       string
	Type       string
	IsRoot     bool
	IsNestable bool
	Schema     string // 不透明なJSON
}

// CreateComponent はコンポーネントを作成する。編集権限が必要。
// typeは識別子として正規化される。同一typeが既に存在する場合は何もしない（冪等）。
func (s *Service) CreateComponent(ctx context.Context, spaceID, userID string, params ComponentParams) (*model.Component, error) {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}

	typ := space.NormalizeIdentifier(params.Type)
	if typ == "" {
		return nil, model.NewInvalidIdentifierError()
	}

	now := time.Now()
	component := &model.Component{
		ID:         uuid.New().String(),
		SpaceID:    spaceID,
		Name:       params.Name,
		Type:       typ,
		IsRoot:     params.IsRoot,
		IsNestable: params.IsNestable,
		Schema:     params.Schema,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if component.Name == "" {
		component.Name = typ
	}

	if err := s.componentRepo.UpsertByType(ctx, component); err != nil {
		return nil, fmt.Errorf("failed to create component: %w", err)
	}
	return component, nil
}

// DeleteComponent はコンポーネントを削除する。編集権限が必要。
func (s *Service) DeleteComponent(ctx context.Context, spaceID, userID, componentID string) error {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return err
	}

	component, err := s.componentRepo.FindByID(ctx, componentID)
	if err != nil {
		return fmt.Errorf("failed to find component: %w", err)
	}
	if component == nil || component.SpaceID != spaceID {
		return model.NewComponentNotFoundError()
	}

	if err := s.componentRepo.DeleteByID(ctx, componentID); err != nil {
		return fmt.Errorf("failed to delete component: %w", err)
	}
	return nil
}

// --- コンテンツタイプ ---

// ListContentTypes はスペースのコンテンツタイプ一覧を返す。読み取りアクセスが必要。
func (s *Service) ListContentTypes(ctx context.Context, spaceID, userID string) ([]*model.ContentType, error) {
	if _, err := s.authz.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}
	types, err := s.contentTypeRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content types: %w", err)
	}
	return types, nil
}

// CreateContentType はコンテンツタイプを作成する。編集権限が必要。
// (スペース, type)の重複はCONFLICTになる。
func (s *Service) CreateContentType(ctx context.Context, spaceID, userID, name, typ, schema string) (*model.ContentType, error) {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}

	normalized := space.NormalizeIdentifier(typ)
	if normalized == "" {
		return nil, model.NewInvalidIdentifierError()
	}

	existing, err := s.contentTypeRepo.FindBySpaceAndType(ctx, spaceID, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find content type: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError(fmt.Sprintf("content type: %s", normalized))
	}

	now := time.Now()
	contentType := &model.ContentType{
		ID:        uuid.New().String(),
		SpaceID:   spaceID,
		Name:      name,
		Type:      normalized,
		Schema:    schema,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if contentType.Name == "" {
		contentType.Name = normalized
	}

	if err := s.contentTypeRepo.UpsertByType(ctx, contentType); err != nil {
		return nil, fmt.Errorf("failed to create content type: %w", err)
	}
	return contentType, nil
}

// --- エントリ ---

// ListEntries はスペースの全エントリ（下書きを含む）を返す。読み取りアクセスが必要。
func (s *Service) ListEntries(ctx context.Context, spaceID, userID string) ([]model.EntryWithContentType, error) {
	if _, err := s.authz.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}
	entries, err := s.entryRepo.ListBySpace(ctx, spaceID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// GetEntry はslugでエントリを取得する。読み取りアクセスが必要。
func (s *Service) GetEntry(ctx context.Context, spaceID, userID, slug string) (*model.Entry, error) {
	if _, err := s.authz.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}
	entry, err := s.entryRepo.FindBySpaceAndSlug(ctx, spaceID, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(slug)
	}
	return entry, nil
}

// EntryParams はエントリ作成・更新のパラメータ。
type EntryParams struct {
	ContentTypeID string
	Slug          string
	Name          string
	Content       string // 不透明なJSON
	IsPublished   bool
}

// CreateEntry はエントリを作成する。編集権限が必要。
// slugは識別子として正規化され、(スペース, slug)の重複はCONFLICTになる。
// 公開フラグ付きで作成された場合はpublishedAtに現在時刻が記録される。
func (s *Service) CreateEntry(ctx context.Context, spaceID, userID string, params EntryParams) (*model.Entry, error) {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}

	slug := space.NormalizeIdentifier(params.Slug)
	if slug == "" {
		return nil, model.NewInvalidIdentifierError()
	}

	contentType, err := s.contentTypeRepo.FindByID(ctx, params.ContentTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find content type: %w", err)
	}
	if contentType == nil || contentType.SpaceID != spaceID {
		return nil, model.NewContentTypeNotFoundError()
	}

	now := time.Now()
	entry := &model.Entry{
		ID:            uuid.New().String(),
		SpaceID:       spaceID,
		ContentTypeID: contentType.ID,
		Slug:          slug,
		Name:          params.Name,
		Content:       params.Content,
		IsPublished:   params.IsPublished,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if entry.Name == "" {
		entry.Name = slug
	}
	if entry.IsPublished {
		entry.PublishedAt = &now
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	slog.Info("entry created",
		slog.String("entry_id", entry.ID),
		slog.String("space_id", spaceID),
		slog.String("slug", slug),
		slog.Bool("published", entry.IsPublished),
	)
	return entry, nil
}

// UpdateEntry はエントリを上書き更新する。編集権限が必要。履歴は保持しない。
// 非公開から公開への遷移時にpublishedAtが記録され、非公開に戻すとクリアされる。
func (s *Service) UpdateEntry(ctx context.Context, spaceID, userID, entryID string, params EntryParams) (*model.Entry, error) {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}

	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if entry == nil || entry.SpaceID != spaceID {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	if params.Slug != "" {
		slug := space.NormalizeIdentifier(params.Slug)
		if slug == "" {
			return nil, model.NewInvalidIdentifierError()
		}
		entry.Slug = slug
	}
	if params.Name != "" {
		entry.Name = params.Name
	}
	if params.Content != "" {
		entry.Content = params.Content
	}

	now := time.Now()
	if params.IsPublished && !entry.IsPublished {
		entry.PublishedAt = &now
	}
	if !params.IsPublished && entry.IsPublished {
		entry.PublishedAt = nil
	}
	entry.IsPublished = params.IsPublished
	entry.UpdatedAt = now

	if err := s.entryRepo.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry はエントリを削除する。編集権限が必要。
func (s *Service) DeleteEntry(ctx context.Context, spaceID, userID, entryID string) error {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return err
	}

	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to find entry: %w", err)
	}
	if entry == nil || entry.SpaceID != spaceID {
		return model.NewEntryNotFoundError(entryID)
	}

	if err := s.entryRepo.DeleteByID(ctx, entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// ReorderEntries はエントリの表示順を更新する。編集権限が必要。
// 指定された全IDが対象スペースのエントリでなければ拒否する。
// 更新は単一トランザクションで行われ、部分的な並び替えは発生しない。
func (s *Service) ReorderEntries(ctx context.Context, spaceID, userID string, ids []string) error {
	if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	entries, err := s.entryRepo.ListBySpace(ctx, spaceID, false)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	inSpace := make(map[string]bool, len(entries))
	for _, e := range entries {
		inSpace[e.ID] = true
	}
	for _, id := range ids {
		if !inSpace[id] {
			return model.NewEntryNotFoundError(id)
		}
	}

	if err := s.entryRepo.UpdatePositions(ctx, ids); err != nil {
		return fmt.Errorf("failed to update positions: %w", err)
	}
	return nil
}

// --- 公開読み取り（コンテンツAPI・公開サイト用） ---

// ListPublishedEntries は公開済みエントリの一覧を返す。
// 認可はトークン検証を通過した呼び出し側が完了している前提で、ここでは行わない。
func (s *Service) ListPublishedEntries(ctx context.Context, spaceID string) ([]model.EntryWithContentType, error) {
	entries, err := s.entryRepo.ListBySpace(ctx, spaceID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list published entries: %w", err)
	}
	return entries, nil
}

// ListSpaceComponents はスペースのコンポーネント一覧を返す。
// 認可はトークン検証を通過した呼び出し側が完了している前提で、ここでは行わない。
func (s *Service) ListSpaceComponents(ctx context.Context, spaceID string) ([]*model.Component, error) {
	components, err := s.componentRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

// ListSpaceContentTypes はスペースのコンテンツタイプ一覧を返す。
// 認可はトークン検証を通過した呼び出し側が完了している前提で、ここでは行わない。
func (s *Service) ListSpaceContentTypes(ctx context.Context, spaceID string) ([]*model.ContentType, error) {
	contentTypes, err := s.contentTypeRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content types: %w", err)
	}
	return contentTypes, nil
}

// GetPublishedEntry は公開済みエントリをslugで取得する。
// 下書きエントリは存在しないものとして扱われる。
func (s *Service) GetPublishedEntry(ctx context.Context, spaceID, slug string) (*model.Entry, error) {
	entry, err := s.entryRepo.FindBySpaceAndSlug(ctx, spaceID, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if entry == nil || !entry.IsPublished {
		return nil, model.NewEntryNotFoundError(slug)
	}
	return entry, nil
}
