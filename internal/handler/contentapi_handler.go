package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
)

// PublishedContentReader は公開済みコンテンツの読み取りインターフェース。
// 下書きは決して返さない。
type PublishedContentReader interface {
	ListPublishedEntries(ctx context.Context, spaceID string) ([]model.EntryWithContentType, error)
	GetPublishedEntry(ctx context.Context, spaceID, slug string) (*model.Entry, error)
}

// SchemaReader はスペースのスキーマ情報（コンポーネント・コンテンツタイプ）の
// 読み取りインターフェース。認可は呼び出し側で解決済みであることを前提とする。
type SchemaReader interface {
	ListSpaceComponents(ctx context.Context, spaceID string) ([]*model.Component, error)
	ListSpaceContentTypes(ctx context.Context, spaceID string) ([]*model.ContentType, error)
}

// ContentAPISpaceResolver はコンテンツAPIの対象スペース解決インターフェース。
type ContentAPISpaceResolver interface {
	// CanAccessSpace はセッション主体のアクセス権を確認する。
	CanAccessSpace(ctx context.Context, spaceID, userID string) (*model.Space, error)
	// ResolveDefaultSpace はユーザーのデフォルトスペースを返す。なければ(nil, nil)。
	ResolveDefaultSpace(ctx context.Context, userID string) (*model.Space, error)
}

// SpaceFinder はスペースの存在確認に必要なインターフェース。
// repository.SpaceRepositoryの部分集合として定義する。
type SpaceFinder interface {
	FindByID(ctx context.Context, id string) (*model.Space, error)
}

// ContentAPIHandler はトークンで保護されたコンテンツ読み取りAPIのハンドラー。
type ContentAPIHandler struct {
	reader      PublishedContentReader
	schemas     SchemaReader
	resolver    ContentAPISpaceResolver
	spaceFinder SpaceFinder
	collector   metrics.MetricsCollector
}

// NewContentAPIHandler はContentAPIHandlerを生成する。
func NewContentAPIHandler(
	reader PublishedContentReader,
	schemas SchemaReader,
	resolver ContentAPISpaceResolver,
	spaceFinder SpaceFinder,
	collector metrics.MetricsCollector,
) *ContentAPIHandler {
	return &ContentAPIHandler{
		reader:      reader,
		schemas:     schemas,
		resolver:    resolver,
		spaceFinder: spaceFinder,
		collector:   collector,
	}
}

// resolveSpace はリクエストの読み取り対象スペースを決定する。
//
// 優先順位:
//  1. スコープ付きトークン: トークンのスペースで固定。spaceパラメータは無視される。
//  2. 未スコープトークン: spaceパラメータが必須。なければSPACE_REQUIRED。
//  3. セッション: spaceパラメータがあればアクセス権を確認、なければデフォルトスペース。
//
// エラー時はレスポンスを書き込み済みでnilを返す。
func (h *ContentAPIHandler) resolveSpace(w http.ResponseWriter, r *http.Request) *model.Space {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		return nil
	}

	spaceParam := r.URL.Query().Get("space")

	if principal.IsToken() {
		spaceID := principal.SpaceID
		if spaceID == "" {
			// 未スコープトークンに暗黙のフォールバック先はない
			if spaceParam == "" {
				middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewSpaceRequiredError())
				return nil
			}
			spaceID = spaceParam
		}

		s, err := h.spaceFinder.FindByID(r.Context(), spaceID)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return nil
		}
		if s == nil {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSpaceNotFoundError())
			return nil
		}
		return s
	}

	if spaceParam != "" {
		s, err := h.resolver.CanAccessSpace(r.Context(), spaceParam, principal.UserID)
		if err != nil {
			middleware.WriteServiceError(w, err)
			return nil
		}
		return s
	}

	s, err := h.resolver.ResolveDefaultSpace(r.Context(), principal.UserID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return nil
	}
	if s == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewSpaceRequiredError())
		return nil
	}
	return s
}

// ListEntries は公開済みエントリの一覧を返す。
// GET /api/content/entries
func (h *ContentAPIHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSpace(w, r)
	if s == nil {
		return
	}

	entries, err := h.reader.ListPublishedEntries(r.Context(), s.ID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	h.collector.RecordEntryRead(s.ID)

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		item := toEntryResponse(&e.Entry)
		item.ContentTypeName = e.ContentTypeName
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntry はスラッグで公開済みエントリを取得する。下書きは404になる。
// GET /api/content/entries/{slug}
func (h *ContentAPIHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSpace(w, r)
	if s == nil {
		return
	}

	entry, err := h.reader.GetPublishedEntry(r.Context(), s.ID, chi.URLParam(r, "slug"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	h.collector.RecordEntryRead(s.ID)
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// ListContentTypes はスペースのコンテンツタイプ一覧を返す。
// GET /api/content/content-types
func (h *ContentAPIHandler) ListContentTypes(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSpace(w, r)
	if s == nil {
		return
	}

	contentTypes, err := h.schemas.ListSpaceContentTypes(r.Context(), s.ID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]contentTypeResponse, 0, len(contentTypes))
	for _, ct := range contentTypes {
		resp = append(resp, toContentTypeResponse(ct))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListComponents はスペースのコンポーネント一覧を返す。
// GET /api/content/components
func (h *ContentAPIHandler) ListComponents(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSpace(w, r)
	if s == nil {
		return
	}

	components, err := h.schemas.ListSpaceComponents(r.Context(), s.ID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]componentResponse, 0, len(components))
	for _, c := range components {
		resp = append(resp, toComponentResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}
