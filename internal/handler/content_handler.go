package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/content"
	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
)

// ContentServiceInterface はコンテンツ管理ハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	ListComponents(ctx context.Context, spaceID, userID string) ([]*model.Component, error)
	CreateComponent(ctx context.Context, spaceID, userID string, params content.ComponentParams) (*model.Component, error)
	DeleteComponent(ctx context.Context, spaceID, userID, componentID string) error

	ListContentTypes(ctx context.Context, spaceID, userID string) ([]*model.ContentType, error)
	CreateContentType(ctx context.Context, spaceID, userID, name, typ, schema string) (*model.ContentType, error)

	ListEntries(ctx context.Context, spaceID, userID string) ([]model.EntryWithContentType, error)
	GetEntry(ctx context.Context, spaceID, userID, slug string) (*model.Entry, error)
	CreateEntry(ctx context.Context, spaceID, userID string, params content.EntryParams) (*model.Entry, error)
	UpdateEntry(ctx context.Context, spaceID, userID, entryID string, params content.EntryParams) (*model.Entry, error)
	DeleteEntry(ctx context.Context, spaceID, userID, entryID string) error
	ReorderEntries(ctx context.Context, spaceID, userID string, ids []string) error
}

// FeedImporterInterface はRSS取り込みハンドラーが必要とするインターフェース。
type FeedImporterInterface interface {
	ImportFeed(ctx context.Context, spaceID, userID, feedURL string) (int, error)
}

// ContentHandler はコンテンツ管理（ブロック・タイプ・エントリ）のHTTPハンドラー。
type ContentHandler struct {
	service   ContentServiceInterface
	importer  FeedImporterInterface
	collector metrics.MetricsCollector
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface, importer FeedImporterInterface, collector metrics.MetricsCollector) *ContentHandler {
	return &ContentHandler{
		service:   service,
		importer:  importer,
		collector: collector,
	}
}

// --- コンポーネント ---

// componentResponse はコンポーネントのAPIレスポンス。
type componentResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	IsRoot     bool      `json:"is_root"`
	IsNestable bool      `json:"is_nestable"`
	Schema     string    `json:"schema"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toComponentResponse(c *model.Component) componentResponse {
	return componentResponse{
		ID:         c.ID,
		Name:       c.Name,
		Type:       c.Type,
		IsRoot:     c.IsRoot,
		IsNestable: c.IsNestable,
		Schema:     c.Schema,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// componentRequest はコンポーネント作成リクエストのボディ。
type componentRequest struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsRoot     bool   `json:"is_root"`
	IsNestable bool   `json:"is_nestable"`
	Schema     string `json:"schema"`
}

// ListComponents はスペースのコンポーネント一覧を返す。
// GET /api/spaces/{spaceID}/components
func (h *ContentHandler) ListComponents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	components, err := h.service.ListComponents(r.Context(), chi.URLParam(r, "spaceID"), userID)
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

// CreateComponent はコンポーネントを作成する。
// POST /api/spaces/{spaceID}/components
func (h *ContentHandler) CreateComponent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req componentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateComponent(r.Context(), chi.URLParam(r, "spaceID"), userID, content.ComponentParams{
		Name:       req.Name,
		Type:       req.Type,
		IsRoot:     req.IsRoot,
		IsNestable: req.IsNestable,
		Schema:     req.Schema,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toComponentResponse(created))
}

// DeleteComponent はコンポーネントを削除する。
// DELETE /api/spaces/{spaceID}/components/{componentID}
func (h *ContentHandler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteComponent(r.Context(), chi.URLParam(r, "spaceID"), userID, chi.URLParam(r, "componentID"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- コンテンツタイプ ---

// contentTypeResponse はコンテンツタイプのAPIレスポンス。
type contentTypeResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Schema    string    `json:"schema"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toContentTypeResponse(ct *model.ContentType) contentTypeResponse {
	return contentTypeResponse{
		ID:        ct.ID,
		Name:      ct.Name,
		Type:      ct.Type,
		Schema:    ct.Schema,
		CreatedAt: ct.CreatedAt,
		UpdatedAt: ct.UpdatedAt,
	}
}

// contentTypeRequest はコンテンツタイプ作成リクエストのボディ。
type contentTypeRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Schema string `json:"schema"`
}

// ListContentTypes はスペースのコンテンツタイプ一覧を返す。
// GET /api/spaces/{spaceID}/content-types
func (h *ContentHandler) ListContentTypes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	types, err := h.service.ListContentTypes(r.Context(), chi.URLParam(r, "spaceID"), userID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]contentTypeResponse, 0, len(types))
	for _, ct := range types {
		resp = append(resp, toContentTypeResponse(ct))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateContentType はコンテンツタイプを作成する。
// POST /api/spaces/{spaceID}/content-types
func (h *ContentHandler) CreateContentType(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req contentTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateContentType(r.Context(), chi.URLParam(r, "spaceID"), userID, req.Name, req.Type, req.Schema)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContentTypeResponse(created))
}

// --- エントリ ---

// entryResponse はエントリのAPIレスポンス。
type entryResponse struct {
	ID              string     `json:"id"`
	ContentTypeID   string     `json:"content_type_id"`
	ContentTypeName string     `json:"content_type_name,omitempty"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	Content         string     `json:"content"`
	IsPublished     bool       `json:"is_published"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Position        int        `json:"position"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		ContentTypeID: e.ContentTypeID,
		Slug:          e.Slug,
		Name:          e.Name,
		Content:       e.Content,
		IsPublished:   e.IsPublished,
		PublishedAt:   e.PublishedAt,
		Position:      e.Position,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// entryRequest はエントリ作成・更新リクエストのボディ。
type entryRequest struct {
	ContentTypeID string `json:"content_type_id"`
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Content       string `json:"content"`
	IsPublished   bool   `json:"is_published"`
}

// ListEntries はスペースのエントリ一覧（下書き含む）を返す。
// GET /api/spaces/{spaceID}/entries
func (h *ContentHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(r.Context(), chi.URLParam(r, "spaceID"), userID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		item := toEntryResponse(&e.Entry)
		item.ContentTypeName = e.ContentTypeName
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntry はスラッグでエントリを取得する。下書きも含む。
// GET /api/spaces/{spaceID}/entries/{slug}
func (h *ContentHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), chi.URLParam(r, "spaceID"), userID, chi.URLParam(r, "slug"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// CreateEntry はエントリを作成する。
// POST /api/spaces/{spaceID}/entries
func (h *ContentHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateEntry(r.Context(), chi.URLParam(r, "spaceID"), userID, content.EntryParams{
		ContentTypeID: req.ContentTypeID,
		Slug:          req.Slug,
		Name:          req.Name,
		Content:       req.Content,
		IsPublished:   req.IsPublished,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryResponse(created))
}

// UpdateEntry はエントリを更新する。公開状態の遷移でpublishedAtが記録・解除される。
// PUT /api/spaces/{spaceID}/entries/{entryID}
func (h *ContentHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateEntry(r.Context(), chi.URLParam(r, "spaceID"), userID, chi.URLParam(r, "entryID"), content.EntryParams{
		ContentTypeID: req.ContentTypeID,
		Slug:          req.Slug,
		Name:          req.Name,
		Content:       req.Content,
		IsPublished:   req.IsPublished,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponse(updated))
}

// DeleteEntry はエントリを削除する。
// DELETE /api/spaces/{spaceID}/entries/{entryID}
func (h *ContentHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.DeleteEntry(r.Context(), chi.URLParam(r, "spaceID"), userID, chi.URLParam(r, "entryID"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reorderRequest はエントリ並び替えリクエストのボディ。
type reorderRequest struct {
	IDs []string `json:"ids"`
}

// ReorderEntries はエントリの表示順を更新する。
// PUT /api/spaces/{spaceID}/entries/reorder
func (h *ContentHandler) ReorderEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.ReorderEntries(r.Context(), chi.URLParam(r, "spaceID"), userID, req.IDs)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// importRequest はRSS取り込みリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feed_url"`
}

// importResponse はRSS取り込みのAPIレスポンス。
type importResponse struct {
	ImportedCount int `json:"imported_count"`
}

// ImportFeed は外部フィードから下書きエントリを取り込む。
// POST /api/spaces/{spaceID}/entries/import
func (h *ContentHandler) ImportFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FeedURL == "" {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewImportFailedError("フィードURLが空です"))
		return
	}

	count, err := h.importer.ImportFeed(r.Context(), chi.URLParam(r, "spaceID"), userID, req.FeedURL)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	h.collector.RecordImportedEntries(count)
	writeJSON(w, http.StatusOK, importResponse{ImportedCount: count})
}
