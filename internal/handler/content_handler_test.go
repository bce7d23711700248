package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/revicx/blade/internal/content"
	"github.com/revicx/blade/internal/model"
)

type mockContentService struct {
	listComponentsFunc  func(ctx context.Context, spaceID, userID string) ([]*model.Component, error)
	createComponentFunc func(ctx context.Context, spaceID, userID string, params content.ComponentParams) (*model.Component, error)
	deleteComponentFunc func(ctx context.Context, spaceID, userID, componentID string) error

	listContentTypesFunc  func(ctx context.Context, spaceID, userID string) ([]*model.ContentType, error)
	createContentTypeFunc func(ctx context.Context, spaceID, userID, name, typ, schema string) (*model.ContentType, error)

	listEntriesFunc    func(ctx context.Context, spaceID, userID string) ([]model.EntryWithContentType, error)
	getEntryFunc       func(ctx context.Context, spaceID, userID, slug string) (*model.Entry, error)
	createEntryFunc    func(ctx context.Context, spaceID, userID string, params content.EntryParams) (*model.Entry, error)
	updateEntryFunc    func(ctx context.Context, spaceID, userID, entryID string, params content.EntryParams) (*model.Entry, error)
	deleteEntryFunc    func(ctx context.Context, spaceID, userID, entryID string) error
	reorderEntriesFunc func(ctx context.Context, spaceID, userID string, ids []string) error
}

func (m *mockContentService) ListComponents(ctx context.Context, spaceID, userID string) ([]*model.Component, error) {
	return m.listComponentsFunc(ctx, spaceID, userID)
}

func (m *mockContentService) CreateComponent(ctx context.Context, spaceID, userID string, params content.ComponentParams) (*model.Component, error) {
	return m.createComponentFunc(ctx, spaceID, userID, params)
}

func (m *mockContentService) DeleteComponent(ctx context.Context, spaceID, userID, componentID string) error {
	return m.deleteComponentFunc(ctx, spaceID, userID, componentID)
}

func (m *mockContentService) ListContentTypes(ctx context.Context, spaceID, userID string) ([]*model.ContentType, error) {
	return m.listContentTypesFunc(ctx, spaceID, userID)
}

func (m *mockContentService) CreateContentType(ctx context.Context, spaceID, userID, name, typ, schema string) (*model.ContentType, error) {
	return m.createContentTypeFunc(ctx, spaceID, userID, name, typ, schema)
}

func (m *mockContentService) ListEntries(ctx context.Context, spaceID, userID string) ([]model.EntryWithContentType, error) {
	return m.listEntriesFunc(ctx, spaceID, userID)
}

func (m *mockContentService) GetEntry(ctx context.Context, spaceID, userID, slug string) (*model.Entry, error) {
	return m.getEntryFunc(ctx, spaceID, userID, slug)
}

func (m *mockContentService) CreateEntry(ctx context.Context, spaceID, userID string, params content.EntryParams) (*model.Entry, error) {
	return m.createEntryFunc(ctx, spaceID, userID, params)
}

func (m *mockContentService) UpdateEntry(ctx context.Context, spaceID, userID, entryID string, params content.EntryParams) (*model.Entry, error) {
	return m.updateEntryFunc(ctx, spaceID, userID, entryID, params)
}

func (m *mockContentService) DeleteEntry(ctx context.Context, spaceID, userID, entryID string) error {
	return m.deleteEntryFunc(ctx, spaceID, userID, entryID)
}

func (m *mockContentService) ReorderEntries(ctx context.Context, spaceID, userID string, ids []string) error {
	return m.reorderEntriesFunc(ctx, spaceID, userID, ids)
}

var _ ContentServiceInterface = (*mockContentService)(nil)

type mockImporter struct {
	importFunc func(ctx context.Context, spaceID, userID, feedURL string) (int, error)
}

func (m *mockImporter) ImportFeed(ctx context.Context, spaceID, userID, feedURL string) (int, error) {
	return m.importFunc(ctx, spaceID, userID, feedURL)
}

var _ FeedImporterInterface = (*mockImporter)(nil)

func newContentRouter(h *ContentHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/spaces/{spaceID}/entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Post("/", h.CreateEntry)
		r.Put("/reorder", h.ReorderEntries)
		r.Post("/import", h.ImportFeed)
		r.Get("/{slug}", h.GetEntry)
		r.Put("/id/{entryID}", h.UpdateEntry)
	})
	return r
}

func TestContentHandler_CreateEntry(t *testing.T) {
	now := time.Now()
	svc := &mockContentService{
		createEntryFunc: func(ctx context.Context, spaceID, userID string, params content.EntryParams) (*model.Entry, error) {
			return &model.Entry{
				ID:            "entry-1",
				SpaceID:       spaceID,
				ContentTypeID: params.ContentTypeID,
				Slug:          params.Slug,
				Name:          params.Name,
				Content:       params.Content,
				IsPublished:   params.IsPublished,
				PublishedAt:   &now,
			}, nil
		},
	}
	router := newContentRouter(NewContentHandler(svc, nil, &mockCollector{}))

	body := `{"content_type_id":"ct-1","slug":"about","name":"About","content":"{}","is_published":true}`
	req := authedRequest(t, http.MethodPost, "/api/spaces/space-1/entries", body, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp entryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Slug != "about" || !resp.IsPublished || resp.PublishedAt == nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestContentHandler_GetEntry(t *testing.T) {
	svc := &mockContentService{
		getEntryFunc: func(ctx context.Context, spaceID, userID, slug string) (*model.Entry, error) {
			return nil, model.NewEntryNotFoundError(slug)
		},
	}
	router := newContentRouter(NewContentHandler(svc, nil, &mockCollector{}))

	req := authedRequest(t, http.MethodGet, "/api/spaces/space-1/entries/missing", "", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestContentHandler_ReorderEntries(t *testing.T) {
	t.Run("成功は204", func(t *testing.T) {
		var gotIDs []string
		svc := &mockContentService{
			reorderEntriesFunc: func(ctx context.Context, spaceID, userID string, ids []string) error {
				gotIDs = ids
				return nil
			},
		}
		router := newContentRouter(NewContentHandler(svc, nil, &mockCollector{}))

		req := authedRequest(t, http.MethodPut, "/api/spaces/space-1/entries/reorder", `{"ids":["e2","e1"]}`, "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(gotIDs) != 2 || gotIDs[0] != "e2" {
			t.Errorf("ids = %v", gotIDs)
		}
	})

	t.Run("別スペースのエントリを含む並び替えは404", func(t *testing.T) {
		svc := &mockContentService{
			reorderEntriesFunc: func(ctx context.Context, spaceID, userID string, ids []string) error {
				return model.NewEntryNotFoundError("foreign")
			},
		}
		router := newContentRouter(NewContentHandler(svc, nil, &mockCollector{}))

		req := authedRequest(t, http.MethodPut, "/api/spaces/space-1/entries/reorder", `{"ids":["foreign"]}`, "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestContentHandler_ImportFeed(t *testing.T) {
	t.Run("取り込み件数を返す", func(t *testing.T) {
		importer := &mockImporter{
			importFunc: func(ctx context.Context, spaceID, userID, feedURL string) (int, error) {
				if feedURL != "https://blog.example.com/feed.xml" {
					t.Errorf("feedURL = %q", feedURL)
				}
				return 5, nil
			},
		}
		collector := &mockCollector{}
		router := newContentRouter(NewContentHandler(&mockContentService{}, importer, collector))

		req := authedRequest(t, http.MethodPost, "/api/spaces/space-1/entries/import", `{"feed_url":"https://blog.example.com/feed.xml"}`, "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp importResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.ImportedCount != 5 {
			t.Errorf("imported_count = %d", resp.ImportedCount)
		}
	})

	t.Run("URLが空の場合は422", func(t *testing.T) {
		router := newContentRouter(NewContentHandler(&mockContentService{}, &mockImporter{}, &mockCollector{}))

		req := authedRequest(t, http.MethodPost, "/api/spaces/space-1/entries/import", `{"feed_url":""}`, "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("SSRFブロックされたURLは422", func(t *testing.T) {
		importer := &mockImporter{
			importFunc: func(ctx context.Context, spaceID, userID, feedURL string) (int, error) {
				return 0, model.NewImportFailedError("blocked address")
			},
		}
		router := newContentRouter(NewContentHandler(&mockContentService{}, importer, &mockCollector{}))

		req := authedRequest(t, http.MethodPost, "/api/spaces/space-1/entries/import", `{"feed_url":"http://169.254.169.254/feed"}`, "user-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})
}
