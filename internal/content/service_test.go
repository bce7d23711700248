package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
)

// --- モック定義 ---

// mockAuthorizer はスペースごとの権限を固定値で返す。
type mockAuthorizer struct {
	space   *model.Space
	canRead bool
	canEdit bool
}

func (m *mockAuthorizer) CanAccessSpace(_ context.Context, spaceID, _ string) (*model.Space, error) {
	if m.space == nil || m.space.ID != spaceID {
		return nil, model.NewSpaceNotFoundError()
	}
	if !m.canRead {
		return nil, model.NewForbiddenError()
	}
	return m.space, nil
}

func (m *mockAuthorizer) CanEditSpace(_ context.Context, spaceID, _ string) (*model.Space, error) {
	if m.space == nil || m.space.ID != spaceID {
		return nil, model.NewSpaceNotFoundError()
	}
	if !m.canEdit {
		return nil, model.NewForbiddenError()
	}
	return m.space, nil
}

type mockComponentRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Component, error)
	listBySpaceFn  func(ctx context.Context, spaceID string) ([]*model.Component, error)
	upsertByTypeFn func(ctx context.Context, component *model.Component) error
	deleteByIDFn   func(ctx context.Context, id string) error
}

func (m *mockComponentRepo) FindByID(ctx context.Context, id string) (*model.Component, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockComponentRepo) ListBySpace(ctx context.Context, spaceID string) ([]*model.Component, error) {
	if m.listBySpaceFn != nil {
		return m.listBySpaceFn(ctx, spaceID)
	}
	return nil, nil
}

func (m *mockComponentRepo) UpsertByType(ctx context.Context, component *model.Component) error {
	if m.upsertByTypeFn != nil {
		return m.upsertByTypeFn(ctx, component)
	}
	return nil
}

func (m *mockComponentRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockContentTypeRepo struct {
	findByIDFn        func(ctx context.Context, id string) (*model.ContentType, error)
	findBySpaceTypeFn func(ctx context.Context, spaceID, typ string) (*model.ContentType, error)
	listBySpaceFn     func(ctx context.Context, spaceID string) ([]*model.ContentType, error)
	upsertByTypeFn    func(ctx context.Context, contentType *model.ContentType) error
}

func (m *mockContentTypeRepo) FindByID(ctx context.Context, id string) (*model.ContentType, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockContentTypeRepo) FindBySpaceAndType(ctx context.Context, spaceID, typ string) (*model.ContentType, error) {
	if m.findBySpaceTypeFn != nil {
		return m.findBySpaceTypeFn(ctx, spaceID, typ)
	}
	return nil, nil
}

func (m *mockContentTypeRepo) ListBySpace(ctx context.Context, spaceID string) ([]*model.ContentType, error) {
	if m.listBySpaceFn != nil {
		return m.listBySpaceFn(ctx, spaceID)
	}
	return nil, nil
}

func (m *mockContentTypeRepo) UpsertByType(ctx context.Context, contentType *model.ContentType) error {
	if m.upsertByTypeFn != nil {
		return m.upsertByTypeFn(ctx, contentType)
	}
	return nil
}

type mockEntryRepo struct {
	findByIDFn        func(ctx context.Context, id string) (*model.Entry, error)
	findBySpaceSlugFn func(ctx context.Context, spaceID, slug string) (*model.Entry, error)
	listBySpaceFn     func(ctx context.Context, spaceID string, publishedOnly bool) ([]model.EntryWithContentType, error)
	createFn          func(ctx context.Context, entry *model.Entry) error
	updateFn          func(ctx context.Context, entry *model.Entry) error
	deleteByIDFn      func(ctx context.Context, id string) error
	updatePositionsFn func(ctx context.Context, ids []string) error
	upsertBySlugFn    func(ctx context.Context, entry *model.Entry) error
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockEntryRepo) FindBySpaceAndSlug(ctx context.Context, spaceID, slug string) (*model.Entry, error) {
	if m.findBySpaceSlugFn != nil {
		return m.findBySpaceSlugFn(ctx, spaceID, slug)
	}
	return nil, nil
}

func (m *mockEntryRepo) ListBySpace(ctx context.Context, spaceID string, publishedOnly bool) ([]model.EntryWithContentType, error) {
	if m.listBySpaceFn != nil {
		return m.listBySpaceFn(ctx, spaceID, publishedOnly)
	}
	return nil, nil
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	if m.createFn != nil {
		return m.createFn(ctx, entry)
	}
	return nil
}

func (m *mockEntryRepo) Update(ctx context.Context, entry *model.Entry) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, entry)
	}
	return nil
}

func (m *mockEntryRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockEntryRepo) UpdatePositions(ctx context.Context, ids []string) error {
	if m.updatePositionsFn != nil {
		return m.updatePositionsFn(ctx, ids)
	}
	return nil
}

func (m *mockEntryRepo) UpsertBySlug(ctx context.Context, entry *model.Entry) error {
	if m.upsertBySlugFn != nil {
		return m.upsertBySlugFn(ctx, entry)
	}
	return nil
}

// --- compile-time interface checks ---
var (
	_ Authorizer                       = (*mockAuthorizer)(nil)
	_ repository.ComponentRepository   = (*mockComponentRepo)(nil)
	_ repository.ContentTypeRepository = (*mockContentTypeRepo)(nil)
	_ repository.EntryRepository       = (*mockEntryRepo)(nil)
)

func editorAuthz() *mockAuthorizer {
	return &mockAuthorizer{
		space:   &model.Space{ID: "space-1", UserID: "owner"},
		canRead: true,
		canEdit: true,
	}
}

func viewerAuthz() *mockAuthorizer {
	return &mockAuthorizer{
		space:   &model.Space{ID: "space-1", UserID: "owner"},
		canRead: true,
		canEdit: false,
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestCreateEntry(t *testing.T) {
	contentTypes := &mockContentTypeRepo{
		findByIDFn: func(_ context.Context, id string) (*model.ContentType, error) {
			if id == "ct-page" {
				return &model.ContentType{ID: id, SpaceID: "space-1", Type: "page"}, nil
			}
			return nil, nil
		},
	}

	t.Run("公開フラグ付きで作成するとpublishedAtが記録される", func(t *testing.T) {
		var created *model.Entry
		entries := &mockEntryRepo{
			createFn: func(_ context.Context, entry *model.Entry) error {
				created = entry
				return nil
			},
		}
		svc := NewService(editorAuthz(), &mockComponentRepo{}, contentTypes, entries)

		got, err := svc.CreateEntry(context.Background(), "space-1", "owner", EntryParams{
			ContentTypeID: "ct-page",
			Slug:          "About Us",
			Name:          "About",
			Content:       `{"blocks":[]}`,
			IsPublished:   true,
		})
		if err != nil {
			t.Fatalf("CreateEntry returned error: %v", err)
		}
		if created == nil {
			t.Fatal("entry was not persisted")
		}
		if got.Slug != "about-us" {
			t.Errorf("slug = %q, want about-us", got.Slug)
		}
		if !got.IsPublished || got.PublishedAt == nil {
			t.Errorf("published = %v, publishedAt = %v", got.IsPublished, got.PublishedAt)
		}
	})

	t.Run("下書き作成ではpublishedAtはnil", func(t *testing.T) {
		svc := NewService(editorAuthz(), &mockComponentRepo{}, contentTypes, &mockEntryRepo{})

		got, err := svc.CreateEntry(context.Background(), "space-1", "owner", EntryParams{
			ContentTypeID: "ct-page",
			Slug:          "draft",
		})
		if err != nil {
			t.Fatalf("CreateEntry returned error: %v", err)
		}
		if got.IsPublished || got.PublishedAt != nil {
			t.Errorf("draft has published = %v, publishedAt = %v", got.IsPublished, got.PublishedAt)
		}
	})

	t.Run("スペース外のコンテンツタイプはCONTENT_TYPE_NOT_FOUND", func(t *testing.T) {
		foreign := &mockContentTypeRepo{
			findByIDFn: func(_ context.Context, id string) (*model.ContentType, error) {
				return &model.ContentType{ID: id, SpaceID: "other-space"}, nil
			},
		}
		svc := NewService(editorAuthz(), &mockComponentRepo{}, foreign, &mockEntryRepo{})

		_, err := svc.CreateEntry(context.Background(), "space-1", "owner", EntryParams{
			ContentTypeID: "ct-foreign",
			Slug:          "x",
		})
		assertAPIErrorCode(t, err, model.ErrCodeContentTypeNotFound)
	})

	t.Run("viewerは作成できない", func(t *testing.T) {
		svc := NewService(viewerAuthz(), &mockComponentRepo{}, contentTypes, &mockEntryRepo{})

		_, err := svc.CreateEntry(context.Background(), "space-1", "viewer-user", EntryParams{
			ContentTypeID: "ct-page",
			Slug:          "x",
		})
		assertAPIErrorCode(t, err, model.ErrCodeForbidden)
	})

	t.Run("不正なslugはINVALID_IDENTIFIER", func(t *testing.T) {
		svc := NewService(editorAuthz(), &mockComponentRepo{}, contentTypes, &mockEntryRepo{})

		_, err := svc.CreateEntry(context.Background(), "space-1", "owner", EntryParams{
			ContentTypeID: "ct-page",
			Slug:          "!!!",
		})
		assertAPIErrorCode(t, err, model.ErrCodeInvalidIdentifier)
	})
}

func TestUpdateEntry_PublishTransitions(t *testing.T) {
	published := time.Now().Add(-time.Hour)

	newSvc := func(entry *model.Entry) (*Service, **model.Entry) {
		var updated *model.Entry
		entries := &mockEntryRepo{
			findByIDFn: func(_ context.Context, id string) (*model.Entry, error) {
				if id == entry.ID {
					copied := *entry
					return &copied, nil
				}
				return nil, nil
			},
			updateFn: func(_ context.Context, e *model.Entry) error {
				updated = e
				return nil
			},
		}
		return NewService(editorAuthz(), &mockComponentRepo{}, &mockContentTypeRepo{}, entries), &updated
	}

	t.Run("公開への遷移でpublishedAtが記録される", func(t *testing.T) {
		svc, updated := newSvc(&model.Entry{ID: "e1", SpaceID: "space-1", Slug: "home", IsPublished: false})

		got, err := svc.UpdateEntry(context.Background(), "space-1", "owner", "e1", EntryParams{IsPublished: true})
		if err != nil {
			t.Fatalf("UpdateEntry returned error: %v", err)
		}
		if !got.IsPublished || got.PublishedAt == nil {
			t.Errorf("published = %v, publishedAt = %v", got.IsPublished, got.PublishedAt)
		}
		if *updated == nil {
			t.Fatal("entry was not persisted")
		}
	})

	t.Run("非公開への遷移でpublishedAtがクリアされる", func(t *testing.T) {
		svc, _ := newSvc(&model.Entry{ID: "e1", SpaceID: "space-1", Slug: "home", IsPublished: true, PublishedAt: &published})

		got, err := svc.UpdateEntry(context.Background(), "space-1", "owner", "e1", EntryParams{IsPublished: false})
		if err != nil {
			t.Fatalf("UpdateEntry returned error: %v", err)
		}
		if got.IsPublished || got.PublishedAt != nil {
			t.Errorf("published = %v, publishedAt = %v", got.IsPublished, got.PublishedAt)
		}
	})

	t.Run("別スペースのエントリはENTRY_NOT_FOUND", func(t *testing.T) {
		svc, _ := newSvc(&model.Entry{ID: "e1", SpaceID: "other-space", Slug: "home"})

		_, err := svc.UpdateEntry(context.Background(), "space-1", "owner", "e1", EntryParams{})
		assertAPIErrorCode(t, err, model.ErrCodeEntryNotFound)
	})
}

func TestReorderEntries(t *testing.T) {
	entriesInSpace := []model.EntryWithContentType{
		{Entry: model.Entry{ID: "e1", SpaceID: "space-1"}},
		{Entry: model.Entry{ID: "e2", SpaceID: "space-1"}},
		{Entry: model.Entry{ID: "e3", SpaceID: "space-1"}},
	}

	var reordered []string
	entries := &mockEntryRepo{
		listBySpaceFn: func(_ context.Context, _ string, _ bool) ([]model.EntryWithContentType, error) {
			return entriesInSpace, nil
		},
		updatePositionsFn: func(_ context.Context, ids []string) error {
			reordered = ids
			return nil
		},
	}
	svc := NewService(editorAuthz(), &mockComponentRepo{}, &mockContentTypeRepo{}, entries)
	ctx := context.Background()

	if err := svc.ReorderEntries(ctx, "space-1", "owner", []string{"e3", "e1", "e2"}); err != nil {
		t.Fatalf("ReorderEntries returned error: %v", err)
	}
	if len(reordered) != 3 || reordered[0] != "e3" {
		t.Errorf("reordered = %v", reordered)
	}

	// スペース外のIDが混ざっている場合は全体を拒否する
	reordered = nil
	err := svc.ReorderEntries(ctx, "space-1", "owner", []string{"e1", "foreign"})
	assertAPIErrorCode(t, err, model.ErrCodeEntryNotFound)
	if reordered != nil {
		t.Error("positions updated despite invalid id")
	}
}

func TestGetPublishedEntry(t *testing.T) {
	entries := &mockEntryRepo{
		findBySpaceSlugFn: func(_ context.Context, _, slug string) (*model.Entry, error) {
			switch slug {
			case "home":
				return &model.Entry{ID: "e1", Slug: slug, IsPublished: true}, nil
			case "draft":
				return &model.Entry{ID: "e2", Slug: slug, IsPublished: false}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(editorAuthz(), &mockComponentRepo{}, &mockContentTypeRepo{}, entries)
	ctx := context.Background()

	got, err := svc.GetPublishedEntry(ctx, "space-1", "home")
	if err != nil {
		t.Fatalf("GetPublishedEntry returned error: %v", err)
	}
	if got.ID != "e1" {
		t.Errorf("entry = %+v", got)
	}

	// 下書きは存在しないものとして扱う
	_, err = svc.GetPublishedEntry(ctx, "space-1", "draft")
	assertAPIErrorCode(t, err, model.ErrCodeEntryNotFound)

	_, err = svc.GetPublishedEntry(ctx, "space-1", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeEntryNotFound)
}

func TestCreateContentType_Conflict(t *testing.T) {
	contentTypes := &mockContentTypeRepo{
		findBySpaceTypeFn: func(_ context.Context, _, typ string) (*model.ContentType, error) {
			if typ == "page" {
				return &model.ContentType{ID: "ct-1", Type: "page"}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(editorAuthz(), &mockComponentRepo{}, contentTypes, &mockEntryRepo{})

	_, err := svc.CreateContentType(context.Background(), "space-1", "owner", "Page", "page", "{}")
	assertAPIErrorCode(t, err, model.ErrCodeConflict)

	got, err := svc.CreateContentType(context.Background(), "space-1", "owner", "Post", "post", "{}")
	if err != nil {
		t.Fatalf("CreateContentType returned error: %v", err)
	}
	if got.Type != "post" {
		t.Errorf("type = %q", got.Type)
	}
}

func TestDeleteComponent(t *testing.T) {
	deleted := false
	components := &mockComponentRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Component, error) {
			if id == "c1" {
				return &model.Component{ID: id, SpaceID: "space-1"}, nil
			}
			return nil, nil
		},
		deleteByIDFn: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	svc := NewService(editorAuthz(), components, &mockContentTypeRepo{}, &mockEntryRepo{})
	ctx := context.Background()

	if err := svc.DeleteComponent(ctx, "space-1", "owner", "c1"); err != nil {
		t.Fatalf("DeleteComponent returned error: %v", err)
	}
	if !deleted {
		t.Error("component was not deleted")
	}

	err := svc.DeleteComponent(ctx, "space-1", "owner", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeComponentNotFound)
}

func TestEnsureSpaceDefaults(t *testing.T) {
	seededComponents := map[string]bool{}
	components := &mockComponentRepo{
		upsertByTypeFn: func(_ context.Context, c *model.Component) error {
			seededComponents[c.Type] = true
			return nil
		},
	}
	contentTypes := &mockContentTypeRepo{
		findBySpaceTypeFn: func(_ context.Context, _, typ string) (*model.ContentType, error) {
			if typ == "page" {
				return &model.ContentType{ID: "ct-page", SpaceID: "space-1", Type: "page"}, nil
			}
			return nil, nil
		},
	}
	var seededEntry *model.Entry
	entries := &mockEntryRepo{
		upsertBySlugFn: func(_ context.Context, entry *model.Entry) error {
			seededEntry = entry
			return nil
		},
	}
	svc := NewService(editorAuthz(), components, contentTypes, entries)

	if err := svc.EnsureSpaceDefaults(context.Background(), "space-1"); err != nil {
		t.Fatalf("EnsureSpaceDefaults returned error: %v", err)
	}

	for _, typ := range []string{"hero", "text", "image"} {
		if !seededComponents[typ] {
			t.Errorf("component %s was not seeded", typ)
		}
	}
	if seededEntry == nil {
		t.Fatal("home entry was not seeded")
	}
	if seededEntry.Slug != "home" || !seededEntry.IsPublished {
		t.Errorf("home entry = %+v", seededEntry)
	}
	if seededEntry.ContentTypeID != "ct-page" {
		t.Errorf("home entry content type = %q, want ct-page", seededEntry.ContentTypeID)
	}
}
