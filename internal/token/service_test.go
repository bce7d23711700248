package token

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/revicx/blade/internal/model"
)

// mockTokenRepoはcodec_test.goで定義している。

type mockSpaceAuthorizer struct {
	canEditFn func(ctx context.Context, spaceID, userID string) (*model.Space, error)
}

func (m *mockSpaceAuthorizer) CanEditSpace(ctx context.Context, spaceID, userID string) (*model.Space, error) {
	return m.canEditFn(ctx, spaceID, userID)
}

var _ SpaceAuthorizer = (*mockSpaceAuthorizer)(nil)

func TestService_Mint(t *testing.T) {
	t.Run("未スコープトークンは認可チェックなしで発行される", func(t *testing.T) {
		var created *model.AccessToken
		repo := &mockTokenRepo{
			createFn: func(ctx context.Context, token *model.AccessToken) error {
				created = token
				return nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				t.Error("authorizer should not be called for unscoped token")
				return nil, nil
			},
		}
		svc := NewService(repo, authz)

		result, err := svc.Mint(context.Background(), "user-1", "CI deploy", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.HasPrefix(result.Secret, SecretPrefix) {
			t.Errorf("secret = %q, want %s prefix", result.Secret, SecretPrefix)
		}
		if created == nil {
			t.Fatal("token not persisted")
		}
		if created.TokenHash != HashSecret(result.Secret) {
			t.Error("persisted hash does not match returned secret")
		}
		if created.SpaceID != "" {
			t.Errorf("SpaceID = %q, want unscoped", created.SpaceID)
		}
		if created.Name != "CI deploy" {
			t.Errorf("Name = %q", created.Name)
		}
		// 生のシークレットはレコードに存在しない
		if strings.Contains(created.TokenHash, result.Secret) || created.TokenPrefix == result.Secret {
			t.Error("raw secret leaked into the persisted record")
		}
	})

	t.Run("スコープ付きトークンは対象スペースの編集権限を要求する", func(t *testing.T) {
		repo := &mockTokenRepo{
			createFn: func(ctx context.Context, token *model.AccessToken) error {
				t.Error("token should not be created without edit access")
				return nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				if spaceID != "space-1" || userID != "user-1" {
					t.Errorf("CanEditSpace(%q, %q)", spaceID, userID)
				}
				return nil, model.NewForbiddenError()
			},
		}
		svc := NewService(repo, authz)

		// viewerメンバーは編集判定で弾かれるため発行できない
		_, err := svc.Mint(context.Background(), "user-1", "scoped", "space-1")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
			t.Fatalf("err = %v, want FORBIDDEN", err)
		}
	})

	t.Run("編集権限があればスコープ付きトークンを発行できる", func(t *testing.T) {
		var created *model.AccessToken
		repo := &mockTokenRepo{
			createFn: func(ctx context.Context, token *model.AccessToken) error {
				created = token
				return nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				return &model.Space{ID: spaceID, UserID: "owner-1"}, nil
			},
		}
		svc := NewService(repo, authz)

		if _, err := svc.Mint(context.Background(), "editor-1", "scoped", "space-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created == nil || created.SpaceID != "space-1" {
			t.Errorf("created = %+v, want space-1 scope", created)
		}
	})

	t.Run("名前が空の場合は既定名になる", func(t *testing.T) {
		var created *model.AccessToken
		repo := &mockTokenRepo{
			createFn: func(ctx context.Context, token *model.AccessToken) error {
				created = token
				return nil
			},
		}
		svc := NewService(repo, &mockSpaceAuthorizer{})

		if _, err := svc.Mint(context.Background(), "user-1", "  ", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.Name != "Untitled Token" {
			t.Errorf("Name = %q", created.Name)
		}
	})

	t.Run("発行のたびに異なるシークレットになる", func(t *testing.T) {
		repo := &mockTokenRepo{
			createFn: func(ctx context.Context, token *model.AccessToken) error { return nil },
		}
		svc := NewService(repo, &mockSpaceAuthorizer{})

		first, err := svc.Mint(context.Background(), "user-1", "a", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := svc.Mint(context.Background(), "user-1", "b", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Secret == second.Secret {
			t.Error("secrets must be unique per mint")
		}
	})
}

func TestService_Revoke(t *testing.T) {
	t.Run("未スコープトークンは認可チェックなしで削除される", func(t *testing.T) {
		var deletedID string
		repo := &mockTokenRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.AccessToken, error) {
				return &model.AccessToken{ID: id}, nil
			},
			deleteByIDFn: func(ctx context.Context, id string) (bool, error) {
				deletedID = id
				return true, nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				t.Error("authorizer should not be called for unscoped token")
				return nil, nil
			},
		}
		svc := NewService(repo, authz)

		if err := svc.Revoke(context.Background(), "user-1", "tok-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deletedID != "tok-1" {
			t.Errorf("deletedID = %q", deletedID)
		}
	})

	t.Run("スコープ付きトークンは所有者が失効できる", func(t *testing.T) {
		var deletedID string
		repo := &mockTokenRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.AccessToken, error) {
				return &model.AccessToken{ID: id, SpaceID: "space-1"}, nil
			},
			deleteByIDFn: func(ctx context.Context, id string) (bool, error) {
				deletedID = id
				return true, nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				if spaceID != "space-1" {
					t.Errorf("spaceID = %q", spaceID)
				}
				return &model.Space{ID: spaceID, UserID: userID}, nil
			},
		}
		svc := NewService(repo, authz)

		if err := svc.Revoke(context.Background(), "owner-1", "tok-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if deletedID != "tok-1" {
			t.Errorf("deletedID = %q", deletedID)
		}
	})

	t.Run("他人のスペースのトークンは失効できない", func(t *testing.T) {
		repo := &mockTokenRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.AccessToken, error) {
				return &model.AccessToken{ID: id, SpaceID: "space-1"}, nil
			},
			deleteByIDFn: func(ctx context.Context, id string) (bool, error) {
				t.Error("token must not be deleted without authorization")
				return true, nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				return nil, model.NewForbiddenError()
			},
		}
		svc := NewService(repo, authz)

		err := svc.Revoke(context.Background(), "stranger-1", "tok-1")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
			t.Fatalf("err = %v, want FORBIDDEN", err)
		}
	})

	t.Run("editorメンバーでも失効できない", func(t *testing.T) {
		repo := &mockTokenRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.AccessToken, error) {
				return &model.AccessToken{ID: id, SpaceID: "space-1"}, nil
			},
			deleteByIDFn: func(ctx context.Context, id string) (bool, error) {
				t.Error("token must not be deleted by a non-owner")
				return true, nil
			},
		}
		authz := &mockSpaceAuthorizer{
			canEditFn: func(ctx context.Context, spaceID, userID string) (*model.Space, error) {
				// editorは編集判定を通過するが所有者ではない
				return &model.Space{ID: spaceID, UserID: "owner-1"}, nil
			},
		}
		svc := NewService(repo, authz)

		err := svc.Revoke(context.Background(), "editor-1", "tok-1")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
			t.Fatalf("err = %v, want FORBIDDEN", err)
		}
	})

	t.Run("存在しないトークンはTOKEN_NOT_FOUND", func(t *testing.T) {
		repo := &mockTokenRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.AccessToken, error) {
				return nil, nil
			},
			deleteByIDFn: func(ctx context.Context, id string) (bool, error) {
				t.Error("delete must not be attempted for a missing token")
				return false, nil
			},
		}
		svc := NewService(repo, &mockSpaceAuthorizer{})

		err := svc.Revoke(context.Background(), "user-1", "missing")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTokenNotFound {
			t.Fatalf("err = %v, want TOKEN_NOT_FOUND", err)
		}
	})
}

func TestService_List(t *testing.T) {
	repo := &mockTokenRepo{
		listFn: func(ctx context.Context) ([]model.AccessTokenWithSpace, error) {
			return []model.AccessTokenWithSpace{
				{AccessToken: model.AccessToken{ID: "tok-1", TokenPrefix: "blade_abc12…"}},
			}, nil
		},
	}
	svc := NewService(repo, &mockSpaceAuthorizer{})

	tokens, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 1 || tokens[0].ID != "tok-1" {
		t.Errorf("tokens = %+v", tokens)
	}
}
