package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
)

// SpaceAuthorizer はスコープ対象スペースへの編集権限を確認するインターフェース。
type SpaceAuthorizer interface {
	CanEditSpace(ctx context.Context, spaceID, userID string) (*model.Space, error)
}

// Service はトークン管理（発行・一覧・失効）を提供する。
// コンテンツAPI側の検証はValidatorが担う。
type Service struct {
	tokenRepo repository.AccessTokenRepository
	authz     SpaceAuthorizer
}

// NewService はServiceを生成する。
func NewService(tokenRepo repository.AccessTokenRepository, authz SpaceAuthorizer) *Service {
	return &Service{
		tokenRepo: tokenRepo,
		authz:     authz,
	}
}

// MintResult はトークン発行の結果。
// Secretはこのレスポンスでのみ返され、以後取得する手段はない。
type MintResult struct {
	Token  *model.AccessToken
	Secret string
}

// Mint は新しいアクセストークンを発行する。
// spaceIDが空でない場合はそのスペースにスコープされ、発行者の編集権限を確認する。
// viewerロールのメンバーはトークンを発行できない。スコープは作成後に変更できない。
func (s *Service) Mint(ctx context.Context, userID, name, spaceID string) (*MintResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled Token"
	}

	if spaceID != "" {
		if _, err := s.authz.CanEditSpace(ctx, spaceID, userID); err != nil {
			return nil, err
		}
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	record := &model.AccessToken{
		ID:          uuid.NewString(),
		Name:        name,
		TokenHash:   secret.Hash,
		TokenPrefix: secret.Prefix,
		SpaceID:     spaceID,
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &MintResult{
		Token:  record,
		Secret: secret.Secret,
	}, nil
}

// List は全トークンをスペース情報付きで返す。ハッシュとシークレットは含まれない。
func (s *Service) List(ctx context.Context) ([]model.AccessTokenWithSpace, error) {
	tokens, err := s.tokenRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list access tokens: %w", err)
	}
	return tokens, nil
}

// Revoke はトークンを失効させる。失効は即時かつ恒久的で、取り消せない。
// スコープ付きトークンの失効は対象スペースの所有者に限定される。
func (s *Service) Revoke(ctx context.Context, userID, tokenID string) error {
	record, err := s.tokenRepo.FindByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to find access token: %w", err)
	}
	if record == nil {
		return model.NewTokenNotFoundError()
	}

	if record.SpaceID != "" {
		space, err := s.authz.CanEditSpace(ctx, record.SpaceID, userID)
		if err != nil {
			return err
		}
		// editorメンバーでも失効は不可。所有者のみ。
		if space.UserID != userID {
			return model.NewForbiddenError()
		}
	}

	existed, err := s.tokenRepo.DeleteByID(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if !existed {
		return model.NewTokenNotFoundError()
	}
	return nil
}
