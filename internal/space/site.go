package space

import (
	"context"
	"fmt"

	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
)

// SiteResolver は公開サイトが描画するスペースを解決する。
// サイト所有者（シードユーザー）のデフォルトスペースを対象とする。
type SiteResolver struct {
	userRepo   repository.UserRepository
	svc        *Service
	ownerEmail string
}

// NewSiteResolver はSiteResolverを生成する。
func NewSiteResolver(userRepo repository.UserRepository, svc *Service, ownerEmail string) *SiteResolver {
	return &SiteResolver{
		userRepo:   userRepo,
		svc:        svc,
		ownerEmail: ownerEmail,
	}
}

// ResolveSiteSpace はサイト所有者のデフォルトスペースを返す。
// 所有者が未サインアップ、またはスペースを持たない場合は(nil, nil)。
func (r *SiteResolver) ResolveSiteSpace(ctx context.Context) (*model.Space, error) {
	if r.ownerEmail == "" {
		return nil, nil
	}

	owner, err := r.userRepo.FindByEmail(ctx, r.ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find site owner: %w", err)
	}
	if owner == nil {
		return nil, nil
	}

	return r.svc.ResolveDefaultSpace(ctx, owner.ID)
}
