// Package space はスペースの認可ポリシー、ライフサイクル、メンバーシップ管理を提供する。
// 全ての読み書き判定はこのパッケージを唯一の通過点とする。
package space

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/repository"
)

// identifierStripPattern は正規化後に除去する文字の集合。
var identifierStripPattern = regexp.MustCompile(`[^a-z0-9\-_]`)

// whitespacePattern は識別子中の連続空白。
var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeIdentifier はスペース識別子を正規化する。
// 小文字化し、空白をハイフンに置換し、英小文字・数字・ハイフン・
// アンダースコア以外を除去する。結果が空の場合は空文字列を返す。
func NormalizeIdentifier(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = whitespacePattern.ReplaceAllString(s, "-")
	return identifierStripPattern.ReplaceAllString(s, "")
}

// Service はスペースに関するビジネスロジックを提供する。
type Service struct {
	spaceRepo    repository.SpaceRepository
	memberRepo   repository.MemberRepository
	favoriteRepo repository.FavoriteRepository
	userRepo     repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(
	spaceRepo repository.SpaceRepository,
	memberRepo repository.MemberRepository,
	favoriteRepo repository.FavoriteRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		spaceRepo:    spaceRepo,
		memberRepo:   memberRepo,
		favoriteRepo: favoriteRepo,
		userRepo:     userRepo,
	}
}

// CanAccessSpace は読み取りアクセスを判定し、許可された場合はスペースを返す。
// スペースが存在しない場合はSPACE_NOT_FOUND。
// 所有者またはロールを問わず何らかのメンバーシップがあれば許可、それ以外はFORBIDDEN。
func (s *Service) CanAccessSpace(ctx context.Context, spaceID, userID string) (*model.Space, error) {
	space, err := s.spaceRepo.FindByID(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find space: %w", err)
	}
	if space == nil {
		return nil, model.NewSpaceNotFoundError()
	}

	// 所有権が最優先。メンバーシップの検索を省略できる。
	if space.UserID == userID {
		return space, nil
	}

	member, err := s.memberRepo.Find(ctx, spaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if member == nil {
		return nil, model.NewForbiddenError()
	}

	return space, nil
}

// CanEditSpace は編集アクセスを判定し、許可された場合はスペースを返す。
// 所有者またはeditorロールのメンバーのみ許可される。
// viewerはCanAccessSpaceを通過するが、編集判定は常に失敗する。
func (s *Service) CanEditSpace(ctx context.Context, spaceID, userID string) (*model.Space, error) {
	space, err := s.spaceRepo.FindByID(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find space: %w", err)
	}
	if space == nil {
		return nil, model.NewSpaceNotFoundError()
	}

	if space.UserID == userID {
		return space, nil
	}

	member, err := s.memberRepo.Find(ctx, spaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if member == nil || member.Role != model.RoleEditor {
		return nil, model.NewForbiddenError()
	}

	return space, nil
}

// SpaceWithFavorite は一覧表示用にお気に入りフラグを付与したスペース。
type SpaceWithFavorite struct {
	model.Space
	IsFavorite bool
}

// GetSpacesForUser はユーザーが所有者またはメンバーであるスペースを名前順で返す。
func (s *Service) GetSpacesForUser(ctx context.Context, userID string) ([]*model.Space, error) {
	spaces, err := s.spaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	return spaces, nil
}

// ListSpaces はアクセス可能なスペース一覧をお気に入りフラグ付きで返す。
func (s *Service) ListSpaces(ctx context.Context, userID string) ([]SpaceWithFavorite, error) {
	spaces, err := s.spaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	favoriteIDs, err := s.favoriteRepo.ListSpaceIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	favorites := make(map[string]bool, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favorites[id] = true
	}

	result := make([]SpaceWithFavorite, 0, len(spaces))
	for _, sp := range spaces {
		result = append(result, SpaceWithFavorite{Space: *sp, IsFavorite: favorites[sp.ID]})
	}
	return result, nil
}

// ResolveDefaultSpace は暗黙のターゲットスペースを決定する。
// 識別子が"default"のスペースを優先し、なければ名前順の先頭、
// アクセス可能なスペースが1つもなければnilを返す（エラーではない）。
func (s *Service) ResolveDefaultSpace(ctx context.Context, userID string) (*model.Space, error) {
	spaces, err := s.spaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	if len(spaces) == 0 {
		return nil, nil
	}

	for _, sp := range spaces {
		if sp.Identifier == model.DefaultSpaceIdentifier {
			return sp, nil
		}
	}
	return spaces[0], nil
}

// CreateSpace はスペースを作成する。
// 識別子は正規化され、正規化結果が空の場合はINVALID_IDENTIFIER。
// (所有者, 識別子)の重複はCONFLICTになる。
func (s *Service) CreateSpace(ctx context.Context, userID, name, identifier string) (*model.Space, error) {
	normalized := NormalizeIdentifier(identifier)
	if normalized == "" {
		return nil, model.NewInvalidIdentifierError()
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = normalized
	}

	now := time.Now()
	space := &model.Space{
		ID:         uuid.New().String(),
		UserID:     userID,
		Name:       name,
		Identifier: normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.spaceRepo.Create(ctx, space); err != nil {
		return nil, err
	}

	slog.Info("space created",
		slog.String("space_id", space.ID),
		slog.String("identifier", space.Identifier),
		slog.String("owner_id", userID),
	)
	return space, nil
}

// UpdateSpace は名前と識別子を更新する。編集権限が必要。
// 空文字列のフィールドは変更しない。
func (s *Service) UpdateSpace(ctx context.Context, spaceID, userID, name, identifier string) (*model.Space, error) {
	space, err := s.CanEditSpace(ctx, spaceID, userID)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		space.Name = name
	}
	if identifier != "" {
		normalized := NormalizeIdentifier(identifier)
		if normalized == "" {
			return nil, model.NewInvalidIdentifierError()
		}
		space.Identifier = normalized
	}
	space.UpdatedAt = time.Now()

	if err := s.spaceRepo.Update(ctx, space); err != nil {
		return nil, err
	}
	return space, nil
}

// DeleteSpace はスペースを削除する。所有者のみ実行可能で、editorでも不可。
// 配下のメンバー、トークン、コンテンツは連鎖削除される。
func (s *Service) DeleteSpace(ctx context.Context, spaceID, userID string) error {
	space, err := s.spaceRepo.FindByID(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("failed to find space: %w", err)
	}
	if space == nil {
		return model.NewSpaceNotFoundError()
	}
	if space.UserID != userID {
		return model.NewForbiddenError()
	}

	if err := s.spaceRepo.DeleteByID(ctx, spaceID); err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}

	slog.Info("space deleted",
		slog.String("space_id", spaceID),
		slog.String("owner_id", userID),
	)
	return nil
}

// ListMembers はメンバー一覧を返す。読み取りアクセスが必要。
func (s *Service) ListMembers(ctx context.Context, spaceID, userID string) ([]model.SpaceMemberWithUser, error) {
	if _, err := s.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return nil, err
	}
	members, err := s.memberRepo.ListBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMember はメールアドレスでユーザーを検索しメンバーとして追加する。編集権限が必要。
// 未登録のメールアドレスはUSER_NOT_FOUND（先にサインインしてもらう必要がある）。
// 所有者と自分自身は追加できない。既存メンバーはロールのみ更新される。
func (s *Service) AddMember(ctx context.Context, spaceID, userID, email, role string) (*model.SpaceMemberWithUser, error) {
	space, err := s.CanEditSpace(ctx, spaceID, userID)
	if err != nil {
		return nil, err
	}

	if !model.ValidMemberRole(role) {
		return nil, model.NewInvalidRoleError(role)
	}

	target, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}

	// 所有者は常にフルアクセスを持つため、メンバーシップ行を作らない
	if target.ID == space.UserID {
		return nil, model.NewConflictError("このユーザーはスペースの所有者です")
	}
	if target.ID == userID {
		return nil, model.NewConflictError("自分自身をメンバーに追加することはできません")
	}

	member := &model.SpaceMember{
		ID:        uuid.New().String(),
		SpaceID:   spaceID,
		UserID:    target.ID,
		Role:      model.MemberRole(role),
		CreatedAt: time.Now(),
	}
	if err := s.memberRepo.Upsert(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to upsert member: %w", err)
	}

	slog.Info("space member added",
		slog.String("space_id", spaceID),
		slog.String("member_user_id", target.ID),
		slog.String("role", role),
	)

	return &model.SpaceMemberWithUser{
		SpaceMember:   *member,
		UserEmail:     target.Email,
		UserName:      target.Name,
		UserAvatarURL: target.AvatarURL,
	}, nil
}

// RemoveMember はメンバーシップを削除する。編集権限が必要。
func (s *Service) RemoveMember(ctx context.Context, spaceID, userID, targetUserID string) error {
	if _, err := s.CanEditSpace(ctx, spaceID, userID); err != nil {
		return err
	}

	existed, err := s.memberRepo.Delete(ctx, spaceID, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if !existed {
		return model.NewMemberNotFoundError()
	}

	slog.Info("space member removed",
		slog.String("space_id", spaceID),
		slog.String("member_user_id", targetUserID),
	)
	return nil
}

// Favorite はスペースをお気に入りに追加する。冪等で、認可には影響しない。
func (s *Service) Favorite(ctx context.Context, spaceID, userID string) error {
	if _, err := s.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return err
	}
	if err := s.favoriteRepo.Add(ctx, userID, spaceID); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// Unfavorite はスペースをお気に入りから外す。冪等。
func (s *Service) Unfavorite(ctx context.Context, spaceID, userID string) error {
	if _, err := s.CanAccessSpace(ctx, spaceID, userID); err != nil {
		return err
	}
	if err := s.favoriteRepo.Remove(ctx, userID, spaceID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}
