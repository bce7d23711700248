package model

import "time"

// DefaultSpaceIdentifier はデフォルトスペースを示す予約済みの識別子。
// ユーザーが明示的にスペースを指定しない場合、この識別子を持つスペースが
// 暗黙のターゲットとして選択される。
const DefaultSpaceIdentifier = "default"

// Space はテナント（ワークスペース）を表す。
// 所有者は常に1人で、所有権は認可判定において最優先で評価される。
type Space struct {
	ID         string
	UserID     string // 所有者のユーザーID
	Name       string
	Identifier string // 所有者ごとに一意なマシン識別子
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemberRole はスペースメンバーのロールを表す。
type MemberRole string

const (
	// RoleEditor はコンテンツ・メンバー・トークンの編集権限を持つロール。
	// スペース自体の削除は所有者のみ可能。
	RoleEditor MemberRole = "editor"
	// RoleViewer は読み取り専用のロール。
	// CanAccessSpaceは通過するが、CanEditSpaceは常に失敗する。
	RoleViewer MemberRole = "viewer"
)

// ValidMemberRole はロール文字列が定義済みロールかを検証する。
func ValidMemberRole(role string) bool {
	switch MemberRole(role) {
	case RoleEditor, RoleViewer:
		return true
	}
	return false
}

// SpaceMember は所有者以外のユーザーにスペースへのアクセスを付与する結合エンティティ。
// (スペース, ユーザー)ごとに一意。所有者のメンバーシップ行は存在しない。
type SpaceMember struct {
	ID        string
	SpaceID   string
	UserID    string
	Role      MemberRole
	CreatedAt time.Time
}

// SpaceMemberWithUser はメンバー一覧表示用にユーザー情報を結合した構造体。
type SpaceMemberWithUser struct {
	SpaceMember
	UserEmail     string
	UserName      string
	UserAvatarURL string
}

// SpaceFavorite はユーザーごとのスペースのブックマーク。
// (ユーザー, スペース)ごとに一意。認可には一切影響しないUI上の便宜。
type SpaceFavorite struct {
	UserID    string
	SpaceID   string
	CreatedAt time.Time
}
