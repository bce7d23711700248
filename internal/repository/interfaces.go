// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/revicx/blade/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpsertByEmail はメールアドレスをキーにユーザーを冪等に作成・更新する。
	// 存在しない場合は作成し、存在する場合は名前とアバターURLのみを更新する。
	// 単一の条件付き書き込みで実行され、同時初回サインインの競合を起こさない。
	UpsertByEmail(ctx context.Context, email, name, avatarURL string) (*model.User, error)

	// UpdateRole は表示用ロールタグを更新する。
	UpdateRole(ctx context.Context, id, role string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、spacesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Upsert はidentityを冪等に作成する。既に存在する場合は何もしない。
	Upsert(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SpaceRepository はスペースデータの永続化インターフェース。
type SpaceRepository interface {
	// Create はスペースを作成する。
	// (所有者, 識別子)の一意制約違反はmodel.APIError(CONFLICT)に変換される。
	Create(ctx context.Context, space *model.Space) error

	// FindByID は指定IDのスペースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Space, error)

	// FindByOwnerAndIdentifier は所有者と識別子でスペースを検索する。見つからない場合はnilを返す。
	FindByOwnerAndIdentifier(ctx context.Context, userID, identifier string) (*model.Space, error)

	// Update は名前と識別子を更新する。一意制約違反はCONFLICTに変換される。
	Update(ctx context.Context, space *model.Space) error

	// DeleteByID は指定IDのスペースを削除する。
	// メンバー、お気に入り、トークン、コンテンツはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListForUser はユーザーが所有者またはメンバーであるスペースを名前順で返す。
	ListForUser(ctx context.Context, userID string) ([]*model.Space, error)
}

// MemberRepository はスペースメンバーシップの永続化インターフェース。
type MemberRepository interface {
	// Find は(スペース, ユーザー)のメンバーシップ行を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, spaceID, userID string) (*model.SpaceMember, error)

	// ListBySpace はスペースのメンバー一覧をユーザー情報付きで登録順に返す。
	ListBySpace(ctx context.Context, spaceID string) ([]model.SpaceMemberWithUser, error)

	// Upsert はメンバーシップを冪等に作成・更新する。既存行はロールのみ更新される。
	Upsert(ctx context.Context, member *model.SpaceMember) error

	// Delete は(スペース, ユーザー)のメンバーシップを削除する。
	// 削除対象が存在したかを返す。
	Delete(ctx context.Context, spaceID, userID string) (bool, error)
}

// FavoriteRepository はスペースのお気に入りの永続化インターフェース。
// 認可には一切影響しない。
type FavoriteRepository interface {
	// Add はお気に入りを冪等に追加する。
	Add(ctx context.Context, userID, spaceID string) error
	// Remove はお気に入りを冪等に削除する。
	Remove(ctx context.Context, userID, spaceID string) error
	// ListSpaceIDs はユーザーがお気に入りにしたスペースIDの集合を返す。
	ListSpaceIDs(ctx context.Context, userID string) ([]string, error)
}

// AccessTokenRepository はアクセストークンの永続化インターフェース。
// 生のシークレットは保存されず、ハッシュのみを扱う。
type AccessTokenRepository interface {
	// Create はトークンレコードを作成する。
	Create(ctx context.Context, token *model.AccessToken) error

	// FindByHash はシークレットのハッシュでトークンを検索する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, hash string) (*model.AccessToken, error)

	// FindByID は指定IDのトークンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AccessToken, error)

	// List は全トークンをスペース情報付きで作成日時の降順に返す。ハッシュは含まれない。
	List(ctx context.Context) ([]model.AccessTokenWithSpace, error)

	// DeleteByID は指定IDのトークンを削除する。削除対象が存在したかを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)

	// TouchLastUsed は最終使用日時を現在時刻に更新する。
	// ベストエフォートの書き込みであり、呼び出し側で失敗を握り潰してよい。
	TouchLastUsed(ctx context.Context, id string) error
}

// ComponentRepository はコンテンツブロックスキーマの永続化インターフェース。
type ComponentRepository interface {
	// FindByID は指定IDのコンポーネントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Component, error)
	// ListBySpace はスペースのコンポーネント一覧を名前順で返す。
	ListBySpace(ctx context.Context, spaceID string) ([]*model.Component, error)
	// UpsertByType は(スペース, type)をキーに冪等に作成する。既存行は変更しない。
	UpsertByType(ctx context.Context, component *model.Component) error
	// DeleteByID は指定IDのコンポーネントを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ContentTypeRepository はコンテンツタイプの永続化インターフェース。
type ContentTypeRepository interface {
	// FindByID は指定IDのコンテンツタイプを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ContentType, error)
	// FindBySpaceAndType は(スペース, type)でコンテンツタイプを検索する。見つからない場合はnilを返す。
	FindBySpaceAndType(ctx context.Context, spaceID, typ string) (*model.ContentType, error)
	// ListBySpace はスペースのコンテンツタイプ一覧を名前順で返す。
	ListBySpace(ctx context.Context, spaceID string) ([]*model.ContentType, error)
	// UpsertByType は(スペース, type)をキーに冪等に作成する。既存行は変更しない。
	UpsertByType(ctx context.Context, contentType *model.ContentType) error
}

// EntryRepository はエントリデータの永続化インターフェース。
type EntryRepository interface {
	// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Entry, error)

	// FindBySpaceAndSlug は(スペース, slug)でエントリを検索する。見つからない場合はnilを返す。
	FindBySpaceAndSlug(ctx context.Context, spaceID, slug string) (*model.Entry, error)

	// ListBySpace はスペースのエントリ一覧をコンテンツタイプ情報付きで
	// 更新日時の降順に返す。publishedOnlyがtrueの場合は公開済みのみ。
	ListBySpace(ctx context.Context, spaceID string, publishedOnly bool) ([]model.EntryWithContentType, error)

	// Create はエントリを作成する。(スペース, slug)の一意制約違反はCONFLICTに変換される。
	Create(ctx context.Context, entry *model.Entry) error

	// Update はエントリを上書き更新する。履歴は保持しない。
	Update(ctx context.Context, entry *model.Entry) error

	// DeleteByID は指定IDのエントリを削除する。
	DeleteByID(ctx context.Context, id string) error

	// UpdatePositions はエントリの表示順を単一トランザクションで更新する。
	// idsのインデックスがそのままpositionになる。
	UpdatePositions(ctx context.Context, ids []string) error

	// UpsertBySlug は(スペース, slug)をキーに冪等に作成する。既存行は変更しない。
	// シーディング専用。
	UpsertBySlug(ctx context.Context, entry *model.Entry) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
