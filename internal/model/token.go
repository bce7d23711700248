package model

import "time"

// AccessToken はコンテンツAPIの読み取りアクセスを許可するBearer資格情報。
// 生のシークレットは生成時に1度だけ表示され、永続化されるのはハッシュのみ。
// スコープ（SpaceID）は作成時に固定され、後から変更できない（失効と再発行のみ）。
type AccessToken struct {
	ID          string
	Name        string
	TokenHash   string // シークレットのSHA-256ハッシュ（hex）。検索キー。
	TokenPrefix string // 一覧表示用の先頭12文字+省略記号。シークレットではない。
	SpaceID     string // 空文字列 = 未スコープ（デフォルトスペースを使用）
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// AccessTokenWithSpace はトークン一覧表示用にスペース情報を結合した構造体。
type AccessTokenWithSpace struct {
	AccessToken
	SpaceName       string
	SpaceIdentifier string
}
