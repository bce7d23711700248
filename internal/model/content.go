package model

import "time"

// Component は再利用可能なコンテンツブロックのスキーマ定義を表す。
// schemaはこの層にとって不透明なJSON文字列として扱う。
// (スペース, type)ごとに一意。
type Component struct {
	ID         string
	SpaceID    string
	Name       string
	Type       string // "hero", "text", "image" 等のマシン名
	IsRoot     bool
	IsNestable bool
	Schema     string // 不透明なJSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ContentType はエントリの型定義（許可ブロックとフィールド）を表す。
// (スペース, type)ごとに一意。schemaは不透明なJSON文字列。
type ContentType struct {
	ID        string
	SpaceID   string
	Name      string
	Type      string // "page" 等のマシン名
	Schema    string // 不透明なJSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry はスペースとコンテンツタイプに属するコンテンツレコードを表す。
// contentは不透明なJSON文字列で、スキーマ検証はこの層では行わない。
// (スペース, slug)ごとに一意。
type Entry struct {
	ID            string
	SpaceID       string
	ContentTypeID string
	Slug          string
	Name          string
	Content       string // 不透明なJSON
	IsPublished   bool
	PublishedAt   *time.Time
	Position      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntryWithContentType はAPI応答用にコンテンツタイプ情報を結合した構造体。
type EntryWithContentType struct {
	Entry
	ContentTypeName string
	ContentTypeType string
}
