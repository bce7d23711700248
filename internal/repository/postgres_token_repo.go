package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresAccessTokenRepo はPostgreSQLを使用したアクセストークンリポジトリ。
type PostgresAccessTokenRepo struct {
	db *sql.DB
}

// NewPostgresAccessTokenRepo はPostgresAccessTokenRepoを生成する。
func NewPostgresAccessTokenRepo(db *sql.DB) *PostgresAccessTokenRepo {
	return &PostgresAccessTokenRepo{db: db}
}

const tokenColumns = `id, name, token_hash, token_prefix, COALESCE(space_id, ''), created_at, last_used_at`

func scanToken(row *sql.Row) (*model.AccessToken, error) {
	token := &model.AccessToken{}
	err := row.Scan(&token.ID, &token.Name, &token.TokenHash, &token.TokenPrefix,
		&token.SpaceID, &token.CreatedAt, &token.LastUsedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Create はトークンレコードを作成する。
// SpaceIDが空文字列の場合はNULL（未スコープ）として保存する。
func (r *PostgresAccessTokenRepo) Create(ctx context.Context, token *model.AccessToken) error {
	var spaceID any
	if token.SpaceID != "" {
		spaceID = token.SpaceID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (id, name, token_hash, token_prefix, space_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.Name, token.TokenHash, token.TokenPrefix, spaceID, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access token: %w", err)
	}
	return nil
}

// FindByHash はシークレットのハッシュでトークンを検索する。見つからない場合はnilを返す。
// ハッシュは無塩のSHA-256なので、完全一致検索がそのままシークレット検証になる。
func (r *PostgresAccessTokenRepo) FindByHash(ctx context.Context, hash string) (*model.AccessToken, error) {
	token, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE token_hash = $1`,
		hash,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find token by hash: %w", err)
	}
	return token, nil
}

// FindByID は指定IDのトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresAccessTokenRepo) FindByID(ctx context.Context, id string) (*model.AccessToken, error) {
	token, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find token by ID: %w", err)
	}
	return token, nil
}

// List は全トークンをスペース情報付きで作成日時の降順に返す。
// ハッシュは選択せず、表示用プレフィックスのみを返す。
func (r *PostgresAccessTokenRepo) List(ctx context.Context) ([]model.AccessTokenWithSpace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.token_prefix, COALESCE(t.space_id, ''), t.created_at, t.last_used_at,
		        COALESCE(s.name, ''), COALESCE(s.identifier, '')
		 FROM access_tokens t
		 LEFT JOIN spaces s ON s.id = t.space_id
		 ORDER BY t.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.AccessTokenWithSpace
	for rows.Next() {
		var t model.AccessTokenWithSpace
		if err := rows.Scan(&t.ID, &t.Name, &t.TokenPrefix, &t.SpaceID, &t.CreatedAt, &t.LastUsedAt,
			&t.SpaceName, &t.SpaceIdentifier); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}

	return tokens, nil
}

// DeleteByID は指定IDのトークンを削除する。削除対象が存在したかを返す。
func (r *PostgresAccessTokenRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// TouchLastUsed は最終使用日時を現在時刻に更新する。
// ベストエフォートの書き込み。失敗しても呼び出し側のリクエストは失敗させない。
func (r *PostgresAccessTokenRepo) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET last_used_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch last_used_at: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccessTokenRepository = (*PostgresAccessTokenRepo)(nil)
