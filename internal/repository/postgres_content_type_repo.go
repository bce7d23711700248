package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresContentTypeRepo はPostgreSQLを使用したコンテンツタイプリポジトリ。
type PostgresContentTypeRepo struct {
	db *sql.DB
}

// NewPostgresContentTypeRepo はPostgresContentTypeRepoを生成する。
func NewPostgresContentTypeRepo(db *sql.DB) *PostgresContentTypeRepo {
	return &PostgresContentTypeRepo{db: db}
}

const contentTypeColumns = `id, space_id, name, type, schema, created_at, updated_at`

func scanContentType(row *sql.Row) (*model.ContentType, error) {
	ct := &model.ContentType{}
	err := row.Scan(&ct.ID, &ct.SpaceID, &ct.Name, &ct.Type, &ct.Schema, &ct.CreatedAt, &ct.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}

// FindByID は指定IDのコンテンツタイプを取得する。見つからない場合はnilを返す。
func (r *PostgresContentTypeRepo) FindByID(ctx context.Context, id string) (*model.ContentType, error) {
	ct, err := scanContentType(r.db.QueryRowContext(ctx,
		`SELECT `+contentTypeColumns+` FROM content_types WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find content type: %w", err)
	}
	return ct, nil
}

// FindBySpaceAndType は(スペース, type)でコンテンツタイプを検索する。見つからない場合はnilを返す。
func (r *PostgresContentTypeRepo) FindBySpaceAndType(ctx context.Context, spaceID, typ string) (*model.ContentType, error) {
	ct, err := scanContentType(r.db.QueryRowContext(ctx,
		`SELECT `+contentTypeColumns+` FROM content_types WHERE space_id = $1 AND type = $2`,
		spaceID, typ,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find content type by type: %w", err)
	}
	return ct, nil
}

// ListBySpace はスペースのコンテンツタイプ一覧を名前順で返す。
func (r *PostgresContentTypeRepo) ListBySpace(ctx context.Context, spaceID string) ([]*model.ContentType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contentTypeColumns+` FROM content_types WHERE space_id = $1 ORDER BY name ASC`,
		spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list content types: %w", err)
	}
	defer rows.Close()

	var contentTypes []*model.ContentType
	for rows.Next() {
		ct := &model.ContentType{}
		if err := rows.Scan(&ct.ID, &ct.SpaceID, &ct.Name, &ct.Type, &ct.Schema, &ct.CreatedAt, &ct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content type: %w", err)
		}
		contentTypes = append(contentTypes, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content types: %w", err)
	}

	return contentTypes, nil
}

// UpsertByType は(スペース, type)をキーに冪等に作成する。既存行は変更しない。
func (r *PostgresContentTypeRepo) UpsertByType(ctx context.Context, contentType *model.ContentType) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_types (id, space_id, name, type, schema, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (space_id, type) DO NOTHING`,
		contentType.ID, contentType.SpaceID, contentType.Name, contentType.Type, contentType.Schema,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert content type: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ContentTypeRepository = (*PostgresContentTypeRepo)(nil)
