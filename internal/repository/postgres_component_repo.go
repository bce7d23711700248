package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresComponentRepo はPostgreSQLを使用したコンポーネントリポジトリ。
type PostgresComponentRepo struct {
	db *sql.DB
}

// NewPostgresComponentRepo はPostgresComponentRepoを生成する。
func NewPostgresComponentRepo(db *sql.DB) *PostgresComponentRepo {
	return &PostgresComponentRepo{db: db}
}

const componentColumns = `id, space_id, name, type, is_root, is_nestable, schema, created_at, updated_at`

// FindByID は指定IDのコンポーネントを取得する。見つからない場合はnilを返す。
func (r *PostgresComponentRepo) FindByID(ctx context.Context, id string) (*model.Component, error) {
	c := &model.Component{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SpaceID, &c.Name, &c.Type, &c.IsRoot, &c.IsNestable, &c.Schema, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find component: %w", err)
	}

	return c, nil
}

// ListBySpace はスペースのコンポーネント一覧を名前順で返す。
func (r *PostgresComponentRepo) ListBySpace(ctx context.Context, spaceID string) ([]*model.Component, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM components WHERE space_id = $1 ORDER BY name ASC`,
		spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var components []*model.Component
	for rows.Next() {
		c := &model.Component{}
		if err := rows.Scan(&c.ID, &c.SpaceID, &c.Name, &c.Type, &c.IsRoot, &c.IsNestable, &c.Schema, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate components: %w", err)
	}

	return components, nil
}

// UpsertByType は(スペース, type)をキーに冪等に作成する。既存行は変更しない。
// シーディングと新規スペースのデフォルト投入に使用する。
func (r *PostgresComponentRepo) UpsertByType(ctx context.Context, component *model.Component) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO components (id, space_id, name, type, is_root, is_nestable, schema, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 ON CONFLICT (space_id, type) DO NOTHING`,
		component.ID, component.SpaceID, component.Name, component.Type,
		component.IsRoot, component.IsNestable, component.Schema,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert component: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのコンポーネントを削除する。
func (r *PostgresComponentRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM components WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete component: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewComponentNotFoundError()
	}
	return nil
}

// compile-time interface check
var _ ComponentRepository = (*PostgresComponentRepo)(nil)
