package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用したエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

const entryColumns = `id, space_id, content_type_id, slug, name, content, is_published, published_at, position, created_at, updated_at`

func scanEntry(row *sql.Row) (*model.Entry, error) {
	e := &model.Entry{}
	err := row.Scan(&e.ID, &e.SpaceID, &e.ContentTypeID, &e.Slug, &e.Name, &e.Content,
		&e.IsPublished, &e.PublishedAt, &e.Position, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by ID: %w", err)
	}
	return entry, nil
}

// FindBySpaceAndSlug は(スペース, slug)でエントリを検索する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindBySpaceAndSlug(ctx context.Context, spaceID, slug string) (*model.Entry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE space_id = $1 AND slug = $2`,
		spaceID, slug,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by slug: %w", err)
	}
	return entry, nil
}

// ListBySpace はスペースのエントリ一覧をコンテンツタイプ情報付きで更新日時の降順に返す。
func (r *PostgresEntryRepo) ListBySpace(ctx context.Context, spaceID string, publishedOnly bool) ([]model.EntryWithContentType, error) {
	query := `SELECT e.id, e.space_id, e.content_type_id, e.slug, e.name, e.content,
	                 e.is_published, e.published_at, e.position, e.created_at, e.updated_at,
	                 ct.name, ct.type
	          FROM entries e
	          JOIN content_types ct ON ct.id = e.content_type_id
	          WHERE e.space_id = $1`
	if publishedOnly {
		query += ` AND e.is_published = TRUE`
	}
	query += ` ORDER BY e.updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.EntryWithContentType
	for rows.Next() {
		var e model.EntryWithContentType
		if err := rows.Scan(&e.ID, &e.SpaceID, &e.ContentTypeID, &e.Slug, &e.Name, &e.Content,
			&e.IsPublished, &e.PublishedAt, &e.Position, &e.CreatedAt, &e.UpdatedAt,
			&e.ContentTypeName, &e.ContentTypeType); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// Create はエントリを作成する。(スペース, slug)の一意制約違反はCONFLICTに変換される。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, space_id, content_type_id, slug, name, content, is_published, published_at, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.SpaceID, entry.ContentTypeID, entry.Slug, entry.Name, entry.Content,
		entry.IsPublished, entry.PublishedAt, entry.Position, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("slug " + entry.Slug)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Update はエントリを上書き更新する。履歴は保持しない。
// slug変更時の一意制約違反はCONFLICTに変換される。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.Entry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entries
		 SET slug = $2, name = $3, content = $4, is_published = $5, published_at = $6, position = $7, updated_at = now()
		 WHERE id = $1`,
		entry.ID, entry.Slug, entry.Name, entry.Content, entry.IsPublished, entry.PublishedAt, entry.Position,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("slug " + entry.Slug)
		}
		return fmt.Errorf("failed to update entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewEntryNotFoundError(entry.Slug)
	}
	return nil
}

// DeleteByID は指定IDのエントリを削除する。
func (r *PostgresEntryRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// UpdatePositions はエントリの表示順を単一トランザクションで更新する。
// 部分的な並び替えが観測されないよう、全更新が成功した場合のみコミットする。
func (r *PostgresEntryRepo) UpdatePositions(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE entries SET position = $2, updated_at = now() WHERE id = $1`,
			id, i,
		); err != nil {
			return fmt.Errorf("failed to update entry position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertBySlug は(スペース, slug)をキーに冪等に作成する。既存行は変更しない。
func (r *PostgresEntryRepo) UpsertBySlug(ctx context.Context, entry *model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, space_id, content_type_id, slug, name, content, is_published, published_at, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (space_id, slug) DO NOTHING`,
		entry.ID, entry.SpaceID, entry.ContentTypeID, entry.Slug, entry.Name, entry.Content,
		entry.IsPublished, entry.PublishedAt, entry.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
