package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresSpaceRepo はPostgreSQLを使用したスペースリポジトリ。
type PostgresSpaceRepo struct {
	db *sql.DB
}

// NewPostgresSpaceRepo はPostgresSpaceRepoを生成する。
func NewPostgresSpaceRepo(db *sql.DB) *PostgresSpaceRepo {
	return &PostgresSpaceRepo{db: db}
}

const spaceColumns = `id, user_id, name, identifier, created_at, updated_at`

func scanSpace(row *sql.Row) (*model.Space, error) {
	space := &model.Space{}
	err := row.Scan(&space.ID, &space.UserID, &space.Name, &space.Identifier, &space.CreatedAt, &space.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return space, nil
}

// Create はスペースを作成する。
// (所有者, 識別子)の一意制約違反はCONFLICTに変換される。
func (r *PostgresSpaceRepo) Create(ctx context.Context, space *model.Space) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO spaces (id, user_id, name, identifier, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		space.ID, space.UserID, space.Name, space.Identifier, space.CreatedAt, space.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("identifier " + space.Identifier)
		}
		return fmt.Errorf("failed to insert space: %w", err)
	}
	return nil
}

// FindByID は指定IDのスペースを取得する。見つからない場合はnilを返す。
func (r *PostgresSpaceRepo) FindByID(ctx context.Context, id string) (*model.Space, error) {
	space, err := scanSpace(r.db.QueryRowContext(ctx,
		`SELECT `+spaceColumns+` FROM spaces WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find space by ID: %w", err)
	}
	return space, nil
}

// FindByOwnerAndIdentifier は所有者と識別子でスペースを検索する。見つからない場合はnilを返す。
func (r *PostgresSpaceRepo) FindByOwnerAndIdentifier(ctx context.Context, userID, identifier string) (*model.Space, error) {
	space, err := scanSpace(r.db.QueryRowContext(ctx,
		`SELECT `+spaceColumns+` FROM spaces WHERE user_id = $1 AND identifier = $2`,
		userID, identifier,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find space by identifier: %w", err)
	}
	return space, nil
}

// Update は名前と識別子を更新する。一意制約違反はCONFLICTに変換される。
func (r *PostgresSpaceRepo) Update(ctx context.Context, space *model.Space) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE spaces SET name = $2, identifier = $3, updated_at = now() WHERE id = $1`,
		space.ID, space.Name, space.Identifier,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewConflictError("identifier " + space.Identifier)
		}
		return fmt.Errorf("failed to update space: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewSpaceNotFoundError()
	}
	return nil
}

// DeleteByID は指定IDのスペースを削除する。
// メンバー、お気に入り、トークン、コンテンツはCASCADE削除される。
func (r *PostgresSpaceRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM spaces WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewSpaceNotFoundError()
	}
	return nil
}

// ListForUser はユーザーが所有者またはメンバーであるスペースを名前順で返す。
func (r *PostgresSpaceRepo) ListForUser(ctx context.Context, userID string) ([]*model.Space, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT s.id, s.user_id, s.name, s.identifier, s.created_at, s.updated_at
		 FROM spaces s
		 LEFT JOIN space_members m ON m.space_id = s.id
		 WHERE s.user_id = $1 OR m.user_id = $1
		 ORDER BY s.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces for user: %w", err)
	}
	defer rows.Close()

	var spaces []*model.Space
	for rows.Next() {
		space := &model.Space{}
		if err := rows.Scan(&space.ID, &space.UserID, &space.Name, &space.Identifier, &space.CreatedAt, &space.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spaces: %w", err)
	}

	return spaces, nil
}

// compile-time interface check
var _ SpaceRepository = (*PostgresSpaceRepo)(nil)
