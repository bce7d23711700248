package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// Add はお気に入りを冪等に追加する。
func (r *PostgresFavoriteRepo) Add(ctx context.Context, userID, spaceID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO space_favorites (user_id, space_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, space_id) DO NOTHING`,
		userID, spaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// Remove はお気に入りを冪等に削除する。
func (r *PostgresFavoriteRepo) Remove(ctx context.Context, userID, spaceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM space_favorites WHERE user_id = $1 AND space_id = $2`,
		userID, spaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// ListSpaceIDs はユーザーがお気に入りにしたスペースIDの集合を返す。
func (r *PostgresFavoriteRepo) ListSpaceIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT space_id FROM space_favorites WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
