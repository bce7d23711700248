package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/revicx/blade/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したスペースメンバーリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// Find は(スペース, ユーザー)のメンバーシップ行を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) Find(ctx context.Context, spaceID, userID string) (*model.SpaceMember, error) {
	member := &model.SpaceMember{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, space_id, user_id, role, created_at
		 FROM space_members
		 WHERE space_id = $1 AND user_id = $2`,
		spaceID, userID,
	).Scan(&member.ID, &member.SpaceID, &member.UserID, &member.Role, &member.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}

	return member, nil
}

// ListBySpace はスペースのメンバー一覧をユーザー情報付きで登録順に返す。
func (r *PostgresMemberRepo) ListBySpace(ctx context.Context, spaceID string) ([]model.SpaceMemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.space_id, m.user_id, m.role, m.created_at,
		        u.email, u.name, u.avatar_url
		 FROM space_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.space_id = $1
		 ORDER BY m.created_at ASC`,
		spaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []model.SpaceMemberWithUser
	for rows.Next() {
		var m model.SpaceMemberWithUser
		if err := rows.Scan(&m.ID, &m.SpaceID, &m.UserID, &m.Role, &m.CreatedAt,
			&m.UserEmail, &m.UserName, &m.UserAvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// Upsert はメンバーシップを冪等に作成・更新する。既存行はロールのみ更新される。
// (スペース, ユーザー)の一意制約により、同時追加は決定的に単一行へ収束する。
func (r *PostgresMemberRepo) Upsert(ctx context.Context, member *model.SpaceMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO space_members (id, space_id, user_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (space_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		member.ID, member.SpaceID, member.UserID, member.Role, member.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// Delete は(スペース, ユーザー)のメンバーシップを削除する。削除対象が存在したかを返す。
func (r *PostgresMemberRepo) Delete(ctx context.Context, spaceID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM space_members WHERE space_id = $1 AND user_id = $2`,
		spaceID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
