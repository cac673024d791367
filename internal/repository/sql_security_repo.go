package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/slotkeeper/internal/database"
)

// SQLSecurityRepo はsecurity_settingsテーブル（id = 1 の単一行）を使用するリポジトリ。
type SQLSecurityRepo struct {
	db     *sql.DB
	driver database.Driver
}

// NewSQLSecurityRepo はSQLSecurityRepoを生成する。
func NewSQLSecurityRepo(db *sql.DB, driver database.Driver) *SQLSecurityRepo {
	return &SQLSecurityRepo{db: db, driver: driver}
}

var _ SecurityRepository = (*SQLSecurityRepo)(nil)

// GetPasswordHash は保存済みのハッシュを返す。未設定の場合は空文字を返す。
func (r *SQLSecurityRepo) GetPasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM security_settings WHERE id = 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("パスワードハッシュの取得に失敗しました: %w", err)
	}
	return hash, nil
}

// SetPasswordHashIfAbsent は未設定の場合のみハッシュを保存する。
func (r *SQLSecurityRepo) SetPasswordHashIfAbsent(ctx context.Context, hash string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.driver.Rebind(
		`INSERT INTO security_settings (id, password_hash) VALUES (1, ?) ON CONFLICT (id) DO NOTHING`),
		hash,
	)
	if err != nil {
		return false, fmt.Errorf("パスワードハッシュの保存に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("パスワードハッシュ保存の結果確認に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}
