package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/slotkeeper/internal/database"
	"github.com/hitoshi/slotkeeper/internal/model"
)

const platformColumns = `id, name, email, password, profiles`

// SQLPlatformRepo はSQLデータベースを使用したプラットフォームリポジトリ。
type SQLPlatformRepo struct {
	db     *sql.DB
	driver database.Driver
}

// NewSQLPlatformRepo はSQLPlatformRepoを生成する。
func NewSQLPlatformRepo(db *sql.DB, driver database.Driver) *SQLPlatformRepo {
	return &SQLPlatformRepo{db: db, driver: driver}
}

var _ PlatformRepository = (*SQLPlatformRepo)(nil)

// List は全プラットフォームを名前順で返す。
func (r *SQLPlatformRepo) List(ctx context.Context) ([]*model.Platform, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+platformColumns+` FROM platforms ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var platforms []*model.Platform
	for rows.Next() {
		p := &model.Platform{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Password, &p.Profiles); err != nil {
			return nil, fmt.Errorf("プラットフォーム行の読み取りに失敗しました: %w", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の走査に失敗しました: %w", err)
	}
	return platforms, nil
}

// FindByID は指定IDのプラットフォームを取得する。見つからない場合はnilを返す。
func (r *SQLPlatformRepo) FindByID(ctx context.Context, id string) (*model.Platform, error) {
	return r.findOne(ctx, `SELECT `+platformColumns+` FROM platforms WHERE id = ?`, id)
}

// FindByName は名前が完全一致するプラットフォームを取得する。見つからない場合はnilを返す。
func (r *SQLPlatformRepo) FindByName(ctx context.Context, name string) (*model.Platform, error) {
	return r.findOne(ctx, `SELECT `+platformColumns+` FROM platforms WHERE name = ? ORDER BY id LIMIT 1`, name)
}

func (r *SQLPlatformRepo) findOne(ctx context.Context, query string, arg string) (*model.Platform, error) {
	p := &model.Platform{}
	err := r.db.QueryRowContext(ctx, r.driver.Rebind(query), arg).
		Scan(&p.ID, &p.Name, &p.Email, &p.Password, &p.Profiles)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プラットフォームの取得に失敗しました: %w", err)
	}
	return p, nil
}

// Create はプラットフォームを作成する。
func (r *SQLPlatformRepo) Create(ctx context.Context, platform *model.Platform) error {
	_, err := r.db.ExecContext(ctx, r.driver.Rebind(
		`INSERT INTO platforms (id, name, email, password, profiles) VALUES (?, ?, ?, ?, ?)`),
		platform.ID, platform.Name, platform.Email, platform.Password, platform.Profiles,
	)
	if err != nil {
		return fmt.Errorf("プラットフォームの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はプラットフォームの可変項目を更新する。
func (r *SQLPlatformRepo) Update(ctx context.Context, platform *model.Platform) error {
	result, err := r.db.ExecContext(ctx, r.driver.Rebind(
		`UPDATE platforms SET name = ?, email = ?, password = ?, profiles = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`),
		platform.Name, platform.Email, platform.Password, platform.Profiles, platform.ID,
	)
	if err != nil {
		return fmt.Errorf("プラットフォームの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("プラットフォーム更新の結果確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("platform not found: %s", platform.ID)
	}
	return nil
}

// DeleteWithSubscriptions はプラットフォームとその契約を同一トランザクションで削除する。
func (r *SQLPlatformRepo) DeleteWithSubscriptions(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.driver.Rebind(`DELETE FROM subscriptions WHERE platform_id = ?`), id); err != nil {
		return false, fmt.Errorf("failed to delete subscriptions of platform: %w", err)
	}

	result, err := tx.ExecContext(ctx, r.driver.Rebind(`DELETE FROM platforms WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete platform: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}
