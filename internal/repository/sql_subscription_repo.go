package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/slotkeeper/internal/database"
	"github.com/hitoshi/slotkeeper/internal/model"
)

const subscriptionColumns = `id, platform_id, service, account_email, account_password, profile_number, pin, client_name, start_date, end_date`

const insertSubscriptionSQL = `INSERT INTO subscriptions (` + subscriptionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLSubscriptionRepo はSQLデータベースを使用した契約リポジトリ。
type SQLSubscriptionRepo struct {
	db     *sql.DB
	driver database.Driver
}

// NewSQLSubscriptionRepo はSQLSubscriptionRepoを生成する。
func NewSQLSubscriptionRepo(db *sql.DB, driver database.Driver) *SQLSubscriptionRepo {
	return &SQLSubscriptionRepo{db: db, driver: driver}
}

var _ SubscriptionRepository = (*SQLSubscriptionRepo)(nil)

func subscriptionArgs(sub *model.Subscription) []interface{} {
	return []interface{}{
		sub.ID, sub.PlatformID, sub.Service, sub.AccountEmail, sub.AccountPassword,
		sub.ProfileNumber, sub.Pin, sub.ClientName, sub.StartDate, sub.EndDate,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := row.Scan(&sub.ID, &sub.PlatformID, &sub.Service, &sub.AccountEmail, &sub.AccountPassword,
		&sub.ProfileNumber, &sub.Pin, &sub.ClientName, &sub.StartDate, &sub.EndDate)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// List は全契約を終了日、ID順で返す。
func (r *SQLSubscriptionRepo) List(ctx context.Context) ([]*model.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY end_date ASC, id ASC`)
}

// ListByPlatformID は指定プラットフォームの契約をプロファイル番号順で返す。
func (r *SQLSubscriptionRepo) ListByPlatformID(ctx context.Context, platformID string) ([]*model.Subscription, error) {
	return r.list(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE platform_id = ? ORDER BY profile_number ASC`,
		platformID)
}

func (r *SQLSubscriptionRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, r.driver.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("契約行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("契約一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

// FindByID は指定IDの契約を取得する。見つからない場合はnilを返す。
func (r *SQLSubscriptionRepo) FindByID(ctx context.Context, id int64) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, r.driver.Rebind(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`), id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("契約の取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByPlatformAndProfile はプロファイル枠を使用中の契約を取得する。見つからない場合はnilを返す。
func (r *SQLSubscriptionRepo) FindByPlatformAndProfile(ctx context.Context, platformID string, profileNumber int) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, r.driver.Rebind(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE platform_id = ? AND profile_number = ?`),
		platformID, profileNumber))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロファイル枠による契約の検索に失敗しました: %w", err)
	}
	return sub, nil
}

// MaxID は最大の契約IDを返す。契約がない場合は0を返す。
func (r *SQLSubscriptionRepo) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM subscriptions`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("最大契約IDの取得に失敗しました: %w", err)
	}
	return maxID, nil
}

// Create は契約を作成する。プロファイル枠の一意制約違反はprofile_in_useとして返す。
func (r *SQLSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx, r.driver.Rebind(insertSubscriptionSQL), subscriptionArgs(sub)...)
	if err != nil {
		if isSlotViolation(err) {
			return model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
		}
		return fmt.Errorf("契約の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は契約の全項目を更新する。プロファイル枠の一意制約違反はprofile_in_useとして返す。
func (r *SQLSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	result, err := r.db.ExecContext(ctx, r.driver.Rebind(
		`UPDATE subscriptions
		 SET platform_id = ?, service = ?, account_email = ?, account_password = ?, profile_number = ?,
		     pin = ?, client_name = ?, start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`),
		sub.PlatformID, sub.Service, sub.AccountEmail, sub.AccountPassword, sub.ProfileNumber,
		sub.Pin, sub.ClientName, sub.StartDate, sub.EndDate, sub.ID,
	)
	if err != nil {
		if isSlotViolation(err) {
			return model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
		}
		return fmt.Errorf("契約の更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("契約更新の結果確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("subscription not found: %d", sub.ID)
	}
	return nil
}

// Delete は指定IDの契約を削除する。存在しない場合はfalseを返す。
func (r *SQLSubscriptionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.driver.Rebind(`DELETE FROM subscriptions WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("契約の削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("契約削除の結果確認に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}
