package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/slotkeeper/internal/database"
	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// subscriptionSlotConstraint はPostgreSQLの (platform_id, profile_number) 一意制約名。
const subscriptionSlotConstraint = "uq_subscriptions_platform_profile"

// SQLStore はPostgreSQLまたはSQLiteを使用したStore実装。
// クエリは '?' プレースホルダで記述し、driver.Rebindで方言に合わせる。
type SQLStore struct {
	db            *sql.DB
	driver        database.Driver
	platforms     *SQLPlatformRepo
	subscriptions *SQLSubscriptionRepo
	security      *SQLSecurityRepo
}

// NewSQLStore はSQLStoreを生成する。
func NewSQLStore(db *sql.DB, driver database.Driver) *SQLStore {
	return &SQLStore{
		db:            db,
		driver:        driver,
		platforms:     NewSQLPlatformRepo(db, driver),
		subscriptions: NewSQLSubscriptionRepo(db, driver),
		security:      NewSQLSecurityRepo(db, driver),
	}
}

var _ Store = (*SQLStore)(nil)

// Platforms はプラットフォームリポジトリを返す。
func (s *SQLStore) Platforms() PlatformRepository { return s.platforms }

// Subscriptions は契約リポジトリを返す。
func (s *SQLStore) Subscriptions() SubscriptionRepository { return s.subscriptions }

// Security はセキュリティ設定リポジトリを返す。
func (s *SQLStore) Security() SecurityRepository { return s.security }

// ReplaceAll は全契約・全プラットフォームを削除し、渡された内容を同一トランザクションで挿入する。
func (s *SQLStore) ReplaceAll(ctx context.Context, platforms []*model.Platform, subs []*model.Subscription) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("failed to clear subscriptions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM platforms`); err != nil {
		return fmt.Errorf("failed to clear platforms: %w", err)
	}

	insertPlatform := s.driver.Rebind(
		`INSERT INTO platforms (id, name, email, password, profiles) VALUES (?, ?, ?, ?, ?)`)
	for _, p := range platforms {
		if _, err := tx.ExecContext(ctx, insertPlatform, p.ID, p.Name, p.Email, p.Password, p.Profiles); err != nil {
			return fmt.Errorf("failed to insert platform %s: %w", p.ID, err)
		}
	}

	insertSub := s.driver.Rebind(insertSubscriptionSQL)
	for _, sub := range subs {
		if _, err := tx.ExecContext(ctx, insertSub, subscriptionArgs(sub)...); err != nil {
			if isSlotViolation(err) {
				return model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
			}
			return fmt.Errorf("failed to insert subscription %d: %w", sub.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping はデータベースへの疎通を確認する。
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isSlotViolation はドライバのエラーがプロファイル枠の一意制約違反かを判定する。
func isSlotViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == subscriptionSlotConstraint
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return strings.Contains(sqliteErr.Error(), "profile_number")
		case sqlite3.SQLITE_CONSTRAINT:
			// 拡張リザルトコードが無効な接続ではメッセージで判別する
			msg := sqliteErr.Error()
			return strings.Contains(msg, "UNIQUE") && strings.Contains(msg, "profile_number")
		}
	}
	return false
}
