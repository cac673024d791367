// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// PlatformRepository はプラットフォームの永続化インターフェース。
type PlatformRepository interface {
	// List は全プラットフォームを名前順で返す。
	List(ctx context.Context) ([]*model.Platform, error)

	// FindByID は指定IDのプラットフォームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Platform, error)

	// FindByName は名前が完全一致するプラットフォームを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Platform, error)

	// Create はプラットフォームを作成する。
	Create(ctx context.Context, platform *model.Platform) error

	// Update はプラットフォームの可変項目を更新する。
	Update(ctx context.Context, platform *model.Platform) error

	// DeleteWithSubscriptions はプラットフォームと、それを参照する全契約を同一トランザクションで削除する。
	// プラットフォームが存在しない場合はfalseを返し、何も削除しない。
	DeleteWithSubscriptions(ctx context.Context, id string) (bool, error)
}

// SubscriptionRepository は契約の永続化インターフェース。
// Create/Updateは (platform_id, profile_number) の重複をprofile_in_useエラーとして返す。
type SubscriptionRepository interface {
	// List は全契約を終了日、ID順で返す。
	List(ctx context.Context) ([]*model.Subscription, error)

	// FindByID は指定IDの契約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Subscription, error)

	// FindByPlatformAndProfile はプロファイル枠を使用中の契約を取得する。見つからない場合はnilを返す。
	FindByPlatformAndProfile(ctx context.Context, platformID string, profileNumber int) (*model.Subscription, error)

	// ListByPlatformID は指定プラットフォームの契約をプロファイル番号順で返す。
	ListByPlatformID(ctx context.Context, platformID string) ([]*model.Subscription, error)

	// MaxID は最大の契約IDを返す。契約がない場合は0を返す。
	MaxID(ctx context.Context) (int64, error)

	// Create は契約を作成する。IDは呼び出し側で採番する。
	Create(ctx context.Context, sub *model.Subscription) error

	// Update は契約の全項目を更新する。
	Update(ctx context.Context, sub *model.Subscription) error

	// Delete は指定IDの契約を削除する。存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}

// SecurityRepository は管理パスワードのハッシュを保持する単一レコードの永続化インターフェース。
type SecurityRepository interface {
	// GetPasswordHash は保存済みのハッシュを返す。未設定の場合は空文字を返す。
	GetPasswordHash(ctx context.Context) (string, error)

	// SetPasswordHashIfAbsent は未設定の場合のみハッシュを保存する。
	// 既に設定済みの場合はfalseを返し、上書きしない。
	SetPasswordHashIfAbsent(ctx context.Context, hash string) (bool, error)
}

// Store はバックエンドごとのリポジトリ群と、複数エンティティにまたがる操作をまとめる。
type Store interface {
	Platforms() PlatformRepository
	Subscriptions() SubscriptionRepository
	Security() SecurityRepository

	// ReplaceAll は全プラットフォームと全契約を原子的に置き換える。セキュリティ設定は保持する。
	ReplaceAll(ctx context.Context, platforms []*model.Platform, subs []*model.Subscription) error

	// Ping はバックエンドへの疎通を確認する。
	Ping(ctx context.Context) error

	// Close はバックエンドとの接続を閉じる。
	Close() error
}
