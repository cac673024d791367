package model

// Subscription はプラットフォームの1プロファイル枠に割り当てられた顧客契約を表す。
// Service、AccountEmail、AccountPasswordは割り当て時点の値を保持し、
// プラットフォーム更新時に再同期しない。
type Subscription struct {
	ID              int64
	PlatformID      string
	Service         string
	AccountEmail    string
	AccountPassword string
	ProfileNumber   int
	Pin             string
	ClientName      string
	StartDate       string // YYYY-MM-DD
	EndDate         string // YYYY-MM-DD
}

// SubscriptionInput は契約作成・更新時の入力値。Pinのみ任意。
type SubscriptionInput struct {
	PlatformID      string `json:"platform_id" validate:"required"`
	Service         string `json:"service" validate:"required"`
	AccountEmail    string `json:"account_email" validate:"required"`
	AccountPassword string `json:"account_password" validate:"required"`
	ProfileNumber   int    `json:"profile_number" validate:"required"`
	Pin             string `json:"pin"`
	ClientName      string `json:"client_name" validate:"required"`
	StartDate       string `json:"start_date" validate:"required"`
	EndDate         string `json:"end_date" validate:"required"`
}

// SubscriptionStatus は残日数から導出される契約の表示状態。永続化しない。
type SubscriptionStatus string

const (
	// SubscriptionStatusActive は有効期限まで余裕がある状態。
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusExpiringSoon は期限切れが近い状態。
	SubscriptionStatusExpiringSoon SubscriptionStatus = "expiring_soon"
	// SubscriptionStatusExpired は期限切れの状態。
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// UnknownPlatformName は参照先プラットフォームが存在しない場合の表示名。
const UnknownPlatformName = "Unknown"

// SubscriptionView は一覧表示用に現在のプラットフォーム名と残日数を付与した契約。
type SubscriptionView struct {
	Subscription
	PlatformName  string
	DaysRemaining int
	Status        SubscriptionStatus
}
