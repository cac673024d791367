// Package model はドメインモデルを定義する。
package model

// Platform は共有ストリーミングアカウント（プラットフォーム）を表す。
// Profiles は同時に割り当て可能なプロファイル枠の数。
type Platform struct {
	ID       string
	Name     string
	Email    string
	Password string
	Profiles int
}

// PlatformInput はプラットフォーム作成・更新時の入力値。
type PlatformInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Profiles int    `json:"profiles" validate:"required,gt=0"`
}

// ProfileAvailability はプラットフォームの空きプロファイル枠の集計結果。
type ProfileAvailability struct {
	Available []int
	Total     int
	Used      int
}
