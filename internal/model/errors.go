// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, conflict, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryConflict   = "conflict"
	CategoryAuth       = "auth"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeMissingFields        = "missing_fields"
	ErrCodeInvalidDate          = "invalid_date"
	ErrCodeProfileOutOfRange    = "profile_out_of_range"
	ErrCodePlatformExists       = "platform_exists"
	ErrCodePlatformNotFound     = "platform_not_found"
	ErrCodeSubscriptionNotFound = "subscription_not_found"
	ErrCodeProfileInUse         = "profile_in_use"
	ErrCodePasswordInvalid      = "password_invalid"
	ErrCodeAlreadyConfigured    = "already_configured"
	ErrCodeNotConfigured        = "not_configured"
	ErrCodeInvalidCredentials   = "invalid_credentials"
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeServerError          = "server_error"
)

// IsCode はerrがAPIErrorであり、指定のエラーコードを持つかを判定する。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewMissingFieldsError は必須項目が欠けている場合のエラーを生成する。
func NewMissingFieldsError(fields ...string) *APIError {
	msg := "必須項目が入力されていません。"
	if len(fields) > 0 {
		msg = fmt.Sprintf("必須項目が入力されていません: %s", strings.Join(fields, ", "))
	}
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  msg,
		Category: CategoryValidation,
		Action:   "すべての必須項目を入力してください。",
	}
}

// NewInvalidDateError は日付形式が不正な場合のエラーを生成する。
func NewInvalidDateError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付の形式が正しくありません: %s=%q", field, value),
		Category: CategoryValidation,
		Action:   "日付は YYYY-MM-DD 形式で入力してください。",
	}
}

// NewProfileOutOfRangeError はプロファイル番号が枠の範囲外の場合のエラーを生成する。
// capacityが0以下の場合は下限のみを案内する。
func NewProfileOutOfRangeError(profileNumber, capacity int) *APIError {
	action := "プロファイル番号には1以上の値を指定してください。"
	if capacity > 0 {
		action = fmt.Sprintf("プロファイル番号には1から%dの値を指定してください。", capacity)
	}
	return &APIError{
		Code:     ErrCodeProfileOutOfRange,
		Message:  fmt.Sprintf("プロファイル番号が範囲外です: %d", profileNumber),
		Category: CategoryValidation,
		Action:   action,
	}
}

// NewProfilesBelowUsageError はプロファイル数を使用中の番号より小さくしようとした場合のエラーを生成する。
func NewProfilesBelowUsageError(profiles, highestUsed int) *APIError {
	return &APIError{
		Code:     ErrCodeProfileOutOfRange,
		Message:  fmt.Sprintf("プロファイル%dが使用中のため、枠数を%dに減らせません。", highestUsed, profiles),
		Category: CategoryValidation,
		Action:   fmt.Sprintf("枠数を%d以上にするか、先に該当の契約を移動してください。", highestUsed),
	}
}

// NewPlatformExistsError は同名のプラットフォームが既に存在する場合のエラーを生成する。
func NewPlatformExistsError(name string) *APIError {
	return &APIError{
		Code:     ErrCodePlatformExists,
		Message:  fmt.Sprintf("同じ名前のプラットフォームが既に存在します: %s", name),
		Category: CategoryConflict,
		Action:   "別の名前を指定してください。",
	}
}

// NewPlatformNotFoundError はプラットフォームが見つからない場合のエラーを生成する。
func NewPlatformNotFoundError(platformID string) *APIError {
	return &APIError{
		Code:     ErrCodePlatformNotFound,
		Message:  fmt.Sprintf("指定されたプラットフォームが見つかりません: %s", platformID),
		Category: CategoryNotFound,
		Action:   "プラットフォーム一覧を再読み込みしてください。",
	}
}

// NewSubscriptionNotFoundError は契約が見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定された契約が見つかりません: %s", subscriptionID),
		Category: CategoryNotFound,
		Action:   "契約一覧を再読み込みしてください。",
	}
}

// NewProfileInUseError はプロファイル枠が既に使用中の場合のエラーを生成する。
func NewProfileInUseError(platformID string, profileNumber int) *APIError {
	return &APIError{
		Code:     ErrCodeProfileInUse,
		Message:  fmt.Sprintf("プロファイル%dは既に使用されています（プラットフォーム: %s）", profileNumber, platformID),
		Category: CategoryConflict,
		Action:   "空いているプロファイル番号を選択してください。",
	}
}

// NewPasswordInvalidError はパスワードが短すぎる場合のエラーを生成する。
func NewPasswordInvalidError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordInvalid,
		Message:  fmt.Sprintf("パスワードは%d文字以上で設定してください。", minLength),
		Category: CategoryValidation,
		Action:   "より長いパスワードを入力してください。",
	}
}

// NewPasswordTooLongError はパスワードがハッシュ化できる長さを超える場合のエラーを生成する。
func NewPasswordTooLongError(maxBytes int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordInvalid,
		Message:  fmt.Sprintf("パスワードは%dバイト以内で設定してください。", maxBytes),
		Category: CategoryValidation,
		Action:   "より短いパスワードを入力してください。",
	}
}

// NewAlreadyConfiguredError はパスワードが設定済みの場合のエラーを生成する。
func NewAlreadyConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyConfigured,
		Message:  "パスワードは既に設定されています。",
		Category: CategoryConflict,
		Action:   "設定済みのパスワードでログインしてください。",
	}
}

// NewNotConfiguredError はパスワードが未設定の場合のエラーを生成する。
func NewNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  "パスワードが設定されていません。",
		Category: CategoryNotFound,
		Action:   "先にパスワードを設定してください。",
	}
}

// NewInvalidCredentialsError は認証に失敗した場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "認証に失敗しました。",
		Category: CategoryAuth,
		Action:   "パスワードを確認して再度ログインしてください。",
	}
}

// NewRateLimitExceededError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewServerError は内部エラーを利用者向けに表すエラーを生成する。
// 詳細はログのみに記録する。
func NewServerError() *APIError {
	return &APIError{
		Code:     ErrCodeServerError,
		Message:  "内部エラーが発生しました。",
		Category: CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	}
}
