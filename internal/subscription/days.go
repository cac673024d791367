package subscription

import (
	"fmt"
	"time"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// DateLayout は契約の開始日・終了日の形式。
const DateLayout = "2006-01-02"

// DefaultExpiringSoonDays は期限切れ間近とみなす残日数の既定値。
const DefaultExpiringSoonDays = 3

const secondsPerDay = 24 * 60 * 60

// ParseDate はYYYY-MM-DD形式の日付をUTCの0時として解釈する。
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// DaysRemaining は today の暦日から endDate までの日数を返す。
// 終了日当日は0、期限切れは負の値になる。todayの時刻部分とタイムゾーンは暦日の決定にのみ使う。
func DaysRemaining(endDate string, today time.Time) (int, error) {
	end, err := ParseDate(endDate)
	if err != nil {
		return 0, err
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return civilDay(end) - civilDay(start), nil
}

// civilDay はUTC 0時の時刻を1970-01-01からの通算日数に変換する。
// time.Durationは約292年で飽和するため、Unix秒で数える。
func civilDay(t time.Time) int {
	return int(t.Unix() / secondsPerDay)
}

// Classify は残日数から表示状態を決める。
// 0未満はexpired、0からsoonDaysまではexpiring_soon、それ以外はactive。
func Classify(daysRemaining, soonDays int) model.SubscriptionStatus {
	switch {
	case daysRemaining < 0:
		return model.SubscriptionStatusExpired
	case daysRemaining <= soonDays:
		return model.SubscriptionStatusExpiringSoon
	default:
		return model.SubscriptionStatusActive
	}
}
