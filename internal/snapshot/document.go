// Package snapshot はプラットフォームと契約の全件エクスポート・インポートを提供する。
package snapshot

import (
	"time"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// Document は全データのスナップショット。JSONとYAMLで同じ構造を使う。
type Document struct {
	Platforms     []PlatformRecord     `json:"platforms" yaml:"platforms"`
	Subscriptions []SubscriptionRecord `json:"subscriptions" yaml:"subscriptions"`
	Timestamp     time.Time            `json:"timestamp" yaml:"timestamp"`
}

// PlatformRecord はスナップショット内のプラットフォーム。
type PlatformRecord struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Email    string        `json:"email" yaml:"email"`
	Password string        `json:"password" yaml:"password"`
	Profiles model.FlexInt `json:"profiles" yaml:"profiles"`
}

// SubscriptionRecord はスナップショット内の契約。profilesとprofile_numberは数値文字列も受け付ける。
type SubscriptionRecord struct {
	ID              int64         `json:"id" yaml:"id"`
	PlatformID      string        `json:"platform_id" yaml:"platform_id"`
	Service         string        `json:"service" yaml:"service"`
	AccountEmail    string        `json:"account_email" yaml:"account_email"`
	AccountPassword string        `json:"account_password" yaml:"account_password"`
	ProfileNumber   model.FlexInt `json:"profile_number" yaml:"profile_number"`
	Pin             string        `json:"pin" yaml:"pin"`
	ClientName      string        `json:"client_name" yaml:"client_name"`
	StartDate       string        `json:"start_date" yaml:"start_date"`
	EndDate         string        `json:"end_date" yaml:"end_date"`
}

// Result はインポートした件数。
type Result struct {
	Platforms     int
	Subscriptions int
}

func platformRecord(p *model.Platform) PlatformRecord {
	return PlatformRecord{ID: p.ID, Name: p.Name, Email: p.Email, Password: p.Password, Profiles: model.FlexInt(p.Profiles)}
}

func subscriptionRecord(s *model.Subscription) SubscriptionRecord {
	return SubscriptionRecord{
		ID: s.ID, PlatformID: s.PlatformID, Service: s.Service, AccountEmail: s.AccountEmail,
		AccountPassword: s.AccountPassword, ProfileNumber: model.FlexInt(s.ProfileNumber), Pin: s.Pin,
		ClientName: s.ClientName, StartDate: s.StartDate, EndDate: s.EndDate,
	}
}

func (r SubscriptionRecord) input() model.SubscriptionInput {
	return model.SubscriptionInput{
		PlatformID: r.PlatformID, Service: r.Service, AccountEmail: r.AccountEmail,
		AccountPassword: r.AccountPassword, ProfileNumber: int(r.ProfileNumber), Pin: r.Pin,
		ClientName: r.ClientName, StartDate: r.StartDate, EndDate: r.EndDate,
	}
}
