// Package subscription は契約台帳を提供する。
//
// Ledgerはプラットフォームのプロファイル枠への顧客の割り当てを管理し、
// 枠の一意性とプラットフォームの存在を保証する。
package subscription

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"github.com/hitoshi/slotkeeper/internal/validation"
)

// PlatformReader は台帳が参照するプラットフォームの読み取り操作。*platform.Registry が満たす。
type PlatformReader interface {
	// Get は存在しない場合にplatform_not_foundを返す。
	Get(ctx context.Context, id string) (*model.Platform, error)
	List(ctx context.Context) ([]*model.Platform, error)
}

// Sanitizer は自由記述テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(text string) string
}

// Config はLedgerの挙動を切り替える設定。
type Config struct {
	// EnforceProfileCapacity がtrueの場合、プロファイル番号を 1..Profiles の範囲に制限する。
	// falseの場合は1以上であることのみ検査する。
	EnforceProfileCapacity bool
	// ExpiringSoonDays は期限切れ間近とみなす残日数。0以下の場合はDefaultExpiringSoonDays。
	ExpiringSoonDays int
	// Now は現在時刻を返す。nilの場合はtime.Now。
	Now func() time.Time
}

// ListFilter は契約一覧の絞り込み条件。空の項目は条件にしない。
type ListFilter struct {
	// Query はサービス名、アカウントのメールアドレス、顧客名に対する部分一致（大文字小文字を区別しない）。
	Query      string
	PlatformID string
}

// Ledger は契約のライフサイクルを管理するサービス層。
type Ledger struct {
	subRepo   repository.SubscriptionRepository
	platforms PlatformReader
	mu        sync.Locker
	sanitizer Sanitizer
	cfg       Config
}

// NewLedger はLedgerの新しいインスタンスを生成する。
// muはプラットフォーム登録簿と共有すること。nilの場合は専用のMutexを使う。
func NewLedger(
	subRepo repository.SubscriptionRepository,
	platforms PlatformReader,
	mu sync.Locker,
	sanitizer Sanitizer,
	cfg Config,
) *Ledger {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if cfg.ExpiringSoonDays <= 0 {
		cfg.ExpiringSoonDays = DefaultExpiringSoonDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		subRepo:   subRepo,
		platforms: platforms,
		mu:        mu,
		sanitizer: sanitizer,
		cfg:       cfg,
	}
}

// List は全契約を終了日順で返す。各契約には現在のプラットフォーム名と残日数を付与する。
func (l *Ledger) List(ctx context.Context) ([]model.SubscriptionView, error) {
	return l.Search(ctx, ListFilter{})
}

// Search は条件に一致する契約を終了日順で返す。
func (l *Ledger) Search(ctx context.Context, filter ListFilter) ([]model.SubscriptionView, error) {
	subs, err := l.subRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}
	names, err := l.platformNames(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(filter.Query)
	today := l.cfg.Now()
	views := make([]model.SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		if filter.PlatformID != "" && sub.PlatformID != filter.PlatformID {
			continue
		}
		if q != "" && !matchesQuery(sub, q) {
			continue
		}
		views = append(views, l.view(sub, names, today))
	}
	return views, nil
}

// Get は指定IDの契約を返す。存在しない場合はsubscription_not_foundを返す。
func (l *Ledger) Get(ctx context.Context, id int64) (*model.SubscriptionView, error) {
	sub, err := l.subRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("契約の取得に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, model.NewSubscriptionNotFoundError(strconv.FormatInt(id, 10))
	}
	names, err := l.platformNames(ctx)
	if err != nil {
		return nil, err
	}
	v := l.view(sub, names, l.cfg.Now())
	return &v, nil
}

// Create は契約を登録し、既存の最大ID+1（空の場合は1）を採番する。
//
// 検査順: 必須項目(missing_fields) → 日付形式(invalid_date) → プロファイル番号の下限(profile_out_of_range)
// → プラットフォームの存在(platform_not_found) → 枠の上限(profile_out_of_range) → 枠の重複(profile_in_use)。
func (l *Ledger) Create(ctx context.Context, in model.SubscriptionInput) (*model.Subscription, error) {
	in, err := l.checkInput(in)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkSlot(ctx, in, 0); err != nil {
		return nil, err
	}

	maxID, err := l.subRepo.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("契約IDの採番に失敗しました: %w", err)
	}

	sub := newSubscription(maxID+1, in)
	if err := l.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("契約の作成に失敗しました: %w", err)
	}
	return sub, nil
}

// Update は契約の全項目（プラットフォームを含む）を置き換える。
// 枠の重複検査は更新対象の契約自身を除外する。検査に失敗した場合は何も変更しない。
func (l *Ledger) Update(ctx context.Context, id int64, in model.SubscriptionInput) (*model.Subscription, error) {
	in, err := l.checkInput(in)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.subRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("契約の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewSubscriptionNotFoundError(strconv.FormatInt(id, 10))
	}

	if err := l.checkSlot(ctx, in, id); err != nil {
		return nil, err
	}

	sub := newSubscription(id, in)
	if err := l.subRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("契約の更新に失敗しました: %w", err)
	}
	return sub, nil
}

// Delete は指定IDの契約を削除する。
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	deleted, err := l.subRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("契約の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewSubscriptionNotFoundError(strconv.FormatInt(id, 10))
	}
	return nil
}

// DaysRemaining は現在の暦日から終了日までの日数を返す。
func (l *Ledger) DaysRemaining(endDate string) (int, error) {
	return DaysRemaining(endDate, l.cfg.Now())
}

// checkInput はロック不要な入力検査を行い、サニタイズ済みの入力を返す。
func (l *Ledger) checkInput(in model.SubscriptionInput) (model.SubscriptionInput, error) {
	if l.sanitizer != nil {
		in.Service = l.sanitizer.Sanitize(in.Service)
		in.ClientName = l.sanitizer.Sanitize(in.ClientName)
	}
	if err := validation.Struct(in); err != nil {
		return in, err
	}
	if _, err := ParseDate(in.StartDate); err != nil {
		return in, model.NewInvalidDateError("start_date", in.StartDate)
	}
	if _, err := ParseDate(in.EndDate); err != nil {
		return in, model.NewInvalidDateError("end_date", in.EndDate)
	}
	if in.ProfileNumber < 1 {
		return in, model.NewProfileOutOfRangeError(in.ProfileNumber, 0)
	}
	return in, nil
}

// checkSlot はプラットフォームの存在、枠の上限、枠の重複を検査する。呼び出し側でmuを保持すること。
func (l *Ledger) checkSlot(ctx context.Context, in model.SubscriptionInput, excludeID int64) error {
	p, err := l.platforms.Get(ctx, in.PlatformID)
	if err != nil {
		return err
	}

	if l.cfg.EnforceProfileCapacity && in.ProfileNumber > p.Profiles {
		return model.NewProfileOutOfRangeError(in.ProfileNumber, p.Profiles)
	}

	holder, err := l.subRepo.FindByPlatformAndProfile(ctx, in.PlatformID, in.ProfileNumber)
	if err != nil {
		return fmt.Errorf("プロファイル枠の確認に失敗しました: %w", err)
	}
	if holder != nil && holder.ID != excludeID {
		return model.NewProfileInUseError(in.PlatformID, in.ProfileNumber)
	}
	return nil
}

func (l *Ledger) platformNames(ctx context.Context) (map[string]string, error) {
	platforms, err := l.platforms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の取得に失敗しました: %w", err)
	}
	names := make(map[string]string, len(platforms))
	for _, p := range platforms {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (l *Ledger) view(sub *model.Subscription, names map[string]string, today time.Time) model.SubscriptionView {
	name, ok := names[sub.PlatformID]
	if !ok {
		name = model.UnknownPlatformName
	}
	v := model.SubscriptionView{Subscription: *sub, PlatformName: name}
	// 保存済みの日付は検証済みのため、解析に失敗するのはストアを直接編集した場合のみ
	if days, err := DaysRemaining(sub.EndDate, today); err == nil {
		v.DaysRemaining = days
		v.Status = Classify(days, l.cfg.ExpiringSoonDays)
	}
	return v
}

func newSubscription(id int64, in model.SubscriptionInput) *model.Subscription {
	return &model.Subscription{
		ID:              id,
		PlatformID:      in.PlatformID,
		Service:         in.Service,
		AccountEmail:    in.AccountEmail,
		AccountPassword: in.AccountPassword,
		ProfileNumber:   in.ProfileNumber,
		Pin:             in.Pin,
		ClientName:      in.ClientName,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
	}
}

func matchesQuery(sub *model.Subscription, lowerQuery string) bool {
	for _, field := range []string{sub.Service, sub.AccountEmail, sub.ClientName} {
		if strings.Contains(strings.ToLower(field), lowerQuery) {
			return true
		}
	}
	return false
}
