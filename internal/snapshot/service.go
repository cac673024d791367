package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"github.com/hitoshi/slotkeeper/internal/subscription"
	"github.com/hitoshi/slotkeeper/internal/validation"
)

// Sanitizer は自由記述テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(text string) string
}

// Config はインポート時の検査を切り替える設定。
type Config struct {
	// EnforceProfileCapacity がtrueの場合、プロファイル番号を 1..Profiles の範囲に制限する。
	EnforceProfileCapacity bool
}

// Service はスナップショットのエクスポートとインポートを行う。
// インポートは登録簿・台帳と同じロックの下で全件を置き換える。
type Service struct {
	store     repository.Store
	mu        sync.Locker
	sanitizer Sanitizer
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// NewService はServiceを生成する。
func NewService(store repository.Store, mu sync.Locker, sanitizer Sanitizer, cfg Config) *Service {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Service{
		store:     store,
		mu:        mu,
		sanitizer: sanitizer,
		cfg:       cfg,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Export は全プラットフォーム（名前順）と全契約（終了日順）を返す。
func (s *Service) Export(ctx context.Context) (*Document, error) {
	platforms, err := s.store.Platforms().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の取得に失敗しました: %w", err)
	}
	subs, err := s.store.Subscriptions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}

	doc := &Document{
		Platforms:     make([]PlatformRecord, 0, len(platforms)),
		Subscriptions: make([]SubscriptionRecord, 0, len(subs)),
		Timestamp:     s.now().UTC(),
	}
	for _, p := range platforms {
		doc.Platforms = append(doc.Platforms, platformRecord(p))
	}
	for _, sub := range subs {
		doc.Subscriptions = append(doc.Subscriptions, subscriptionRecord(sub))
	}
	return doc, nil
}

// Import はドキュメント全体を検査し、問題がなければ既存データを原子的に置き換える。
// 検査に失敗した場合は何も変更しない。管理パスワードは置き換えの対象外。
//
// IDが空のプラットフォームには新しいIDを振る。IDが0以下または重複する契約には、
// ドキュメント内の最大ID以降の番号を順に振る。
func (s *Service) Import(ctx context.Context, doc *Document) (*Result, error) {
	list, err := s.buildPlatforms(doc.Platforms)
	if err != nil {
		return nil, err
	}
	platforms := make(map[string]*model.Platform, len(list))
	for _, p := range list {
		platforms[p.ID] = p
	}
	subs, err := s.buildSubscriptions(doc.Subscriptions, platforms)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ReplaceAll(ctx, list, subs); err != nil {
		return nil, fmt.Errorf("データの置き換えに失敗しました: %w", err)
	}
	return &Result{Platforms: len(list), Subscriptions: len(subs)}, nil
}

func (s *Service) buildPlatforms(records []PlatformRecord) ([]*model.Platform, error) {
	platforms := make([]*model.Platform, 0, len(records))
	ids := make(map[string]struct{}, len(records))
	names := make(map[string]struct{}, len(records))

	for _, rec := range records {
		in := model.PlatformInput{Name: rec.Name, Email: rec.Email, Password: rec.Password, Profiles: int(rec.Profiles)}
		if s.sanitizer != nil {
			in.Name = s.sanitizer.Sanitize(in.Name)
		}
		if err := validation.Struct(in); err != nil {
			return nil, err
		}
		if _, dup := names[in.Name]; dup {
			return nil, model.NewPlatformExistsError(in.Name)
		}
		names[in.Name] = struct{}{}

		id := rec.ID
		if id == "" {
			id = s.newID()
		}
		if _, dup := ids[id]; dup {
			return nil, model.NewPlatformExistsError(in.Name)
		}
		ids[id] = struct{}{}
		platforms = append(platforms, &model.Platform{ID: id, Name: in.Name, Email: in.Email, Password: in.Password, Profiles: in.Profiles})
	}
	return platforms, nil
}

func (s *Service) buildSubscriptions(records []SubscriptionRecord, platforms map[string]*model.Platform) ([]*model.Subscription, error) {
	var maxID int64
	for _, rec := range records {
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}

	subs := make([]*model.Subscription, 0, len(records))
	ids := make(map[int64]struct{}, len(records))
	slots := make(map[string]struct{}, len(records))

	for _, rec := range records {
		in := rec.input()
		if s.sanitizer != nil {
			in.Service = s.sanitizer.Sanitize(in.Service)
			in.ClientName = s.sanitizer.Sanitize(in.ClientName)
		}
		if err := validation.Struct(in); err != nil {
			return nil, err
		}
		if _, err := subscription.ParseDate(in.StartDate); err != nil {
			return nil, model.NewInvalidDateError("start_date", in.StartDate)
		}
		if _, err := subscription.ParseDate(in.EndDate); err != nil {
			return nil, model.NewInvalidDateError("end_date", in.EndDate)
		}
		if in.ProfileNumber < 1 {
			return nil, model.NewProfileOutOfRangeError(in.ProfileNumber, 0)
		}

		p, ok := platforms[in.PlatformID]
		if !ok {
			return nil, model.NewPlatformNotFoundError(in.PlatformID)
		}
		if s.cfg.EnforceProfileCapacity && in.ProfileNumber > p.Profiles {
			return nil, model.NewProfileOutOfRangeError(in.ProfileNumber, p.Profiles)
		}

		slot := in.PlatformID + "\x00" + strconv.Itoa(in.ProfileNumber)
		if _, dup := slots[slot]; dup {
			return nil, model.NewProfileInUseError(in.PlatformID, in.ProfileNumber)
		}
		slots[slot] = struct{}{}

		id := rec.ID
		if _, dup := ids[id]; dup || id <= 0 {
			maxID++
			id = maxID
		}
		ids[id] = struct{}{}

		subs = append(subs, &model.Subscription{
			ID: id, PlatformID: in.PlatformID, Service: in.Service, AccountEmail: in.AccountEmail,
			AccountPassword: in.AccountPassword, ProfileNumber: in.ProfileNumber, Pin: in.Pin,
			ClientName: in.ClientName, StartDate: in.StartDate, EndDate: in.EndDate,
		})
	}
	return subs, nil
}
