// Package platform は共有アカウント（プラットフォーム）の登録簿を提供する。
//
// Registryはプラットフォーム名の一意性を保証し、削除時には参照する契約を連鎖削除する。
package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"github.com/hitoshi/slotkeeper/internal/validation"
)

// Sanitizer は自由記述テキストからマークアップを除去する。
type Sanitizer interface {
	Sanitize(text string) string
}

// Config はRegistryの挙動を切り替える設定。
type Config struct {
	// EnforceUniqueNameOnUpdate がtrueの場合、更新時にも他プラットフォームとの名前重複を拒否する。
	EnforceUniqueNameOnUpdate bool
	// EnforceProfileCapacity がtrueの場合、使用中のプロファイル番号より少ない枠数への変更を拒否する。
	EnforceProfileCapacity bool
}

// Registry はプラットフォームのライフサイクルを管理するサービス層。
// 変更系の操作は検査から書き込みまでをmuの下で実行する。
// muは契約台帳とスナップショット取り込みと共有する。
type Registry struct {
	platformRepo repository.PlatformRepository
	subRepo      repository.SubscriptionRepository
	mu           sync.Locker
	sanitizer    Sanitizer
	cfg          Config
	newID        func() string
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
// muがnilの場合は専用のMutexを使い、sanitizerがnilの場合は入力をそのまま保存する。
func NewRegistry(
	platformRepo repository.PlatformRepository,
	subRepo repository.SubscriptionRepository,
	mu sync.Locker,
	sanitizer Sanitizer,
	cfg Config,
) *Registry {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Registry{
		platformRepo: platformRepo,
		subRepo:      subRepo,
		mu:           mu,
		sanitizer:    sanitizer,
		cfg:          cfg,
		newID:        func() string { return uuid.New().String() },
	}
}

// List は全プラットフォームを名前順で返す。
func (r *Registry) List(ctx context.Context) ([]*model.Platform, error) {
	platforms, err := r.platformRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の取得に失敗しました: %w", err)
	}
	return platforms, nil
}

// Search は名前またはメールアドレスに検索語を含むプラットフォームを返す。大文字小文字は区別しない。
// 検索語が空の場合はListと同じ結果を返す。
func (r *Registry) Search(ctx context.Context, query string) ([]*model.Platform, error) {
	platforms, err := r.List(ctx)
	if err != nil || query == "" {
		return platforms, err
	}

	q := strings.ToLower(query)
	matched := make([]*model.Platform, 0, len(platforms))
	for _, p := range platforms {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Email), q) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Get は指定IDのプラットフォームを返す。存在しない場合はplatform_not_foundを返す。
func (r *Registry) Get(ctx context.Context, id string) (*model.Platform, error) {
	p, err := r.platformRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プラットフォームの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPlatformNotFoundError(id)
	}
	return p, nil
}

// Create はプラットフォームを登録する。
// 必須項目の欠落はmissing_fields、同名のプラットフォームが存在する場合はplatform_existsを返す。
func (r *Registry) Create(ctx context.Context, in model.PlatformInput) (*model.Platform, error) {
	in = r.clean(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.platformRepo.FindByName(ctx, in.Name)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム名の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewPlatformExistsError(in.Name)
	}

	p := &model.Platform{
		ID:       r.newID(),
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Profiles: in.Profiles,
	}
	if err := r.platformRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プラットフォームの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Update はプラットフォームの名前、認証情報、プロファイル数を置き換える。IDは変わらない。
// 名前の重複検査はConfig.EnforceUniqueNameOnUpdateが有効な場合のみ行う。
// 既存契約の割り当て時点の認証情報は更新しない。
// Config.EnforceProfileCapacityが有効な場合、使用中の最大プロファイル番号未満への縮小はprofile_out_of_range。
func (r *Registry) Update(ctx context.Context, id string, in model.PlatformInput) (*model.Platform, error) {
	in = r.clean(in)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.cfg.EnforceUniqueNameOnUpdate && in.Name != p.Name {
		taken, err := r.nameTakenByOther(ctx, in.Name, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, model.NewPlatformExistsError(in.Name)
		}
	}

	if r.cfg.EnforceProfileCapacity && in.Profiles < p.Profiles {
		highest, err := r.highestUsedProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		if highest > in.Profiles {
			return nil, model.NewProfilesBelowUsageError(in.Profiles, highest)
		}
	}

	p.Name = in.Name
	p.Email = in.Email
	p.Password = in.Password
	p.Profiles = in.Profiles
	if err := r.platformRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("プラットフォームの更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete はプラットフォームと、それを参照する全契約を削除する。
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted, err := r.platformRepo.DeleteWithSubscriptions(ctx, id)
	if err != nil {
		return fmt.Errorf("プラットフォームの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewPlatformNotFoundError(id)
	}
	return nil
}

// AvailableProfiles は {1..Profiles} から使用中のプロファイル番号を除いた番号を昇順で返す。
// Usedはこのプラットフォームを参照する契約の件数。
func (r *Registry) AvailableProfiles(ctx context.Context, id string) (*model.ProfileAvailability, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	subs, err := r.subRepo.ListByPlatformID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}

	used := make(map[int]struct{}, len(subs))
	for _, sub := range subs {
		used[sub.ProfileNumber] = struct{}{}
	}

	available := make([]int, 0, p.Profiles)
	for n := 1; n <= p.Profiles; n++ {
		if _, ok := used[n]; !ok {
			available = append(available, n)
		}
	}

	return &model.ProfileAvailability{
		Available: available,
		Total:     p.Profiles,
		Used:      len(subs),
	}, nil
}

func (r *Registry) highestUsedProfile(ctx context.Context, id string) (int, error) {
	subs, err := r.subRepo.ListByPlatformID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}
	highest := 0
	for _, sub := range subs {
		highest = max(highest, sub.ProfileNumber)
	}
	return highest, nil
}

func (r *Registry) nameTakenByOther(ctx context.Context, name, id string) (bool, error) {
	platforms, err := r.platformRepo.List(ctx)
	if err != nil {
		return false, fmt.Errorf("プラットフォーム名の確認に失敗しました: %w", err)
	}
	for _, other := range platforms {
		if other.ID != id && other.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) clean(in model.PlatformInput) model.PlatformInput {
	if r.sanitizer != nil {
		in.Name = r.sanitizer.Sanitize(in.Name)
	}
	return in
}
