package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// MemoryStore はプロセス内メモリに保持するStore実装。
// 再起動でデータは失われる。開発用およびテスト用。
type MemoryStore struct {
	mu            sync.RWMutex
	platforms     map[string]model.Platform
	subscriptions map[int64]model.Subscription
	passwordHash  string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		platforms:     make(map[string]model.Platform),
		subscriptions: make(map[int64]model.Subscription),
	}
}

var _ Store = (*MemoryStore)(nil)

// Platforms はプラットフォームリポジトリを返す。
func (s *MemoryStore) Platforms() PlatformRepository { return &memoryPlatformRepo{s: s} }

// Subscriptions は契約リポジトリを返す。
func (s *MemoryStore) Subscriptions() SubscriptionRepository { return &memorySubscriptionRepo{s: s} }

// Security はセキュリティ設定リポジトリを返す。
func (s *MemoryStore) Security() SecurityRepository { return &memorySecurityRepo{s: s} }

// ReplaceAll は全プラットフォームと全契約を置き換える。
func (s *MemoryStore) ReplaceAll(_ context.Context, platforms []*model.Platform, subs []*model.Subscription) error {
	nextPlatforms := make(map[string]model.Platform, len(platforms))
	for _, p := range platforms {
		nextPlatforms[p.ID] = *p
	}
	nextSubs := make(map[int64]model.Subscription, len(subs))
	for _, sub := range subs {
		nextSubs[sub.ID] = *sub
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.platforms = nextPlatforms
	s.subscriptions = nextSubs
	return nil
}

// Ping は常に成功する。
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close は何もしない。
func (s *MemoryStore) Close() error { return nil }

type memoryPlatformRepo struct {
	s *MemoryStore
}

func (r *memoryPlatformRepo) List(context.Context) ([]*model.Platform, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	platforms := make([]*model.Platform, 0, len(r.s.platforms))
	for _, p := range r.s.platforms {
		p := p
		platforms = append(platforms, &p)
	}
	sortPlatforms(platforms)
	return platforms, nil
}

func (r *memoryPlatformRepo) FindByID(_ context.Context, id string) (*model.Platform, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.platforms[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryPlatformRepo) FindByName(_ context.Context, name string) (*model.Platform, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.platforms {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memoryPlatformRepo) Create(_ context.Context, platform *model.Platform) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.platforms[platform.ID]; exists {
		return fmt.Errorf("platform %s already exists", platform.ID)
	}
	r.s.platforms[platform.ID] = *platform
	return nil
}

func (r *memoryPlatformRepo) Update(_ context.Context, platform *model.Platform) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.platforms[platform.ID]; !exists {
		return fmt.Errorf("platform %s not found", platform.ID)
	}
	r.s.platforms[platform.ID] = *platform
	return nil
}

func (r *memoryPlatformRepo) DeleteWithSubscriptions(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.platforms[id]; !exists {
		return false, nil
	}
	delete(r.s.platforms, id)
	for subID, sub := range r.s.subscriptions {
		if sub.PlatformID == id {
			delete(r.s.subscriptions, subID)
		}
	}
	return true, nil
}

type memorySubscriptionRepo struct {
	s *MemoryStore
}

func (r *memorySubscriptionRepo) List(context.Context) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	subs := make([]*model.Subscription, 0, len(r.s.subscriptions))
	for _, sub := range r.s.subscriptions {
		sub := sub
		subs = append(subs, &sub)
	}
	sortSubscriptions(subs)
	return subs, nil
}

func (r *memorySubscriptionRepo) FindByID(_ context.Context, id int64) (*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *memorySubscriptionRepo) FindByPlatformAndProfile(_ context.Context, platformID string, profileNumber int) (*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if sub := r.findSlotLocked(platformID, profileNumber, 0); sub != nil {
		return sub, nil
	}
	return nil, nil
}

func (r *memorySubscriptionRepo) ListByPlatformID(_ context.Context, platformID string) ([]*model.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var subs []*model.Subscription
	for _, sub := range r.s.subscriptions {
		sub := sub
		if sub.PlatformID == platformID {
			subs = append(subs, &sub)
		}
	}
	sortSubscriptionsByProfile(subs)
	return subs, nil
}

func (r *memorySubscriptionRepo) MaxID(context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var maxID int64
	for id := range r.s.subscriptions {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

func (r *memorySubscriptionRepo) Create(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.subscriptions[sub.ID]; exists {
		return fmt.Errorf("subscription %d already exists", sub.ID)
	}
	if r.findSlotLocked(sub.PlatformID, sub.ProfileNumber, 0) != nil {
		return model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
	}
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *memorySubscriptionRepo) Update(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.subscriptions[sub.ID]; !exists {
		return fmt.Errorf("subscription %d not found", sub.ID)
	}
	if r.findSlotLocked(sub.PlatformID, sub.ProfileNumber, sub.ID) != nil {
		return model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
	}
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *memorySubscriptionRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.subscriptions[id]; !exists {
		return false, nil
	}
	delete(r.s.subscriptions, id)
	return true, nil
}

// findSlotLocked はexcludeID以外でプロファイル枠を使用中の契約を探す。呼び出し側でロックを保持すること。
func (r *memorySubscriptionRepo) findSlotLocked(platformID string, profileNumber int, excludeID int64) *model.Subscription {
	for _, sub := range r.s.subscriptions {
		if sub.ID != excludeID && sub.PlatformID == platformID && sub.ProfileNumber == profileNumber {
			return &sub
		}
	}
	return nil
}

type memorySecurityRepo struct {
	s *MemoryStore
}

func (r *memorySecurityRepo) GetPasswordHash(context.Context) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.passwordHash, nil
}

func (r *memorySecurityRepo) SetPasswordHashIfAbsent(_ context.Context, hash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.passwordHash != "" {
		return false, nil
	}
	r.s.passwordHash = hash
	return true, nil
}
