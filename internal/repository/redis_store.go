package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisのハッシュに JSON を格納するStore実装。
//
// キー構成（prefixは REDIS_KEY_PREFIX）:
//
//	{prefix}platforms               HASH  platform id → JSON
//	{prefix}subscriptions           HASH  subscription id → JSON
//	{prefix}security:password_hash  STRING
//
// 複数キーにまたがる書き込みは WATCH + MULTI/EXEC で実行する。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) platformsKey() string     { return s.prefix + "platforms" }
func (s *RedisStore) subscriptionsKey() string { return s.prefix + "subscriptions" }
func (s *RedisStore) passwordKey() string      { return s.prefix + "security:password_hash" }

// Platforms はプラットフォームリポジトリを返す。
func (s *RedisStore) Platforms() PlatformRepository { return &redisPlatformRepo{s: s} }

// Subscriptions は契約リポジトリを返す。
func (s *RedisStore) Subscriptions() SubscriptionRepository { return &redisSubscriptionRepo{s: s} }

// Security はセキュリティ設定リポジトリを返す。
func (s *RedisStore) Security() SecurityRepository { return &redisSecurityRepo{s: s} }

// ReplaceAll はプラットフォームと契約のハッシュをMULTI/EXECで置き換える。
func (s *RedisStore) ReplaceAll(ctx context.Context, platforms []*model.Platform, subs []*model.Subscription) error {
	platformValues := make(map[string]interface{}, len(platforms))
	for _, p := range platforms {
		data, err := json.Marshal(toPlatformRecord(p))
		if err != nil {
			return fmt.Errorf("failed to encode platform %s: %w", p.ID, err)
		}
		platformValues[p.ID] = data
	}
	subValues := make(map[string]interface{}, len(subs))
	for _, sub := range subs {
		data, err := json.Marshal(toSubscriptionRecord(sub))
		if err != nil {
			return fmt.Errorf("failed to encode subscription %d: %w", sub.ID, err)
		}
		subValues[strconv.FormatInt(sub.ID, 10)] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.platformsKey(), s.subscriptionsKey())
		if len(platformValues) > 0 {
			pipe.HSet(ctx, s.platformsKey(), platformValues)
		}
		if len(subValues) > 0 {
			pipe.HSet(ctx, s.subscriptionsKey(), subValues)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace data: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// platformRecord / subscriptionRecord はRedisに格納するJSON表現。
type platformRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Profiles int    `json:"profiles"`
}

type subscriptionRecord struct {
	ID              int64  `json:"id"`
	PlatformID      string `json:"platform_id"`
	Service         string `json:"service"`
	AccountEmail    string `json:"account_email"`
	AccountPassword string `json:"account_password"`
	ProfileNumber   int    `json:"profile_number"`
	Pin             string `json:"pin"`
	ClientName      string `json:"client_name"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

func toPlatformRecord(p *model.Platform) platformRecord {
	return platformRecord{ID: p.ID, Name: p.Name, Email: p.Email, Password: p.Password, Profiles: p.Profiles}
}

func (r platformRecord) toModel() *model.Platform {
	return &model.Platform{ID: r.ID, Name: r.Name, Email: r.Email, Password: r.Password, Profiles: r.Profiles}
}

func toSubscriptionRecord(sub *model.Subscription) subscriptionRecord {
	return subscriptionRecord{
		ID: sub.ID, PlatformID: sub.PlatformID, Service: sub.Service, AccountEmail: sub.AccountEmail,
		AccountPassword: sub.AccountPassword, ProfileNumber: sub.ProfileNumber, Pin: sub.Pin,
		ClientName: sub.ClientName, StartDate: sub.StartDate, EndDate: sub.EndDate,
	}
}

func (r subscriptionRecord) toModel() *model.Subscription {
	return &model.Subscription{
		ID: r.ID, PlatformID: r.PlatformID, Service: r.Service, AccountEmail: r.AccountEmail,
		AccountPassword: r.AccountPassword, ProfileNumber: r.ProfileNumber, Pin: r.Pin,
		ClientName: r.ClientName, StartDate: r.StartDate, EndDate: r.EndDate,
	}
}

func decodePlatforms(values []string) ([]*model.Platform, error) {
	platforms := make([]*model.Platform, 0, len(values))
	for _, v := range values {
		var rec platformRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode platform: %w", err)
		}
		platforms = append(platforms, rec.toModel())
	}
	return platforms, nil
}

func decodeSubscriptions(values []string) ([]*model.Subscription, error) {
	subs := make([]*model.Subscription, 0, len(values))
	for _, v := range values {
		var rec subscriptionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, rec.toModel())
	}
	return subs, nil
}

type redisPlatformRepo struct {
	s *RedisStore
}

func (r *redisPlatformRepo) List(ctx context.Context) ([]*model.Platform, error) {
	values, err := r.s.client.HVals(ctx, r.s.platformsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム一覧の取得に失敗しました: %w", err)
	}
	platforms, err := decodePlatforms(values)
	if err != nil {
		return nil, err
	}
	sortPlatforms(platforms)
	return platforms, nil
}

func (r *redisPlatformRepo) FindByID(ctx context.Context, id string) (*model.Platform, error) {
	value, err := r.s.client.HGet(ctx, r.s.platformsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プラットフォームの取得に失敗しました: %w", err)
	}
	platforms, err := decodePlatforms([]string{value})
	if err != nil {
		return nil, err
	}
	return platforms[0], nil
}

func (r *redisPlatformRepo) FindByName(ctx context.Context, name string) (*model.Platform, error) {
	platforms, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range platforms {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (r *redisPlatformRepo) Create(ctx context.Context, platform *model.Platform) error {
	return r.save(ctx, platform)
}

func (r *redisPlatformRepo) Update(ctx context.Context, platform *model.Platform) error {
	return r.save(ctx, platform)
}

func (r *redisPlatformRepo) save(ctx context.Context, platform *model.Platform) error {
	data, err := json.Marshal(toPlatformRecord(platform))
	if err != nil {
		return fmt.Errorf("failed to encode platform: %w", err)
	}
	if err := r.s.client.HSet(ctx, r.s.platformsKey(), platform.ID, data).Err(); err != nil {
		return fmt.Errorf("プラットフォームの保存に失敗しました: %w", err)
	}
	return nil
}

func (r *redisPlatformRepo) DeleteWithSubscriptions(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.s.platformsKey(), id).Result()
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		values, err := tx.HVals(ctx, r.s.subscriptionsKey()).Result()
		if err != nil {
			return err
		}
		subs, err := decodeSubscriptions(values)
		if err != nil {
			return err
		}
		var fields []string
		for _, sub := range subs {
			if sub.PlatformID == id {
				fields = append(fields, strconv.FormatInt(sub.ID, 10))
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, r.s.platformsKey(), id)
			if len(fields) > 0 {
				pipe.HDel(ctx, r.s.subscriptionsKey(), fields...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		deleted = true
		return nil
	}, r.s.platformsKey(), r.s.subscriptionsKey())
	if err != nil {
		return false, fmt.Errorf("プラットフォームの削除に失敗しました: %w", err)
	}
	return deleted, nil
}

type redisSubscriptionRepo struct {
	s *RedisStore
}

// hashValuesReader は *redis.Client と WATCH中の *redis.Tx の共通部分。
type hashValuesReader interface {
	HVals(ctx context.Context, key string) *redis.StringSliceCmd
}

func (r *redisSubscriptionRepo) all(ctx context.Context, c hashValuesReader) ([]*model.Subscription, error) {
	values, err := c.HVals(ctx, r.s.subscriptionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("契約一覧の取得に失敗しました: %w", err)
	}
	return decodeSubscriptions(values)
}

func (r *redisSubscriptionRepo) List(ctx context.Context) ([]*model.Subscription, error) {
	subs, err := r.all(ctx, r.s.client)
	if err != nil {
		return nil, err
	}
	sortSubscriptions(subs)
	return subs, nil
}

func (r *redisSubscriptionRepo) FindByID(ctx context.Context, id int64) (*model.Subscription, error) {
	value, err := r.s.client.HGet(ctx, r.s.subscriptionsKey(), strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("契約の取得に失敗しました: %w", err)
	}
	subs, err := decodeSubscriptions([]string{value})
	if err != nil {
		return nil, err
	}
	return subs[0], nil
}

func (r *redisSubscriptionRepo) FindByPlatformAndProfile(ctx context.Context, platformID string, profileNumber int) (*model.Subscription, error) {
	subs, err := r.all(ctx, r.s.client)
	if err != nil {
		return nil, err
	}
	return findSlot(subs, platformID, profileNumber, 0), nil
}

func (r *redisSubscriptionRepo) ListByPlatformID(ctx context.Context, platformID string) ([]*model.Subscription, error) {
	subs, err := r.all(ctx, r.s.client)
	if err != nil {
		return nil, err
	}
	var matched []*model.Subscription
	for _, sub := range subs {
		if sub.PlatformID == platformID {
			matched = append(matched, sub)
		}
	}
	sortSubscriptionsByProfile(matched)
	return matched, nil
}

func (r *redisSubscriptionRepo) MaxID(ctx context.Context) (int64, error) {
	keys, err := r.s.client.HKeys(ctx, r.s.subscriptionsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("最大契約IDの取得に失敗しました: %w", err)
	}
	var maxID int64
	for _, k := range keys {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid subscription key %q: %w", k, err)
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

func (r *redisSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	return r.save(ctx, sub)
}

func (r *redisSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	return r.save(ctx, sub)
}

// save はプロファイル枠の重複をWATCH下で確認してから書き込む。
func (r *redisSubscriptionRepo) save(ctx context.Context, sub *model.Subscription) error {
	data, err := json.Marshal(toSubscriptionRecord(sub))
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	var conflict error
	err = r.s.client.Watch(ctx, func(tx *redis.Tx) error {
		subs, err := r.all(ctx, tx)
		if err != nil {
			return err
		}
		if findSlot(subs, sub.PlatformID, sub.ProfileNumber, sub.ID) != nil {
			conflict = model.NewProfileInUseError(sub.PlatformID, sub.ProfileNumber)
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.s.subscriptionsKey(), strconv.FormatInt(sub.ID, 10), data)
			return nil
		})
		return err
	}, r.s.subscriptionsKey())
	if err != nil {
		return fmt.Errorf("契約の保存に失敗しました: %w", err)
	}
	return conflict
}

func (r *redisSubscriptionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.s.client.HDel(ctx, r.s.subscriptionsKey(), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("契約の削除に失敗しました: %w", err)
	}
	return n > 0, nil
}

func findSlot(subs []*model.Subscription, platformID string, profileNumber int, excludeID int64) *model.Subscription {
	for _, sub := range subs {
		if sub.ID != excludeID && sub.PlatformID == platformID && sub.ProfileNumber == profileNumber {
			return sub
		}
	}
	return nil
}

type redisSecurityRepo struct {
	s *RedisStore
}

func (r *redisSecurityRepo) GetPasswordHash(ctx context.Context) (string, error) {
	hash, err := r.s.client.Get(ctx, r.s.passwordKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("パスワードハッシュの取得に失敗しました: %w", err)
	}
	return hash, nil
}

func (r *redisSecurityRepo) SetPasswordHashIfAbsent(ctx context.Context, hash string) (bool, error) {
	ok, err := r.s.client.SetNX(ctx, r.s.passwordKey(), hash, 0).Result()
	if err != nil {
		return false, fmt.Errorf("パスワードハッシュの保存に失敗しました: %w", err)
	}
	return ok, nil
}
