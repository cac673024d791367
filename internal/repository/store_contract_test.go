package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/slotkeeper/internal/database"
	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/redis/go-redis/v9"
)

// 各Store実装に同じ振る舞いを要求する契約テスト。

func newMemoryTestStore(t *testing.T) Store {
	t.Helper()
	return NewMemoryStore()
}

func newSQLiteTestStore(t *testing.T) Store {
	t.Helper()

	db, driver, err := database.Open("sqlite://:memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.RunMigrations(db, driver); err != nil {
		db.Close()
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	store := NewSQLStore(db, driver)
	t.Cleanup(func() { store.Close() })
	return store
}

func newRedisTestStore(t *testing.T) Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:")
	t.Cleanup(func() { store.Close() })
	return store
}

var storeFactories = map[string]func(t *testing.T) Store{
	"memory": newMemoryTestStore,
	"sqlite": newSQLiteTestStore,
	"redis":  newRedisTestStore,
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func seedPlatform(t *testing.T, store Store, id, name string, profiles int) *model.Platform {
	t.Helper()
	p := &model.Platform{ID: id, Name: name, Email: name + "@example.com", Password: "pw", Profiles: profiles}
	if err := store.Platforms().Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create platform %s: %v", id, err)
	}
	return p
}

func seedSubscription(t *testing.T, store Store, id int64, platformID string, profile int, endDate string) *model.Subscription {
	t.Helper()
	sub := &model.Subscription{
		ID:              id,
		PlatformID:      platformID,
		Service:         "SERVICE",
		AccountEmail:    "acc@example.com",
		AccountPassword: "pw",
		ProfileNumber:   profile,
		ClientName:      "client",
		StartDate:       "2024-01-01",
		EndDate:         endDate,
	}
	if err := store.Subscriptions().Create(context.Background(), sub); err != nil {
		t.Fatalf("failed to create subscription %d: %v", id, err)
	}
	return sub
}

func TestStore_PlatformCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		repo := store.Platforms()

		seedPlatform(t, store, "p-2", "NETFLIX", 5)
		seedPlatform(t, store, "p-1", "DISNEY", 4)

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 || list[0].Name != "DISNEY" || list[1].Name != "NETFLIX" {
			t.Fatalf("List should be ordered by name, got %+v", list)
		}

		got, err := repo.FindByID(ctx, "p-2")
		if err != nil || got == nil {
			t.Fatalf("FindByID failed: %v %v", got, err)
		}
		if got.Email != "NETFLIX@example.com" || got.Profiles != 5 {
			t.Errorf("unexpected platform: %+v", got)
		}

		missing, err := repo.FindByID(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("FindByID(unknown) = %v, %v; want nil, nil", missing, err)
		}

		byName, err := repo.FindByName(ctx, "DISNEY")
		if err != nil || byName == nil || byName.ID != "p-1" {
			t.Errorf("FindByName = %v, %v", byName, err)
		}
		caseMismatch, err := repo.FindByName(ctx, "disney")
		if err != nil || caseMismatch != nil {
			t.Errorf("FindByName should be case-sensitive, got %v, %v", caseMismatch, err)
		}

		got.Name = "NETFLIX PREMIUM"
		got.Profiles = 6
		if err := repo.Update(ctx, got); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		updated, _ := repo.FindByID(ctx, "p-2")
		if updated.Name != "NETFLIX PREMIUM" || updated.Profiles != 6 {
			t.Errorf("Update not persisted: %+v", updated)
		}
	})
}

func TestStore_DeleteWithSubscriptions_Cascades(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		seedPlatform(t, store, "p-1", "NETFLIX", 5)
		seedPlatform(t, store, "p-2", "DISNEY", 4)
		seedSubscription(t, store, 1, "p-1", 1, "2024-02-01")
		seedSubscription(t, store, 2, "p-1", 2, "2024-02-02")
		seedSubscription(t, store, 3, "p-2", 1, "2024-02-03")

		deleted, err := store.Platforms().DeleteWithSubscriptions(ctx, "p-1")
		if err != nil || !deleted {
			t.Fatalf("DeleteWithSubscriptions = %v, %v", deleted, err)
		}

		subs, err := store.Subscriptions().List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(subs) != 1 || subs[0].ID != 3 {
			t.Fatalf("only the other platform's subscription should remain, got %+v", subs)
		}

		again, err := store.Platforms().DeleteWithSubscriptions(ctx, "p-1")
		if err != nil || again {
			t.Errorf("second delete = %v, %v; want false, nil", again, err)
		}
	})
}

func TestStore_SubscriptionCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		repo := store.Subscriptions()

		maxID, err := repo.MaxID(ctx)
		if err != nil || maxID != 0 {
			t.Fatalf("MaxID on empty store = %d, %v", maxID, err)
		}

		seedPlatform(t, store, "p-1", "NETFLIX", 5)
		seedSubscription(t, store, 1, "p-1", 3, "2024-03-01")
		seedSubscription(t, store, 2, "p-1", 1, "2024-01-15")
		seedSubscription(t, store, 5, "p-1", 2, "2024-01-15")

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		wantOrder := []int64{2, 5, 1}
		for i, id := range wantOrder {
			if list[i].ID != id {
				t.Fatalf("List order = %v, want end_date then id %v", ids(list), wantOrder)
			}
		}

		byPlatform, err := repo.ListByPlatformID(ctx, "p-1")
		if err != nil {
			t.Fatalf("ListByPlatformID failed: %v", err)
		}
		for i, want := range []int{1, 2, 3} {
			if byPlatform[i].ProfileNumber != want {
				t.Fatalf("ListByPlatformID should be ordered by profile number, got %+v", byPlatform)
			}
		}

		maxID, err = repo.MaxID(ctx)
		if err != nil || maxID != 5 {
			t.Errorf("MaxID = %d, %v; want 5", maxID, err)
		}

		slot, err := repo.FindByPlatformAndProfile(ctx, "p-1", 3)
		if err != nil || slot == nil || slot.ID != 1 {
			t.Errorf("FindByPlatformAndProfile = %v, %v", slot, err)
		}
		free, err := repo.FindByPlatformAndProfile(ctx, "p-1", 4)
		if err != nil || free != nil {
			t.Errorf("free slot lookup = %v, %v; want nil, nil", free, err)
		}

		sub, _ := repo.FindByID(ctx, 1)
		sub.ProfileNumber = 4
		sub.Pin = "1234"
		if err := repo.Update(ctx, sub); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		reloaded, _ := repo.FindByID(ctx, 1)
		if reloaded.ProfileNumber != 4 || reloaded.Pin != "1234" {
			t.Errorf("Update not persisted: %+v", reloaded)
		}

		ok, err := repo.Delete(ctx, 2)
		if err != nil || !ok {
			t.Fatalf("Delete = %v, %v", ok, err)
		}
		ok, err = repo.Delete(ctx, 2)
		if err != nil || ok {
			t.Errorf("Delete(missing) = %v, %v; want false, nil", ok, err)
		}
		gone, err := repo.FindByID(ctx, 2)
		if err != nil || gone != nil {
			t.Errorf("FindByID after delete = %v, %v", gone, err)
		}
	})
}

func TestStore_SlotUniquenessBackstop(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		repo := store.Subscriptions()

		seedPlatform(t, store, "p-1", "NETFLIX", 5)
		seedSubscription(t, store, 1, "p-1", 2, "2024-02-01")
		other := seedSubscription(t, store, 2, "p-1", 3, "2024-02-01")

		dup := *other
		dup.ID = 3
		dup.ProfileNumber = 2
		if err := repo.Create(ctx, &dup); !model.IsCode(err, model.ErrCodeProfileInUse) {
			t.Errorf("Create on taken slot: got %v, want profile_in_use", err)
		}

		other.ProfileNumber = 2
		if err := repo.Update(ctx, other); !model.IsCode(err, model.ErrCodeProfileInUse) {
			t.Errorf("Update onto taken slot: got %v, want profile_in_use", err)
		}

		// 自分自身の枠への更新は衝突しない
		self, _ := repo.FindByID(ctx, 1)
		self.ClientName = "renamed"
		if err := repo.Update(ctx, self); err != nil {
			t.Errorf("Update keeping own slot failed: %v", err)
		}
	})
}

func TestStore_ReplaceAll(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		seedPlatform(t, store, "old", "OLD", 1)
		seedSubscription(t, store, 9, "old", 1, "2024-01-01")
		if _, err := store.Security().SetPasswordHashIfAbsent(ctx, "hash"); err != nil {
			t.Fatalf("SetPasswordHashIfAbsent failed: %v", err)
		}

		platforms := []*model.Platform{{ID: "new", Name: "NEW", Email: "n@example.com", Password: "pw", Profiles: 2}}
		subs := []*model.Subscription{{
			ID: 1, PlatformID: "new", Service: "NEW", AccountEmail: "n@example.com", AccountPassword: "pw",
			ProfileNumber: 2, ClientName: "c", StartDate: "2024-01-01", EndDate: "2024-02-01",
		}}
		if err := store.ReplaceAll(ctx, platforms, subs); err != nil {
			t.Fatalf("ReplaceAll failed: %v", err)
		}

		gotPlatforms, _ := store.Platforms().List(ctx)
		if len(gotPlatforms) != 1 || gotPlatforms[0].ID != "new" {
			t.Errorf("platforms after replace = %+v", gotPlatforms)
		}
		gotSubs, _ := store.Subscriptions().List(ctx)
		if len(gotSubs) != 1 || gotSubs[0].ID != 1 || gotSubs[0].ProfileNumber != 2 {
			t.Errorf("subscriptions after replace = %+v", gotSubs)
		}
		hash, _ := store.Security().GetPasswordHash(ctx)
		if hash != "hash" {
			t.Errorf("ReplaceAll should keep the password hash, got %q", hash)
		}

		if err := store.ReplaceAll(ctx, nil, nil); err != nil {
			t.Fatalf("ReplaceAll(empty) failed: %v", err)
		}
		empty, _ := store.Platforms().List(ctx)
		if len(empty) != 0 {
			t.Errorf("platforms should be empty, got %+v", empty)
		}
	})
}

func TestStore_SecuritySetIfAbsent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		repo := store.Security()

		hash, err := repo.GetPasswordHash(ctx)
		if err != nil || hash != "" {
			t.Fatalf("GetPasswordHash on fresh store = %q, %v", hash, err)
		}

		ok, err := repo.SetPasswordHashIfAbsent(ctx, "first")
		if err != nil || !ok {
			t.Fatalf("first set = %v, %v", ok, err)
		}
		ok, err = repo.SetPasswordHashIfAbsent(ctx, "second")
		if err != nil || ok {
			t.Fatalf("second set = %v, %v; want false, nil", ok, err)
		}

		hash, _ = repo.GetPasswordHash(ctx)
		if hash != "first" {
			t.Errorf("hash = %q, want first", hash)
		}
	})
}

func TestStore_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func ids(subs []*model.Subscription) []int64 {
	out := make([]int64, len(subs))
	for i, s := range subs {
		out[i] = s.ID
	}
	return out
}
