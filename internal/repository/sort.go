package repository

import (
	"cmp"
	"slices"

	"github.com/hitoshi/slotkeeper/internal/model"
)

// SQLバックエンドのORDER BYと同じ順序をメモリ上で再現する。

func sortPlatforms(platforms []*model.Platform) {
	slices.SortFunc(platforms, func(a, b *model.Platform) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortSubscriptions(subs []*model.Subscription) {
	slices.SortFunc(subs, func(a, b *model.Subscription) int {
		if c := cmp.Compare(a.EndDate, b.EndDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortSubscriptionsByProfile(subs []*model.Subscription) {
	slices.SortFunc(subs, func(a, b *model.Subscription) int {
		return cmp.Compare(a.ProfileNumber, b.ProfileNumber)
	})
}
