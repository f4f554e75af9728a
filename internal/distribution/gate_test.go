package distribution

import (
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

var now = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func sub(tier models.Tier, sent int) *models.Subscription {
	return &models.Subscription{
		ChatID:           42,
		Tier:             tier,
		Active:           true,
		SignalsSentToday: sent,
		LastReset:        DayKey(now),
	}
}

func TestCanReceive(t *testing.T) {
	tables := config.DefaultTables()
	expired := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  *models.Subscription
		cat  models.Category
		want bool
	}{
		{"nil", nil, models.CategoryMajor, false},
		{"inactive", func() *models.Subscription { s := sub(models.TierVIP, 0); s.Active = false; return s }(), models.CategoryMajor, false},
		{"free major", sub(models.TierFree, 0), models.CategoryMajor, true},
		{"free defi", sub(models.TierFree, 0), models.CategoryDefi, false},
		{"free at cap", sub(models.TierFree, 5), models.CategoryMajor, false},
		{"free one below cap", sub(models.TierFree, 4), models.CategoryMajor, true},
		{"free cap from yesterday", func() *models.Subscription { s := sub(models.TierFree, 5); s.LastReset = "2024-05-09"; return s }(), models.CategoryMajor, true},
		{"free other", sub(models.TierFree, 0), models.CategoryOther, false},
		{"basic other", sub(models.TierBasic, 0), models.CategoryOther, true},
		{"basic other at cap", sub(models.TierBasic, 15), models.CategoryOther, false},
		{"basic meme", sub(models.TierBasic, 0), models.CategoryMeme, false},
		{"premium gaming", sub(models.TierPremium, 0), models.CategoryGamingNFT, true},
		{"vip unlimited", sub(models.TierVIP, 10_000), models.CategoryEmerging, true},
		{"expired vip falls back to free", func() *models.Subscription { s := sub(models.TierVIP, 0); s.ExpiresAt = &expired; return s }(), models.CategoryMeme, false},
		{"unknown tier", sub(models.Tier("GOLD"), 0), models.CategoryMajor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := CanReceive(tt.sub, tt.cat, tables, now)
			if got != tt.want {
				t.Errorf("CanReceive = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestCanReceiveAdminAlwaysAllowed(t *testing.T) {
	tables := config.DefaultTables()
	for _, tier := range append(models.Tiers, models.Tier("")) {
		for _, cat := range models.Categories {
			s := sub(tier, 1_000_000)
			s.IsAdmin = true
			if ok, reason := CanReceive(s, cat, tables, now); !ok {
				t.Errorf("admin %s/%s rejected: %s", tier, cat, reason)
			}
		}
	}
}

func TestOtherCategoryCutoffIsConfigurable(t *testing.T) {
	spec := config.DefaultTablesSpec()
	spec.Risk.OtherCategoryMinTier = "PREMIUM"
	tables, err := config.NewTables(spec, false)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}

	if ok, _ := CanReceive(sub(models.TierBasic, 0), models.CategoryOther, tables, now); ok {
		t.Error("BASIC should not receive other when cutoff is PREMIUM")
	}
	if ok, _ := CanReceive(sub(models.TierPremium, 0), models.CategoryOther, tables, now); !ok {
		t.Error("PREMIUM should receive other")
	}
}

func TestRecordSend(t *testing.T) {
	s := sub(models.TierFree, 3)
	s.LastReset = "2024-05-09"

	RecordSend(s, now)
	if s.SignalsSentToday != 1 || s.LastReset != "2024-05-10" {
		t.Errorf("after new-day send: count %d reset %s", s.SignalsSentToday, s.LastReset)
	}
	RecordSend(s, now.Add(time.Minute))
	if s.SignalsSentToday != 2 {
		t.Errorf("count = %d, want 2", s.SignalsSentToday)
	}
	if s.LastSignalAt == nil || !s.LastSignalAt.Equal(now.Add(time.Minute)) {
		t.Errorf("last signal at = %v", s.LastSignalAt)
	}

	admin := sub(models.TierFree, 0)
	admin.IsAdmin = true
	RecordSend(admin, now)
	if admin.SignalsSentToday != 0 {
		t.Errorf("admin count = %d, want 0", admin.SignalsSentToday)
	}
}
