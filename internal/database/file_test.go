package database

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

func sampleSubscription() *models.Subscription {
	last := time.Date(2024, 5, 10, 14, 30, 15, 123456789, time.UTC)
	expires := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	return &models.Subscription{
		ChatID:               -100123,
		Username:             "trader",
		Tier:                 models.TierPremium,
		Active:               true,
		SignalsSentToday:     7,
		LastSignalAt:         &last,
		LastReset:            "2024-05-10",
		SubscribedAt:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ExpiresAt:            &expires,
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_456",
	}
}

func sampleTracking() *models.TPTracking {
	tp1 := time.Date(2024, 5, 10, 16, 0, 0, 0, time.UTC)
	return &models.TPTracking{
		ID:           "trk-1",
		SignalID:     "sig-1",
		Symbol:       "ETHUSDT",
		SignalType:   models.Sell,
		EntryPrice:   3000,
		TakeProfit1:  2900,
		TakeProfit2:  2800,
		StopLoss:     3050,
		Confidence:   81.5,
		StartedAt:    time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		TP1Reached:   true,
		TP1At:        &tp1,
		MaxProfitPct: 3.4,
		MaxLossPct:   0.5,
		Active:       true,
		Result:       models.TPPending,
	}
}

func newClockedStore(t *testing.T, dir string) *FileStore {
	t.Helper()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	clock := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newClockedStore(t, dir)

	sub := sampleSubscription()
	track := sampleTracking()
	if err := s.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}
	if err := s.SaveTracking(ctx, track); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}

	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	gotSub, err := reloaded.GetSubscription(ctx, sub.ChatID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !reflect.DeepEqual(gotSub, sub) {
		t.Errorf("subscription round trip:\n got %+v\nwant %+v", gotSub, sub)
	}

	tracks, err := reloaded.ListTrackings(ctx, true)
	if err != nil {
		t.Fatalf("ListTrackings: %v", err)
	}
	if len(tracks) != 1 || !reflect.DeepEqual(tracks[0], track) {
		t.Errorf("tracking round trip:\n got %+v\nwant %+v", tracks, track)
	}
}

func TestFileStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore(t, t.TempDir())

	sub := sampleSubscription()
	if err := s.SaveSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	sub.SignalsSentToday = 99
	*sub.LastSignalAt = time.Time{}

	got, _ := s.GetSubscription(ctx, sub.ChatID)
	if got.SignalsSentToday != 7 || got.LastSignalAt.IsZero() {
		t.Errorf("store shares memory with caller: %+v", got)
	}
}

func TestFileStoreDeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore(t, t.TempDir())

	if _, err := s.GetSubscription(ctx, 1); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("get missing: %v", err)
	}
	if err := s.DeleteSubscription(ctx, 1); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("delete missing: %v", err)
	}

	if err := s.SaveSubscription(ctx, &models.Subscription{ChatID: 1, Tier: models.TierFree, Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSubscription(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ := s.ListSubscriptions(ctx)
	if len(subs) != 0 {
		t.Errorf("subs after delete = %d", len(subs))
	}
}

func TestFileStoreBackupRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newClockedStore(t, dir)

	for i := 0; i < 9; i++ {
		sub := &models.Subscription{ChatID: int64(i), Tier: models.TierFree, Active: true}
		if err := s.SaveSubscription(ctx, sub); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	backups, err := Backups(dir, subscriptionsFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != KeepBackups {
		t.Errorf("backups = %d, want %d", len(backups), KeepBackups)
	}

	track, _ := Backups(dir, trackingFile)
	if len(track) != 0 {
		t.Errorf("tracking backups = %d, want 0", len(track))
	}
}

func TestListTrackingsActiveOnly(t *testing.T) {
	ctx := context.Background()
	s := newClockedStore(t, t.TempDir())

	active := sampleTracking()
	closed := sampleTracking()
	closed.ID = "trk-2"
	closed.Active = false
	closed.Result = models.TPHitSL
	closed.StartedAt = active.StartedAt.Add(-time.Hour)

	for _, tr := range []*models.TPTracking{active, closed} {
		if err := s.SaveTracking(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.ListTrackings(ctx, false)
	if len(all) != 2 || all[0].ID != "trk-2" {
		t.Errorf("all trackings not sorted by start: %v", all)
	}
	onlyActive, _ := s.ListTrackings(ctx, true)
	if len(onlyActive) != 1 || onlyActive[0].ID != "trk-1" {
		t.Errorf("active trackings = %v", onlyActive)
	}
}
