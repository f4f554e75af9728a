package distribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
	"github.com/redis/go-redis/v9"
)

type memStore struct {
	mu   sync.Mutex
	subs map[int64]*models.Subscription
}

func newMemStore(subs ...*models.Subscription) *memStore {
	m := &memStore{subs: make(map[int64]*models.Subscription)}
	for _, s := range subs {
		m.subs[s.ChatID] = s
	}
	return m
}

func (m *memStore) GetSubscription(_ context.Context, id int64) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SaveSubscription(_ context.Context, s *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ChatID] = &cp
	return nil
}

func (m *memStore) DeleteSubscription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	return nil
}

func (m *memStore) ListSubscriptions(_ context.Context) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

type recorder struct {
	sent map[int64][]string
	fail map[int64]bool
}

func (r *recorder) Send(_ context.Context, chatID int64, text string) error {
	if r.fail[chatID] {
		return errors.New("blocked by user")
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

type plainFormatter struct{}

func (plainFormatter) Format(sig *models.TradingSignal, tier models.Tier, admin bool) []string {
	return []string{fmt.Sprintf("%s %s %s admin=%v", sig.SignalType, sig.Symbol, tier, admin)}
}

func newSub(id int64, tier models.Tier) *models.Subscription {
	return &models.Subscription{ChatID: id, Tier: tier, Active: true, LastReset: DayKey(now)}
}

func TestDispatch(t *testing.T) {
	store := newMemStore(
		newSub(1, models.TierFree),
		newSub(2, models.TierVIP),
		func() *models.Subscription { s := newSub(3, models.TierFree); s.Active = false; return s }(),
		newSub(4, models.TierPremium),
		newSub(5, models.TierFree),
	)
	rec := &recorder{sent: map[int64][]string{}, fail: map[int64]bool{4: true}}
	d := NewDispatcher(store, rec, NewMemoryCooldown(), plainFormatter{}, config.DefaultTables(), []int64{5})
	d.now = func() time.Time { return now }

	sig := &models.TradingSignal{Symbol: "BTCUSDT", SignalType: models.Buy, Category: models.CategoryMajor}
	report, err := d.Dispatch(context.Background(), sig)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Sent != 3 || report.Skipped != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := rec.sent[5]; len(got) != 1 || got[0] != "BUY BTCUSDT FREE admin=true" {
		t.Errorf("admin message = %v", got)
	}

	s1, _ := store.GetSubscription(context.Background(), 1)
	if s1.SignalsSentToday != 1 || s1.LastSignalAt == nil {
		t.Errorf("chat 1 counters = %+v", s1)
	}
	s4, _ := store.GetSubscription(context.Background(), 4)
	if s4.SignalsSentToday != 0 {
		t.Errorf("failed delivery counted: %+v", s4)
	}

	// same signal again inside every tier's cooldown
	report, err = d.Dispatch(context.Background(), sig)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Sent != 1 || report.Reasons["cooldown"] != 2 {
		t.Errorf("second report = %+v", report)
	}

	// the VIP cooldown (10m) has passed, FREE (90m) has not
	d.now = func() time.Time { return now.Add(15 * time.Minute) }
	report, _ = d.Dispatch(context.Background(), sig)
	if report.Sent != 2 || len(rec.sent[2]) != 2 {
		t.Errorf("third report = %+v, vip messages %d", report, len(rec.sent[2]))
	}

	// opposite direction is a different key
	sell := *sig
	sell.SignalType = models.Sell
	report, _ = d.Dispatch(context.Background(), &sell)
	if report.Sent != 3 {
		t.Errorf("sell report = %+v", report)
	}
}

func TestDispatchAdminHasNoCooldown(t *testing.T) {
	tests := []struct {
		name     string
		stored   bool
		adminIDs []int64
	}{
		{name: "admin from config", adminIDs: []int64{7}},
		{name: "admin in store", stored: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSub(7, models.TierFree)
			sub.IsAdmin = tt.stored
			store := newMemStore(sub)
			rec := &recorder{sent: map[int64][]string{}}
			cooldowns := NewMemoryCooldown()
			d := NewDispatcher(store, rec, cooldowns, plainFormatter{}, config.DefaultTables(), tt.adminIDs)
			d.now = func() time.Time { return now }

			sig := &models.TradingSignal{Symbol: "BTCUSDT", SignalType: models.Buy, Category: models.CategoryMajor}
			for i := 0; i < 2; i++ {
				report, err := d.Dispatch(context.Background(), sig)
				if err != nil {
					t.Fatalf("Dispatch: %v", err)
				}
				if report.Sent != 1 || report.Skipped != 0 {
					t.Fatalf("dispatch %d: report = %+v", i+1, report)
				}
			}
			if got := rec.sent[7]; len(got) != 2 || got[1] != "BUY BTCUSDT FREE admin=true" {
				t.Errorf("admin messages = %v", got)
			}
			if _, ok, _ := cooldowns.Last(context.Background(), CooldownKey("BTCUSDT", models.Buy, 7)); ok {
				t.Error("admin send stored a cooldown")
			}

			saved, _ := store.GetSubscription(context.Background(), 7)
			if saved.IsAdmin != tt.stored {
				t.Errorf("stored admin flag = %v, want %v", saved.IsAdmin, tt.stored)
			}
			if saved.SignalsSentToday != 0 || saved.LastSignalAt == nil {
				t.Errorf("admin counters = %+v", saved)
			}
		})
	}
}

func TestDispatchStopsAtDailyCap(t *testing.T) {
	free := newSub(1, models.TierFree)
	free.SignalsSentToday = 4
	store := newMemStore(free)
	rec := &recorder{sent: map[int64][]string{}}
	d := NewDispatcher(store, rec, NewMemoryCooldown(), plainFormatter{}, config.DefaultTables(), nil)
	d.now = func() time.Time { return now }

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	for _, symbol := range symbols {
		if _, err := d.Dispatch(context.Background(), &models.TradingSignal{Symbol: symbol, SignalType: models.Buy, Category: models.CategoryMajor}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if len(rec.sent[1]) != 1 {
		t.Errorf("free chat received %d signals, want 1", len(rec.sent[1]))
	}
}

func TestMemoryCooldown(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCooldown()
	key := CooldownKey("ETHUSDT", models.Sell, 7)
	if key != "ETHUSDT_SELL_7" {
		t.Errorf("key = %s", key)
	}

	cooling, err := InCooldown(ctx, m, key, time.Hour, now)
	if err != nil || cooling {
		t.Fatalf("fresh key cooling=%v err=%v", cooling, err)
	}
	if err := m.Mark(ctx, key, now, time.Hour); err != nil {
		t.Fatal(err)
	}
	if cooling, _ := InCooldown(ctx, m, key, time.Hour, now.Add(59*time.Minute)); !cooling {
		t.Error("expected cooldown after 59m")
	}
	if cooling, _ := InCooldown(ctx, m, key, time.Hour, now.Add(61*time.Minute)); cooling {
		t.Error("cooldown should have passed after 61m")
	}
	if cooling, _ := InCooldown(ctx, m, key, 0, now); cooling {
		t.Error("zero window never cools")
	}
}

func TestRedisCooldown(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	r := NewRedisCooldown(client)
	key := CooldownKey("TESTUSDT", models.Buy, time.Now().UnixNano())
	if _, ok, err := r.Last(ctx, key); err != nil || ok {
		t.Fatalf("fresh key ok=%v err=%v", ok, err)
	}
	at := time.UnixMilli(now.UnixMilli())
	if err := r.Mark(ctx, key, at, time.Minute); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	got, ok, err := r.Last(ctx, key)
	if err != nil || !ok || !got.Equal(at) {
		t.Errorf("Last = %v %v %v, want %v", got, ok, err, at)
	}
}
