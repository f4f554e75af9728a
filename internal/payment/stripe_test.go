package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/database"
	"github.com/Alias1177/SignalBot/models"
)

const testSecret = "whsec_test"

func newTestService() *Service {
	s := NewService(config.StripeConfig{
		WebhookSecret:  testSecret,
		SuccessURL:     "https://t.me/bot?start=paid",
		CancelURL:      "https://t.me/bot",
		BasicPriceID:   "price_basic",
		PremiumPriceID: "price_premium",
	})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func newStore(t *testing.T) *database.FileStore {
	t.Helper()
	store, err := database.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func event(t *testing.T, typ string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": typ,
		"data": map[string]any{"object": object},
	})
	if err != nil {
		t.Fatal(err)
	}
	var e stripe.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatal(err)
	}
	return e
}

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCreateCheckout(t *testing.T) {
	s := newTestService()
	var got *stripe.CheckoutSessionParams
	s.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil
	}

	url, err := s.CreateCheckout(42, models.TierPremium)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if url != "https://checkout.stripe.com/cs_1" {
		t.Errorf("url = %q", url)
	}
	if *got.LineItems[0].Price != "price_premium" {
		t.Errorf("price = %q", *got.LineItems[0].Price)
	}
	if got.Metadata["chat_id"] != "42" || got.Metadata["tier"] != "PREMIUM" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.SubscriptionData.Metadata["chat_id"] != "42" {
		t.Errorf("subscription metadata = %v", got.SubscriptionData.Metadata)
	}

	if _, err := s.CreateCheckout(42, models.TierVIP); !errors.Is(err, ErrNoPrice) {
		t.Errorf("VIP without price: err = %v, want ErrNoPrice", err)
	}
}

func TestChange(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name    string
		event   stripe.Event
		want    TierChange
		wantErr bool
		ignored bool
	}{
		{
			name: "checkout completed",
			event: event(t, EventCheckoutCompleted, map[string]any{
				"id":           "cs_1",
				"customer":     "cus_1",
				"subscription": "sub_1",
				"metadata":     map[string]string{"chat_id": "42", "tier": "BASIC"},
			}),
			want: TierChange{ChatID: 42, Tier: models.TierBasic, CustomerID: "cus_1", SubscriptionID: "sub_1", EventID: "evt_1"},
		},
		{
			name: "checkout without chat",
			event: event(t, EventCheckoutCompleted, map[string]any{
				"id":       "cs_1",
				"metadata": map[string]string{"tier": "BASIC"},
			}),
			wantErr: true,
		},
		{
			name: "checkout for free tier",
			event: event(t, EventCheckoutCompleted, map[string]any{
				"id":       "cs_1",
				"metadata": map[string]string{"chat_id": "42", "tier": "FREE"},
			}),
			wantErr: true,
		},
		{
			name: "subscription deleted",
			event: event(t, EventSubscriptionDeleted, map[string]any{
				"id":       "sub_1",
				"metadata": map[string]string{"chat_id": "42"},
			}),
			want: TierChange{ChatID: 42, Tier: models.TierFree, SubscriptionID: "sub_1", EventID: "evt_1"},
		},
		{
			name:    "unrelated event",
			event:   event(t, "invoice.paid", map[string]any{"id": "in_1"}),
			wantErr: true,
			ignored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Change(tt.event)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if errors.Is(err, ErrIgnoredEvent) != tt.ignored {
					t.Errorf("ignored = %v, want %v (%v)", !tt.ignored, tt.ignored, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Change: %v", err)
			}
			if *got != tt.want {
				t.Errorf("Change = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	s := newTestService()
	store := newStore(t)
	ctx := context.Background()

	sub, err := s.Apply(ctx, store, &TierChange{ChatID: 7, Tier: models.TierVIP, SubscriptionID: "sub_7", CustomerID: "cus_7"})
	if err != nil {
		t.Fatalf("Apply upgrade: %v", err)
	}
	if sub.Tier != models.TierVIP || !sub.Active || sub.ExpiresAt == nil {
		t.Fatalf("upgraded subscription = %+v", sub)
	}
	if want := s.now().Add(PaidPeriod); !sub.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", sub.ExpiresAt, want)
	}

	// deletion events may arrive without metadata
	if _, err := s.Apply(ctx, store, &TierChange{Tier: models.TierFree, SubscriptionID: "sub_7"}); err != nil {
		t.Fatalf("Apply downgrade: %v", err)
	}
	stored, err := store.GetSubscription(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Tier != models.TierFree || stored.ExpiresAt != nil || stored.StripeSubscriptionID != "" {
		t.Errorf("downgraded subscription = %+v", stored)
	}
	if stored.StripeCustomerID != "cus_7" {
		t.Errorf("customer id lost: %q", stored.StripeCustomerID)
	}

	if _, err := s.Apply(ctx, store, &TierChange{Tier: models.TierFree, SubscriptionID: "sub_unknown"}); err == nil {
		t.Error("expected error for unknown subscription")
	}
}

func TestWebhookHandler(t *testing.T) {
	s := newTestService()
	store := newStore(t)

	var notified []int64
	handler := s.WebhookHandler(store, func(sub *models.Subscription) {
		notified = append(notified, sub.ChatID)
	})

	payload, _ := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        EventCheckoutCompleted,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "cs_1",
				"object":   "checkout.session",
				"metadata": map[string]string{"chat_id": "99", "tier": "PREMIUM"},
			},
		},
	})

	tests := []struct {
		name      string
		method    string
		signature string
		want      int
	}{
		{name: "wrong method", method: http.MethodGet, signature: sign(payload, testSecret), want: http.StatusMethodNotAllowed},
		{name: "missing signature", method: http.MethodPost, want: http.StatusBadRequest},
		{name: "bad signature", method: http.MethodPost, signature: sign(payload, "whsec_other"), want: http.StatusBadRequest},
		{name: "valid", method: http.MethodPost, signature: sign(payload, testSecret), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/webhook", strings.NewReader(string(payload)))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	sub, err := store.GetSubscription(context.Background(), 99)
	if err != nil {
		t.Fatalf("subscription not created: %v", err)
	}
	if sub.Tier != models.TierPremium {
		t.Errorf("tier = %s, want PREMIUM", sub.Tier)
	}
	if len(notified) != 1 || notified[0] != 99 {
		t.Errorf("notified = %v", notified)
	}
}
