package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

var (
	// ErrNoPrice is returned for tiers without a configured Stripe price
	ErrNoPrice = errors.New("no stripe price for tier")
	// ErrIgnoredEvent marks webhook events that do not change a subscription
	ErrIgnoredEvent = errors.New("event ignored")
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"

	metaChatID = "chat_id"
	metaTier   = "tier"
)

// PaidPeriod is how long a tier purchased through checkout stays valid
// before the next invoice renews it.
const PaidPeriod = 31 * 24 * time.Hour

// TierChange is what a webhook event asks us to do with a chat
type TierChange struct {
	ChatID         int64
	Tier           models.Tier
	CustomerID     string
	SubscriptionID string
	EventID        string
}

// Service handles Stripe checkout and webhook events
type Service struct {
	prices        map[models.Tier]string
	webhookSecret string
	successURL    string
	cancelURL     string

	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	cancel     func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	now        func() time.Time
	logger     zerolog.Logger
}

// NewService creates a Stripe service from the payment config
func NewService(cfg config.StripeConfig) *Service {
	stripe.Key = cfg.SecretKey

	return &Service{
		prices: map[models.Tier]string{
			models.TierBasic:   cfg.BasicPriceID,
			models.TierPremium: cfg.PremiumPriceID,
			models.TierVIP:     cfg.VIPPriceID,
		},
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		newSession:    session.New,
		cancel:        subscription.Cancel,
		now:           time.Now,
		logger:        log.With().Str("component", "payment").Logger(),
	}
}

// PriceID returns the Stripe price of a paid tier
func (s *Service) PriceID(tier models.Tier) (string, error) {
	id := s.prices[tier]
	if id == "" {
		return "", fmt.Errorf("%w %s", ErrNoPrice, tier)
	}
	return id, nil
}

// CreateCheckout opens a subscription checkout for chatID and returns its URL
func (s *Service) CreateCheckout(chatID int64, tier models.Tier) (string, error) {
	price, err := s.PriceID(tier)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{
		metaChatID: strconv.FormatInt(chatID, 10),
		metaTier:   string(tier),
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		// copied onto the subscription so the deletion event can be traced back
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	sess, err := s.newSession(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	s.logger.Info().Int64("chat_id", chatID).Str("tier", string(tier)).Str("session", sess.ID).Msg("Checkout session created")
	return sess.URL, nil
}

// CancelSubscription cancels a Stripe subscription immediately
func (s *Service) CancelSubscription(id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.cancel(id, &stripe.SubscriptionCancelParams{}); err != nil {
		return fmt.Errorf("cancelling subscription %s: %w", id, err)
	}
	return nil
}

// VerifyEvent checks the Stripe-Signature header and decodes the event
func (s *Service) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verifying webhook signature: %w", err)
	}
	return event, nil
}

// Change maps an event to a tier change, or ErrIgnoredEvent
func (s *Service) Change(event stripe.Event) (*TierChange, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("parsing checkout session: %w", err)
		}
		chatID, err := chatIDFrom(sess.Metadata)
		if err != nil {
			return nil, err
		}
		tier := models.Tier(sess.Metadata[metaTier])
		if tier.Rank() <= models.TierFree.Rank() {
			return nil, fmt.Errorf("invalid tier %q in session metadata", tier)
		}
		change := &TierChange{ChatID: chatID, Tier: tier, EventID: event.ID}
		if sess.Customer != nil {
			change.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			change.SubscriptionID = sess.Subscription.ID
		}
		return change, nil

	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parsing subscription: %w", err)
		}
		change := &TierChange{Tier: models.TierFree, SubscriptionID: sub.ID, EventID: event.ID}
		if id, err := chatIDFrom(sub.Metadata); err == nil {
			change.ChatID = id
		}
		if sub.Customer != nil {
			change.CustomerID = sub.Customer.ID
		}
		return change, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
}

// Apply writes a tier change to the store. Deletions without chat metadata
// are matched by Stripe subscription id.
func (s *Service) Apply(ctx context.Context, store models.SubscriptionStore, change *TierChange) (*models.Subscription, error) {
	sub, err := s.find(ctx, store, change)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub.Tier = change.Tier
	if change.Tier == models.TierFree {
		sub.ExpiresAt = nil
		sub.StripeSubscriptionID = ""
	} else {
		expires := now.Add(PaidPeriod)
		sub.ExpiresAt = &expires
		sub.Active = true
		if change.SubscriptionID != "" {
			sub.StripeSubscriptionID = change.SubscriptionID
		}
	}
	if change.CustomerID != "" {
		sub.StripeCustomerID = change.CustomerID
	}

	if err := store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving subscription %d: %w", sub.ChatID, err)
	}

	s.logger.Info().Int64("chat_id", sub.ChatID).Str("tier", string(sub.Tier)).Str("event", change.EventID).Msg("Subscription tier updated")
	return sub, nil
}

func (s *Service) find(ctx context.Context, store models.SubscriptionStore, change *TierChange) (*models.Subscription, error) {
	if change.ChatID != 0 {
		sub, err := store.GetSubscription(ctx, change.ChatID)
		if err == nil {
			return sub, nil
		}
		if change.Tier == models.TierFree {
			return nil, err
		}
		// paid before ever sending /start
		return &models.Subscription{
			ChatID:       change.ChatID,
			Active:       true,
			SubscribedAt: s.now().UTC(),
		}, nil
	}

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, sub := range subs {
		if change.SubscriptionID != "" && sub.StripeSubscriptionID == change.SubscriptionID {
			return sub, nil
		}
	}
	return nil, fmt.Errorf("no chat for stripe subscription %q", change.SubscriptionID)
}

func chatIDFrom(meta map[string]string) (int64, error) {
	raw, ok := meta[metaChatID]
	if !ok {
		return 0, fmt.Errorf("chat_id not found in metadata")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat_id %q: %w", raw, err)
	}
	return id, nil
}
