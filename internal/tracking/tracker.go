package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAge is how long a signal is followed before it expires
const DefaultMaxAge = 72 * time.Hour

// PriceSource supplies last prices
type PriceSource interface {
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
}

// Tracker follows emitted signals until a target, the stop or expiry
type Tracker struct {
	store  models.TrackingStore
	prices PriceSource
	maxAge time.Duration
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewTracker creates a tracker; a zero maxAge uses DefaultMaxAge
func NewTracker(store models.TrackingStore, prices PriceSource, maxAge time.Duration) *Tracker {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Tracker{
		store:  store,
		prices: prices,
		maxAge: maxAge,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log.With().Str("component", "tp_tracker").Logger(),
	}
}

// Start begins tracking an emitted signal
func (t *Tracker) Start(ctx context.Context, sig *models.TradingSignal) (*models.TPTracking, error) {
	started := sig.Timestamp
	if started.IsZero() {
		started = t.now()
	}
	tr := &models.TPTracking{
		ID:          t.newID(),
		SignalID:    sig.ID,
		Symbol:      sig.Symbol,
		SignalType:  sig.SignalType,
		EntryPrice:  sig.EntryPrice,
		TakeProfit1: sig.TakeProfit1,
		TakeProfit2: sig.TakeProfit2,
		StopLoss:    sig.StopLoss,
		Confidence:  sig.Confidence,
		StartedAt:   started.UTC(),
		Active:      true,
		Result:      models.TPPending,
	}
	if err := t.store.SaveTracking(ctx, tr); err != nil {
		return nil, fmt.Errorf("saving tracking: %w", err)
	}

	t.logger.Info().
		Str("id", tr.ID).
		Str("symbol", tr.Symbol).
		Str("type", string(tr.SignalType)).
		Float64("entry", tr.EntryPrice).
		Msg("Tracking started")
	return tr, nil
}

// Check updates every active tracking with the current price and returns
// the trackings that closed in this pass
func (t *Tracker) Check(ctx context.Context) ([]*models.TPTracking, error) {
	active, err := t.store.ListTrackings(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("listing trackings: %w", err)
	}

	prices := make(map[string]float64)
	var closed []*models.TPTracking
	for _, tr := range active {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		now := t.now()

		changed := Expire(tr, now, t.maxAge)
		if !changed {
			price, ok := prices[tr.Symbol]
			if !ok {
				ticker, err := t.prices.GetTicker(ctx, tr.Symbol)
				if err != nil || ticker.LastPrice <= 0 {
					t.logger.Debug().Err(err).Str("symbol", tr.Symbol).Msg("No price, skipping")
					continue
				}
				price = ticker.LastPrice
				prices[tr.Symbol] = price
			}
			changed = Apply(tr, price, now)
		}
		if !changed {
			continue
		}

		if err := t.store.SaveTracking(ctx, tr); err != nil {
			t.logger.Error().Err(err).Str("id", tr.ID).Msg("Saving tracking failed")
			continue
		}
		if !tr.Active {
			closed = append(closed, tr)
			t.logger.Info().
				Str("id", tr.ID).
				Str("symbol", tr.Symbol).
				Str("result", string(tr.Result)).
				Str("after", FormatDuration(tr.ClosedAt.Sub(tr.StartedAt))).
				Msg("Tracking closed")
		}
	}
	return closed, nil
}

// Run calls Check every interval until ctx is done; onClose sees every closed tracking
func (t *Tracker) Run(ctx context.Context, interval time.Duration, onClose func(*models.TPTracking)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := t.Check(ctx)
			if err != nil && ctx.Err() == nil {
				t.logger.Error().Err(err).Msg("Tracking check failed")
			}
			if onClose != nil {
				for _, tr := range closed {
					onClose(tr)
				}
			}
		}
	}
}

// Stats summarises every stored tracking
func (t *Tracker) Stats(ctx context.Context) (models.TPStats, error) {
	all, err := t.store.ListTrackings(ctx, false)
	if err != nil {
		return models.TPStats{}, fmt.Errorf("listing trackings: %w", err)
	}
	return ComputeStats(all), nil
}

// Expire closes a tracking older than maxAge. It reports whether tr changed.
func Expire(tr *models.TPTracking, now time.Time, maxAge time.Duration) bool {
	if !tr.Active || now.Sub(tr.StartedAt) <= maxAge {
		return false
	}
	tr.Active = false
	if tr.TP1Reached {
		tr.Result = models.TPHitTP1
	} else {
		tr.Result = models.TPExpired
	}
	at := now.UTC()
	tr.ClosedAt = &at
	return true
}

// Apply records first touches of the stop and the targets at price.
// It reports whether tr changed.
func Apply(tr *models.TPTracking, price float64, now time.Time) bool {
	if !tr.Active || tr.EntryPrice <= 0 {
		return false
	}
	at := now.UTC()
	changed := false

	move := (price - tr.EntryPrice) / tr.EntryPrice * 100
	if tr.SignalType == models.Sell {
		move = -move
	}
	if move > tr.MaxProfitPct {
		tr.MaxProfitPct = move
		changed = true
	}
	if -move > tr.MaxLossPct {
		tr.MaxLossPct = -move
		changed = true
	}

	if !tr.SLReached && crossed(tr.SignalType, price, tr.StopLoss, false) {
		tr.SLReached = true
		tr.SLAt = &at
		tr.Result = models.TPHitSL
		finish(tr, at)
		return true
	}

	if !tr.TP1Reached && crossed(tr.SignalType, price, tr.TakeProfit1, true) {
		tr.TP1Reached = true
		tr.TP1At = &at
		tr.Result = models.TPHitTP1
		changed = true
	}

	if tr.TP1Reached && tr.TakeProfit2 > 0 && !tr.TP2Reached && crossed(tr.SignalType, price, tr.TakeProfit2, true) {
		tr.TP2Reached = true
		tr.TP2At = &at
		tr.Result = models.TPHitTP2
		finish(tr, at)
		return true
	}

	if tr.TP1Reached && tr.TakeProfit2 <= 0 {
		finish(tr, at)
		return true
	}
	return changed
}

// crossed reports whether price reached level in the profit direction
// (profit=true) or the loss direction
func crossed(dir models.Direction, price, level float64, profit bool) bool {
	up := dir == models.Buy
	if !profit {
		up = !up
	}
	if up {
		return price >= level
	}
	return price <= level
}

func finish(tr *models.TPTracking, at time.Time) {
	tr.Active = false
	tr.ClosedAt = &at
}
