package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Formatter renders a signal for one subscription as one or more messages
type Formatter interface {
	Format(sig *models.TradingSignal, tier models.Tier, admin bool) []string
}

// Report summarises one fan-out
type Report struct {
	Sent    int
	Skipped int
	Failed  int
	// Reasons counts skips by reason
	Reasons map[string]int
}

// Delivered reports whether at least one chat received the signal
func (r Report) Delivered() bool { return r.Sent > 0 }

func (r *Report) skip(reason string) {
	r.Skipped++
	r.Reasons[reason]++
}

// Dispatcher fans an emitted signal out to every eligible chat
type Dispatcher struct {
	subs      models.SubscriptionStore
	deliverer models.Deliverer
	cooldowns CooldownStore
	formatter Formatter
	tables    *config.Tables
	admins    map[int64]bool
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher; adminIDs are always treated as admins
func NewDispatcher(subs models.SubscriptionStore, deliverer models.Deliverer, cooldowns CooldownStore,
	formatter Formatter, tables *config.Tables, adminIDs []int64) *Dispatcher {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Dispatcher{
		subs:      subs,
		deliverer: deliverer,
		cooldowns: cooldowns,
		formatter: formatter,
		tables:    tables,
		admins:    admins,
		now:       time.Now,
		logger:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch sends sig to each eligible chat in turn. Delivery failures are
// counted, never returned; only a failure to list subscriptions is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, sig *models.TradingSignal) (Report, error) {
	report := Report{Reasons: make(map[string]int)}

	subs, err := d.subs.ListSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("listing subscriptions: %w", err)
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		now := d.now()
		// admins from the config list are not written back to the store
		stored := sub.IsAdmin
		sub.IsAdmin = stored || d.admins[sub.ChatID]
		admin := sub.IsAdmin

		ok, reason := CanReceive(sub, sig.Category, d.tables, now)
		if !ok {
			report.skip(reason)
			d.logger.Debug().Int64("chat_id", sub.ChatID).Str("symbol", sig.Symbol).Str("reason", reason).Msg("Chat skipped")
			continue
		}

		tier := EffectiveTier(sub, now)
		var window time.Duration
		if !admin {
			window = d.cooldown(tier)
		}
		key := CooldownKey(sig.Symbol, sig.SignalType, sub.ChatID)
		cooling, err := InCooldown(ctx, d.cooldowns, key, window, now)
		if err != nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("Cooldown lookup failed, sending anyway")
		}
		if cooling {
			report.skip("cooldown")
			continue
		}

		if err := d.send(ctx, sub.ChatID, d.formatter.Format(sig, tier, admin)); err != nil {
			report.Failed++
			d.logger.Error().Err(err).Int64("chat_id", sub.ChatID).Str("symbol", sig.Symbol).Msg("Delivery failed")
			continue
		}
		report.Sent++

		RecordSend(sub, now)
		sub.IsAdmin = stored
		if err := d.subs.SaveSubscription(ctx, sub); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", sub.ChatID).Msg("Saving send counter failed")
		}
		if window <= 0 {
			continue
		}
		if err := d.cooldowns.Mark(ctx, key, now, window); err != nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("Storing cooldown failed")
		}
	}

	d.logger.Info().
		Str("symbol", sig.Symbol).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Signal dispatched")
	return report, nil
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, chunks []string) error {
	for _, text := range chunks {
		if err := d.deliverer.Send(ctx, chatID, text); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cooldown(tier models.Tier) time.Duration {
	if p, ok := d.tables.Tier(tier); ok {
		return p.Cooldown()
	}
	return time.Duration(d.tables.Risk().DefaultCooldownMin) * time.Minute
}
