package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/SignalBot/internal/database"
	"github.com/Alias1177/SignalBot/internal/distribution"
	"github.com/Alias1177/SignalBot/models"
)

// AddChat registers chatID on tier, reactivating an existing subscription
func AddChat(ctx context.Context, store models.SubscriptionStore, chatID int64, tier models.Tier, now time.Time) (*models.Subscription, error) {
	if tier.Rank() < 0 {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	sub, err := store.GetSubscription(ctx, chatID)
	switch {
	case errors.Is(err, database.ErrChatNotFound):
		sub = &models.Subscription{
			ChatID:       chatID,
			SubscribedAt: now.UTC(),
			LastReset:    distribution.DayKey(now),
		}
	case err != nil:
		return nil, err
	}
	sub.Tier = tier
	sub.Active = true
	if err := store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving chat %d: %w", chatID, err)
	}
	return sub, nil
}

// UpgradeChat sets an existing chat's tier for period. FREE clears the expiry.
func UpgradeChat(ctx context.Context, store models.SubscriptionStore, chatID int64, tier models.Tier, period time.Duration, now time.Time) (*models.Subscription, error) {
	if tier.Rank() < 0 {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	sub, err := store.GetSubscription(ctx, chatID)
	if err != nil {
		return nil, err
	}
	sub.Tier = tier
	if tier == models.TierFree {
		sub.ExpiresAt = nil
	} else {
		expires := now.UTC().Add(period)
		sub.ExpiresAt = &expires
	}
	if err := store.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving chat %d: %w", chatID, err)
	}
	return sub, nil
}

// Broadcast sends text to every active chat
func Broadcast(ctx context.Context, store models.SubscriptionStore, deliverer models.Deliverer, text string) (sent, failed int, err error) {
	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		if err := deliverer.Send(ctx, sub.ChatID, text); err != nil {
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}

// FormatChats lists subscriptions one per line, ordered by chat id
func FormatChats(subs []*models.Subscription, now time.Time) string {
	if len(subs) == 0 {
		return "No chats."
	}
	sorted := append([]*models.Subscription(nil), subs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChatID < sorted[j].ChatID })

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Chats (%d)</b>\n", len(sorted))
	for _, sub := range sorted {
		state := "active"
		if !sub.Active {
			state = "paused"
		}
		fmt.Fprintf(&sb, "%d %s %s %d today", sub.ChatID, distribution.EffectiveTier(sub, now), state, distribution.SentToday(sub, now))
		if sub.IsAdmin {
			sb.WriteString(" admin")
		}
		if sub.Username != "" {
			fmt.Fprintf(&sb, " @%s", sub.Username)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
