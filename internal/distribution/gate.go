package distribution

import (
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
)

// DayKey is the UTC calendar day used for daily counters
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SentToday returns the daily count, treating a stale reset day as zero
func SentToday(sub *models.Subscription, now time.Time) int {
	if sub.LastReset != DayKey(now) {
		return 0
	}
	return sub.SignalsSentToday
}

// CanReceive reports whether a chat may receive a signal of category c
func CanReceive(sub *models.Subscription, c models.Category, tables *config.Tables, now time.Time) (bool, string) {
	if sub == nil || !sub.Active {
		return false, "subscription inactive"
	}
	if sub.IsAdmin {
		return true, "admin"
	}

	tier := EffectiveTier(sub, now)
	policy, ok := tables.Tier(tier)
	if !ok {
		return false, fmt.Sprintf("unknown tier %s", tier)
	}

	if c == models.CategoryOther {
		if min := tables.OtherCategoryMinTier(); tier.Rank() < min.Rank() {
			return false, fmt.Sprintf("category other requires %s or higher", min)
		}
	} else if !policy.Allows(c) {
		return false, fmt.Sprintf("category %s not in %s plan", c, tier)
	}

	if !policy.Unlimited() && policy.SignalsPerDay > 0 && SentToday(sub, now) >= policy.SignalsPerDay {
		return false, fmt.Sprintf("daily limit %d reached", policy.SignalsPerDay)
	}
	return true, "ok"
}

// EffectiveTier is the stored tier, or FREE once a paid plan has expired
func EffectiveTier(sub *models.Subscription, now time.Time) models.Tier {
	if sub.ExpiresAt != nil && now.After(*sub.ExpiresAt) {
		return models.TierFree
	}
	return sub.Tier
}

// RecordSend bumps the daily counter, resetting it on a new day, and stamps the send time.
// Admins are not counted.
func RecordSend(sub *models.Subscription, now time.Time) {
	today := DayKey(now)
	if sub.LastReset != today {
		sub.LastReset = today
		sub.SignalsSentToday = 0
	}
	if !sub.IsAdmin {
		sub.SignalsSentToday++
	}
	at := now.UTC()
	sub.LastSignalAt = &at
}
