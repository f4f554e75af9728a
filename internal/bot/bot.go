package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/database"
	"github.com/Alias1177/SignalBot/internal/distribution"
	"github.com/Alias1177/SignalBot/internal/notification"
	"github.com/Alias1177/SignalBot/internal/tracking"
	"github.com/Alias1177/SignalBot/models"
)

// Checkout opens a payment page for a tier upgrade
type Checkout interface {
	CreateCheckout(chatID int64, tier models.Tier) (string, error)
	CancelSubscription(id string) error
}

// StatsSource reports take-profit statistics
type StatsSource interface {
	Stats(ctx context.Context) (models.TPStats, error)
}

// Updates is the part of tgbotapi.BotAPI used to receive commands
type Updates interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers chat commands
type Bot struct {
	store     models.SubscriptionStore
	deliverer models.Deliverer
	checkout  Checkout
	stats     StatsSource
	tables    *config.Tables
	admins    map[int64]bool
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates a command bot. checkout and stats may be nil.
func New(store models.SubscriptionStore, deliverer models.Deliverer, checkout Checkout, stats StatsSource,
	tables *config.Tables, adminIDs []int64) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Bot{
		store:     store,
		deliverer: deliverer,
		checkout:  checkout,
		stats:     stats,
		tables:    tables,
		admins:    admins,
		now:       time.Now,
		logger:    log.With().Str("component", "bot").Logger(),
	}
}

// Run answers commands until ctx is cancelled
func (b *Bot) Run(ctx context.Context, api Updates) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			msg := update.Message
			username := ""
			if msg.From != nil {
				username = msg.From.UserName
			}
			reply := b.Handle(ctx, msg.Chat.ID, username, msg.Command(), msg.CommandArguments())
			if reply == "" {
				continue
			}
			for _, chunk := range notification.Split(reply, notification.MaxMessageLength) {
				if err := b.deliverer.Send(ctx, msg.Chat.ID, chunk); err != nil {
					b.logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to answer command")
					break
				}
			}
		}
	}
}

// Handle executes one command and returns the HTML reply
func (b *Bot) Handle(ctx context.Context, chatID int64, username, command, args string) string {
	b.logger.Debug().Int64("chat_id", chatID).Str("command", command).Msg("Command received")

	var (
		reply string
		err   error
	)
	switch command {
	case "start":
		reply, err = b.start(ctx, chatID, username)
	case "subscription", "status":
		reply, err = b.subscription(ctx, chatID)
	case "plans":
		reply = b.plans()
	case "upgrade":
		reply, err = b.upgrade(chatID, args)
	case "tp_stats":
		reply, err = b.tpStats(ctx)
	case "admin":
		if !b.isAdmin(ctx, chatID) {
			return "⛔ Admin only."
		}
		reply, err = b.admin(ctx, args)
	case "help":
		reply = helpText
	default:
		return "Unknown command. Send /help for the list."
	}

	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Str("command", command).Msg("Command failed")
		return "⚠️ " + html.EscapeString(err.Error())
	}
	return reply
}

const helpText = `<b>Commands</b>
/start - subscribe to signals
/subscription - your plan and today's usage
/plans - available plans
/upgrade &lt;tier&gt; - get a payment link
/tp_stats - take-profit statistics`

func (b *Bot) start(ctx context.Context, chatID int64, username string) (string, error) {
	sub, err := b.store.GetSubscription(ctx, chatID)
	switch {
	case errors.Is(err, database.ErrChatNotFound):
		sub = &models.Subscription{
			ChatID:       chatID,
			Username:     username,
			Tier:         models.TierFree,
			IsAdmin:      b.admins[chatID],
			SubscribedAt: b.now().UTC(),
			LastReset:    distribution.DayKey(b.now()),
		}
	case err != nil:
		return "", err
	}
	sub.Active = true
	if username != "" {
		sub.Username = username
	}
	if err := b.store.SaveSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("saving subscription: %w", err)
	}

	b.logger.Info().Int64("chat_id", chatID).Str("tier", string(sub.Tier)).Msg("Chat subscribed")
	return fmt.Sprintf("👋 Welcome! You are subscribed on the <b>%s</b> plan.\n\n%s", sub.Tier, helpText), nil
}

func (b *Bot) subscription(ctx context.Context, chatID int64) (string, error) {
	sub, err := b.store.GetSubscription(ctx, chatID)
	if errors.Is(err, database.ErrChatNotFound) {
		return "You are not subscribed yet. Send /start.", nil
	}
	if err != nil {
		return "", err
	}

	now := b.now()
	tier := distribution.EffectiveTier(sub, now)
	policy, _ := b.tables.Tier(tier)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Plan:</b> %s\n", tier)
	if sub.ExpiresAt != nil && tier != models.TierFree {
		fmt.Fprintf(&sb, "<b>Renews:</b> %s\n", sub.ExpiresAt.UTC().Format("2006-01-02"))
	}
	sent := distribution.SentToday(sub, now)
	if policy.Unlimited() || sub.IsAdmin {
		fmt.Fprintf(&sb, "<b>Signals today:</b> %d (unlimited)\n", sent)
	} else {
		fmt.Fprintf(&sb, "<b>Signals today:</b> %d/%d\n", sent, policy.SignalsPerDay)
	}
	fmt.Fprintf(&sb, "<b>Categories:</b> %s\n", b.categories(tier))
	fmt.Fprintf(&sb, "<b>Repeat cooldown:</b> %s\n", tracking.FormatDuration(policy.Cooldown()))
	if !sub.Active {
		sb.WriteString("\nDelivery is paused. Send /start to resume.")
	}
	return sb.String(), nil
}

func (b *Bot) categories(tier models.Tier) string {
	policy, _ := b.tables.Tier(tier)
	var names []string
	for _, c := range models.Categories {
		if c == models.CategoryOther {
			if tier.Rank() >= b.tables.OtherCategoryMinTier().Rank() {
				names = append(names, b.tables.Policy(c).DisplayName)
			}
			continue
		}
		if policy.Allows(c) {
			names = append(names, b.tables.Policy(c).DisplayName)
		}
	}
	return strings.Join(names, ", ")
}

func (b *Bot) plans() string {
	var sb strings.Builder
	sb.WriteString("<b>Plans</b>\n")
	for _, tier := range models.Tiers {
		policy, ok := b.tables.Tier(tier)
		if !ok {
			continue
		}
		limit := strconv.Itoa(policy.SignalsPerDay) + "/day"
		if policy.Unlimited() {
			limit = "unlimited"
		}
		price := "free"
		if policy.PriceUSD > 0 {
			price = fmt.Sprintf("$%.0f/month", policy.PriceUSD)
		}
		fmt.Fprintf(&sb, "\n<b>%s</b> (%s)\n• %s signals, %s cooldown\n• %s\n",
			tier, price, limit, tracking.FormatDuration(policy.Cooldown()), b.categories(tier))
	}
	sb.WriteString("\nUpgrade with /upgrade BASIC, /upgrade PREMIUM or /upgrade VIP")
	return sb.String()
}

func (b *Bot) upgrade(chatID int64, args string) (string, error) {
	tier := models.Tier(strings.ToUpper(strings.TrimSpace(args)))
	if tier.Rank() <= models.TierFree.Rank() {
		return "Usage: /upgrade BASIC|PREMIUM|VIP", nil
	}
	if b.checkout == nil {
		return "Payments are not available right now.", nil
	}
	url, err := b.checkout.CreateCheckout(chatID, tier)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💳 <a href=\"%s\">Pay for %s</a>\nYour plan is upgraded as soon as the payment completes.",
		html.EscapeString(url), tier), nil
}

func (b *Bot) tpStats(ctx context.Context) (string, error) {
	if b.stats == nil {
		return "Take-profit tracking is disabled.", nil
	}
	st, err := b.stats.Stats(ctx)
	if err != nil {
		return "", err
	}
	return tracking.FormatStats(st), nil
}

func (b *Bot) isAdmin(ctx context.Context, chatID int64) bool {
	if b.admins[chatID] {
		return true
	}
	sub, err := b.store.GetSubscription(ctx, chatID)
	return err == nil && sub.IsAdmin
}

const adminUsage = `Usage:
/admin list
/admin add &lt;chat_id&gt; [tier]
/admin remove &lt;chat_id&gt;
/admin upgrade &lt;chat_id&gt; &lt;tier&gt; [days]
/admin broadcast &lt;text&gt;`

func (b *Bot) admin(ctx context.Context, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return adminUsage, nil
	}

	switch fields[0] {
	case "list":
		subs, err := b.store.ListSubscriptions(ctx)
		if err != nil {
			return "", err
		}
		return FormatChats(subs, b.now()), nil

	case "add":
		if len(fields) < 2 {
			return adminUsage, nil
		}
		chatID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid chat id %q", fields[1])
		}
		tier := models.TierFree
		if len(fields) > 2 {
			tier = models.Tier(strings.ToUpper(fields[2]))
		}
		if _, err := AddChat(ctx, b.store, chatID, tier, b.now()); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Chat %d added on %s.", chatID, tier), nil

	case "remove":
		if len(fields) < 2 {
			return adminUsage, nil
		}
		chatID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid chat id %q", fields[1])
		}
		if sub, err := b.store.GetSubscription(ctx, chatID); err == nil && sub.StripeSubscriptionID != "" && b.checkout != nil {
			if err := b.checkout.CancelSubscription(sub.StripeSubscriptionID); err != nil {
				b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to cancel Stripe subscription")
			}
		}
		if err := b.store.DeleteSubscription(ctx, chatID); err != nil {
			return "", err
		}
		return fmt.Sprintf("🗑 Chat %d removed.", chatID), nil

	case "upgrade":
		if len(fields) < 3 {
			return adminUsage, nil
		}
		chatID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid chat id %q", fields[1])
		}
		days := 30
		if len(fields) > 3 {
			if days, err = strconv.Atoi(fields[3]); err != nil || days <= 0 {
				return "", fmt.Errorf("invalid days %q", fields[3])
			}
		}
		tier := models.Tier(strings.ToUpper(fields[2]))
		if _, err := UpgradeChat(ctx, b.store, chatID, tier, time.Duration(days)*24*time.Hour, b.now()); err != nil {
			return "", err
		}
		return fmt.Sprintf("⬆️ Chat %d is now %s for %d days.", chatID, tier, days), nil

	case "broadcast":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), "broadcast"))
		if text == "" {
			return adminUsage, nil
		}
		sent, failed, err := Broadcast(ctx, b.store, b.deliverer, text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("📣 Broadcast sent to %d chats, %d failed.", sent, failed), nil
	}

	return adminUsage, nil
}
