package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/cli"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/notification"
	"github.com/Alias1177/SignalBot/internal/payment"
	"github.com/Alias1177/SignalBot/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := cli.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	if cfg.Stripe.WebhookSecret == "" {
		log.Fatal().Msg("STRIPE_WEBHOOK_SECRET not set in environment")
	}
	service := payment.NewService(cfg.Stripe)

	// tier changes are announced to the chat when the bot token is available
	var notify func(sub *models.Subscription)
	if api, err := cli.NewBotAPI(cfg); err != nil {
		log.Warn().Err(err).Msg("Telegram unavailable, tier changes will not be announced")
	} else {
		deliverer := notification.NewTelegramDeliverer(api)
		notify = func(sub *models.Subscription) {
			text := fmt.Sprintf("✅ Your plan is now <b>%s</b>. Send /subscription for details.", sub.Tier)
			if sub.Tier == models.TierFree {
				text = "Your paid plan has ended, you are back on <b>FREE</b>. Send /plans to upgrade again."
			}
			if err := deliverer.Send(ctx, sub.ChatID, text); err != nil {
				log.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("Failed to announce tier change")
			}
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", service.WebhookHandler(store, notify))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook server is running"))
	})

	server := &http.Server{Addr: cfg.Stripe.WebhookAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Stripe.WebhookAddr).Msg("Starting webhook server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Webhook server failed")
	}
}
