package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/bot"
	"github.com/Alias1177/SignalBot/internal/cli"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/notification"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: broadcast MESSAGE...")
		flag.PrintDefaults()
	}
	flag.Parse()
	message := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if message == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()
	store, err := cli.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	api, err := cli.NewBotAPI(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	sent, failed, err := bot.Broadcast(ctx, store, notification.NewTelegramDeliverer(api), message)
	if err != nil {
		log.Fatal().Err(err).Msg("Broadcast failed")
	}

	log.Info().Int("sent", sent).Int("failed", failed).Msg("Broadcast completed")
}
