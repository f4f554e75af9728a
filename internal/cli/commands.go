package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/SignalBot/internal/bot"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/distribution"
	"github.com/Alias1177/SignalBot/internal/engine"
	"github.com/Alias1177/SignalBot/internal/metrics"
	"github.com/Alias1177/SignalBot/internal/notification"
	"github.com/Alias1177/SignalBot/internal/payment"
	"github.com/Alias1177/SignalBot/internal/tracking"
	"github.com/Alias1177/SignalBot/models"
)

// NewRootCmd creates the signalbot command tree
func NewRootCmd() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:          "signalbot",
		Short:        "Crypto futures signal bot",
		Long:         "signalbot analyses Bybit linear perpetuals and delivers trade signals to Telegram subscribers by tier.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				loaded.LogLevel = "debug"
			}
			SetupLogger(loaded.LogLevel)
			cfg = loaded
			return nil
		},
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	current := func() *config.Config { return cfg }
	rootCmd.AddCommand(newRunCmd(current))
	rootCmd.AddCommand(newAnalyzeCmd(current))
	rootCmd.AddCommand(newChatsCmd(current))
	rootCmd.AddCommand(newTPStatsCmd(current))

	return rootCmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the analysis loop, Telegram commands and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return run(ctx, cfg())
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	api, err := NewBotAPI(cfg)
	if err != nil {
		return err
	}
	deliverer := notification.NewTelegramDeliverer(api)
	market := NewMarketClient(cfg)
	recorder := metrics.New()

	tracker := tracking.NewTracker(store, market, cfg.TrackingMaxAge)
	dispatcher := distribution.NewDispatcher(store, deliverer, OpenCooldowns(ctx, cfg),
		notification.NewFormatter(cfg.Tables), cfg.Tables, cfg.AdminChatIDs)

	deps := analysisDeps(cfg, market)
	deps.Dispatcher = dispatcher
	deps.Tracker = tracker
	deps.Metrics = recorder
	eng := engine.New(deps, engineOptions(cfg))

	var checkout bot.Checkout
	if cfg.Stripe.SecretKey != "" {
		checkout = payment.NewService(cfg.Stripe)
	}
	commands := bot.New(store, deliverer, checkout, tracker, cfg.Tables, cfg.AdminChatIDs)

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	go commands.Run(ctx, api)
	go tracker.Run(ctx, cfg.TrackingInterval, func(tr *models.TPTracking) {
		recorder.RecordTPOutcome(string(tr.Result))
		notifyAdmins(ctx, deliverer, cfg.AdminChatIDs, fmt.Sprintf("🎯 <b>%s</b> %s closed: %s (max profit %.2f%%, max loss %.2f%%)",
			tr.Symbol, tr.SignalType, tr.Result, tr.MaxProfitPct, tr.MaxLossPct))
	})
	go refreshTrackingGauge(ctx, tracker, recorder, cfg.TrackingInterval)

	notifyAdmins(ctx, deliverer, cfg.AdminChatIDs, fmt.Sprintf("🚀 Signal bot started: %d symbols on %s",
		len(cfg.Symbols), cfg.PrimaryTimeframe))

	err = eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func refreshTrackingGauge(ctx context.Context, tracker *tracking.Tracker, recorder *metrics.Recorder, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if st, err := tracker.Stats(ctx); err == nil {
			recorder.SetActiveTrackings(st.Active)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newAnalyzeCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyse one symbol and print the result without sending anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			ctx, cancel := signalContext()
			defer cancel()

			c := cfg()
			eng := engine.New(analysisDeps(c, NewMarketClient(c)), engineOptions(c))
			analysis, err := eng.Analyze(ctx, config.NormalizeSymbol(args[0]))
			if err != nil {
				return err
			}
			return printAnalysis(cmd, c, analysis, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print the decision as JSON")
	return cmd
}

func printAnalysis(cmd *cobra.Command, cfg *config.Config, a *engine.Analysis, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a.Decision)
	}

	d := a.Decision
	for _, chunk := range notification.FormatAnalysis(d.Symbol, a.Technical, a.Fundamental) {
		fmt.Fprintln(out, chunk)
	}
	for _, an := range a.Anomalies {
		fmt.Fprintf(out, "Anomaly %s (%.2f): %s\n", an.Type, an.Score, an.Details)
	}
	fmt.Fprintf(out, "\nDecision: %s at %s", d.Status, d.Stage)
	if d.Reason != "" {
		fmt.Fprintf(out, " (%s)", d.Reason)
	}
	fmt.Fprintf(out, "\nCategory %s, combined %.1f vs threshold %.1f, risk %.1f\n",
		d.Metrics.Category, d.Metrics.CombinedScore, d.Metrics.Threshold, d.Metrics.RiskScore)
	if d.Emitted() {
		formatter := notification.NewFormatter(cfg.Tables)
		for _, chunk := range formatter.Format(d.Signal, models.TierVIP, true) {
			fmt.Fprintln(out)
			fmt.Fprintln(out, chunk)
		}
	}
	return nil
}

func newChatsCmd(cfg func() *config.Config) *cobra.Command {
	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage subscribed chats",
	}

	withStore := func(fn func(ctx context.Context, store Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := OpenStore(ctx, cfg())
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(ctx, store, args)
		}
	}

	chatsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chats with tier and today's usage",
		RunE: withStore(func(ctx context.Context, store Store, _ []string) error {
			subs, err := store.ListSubscriptions(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(chatsCmd.OutOrStdout(), bot.FormatChats(subs, time.Now()))
			return nil
		}),
	})

	chatsCmd.AddCommand(&cobra.Command{
		Use:   "add CHAT_ID [TIER]",
		Short: "Add or reactivate a chat",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withStore(func(ctx context.Context, store Store, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q: %w", args[0], err)
			}
			tier := models.TierFree
			if len(args) > 1 {
				tier = models.Tier(strings.ToUpper(args[1]))
			}
			sub, err := bot.AddChat(ctx, store, chatID, tier, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(chatsCmd.OutOrStdout(), "chat %d added on %s\n", sub.ChatID, sub.Tier)
			return nil
		}),
	})

	chatsCmd.AddCommand(&cobra.Command{
		Use:   "remove CHAT_ID",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, store Store, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q: %w", args[0], err)
			}
			if err := store.DeleteSubscription(ctx, chatID); err != nil {
				return err
			}
			fmt.Fprintf(chatsCmd.OutOrStdout(), "chat %d removed\n", chatID)
			return nil
		}),
	})

	upgradeCmd := &cobra.Command{
		Use:   "upgrade CHAT_ID TIER",
		Short: "Set a chat's tier",
		Args:  cobra.ExactArgs(2),
	}
	days := upgradeCmd.Flags().Int("days", 30, "Validity of the tier in days")
	upgradeCmd.RunE = withStore(func(ctx context.Context, store Store, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", args[0], err)
		}
		if *days <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		tier := models.Tier(strings.ToUpper(args[1]))
		sub, err := bot.UpgradeChat(ctx, store, chatID, tier, time.Duration(*days)*24*time.Hour, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(chatsCmd.OutOrStdout(), "chat %d is now %s\n", sub.ChatID, sub.Tier)
		return nil
	})
	chatsCmd.AddCommand(upgradeCmd)

	return chatsCmd
}

func newTPStatsCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tpstats",
		Short: "Print take-profit statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := OpenStore(ctx, cfg())
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.ListTrackings(ctx, false)
			if err != nil {
				return err
			}
			st := tracking.ComputeStats(all)
			fmt.Fprintln(cmd.OutOrStdout(), tracking.FormatStats(st))
			return nil
		},
	}
}
