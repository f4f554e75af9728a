package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/analysis/fundamental"
	"github.com/Alias1177/SignalBot/internal/analysis/market"
	"github.com/Alias1177/SignalBot/internal/analysis/technical"
	"github.com/Alias1177/SignalBot/internal/calculate"
	"github.com/Alias1177/SignalBot/internal/distribution"
	"github.com/Alias1177/SignalBot/internal/signal"
	"github.com/Alias1177/SignalBot/models"
)

// BalanceSource supplies the account balance used for position sizing
type BalanceSource interface {
	BalanceOr(ctx context.Context, fallback float64) float64
}

// Dispatcher fans an emitted signal out to subscribers
type Dispatcher interface {
	Dispatch(ctx context.Context, sig *models.TradingSignal) (distribution.Report, error)
}

// Tracker follows delivered signals
type Tracker interface {
	Start(ctx context.Context, sig *models.TradingSignal) (*models.TPTracking, error)
}

// Recorder receives cycle metrics
type Recorder interface {
	RecordAnalysis(symbol, outcome string, d time.Duration)
	RecordRejection(stage string)
	RecordDeliveries(sent, skipped, failed int)
}

// Options control the analysis loop
type Options struct {
	Symbols          []string
	Timeframe        string
	CandleLimit      int
	AnalysisInterval time.Duration
	CycleInterval    time.Duration
}

// Analysis is everything produced for one symbol in one pass
type Analysis struct {
	Snapshot    models.MarketSnapshot
	Technical   *models.TechnicalResult
	Fundamental *models.FundamentalResult
	Anomalies   []market.Anomaly
	Decision    signal.Decision
}

// Engine runs fetch, analysis, synthesis and distribution for each symbol
type Engine struct {
	market      models.MarketDataSource
	balance     BalanceSource
	technical   *technical.Analyzer
	fundamental *fundamental.Analyzer
	synth       *signal.Synthesizer
	calc        *calculate.Calculator
	dispatcher  Dispatcher
	tracker     Tracker
	metrics     Recorder
	opts        Options

	mu      sync.Mutex
	lastRun map[string]time.Time

	now    func() time.Time
	logger zerolog.Logger
}

// Deps are the collaborators of an Engine. Balance, Calculator, Dispatcher,
// Tracker and Metrics are optional; without a Calculator no anomaly scan runs.
type Deps struct {
	Market      models.MarketDataSource
	Balance     BalanceSource
	Technical   *technical.Analyzer
	Fundamental *fundamental.Analyzer
	Synthesizer *signal.Synthesizer
	Calculator  *calculate.Calculator
	Dispatcher  Dispatcher
	Tracker     Tracker
	Metrics     Recorder
}

// New creates an engine
func New(deps Deps, opts Options) *Engine {
	if opts.Timeframe == "" {
		opts.Timeframe = "4h"
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 200
	}
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = 5 * time.Minute
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Engine{
		market:      deps.Market,
		balance:     deps.Balance,
		technical:   deps.Technical,
		fundamental: deps.Fundamental,
		synth:       deps.Synthesizer,
		calc:        deps.Calculator,
		dispatcher:  deps.Dispatcher,
		tracker:     deps.Tracker,
		metrics:     metrics,
		opts:        opts,
		lastRun:     make(map[string]time.Time),
		now:         time.Now,
		logger:      log.With().Str("component", "engine").Logger(),
	}
}

// Run executes a cycle immediately and then every CycleInterval until ctx ends
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().
		Strs("symbols", e.opts.Symbols).
		Str("timeframe", e.opts.Timeframe).
		Dur("cycle", e.opts.CycleInterval).
		Msg("Starting analysis loop")

	ticker := time.NewTicker(e.opts.CycleInterval)
	defer ticker.Stop()

	for {
		e.RunCycle(ctx)
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Analysis loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle processes every due symbol in order and returns how many emitted
func (e *Engine) RunCycle(ctx context.Context) int {
	emitted := 0
	for _, symbol := range e.opts.Symbols {
		if ctx.Err() != nil {
			break
		}
		if !e.due(symbol) {
			continue
		}
		ok, err := e.Process(ctx, symbol)
		if err != nil {
			e.logger.Error().Err(err).Str("symbol", symbol).Msg("Symbol processing failed")
			continue
		}
		if ok {
			emitted++
		}
	}
	return emitted
}

// due reports whether symbol was last analysed at least AnalysisInterval ago
func (e *Engine) due(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastRun[symbol]
	return !ok || e.now().Sub(last) >= e.opts.AnalysisInterval
}

func (e *Engine) markRun(symbol string) {
	e.mu.Lock()
	e.lastRun[symbol] = e.now()
	e.mu.Unlock()
}

// Process analyses one symbol and distributes an emitted signal. It reports
// whether a signal was emitted.
func (e *Engine) Process(ctx context.Context, symbol string) (bool, error) {
	start := e.now()
	analysis, err := e.Analyze(ctx, symbol)
	e.markRun(symbol)
	if err != nil {
		e.metrics.RecordAnalysis(symbol, "error", e.now().Sub(start))
		return false, err
	}

	d := analysis.Decision
	e.metrics.RecordAnalysis(symbol, string(d.Status), e.now().Sub(start))
	if !d.Emitted() {
		if d.Status == signal.StatusRejected || d.Status == signal.StatusNeutral {
			e.metrics.RecordRejection(string(d.Stage))
		}
		return false, nil
	}

	if e.dispatcher == nil {
		return true, nil
	}
	report, err := e.dispatcher.Dispatch(ctx, d.Signal)
	e.metrics.RecordDeliveries(report.Sent, report.Skipped, report.Failed)
	if err != nil {
		return true, fmt.Errorf("dispatching %s: %w", symbol, err)
	}

	if report.Delivered() && e.tracker != nil {
		if _, err := e.tracker.Start(ctx, d.Signal); err != nil {
			e.logger.Error().Err(err).Str("signal_id", d.Signal.ID).Msg("Failed to start take-profit tracking")
		}
	}
	return true, nil
}

// Analyze fetches market data for symbol and runs both analyzers and the
// synthesizer. Missing candles or ticker yield a NO_DATA decision rather than
// an error; only cancellation is returned as an error.
func (e *Engine) Analyze(ctx context.Context, symbol string) (*Analysis, error) {
	logger := e.logger.With().Str("symbol", symbol).Logger()
	snap := e.fetch(ctx, symbol, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tech, err := e.technical.Analyze(symbol, e.opts.Timeframe, snap.Candles)
	if err != nil {
		logger.Warn().Err(err).Msg("Technical analysis incomplete")
	}
	fund, err := e.fundamental.Analyze(symbol, snap.Ticker, snap.Funding, snap.OpenInterest)
	if err != nil {
		logger.Warn().Err(err).Msg("Fundamental analysis incomplete")
	}

	var balance float64
	if e.balance != nil {
		balance = e.balance.BalanceOr(ctx, 0)
	}

	decision := e.synth.Synthesize(signal.Input{
		Symbol:      symbol,
		Candles:     snap.Candles,
		Ticker:      snap.Ticker,
		Technical:   tech,
		Fundamental: fund,
		Balance:     balance,
	})

	analysis := &Analysis{Snapshot: snap, Technical: tech, Fundamental: fund, Decision: decision}
	if e.calc != nil {
		analysis.Anomalies = market.DetectAnomalies(snap.Candles, e.calc)
		for _, a := range analysis.Anomalies {
			logger.Info().Str("type", a.Type).Float64("score", a.Score).Msg(a.Details)
		}
	}
	return analysis, nil
}

// fetch gathers a snapshot. Funding and open interest are optional.
func (e *Engine) fetch(ctx context.Context, symbol string, logger zerolog.Logger) models.MarketSnapshot {
	snap := models.MarketSnapshot{Symbol: symbol, Timeframe: e.opts.Timeframe, FetchedAt: e.now()}

	candles, err := e.market.GetCandles(ctx, symbol, e.opts.Timeframe, e.opts.CandleLimit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch candles")
	} else {
		snap.Candles = candles
	}

	ticker, err := e.market.GetTicker(ctx, symbol)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch ticker")
	} else {
		snap.Ticker = ticker
	}

	funding, err := e.market.GetFundingRate(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("Funding rate unavailable")
	} else {
		snap.Funding = funding
	}

	oi, err := e.market.GetOpenInterest(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("Open interest unavailable")
	} else {
		snap.OpenInterest = oi
	}

	return snap
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(string, string, time.Duration) {}
func (nopRecorder) RecordRejection(string)                       {}
func (nopRecorder) RecordDeliveries(int, int, int)               {}
