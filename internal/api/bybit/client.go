package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	httpClient "github.com/Alias1177/SignalBot/internal/platform/http"
	"github.com/Alias1177/SignalBot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.bybit.com"
	category       = "linear"
	recvWindow     = "5000"
)

var (
	// ErrAPI is returned for a non-zero retCode
	ErrAPI = errors.New("bybit api error")
	// ErrEmpty is returned when the exchange answers with no rows
	ErrEmpty = errors.New("empty data returned")
)

// Client is the Bybit v5 market data client for linear perpetuals
type Client struct {
	http      *httpClient.Client
	apiKey    string
	apiSecret string
	now       func() time.Time
	logger    zerolog.Logger
}

// ClientOptions holds options for creating a new Bybit client
type ClientOptions struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Bybit API client
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.RequestsPerSec == 0 {
		options.RequestsPerSec = 10
	}

	return &Client{
		http: httpClient.NewClient(httpClient.ClientOptions{
			BaseURL:         strings.TrimRight(options.BaseURL, "/"),
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetryTimeout: options.MaxRetryTimeout,
		}),
		apiKey:    options.APIKey,
		apiSecret: options.APISecret,
		now:       time.Now,
		logger:    log.With().Str("component", "bybit_client").Logger(),
	}
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type listResult[T any] struct {
	List []T `json:"list"`
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, signed bool, out any) error {
	var sign func() map[string]string
	if signed {
		sign = func() map[string]string { return c.signHeaders(query) }
	}

	body, err := c.http.Get(ctx, path, query, sign)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("Error parsing JSON")
		return fmt.Errorf("parsing JSON: %w", err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("%w: %s (code %d)", ErrAPI, env.RetMsg, env.RetCode)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("parsing result: %w", err)
	}
	return nil
}

// signHeaders builds the v5 HMAC headers over timestamp+key+recvWindow+query
func (c *Client) signHeaders(query map[string]string) map[string]string {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + c.apiKey + recvWindow + values.Encode()))

	return map[string]string{
		"X-BAPI-API-KEY":     c.apiKey,
		"X-BAPI-SIGN":        hex.EncodeToString(mac.Sum(nil)),
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": recvWindow,
	}
}

// GetCandles fetches klines oldest first, without duplicate timestamps
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	var res listResult[[]string]
	err := c.get(ctx, "/v5/market/kline", map[string]string{
		"category": category,
		"symbol":   symbol,
		"interval": interval(timeframe),
		"limit":    strconv.Itoa(limit),
	}, false, &res)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("klines %s: %w", symbol, ErrEmpty)
	}

	seen := make(map[int64]bool, len(res.List))
	candles := make([]models.Candle, 0, len(res.List))
	for _, row := range res.List {
		if len(row) < 6 {
			c.logger.Warn().Str("symbol", symbol).Int("fields", len(row)).Msg("Skipping short kline row")
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil || seen[ms] {
			continue
		}
		seen[ms] = true
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      number(row[1]),
			High:      number(row[2]),
			Low:       number(row[3]),
			Close:     number(row[4]),
			Volume:    number(row[5]),
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Str("symbol", symbol).Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

type tickerRow struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	HighPrice24h    string `json:"highPrice24h"`
	LowPrice24h     string `json:"lowPrice24h"`
	Turnover24h     string `json:"turnover24h"`
	Volume24h       string `json:"volume24h"`
	Price24hPcnt    string `json:"price24hPcnt"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	FundingRate     string `json:"fundingRate"`
	OpenInterest    string `json:"openInterest"`
	NextFundingTime string `json:"nextFundingTime"`
}

// GetTicker fetches the 24h ticker; absent fields stay zero
func (c *Client) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	var res listResult[tickerRow]
	err := c.get(ctx, "/v5/market/tickers", map[string]string{
		"category": category,
		"symbol":   symbol,
	}, false, &res)
	if err != nil {
		return nil, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("ticker %s: %w", symbol, ErrEmpty)
	}

	row := res.List[0]
	t := &models.Ticker{
		Symbol:        row.Symbol,
		LastPrice:     number(row.LastPrice),
		HighPrice24h:  number(row.HighPrice24h),
		LowPrice24h:   number(row.LowPrice24h),
		Turnover24h:   number(row.Turnover24h),
		Volume24h:     number(row.Volume24h),
		Price24hPcnt:  number(row.Price24hPcnt),
		Bid1Price:     number(row.Bid1Price),
		Ask1Price:     number(row.Ask1Price),
		FundingRate:   number(row.FundingRate),
		OpenInterest:  number(row.OpenInterest),
		NextFundingAt: millis(row.NextFundingTime),
	}
	if t.Symbol == "" {
		t.Symbol = symbol
	}
	return t, nil
}

// GetFundingRate fetches the latest settled funding rate
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (*models.FundingRate, error) {
	var res listResult[struct {
		Symbol               string `json:"symbol"`
		FundingRate          string `json:"fundingRate"`
		FundingRateTimestamp string `json:"fundingRateTimestamp"`
	}]
	err := c.get(ctx, "/v5/market/funding/history", map[string]string{
		"category": category,
		"symbol":   symbol,
		"limit":    "1",
	}, false, &res)
	if err != nil {
		return nil, fmt.Errorf("funding %s: %w", symbol, err)
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("funding %s: %w", symbol, ErrEmpty)
	}

	row := res.List[0]
	return &models.FundingRate{
		Symbol:    symbol,
		Rate:      number(row.FundingRate),
		Timestamp: millis(row.FundingRateTimestamp),
	}, nil
}

// GetOpenInterest fetches 48 hourly open interest samples, oldest first
func (c *Client) GetOpenInterest(ctx context.Context, symbol string) ([]models.OpenInterestPoint, error) {
	var res listResult[struct {
		OpenInterest string `json:"openInterest"`
		Timestamp    string `json:"timestamp"`
	}]
	err := c.get(ctx, "/v5/market/open-interest", map[string]string{
		"category":     category,
		"symbol":       symbol,
		"intervalTime": "1h",
		"limit":        "48",
	}, false, &res)
	if err != nil {
		return nil, fmt.Errorf("open interest %s: %w", symbol, err)
	}

	points := make([]models.OpenInterestPoint, 0, len(res.List))
	for _, row := range res.List {
		points = append(points, models.OpenInterestPoint{
			Timestamp:    millis(row.Timestamp),
			OpenInterest: number(row.OpenInterest),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// GetWalletBalance returns the USDT equity of the unified account
func (c *Client) GetWalletBalance(ctx context.Context) (float64, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return 0, errors.New("api credentials not configured")
	}

	var res listResult[struct {
		TotalEquity string `json:"totalEquity"`
		Coin        []struct {
			Coin   string `json:"coin"`
			Equity string `json:"equity"`
		} `json:"coin"`
	}]
	err := c.get(ctx, "/v5/account/wallet-balance", map[string]string{"accountType": "UNIFIED"}, true, &res)
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}

	for _, acct := range res.List {
		for _, coin := range acct.Coin {
			if coin.Coin == "USDT" {
				return number(coin.Equity), nil
			}
		}
	}
	return 0, fmt.Errorf("wallet balance: %w", ErrEmpty)
}

// BalanceOr returns the wallet balance, or fallback on any failure
func (c *Client) BalanceOr(ctx context.Context, fallback float64) float64 {
	balance, err := c.GetWalletBalance(ctx)
	if err != nil || balance <= 0 {
		c.logger.Debug().Err(err).Float64("fallback", fallback).Msg("Using configured balance")
		return fallback
	}
	return balance
}

// interval maps 4h style codes to Bybit codes; unknown codes are sent as is
func interval(s string) string {
	if code, err := models.NormalizeInterval(s); err == nil {
		return code
	}
	return s
}

// number parses an exchange decimal string; empty or malformed is zero
func number(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
