package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func testSignal() *models.TradingSignal {
	return &models.TradingSignal{
		ID:                 "abc",
		Symbol:             "BTCUSDT",
		SignalType:         models.Buy,
		EntryPrice:         64250.5,
		StopLoss:           63000,
		TakeProfit1:        66750,
		TakeProfit2:        68600,
		Leverage:           3,
		Confidence:         78.4,
		RiskAmount:         20,
		PositionSize:       450,
		TechnicalSummary:   "bullish trend; momentum (2 indicators)",
		FundamentalSummary: "Major | volume; liquidity",
		RiskFactors:        []string{"one", "two", "three", "four"},
		MarketCondition:    "TRENDING_UP",
		Timestamp:          time.Date(2024, 5, 10, 15, 4, 0, 0, time.UTC),
		Category:           models.CategoryMajor,
	}
}

func TestFormatByTier(t *testing.T) {
	f := NewFormatter(config.DefaultTables())
	sig := testSignal()

	tests := []struct {
		name        string
		tier        models.Tier
		admin       bool
		technical   bool
		fundamental bool
	}{
		{"free", models.TierFree, false, false, false},
		{"basic", models.TierBasic, false, true, false},
		{"premium", models.TierPremium, false, true, true},
		{"vip", models.TierVIP, false, true, true},
		{"admin on free", models.TierFree, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := f.Format(sig, tt.tier, tt.admin)
			if len(chunks) != 1 {
				t.Fatalf("chunks = %d, want 1", len(chunks))
			}
			msg := chunks[0]
			for _, want := range []string{"BUY BTCUSDT", "64250.50", "63000.00", "66750.00", "68600.00", "3x", "78.4%", "Not financial advice"} {
				if !strings.Contains(msg, want) {
					t.Errorf("missing %q in:\n%s", want, msg)
				}
			}
			if got := strings.Contains(msg, "bullish trend"); got != tt.technical {
				t.Errorf("technical summary shown = %v, want %v", got, tt.technical)
			}
			if got := strings.Contains(msg, "Category: Major"); got != tt.technical {
				t.Errorf("category shown = %v, want %v", got, tt.technical)
			}
			if got := strings.Contains(msg, "Major | volume"); got != tt.fundamental {
				t.Errorf("fundamental summary shown = %v, want %v", got, tt.fundamental)
			}
			if strings.Contains(msg, "four") {
				t.Error("at most three risk factors")
			}
		})
	}
}

func TestFormatEscapesHTML(t *testing.T) {
	f := NewFormatter(config.DefaultTables())
	sig := testSignal()
	sig.TechnicalSummary = "a < b & c"
	msg := f.Format(sig, models.TierVIP, false)[0]
	if !strings.Contains(msg, "a &lt; b &amp; c") {
		t.Errorf("summary not escaped:\n%s", msg)
	}
}

func TestPrice(t *testing.T) {
	tests := map[float64]string{
		64250.456:  "64250.46",
		2.5:        "2.5000",
		0.123456:   "0.123456",
		0.00001234: "0.00001234",
	}
	for in, want := range tests {
		if got := Price(in); got != want {
			t.Errorf("Price(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestSplit(t *testing.T) {
	if got := Split("short", 4096); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %v", got)
	}

	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString(strings.Repeat("x", 29) + "\n")
	}
	text := b.String()
	chunks := Split(text, 4096)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble the text")
	}
	for _, c := range chunks {
		if len(c) > 4096 || !strings.HasSuffix(c, "\n") {
			t.Errorf("chunk of %d bytes not cut at a line boundary", len(c))
		}
	}

	long := strings.Repeat("é", 3000)
	chunks = Split(long, 4096)
	if strings.Join(chunks, "") != long {
		t.Error("long line does not reassemble")
	}
	for _, c := range chunks {
		if len(c) > 4096 || !strings.HasPrefix(c, "é") {
			t.Errorf("bad rune cut, chunk len %d", len(c))
		}
	}
}

type fakeBot struct {
	errs  []error
	calls int
	sent  []tgbotapi.MessageConfig
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.calls++
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramDelivererRetries(t *testing.T) {
	bot := &fakeBot{errs: []error{errors.New("connection reset")}}
	d := NewTelegramDeliverer(bot)

	if err := d.Send(context.Background(), 99, "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if bot.calls != 2 {
		t.Errorf("calls = %d, want 2", bot.calls)
	}
	if len(bot.sent) != 1 || bot.sent[0].ParseMode != tgbotapi.ModeHTML || bot.sent[0].ChatID != 99 {
		t.Errorf("sent = %+v", bot.sent)
	}
}

func TestTelegramDelivererForbiddenIsPermanent(t *testing.T) {
	bot := &fakeBot{errs: []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}}
	d := NewTelegramDeliverer(bot)

	err := d.Send(context.Background(), 99, "hi")
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 403 {
		t.Fatalf("err = %v, want telegram 403", err)
	}
	if bot.calls != 1 {
		t.Errorf("calls = %d, want 1", bot.calls)
	}
}
