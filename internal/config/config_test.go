package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

func TestDefaultTablesAreValid(t *testing.T) {
	tables, err := NewTables(DefaultTablesSpec(), false)
	if err != nil {
		t.Fatalf("NewTables() error = %v", err)
	}

	major := tables.Policy(models.CategoryMajor)
	if major.MinConfidence != 70 || major.MaxLeverage != 10 || major.MinVolume != 100_000_000 {
		t.Errorf("unexpected major policy: %+v", major)
	}
	if got := tables.Policy(models.CategoryDefi).SwingHigh; got != 0.2 {
		t.Errorf("defi SwingHigh = %v, want default 0.2", got)
	}
	if got := tables.Policy(models.CategoryMeme).SwingHigh; got != 0.5 {
		t.Errorf("meme SwingHigh = %v, want 0.5", got)
	}
	if got := tables.MinVolume(models.CategoryOther); got != 50_000_000 {
		t.Errorf("MinVolume(other) = %v, want global minimum", got)
	}
	if got := tables.Indicators().EMAPeriods; len(got) != 5 || got[0] != 9 {
		t.Errorf("EMAPeriods = %v", got)
	}
	if got := tables.OtherCategoryMinTier(); got != models.TierBasic {
		t.Errorf("OtherCategoryMinTier = %v, want BASIC", got)
	}

	vip, ok := tables.Tier(models.TierVIP)
	if !ok || !vip.Unlimited() || !vip.Allows(models.CategoryMeme) {
		t.Errorf("unexpected VIP tier: %+v", vip)
	}
	free, _ := tables.Tier(models.TierFree)
	if free.Cooldown() != 90*time.Minute || free.Allows(models.CategoryDefi) {
		t.Errorf("unexpected FREE tier: %+v", free)
	}
}

func TestDefaultTablesSpecFillsTaggedDefaults(t *testing.T) {
	spec := DefaultTablesSpec()
	if got := spec.Categories[models.CategoryDefi].SwingHigh; got != 0.2 {
		t.Errorf("defi SwingHigh = %v, want tag default 0.2", got)
	}
	if got := spec.Categories[models.CategoryMeme].SwingHigh; got != 0.5 {
		t.Errorf("meme SwingHigh = %v, want explicit 0.5", got)
	}
	if got := spec.Indicators.RSIPeriod; got != 14 {
		t.Errorf("RSIPeriod = %d, want 14", got)
	}
}

func TestTablesAreImmutable(t *testing.T) {
	tables := DefaultTables()

	p := tables.Policy(models.CategoryMajor)
	p.RiskReward[0] = 99
	p.Members[0] = "XXX"

	again := tables.Policy(models.CategoryMajor)
	if again.RiskReward[0] != 2.0 || again.Members[0] != "BTCUSDT" {
		t.Errorf("policy mutated through returned copy: %+v", again)
	}

	ind := tables.Indicators()
	ind.Weights["MACD"] = 0
	if tables.Indicators().Weights["MACD"] != 1.5 {
		t.Error("indicator weights mutated through returned copy")
	}
}

func TestNewTablesRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TablesSpec)
	}{
		{"weights do not sum to one", func(s *TablesSpec) {
			p := s.Categories[models.CategoryMajor]
			p.TechnicalWeight = 0.9
			s.Categories[models.CategoryMajor] = p
		}},
		{"risk reward not increasing", func(s *TablesSpec) {
			p := s.Categories[models.CategoryDefi]
			p.RiskReward = []float64{3, 2}
			s.Categories[models.CategoryDefi] = p
		}},
		{"missing category", func(s *TablesSpec) {
			delete(s.Categories, models.CategoryAltcoins)
		}},
		{"duplicate member", func(s *TablesSpec) {
			p := s.Categories[models.CategoryMeme]
			p.Members = append(p.Members, "BTCUSDT")
			s.Categories[models.CategoryMeme] = p
		}},
		{"bad other tier", func(s *TablesSpec) {
			s.Risk.OtherCategoryMinTier = "GOLD"
		}},
		{"macd fast above slow", func(s *TablesSpec) {
			s.Indicators.MACDFast = 30
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := DefaultTablesSpec()
			tt.mutate(&spec)
			if _, err := NewTables(spec, false); !errors.Is(err, ErrInvalidTables) {
				t.Errorf("NewTables() error = %v, want ErrInvalidTables", err)
			}
		})
	}
}

func TestTestModeRelaxesThresholds(t *testing.T) {
	tables, err := NewTables(DefaultTablesSpec(), true)
	if err != nil {
		t.Fatalf("NewTables() error = %v", err)
	}

	major := tables.Policy(models.CategoryMajor)
	if major.MinConfidence != 50 {
		t.Errorf("MinConfidence = %v, want 50", major.MinConfidence)
	}
	if major.MaxRisk != 75 {
		t.Errorf("MaxRisk = %v, want 75", major.MaxRisk)
	}
	if major.MinVolume != 10_000_000 {
		t.Errorf("MinVolume = %v, want 10M", major.MinVolume)
	}
	if o, _ := tables.PairOverride("PEPEUSDT"); o.MinConfidence != 65 {
		t.Errorf("PEPE MinConfidence = %v, want 65", o.MinConfidence)
	}
}

func TestLoadTablesSpecOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	body := `
risk:
  other_category_min_tier: PREMIUM
  max_leverage: 3
categories:
  meme:
    display_name: Meme
    members: [DOGEUSDT, WIFUSDT]
    technical_weight: 0.8
    fundamental_weight: 0.2
    base_risk: 45
    min_confidence: 90
pairs:
  wifusdt:
    max_leverage: 2
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadTablesSpec(path)
	if err != nil {
		t.Fatalf("LoadTablesSpec() error = %v", err)
	}
	tables, err := NewTables(spec, false)
	if err != nil {
		t.Fatalf("NewTables() error = %v", err)
	}

	if got := tables.OtherCategoryMinTier(); got != models.TierPremium {
		t.Errorf("OtherCategoryMinTier = %v, want PREMIUM", got)
	}
	if got := tables.Risk().MaxLeverage; got != 3 {
		t.Errorf("MaxLeverage = %d, want 3", got)
	}
	// untouched risk fields keep their defaults
	if got := tables.Risk().MaxRiskPerTrade; got != 2 {
		t.Errorf("MaxRiskPerTrade = %v, want 2", got)
	}

	meme := tables.Policy(models.CategoryMeme)
	if meme.MinConfidence != 90 || meme.BaseRisk != 45 {
		t.Errorf("meme policy not overridden: %+v", meme)
	}
	if meme.MaxRisk != 70 {
		t.Errorf("meme MaxRisk = %v, want struct default 70", meme.MaxRisk)
	}
	if c, ok := tables.MemberOf("WIF/USDT"); !ok || c != models.CategoryMeme {
		t.Errorf("MemberOf(WIF/USDT) = %v, %v", c, ok)
	}
	if o, ok := tables.PairOverride("WIFUSDT"); !ok || o.MaxLeverage != 2 || o.VolumeMultiplier != 1 {
		t.Errorf("PairOverride(WIFUSDT) = %+v, %v", o, ok)
	}
	if _, ok := tables.MemberOf("SHIBUSDT"); ok {
		t.Error("SHIBUSDT should be gone after the meme entry was replaced")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("SYMBOLS", "btcusdt, ethusdt")
	t.Setenv("ADMIN_CHAT_IDS", "42,-100123")
	t.Setenv("ANALYSIS_INTERVAL", "30m")
	t.Setenv("MAX_LEVERAGE", "4")
	t.Setenv("INDICATOR_LIBRARY", "native")
	t.Setenv("TEST_MODE", "")
	t.Setenv("TABLES_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "BTCUSDT" {
		t.Errorf("Symbols = %v", cfg.Symbols)
	}
	if !cfg.IsAdmin(-100123) || cfg.IsAdmin(7) {
		t.Errorf("AdminChatIDs = %v", cfg.AdminChatIDs)
	}
	if cfg.AnalysisInterval != 30*time.Minute {
		t.Errorf("AnalysisInterval = %v", cfg.AnalysisInterval)
	}
	if cfg.Tables.Risk().MaxLeverage != 4 {
		t.Errorf("MaxLeverage = %d, want 4", cfg.Tables.Risk().MaxLeverage)
	}
	if cfg.UseIndicatorLibrary() {
		t.Error("UseIndicatorLibrary() = true, want false")
	}
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	t.Setenv("ADMIN_CHAT_IDS", "42,abc")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}
