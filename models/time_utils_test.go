package models

import (
	"testing"
	"time"
)

func TestNormalizeInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1h", "60", false},
		{"4h", "240", false},
		{"1d", "D", false},
		{"1w", "W", false},
		{"1M", "M", false},
		{"15min", "15", false},
		{"240", "240", false},
		{"D", "D", false},
		{"7h", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeInterval(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeInterval(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeInterval(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIntervalDuration(t *testing.T) {
	if got := IntervalDuration("240"); got != 4*time.Hour {
		t.Errorf("IntervalDuration(240) = %v", got)
	}
	if got := IntervalDuration("D"); got != 24*time.Hour {
		t.Errorf("IntervalDuration(D) = %v", got)
	}
	if got := IntervalDuration("x"); got != 0 {
		t.Errorf("IntervalDuration(x) = %v", got)
	}
	if got := CandlesForDays("240", 10); got != 66 {
		t.Errorf("CandlesForDays(240, 10) = %d, want 66", got)
	}
}
