package tracking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

// ComputeStats counts outcomes and the time to TP1 over closed trackings
func ComputeStats(all []*models.TPTracking) models.TPStats {
	st := models.TPStats{Total: len(all)}
	var tp1Minutes []float64
	reached := 0

	for _, tr := range all {
		if tr.Active {
			st.Active++
			continue
		}
		st.Closed++
		switch tr.Result {
		case models.TPHitTP2:
			st.TP2Hits++
		case models.TPHitSL:
			st.SLHits++
		case models.TPExpired:
			st.Expired++
		}
		if tr.TP1Reached {
			st.TP1Hits++
			reached++
			if tr.TP1At != nil {
				tp1Minutes = append(tp1Minutes, tr.TP1At.Sub(tr.StartedAt).Minutes())
			}
		}
	}

	if st.Closed > 0 {
		st.SuccessRate = float64(reached) / float64(st.Closed) * 100
	}
	if len(tp1Minutes) > 0 {
		st.FastestTP1 = math.Inf(1)
		var sum float64
		for _, m := range tp1Minutes {
			sum += m
			st.FastestTP1 = math.Min(st.FastestTP1, m)
			st.SlowestTP1 = math.Max(st.SlowestTP1, m)
		}
		st.AvgMinutesTP1 = sum / float64(len(tp1Minutes))
	}
	return st
}

// FormatStats renders statistics as a Telegram HTML message
func FormatStats(st models.TPStats) string {
	if st.Closed == 0 {
		return fmt.Sprintf("<b>Take profit statistics</b>\n\nNo closed signals yet. Active: %d", st.Active)
	}

	var b strings.Builder
	b.WriteString("<b>Take profit statistics</b>\n\n")
	fmt.Fprintf(&b, "Closed: %d, active: %d\n", st.Closed, st.Active)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n\n", st.SuccessRate)
	fmt.Fprintf(&b, "TP1 reached: %d\nTP2 reached: %d\nStop loss: %d\nExpired: %d\n", st.TP1Hits, st.TP2Hits, st.SLHits, st.Expired)
	if st.AvgMinutesTP1 > 0 {
		fmt.Fprintf(&b, "\nTime to TP1: avg %s, fastest %s, slowest %s\n",
			formatMinutes(st.AvgMinutesTP1), formatMinutes(st.FastestTP1), formatMinutes(st.SlowestTP1))
	}
	return b.String()
}

func formatMinutes(m float64) string {
	return FormatDuration(time.Duration(m * float64(time.Minute)))
}

// FormatDuration renders 2d 3h, 3h 20m or 45m
func FormatDuration(d time.Duration) string {
	total := int(d.Minutes())
	days, hours, minutes := total/1440, total%1440/60, total%60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
