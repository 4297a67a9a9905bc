package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"backtestlab/internal/domain"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"fast_window=10", " slow_window = 30.5 "})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if got["fast_window"] != 10 || got["slow_window"] != 30.5 {
		t.Errorf("parseParams = %v", got)
	}

	if got, err := parseParams(nil); got != nil || err != nil {
		t.Errorf("parseParams(nil) = %v, %v, want nil, nil", got, err)
	}

	for _, bad := range []string{"window", "=3", "window=ten"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) = nil error, want error", bad)
		}
	}
}

func TestFormatParams(t *testing.T) {
	got := formatParams(map[string]float64{"slow_window": 50, "fast_window": 20})
	if want := "fast_window=20 slow_window=50"; got != want {
		t.Errorf("formatParams = %q, want %q", got, want)
	}
}

func TestPrintTrades(t *testing.T) {
	var buf bytes.Buffer
	printTrades(&buf, nil)
	if strings.TrimSpace(buf.String()) != "no trades" {
		t.Errorf("empty trades = %q", buf.String())
	}

	buf.Reset()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	printTrades(&buf, []domain.Trade{{
		EntryDate:  day,
		EntryPrice: 100,
		Direction:  domain.DirectionLong,
		Size:       1,
		ExitDate:   day.AddDate(0, 0, 5),
		ExitPrice:  110,
		PnLPercent: 10,
		PnLDollars: 10,
	}})
	out := buf.String()
	for _, want := range []string{"2024-03-01", "2024-03-06", "long", "110.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("printTrades output missing %q:\n%s", want, out)
		}
	}
}
