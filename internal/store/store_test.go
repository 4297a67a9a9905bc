package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backtestlab/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	// Test barPath produces the expected layout.
	bp := ps.barPath("aapl", domain.MarketUS, 2024)

	wantBarPath := filepath.Join("/data", "us", "daily", "AAPL", "2024.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}

	// Test rangePath produces the expected layout.
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	rp := ps.rangePath("tsla", start, end)

	wantRangePath := filepath.Join("/data", "cache", "TSLA_2023-01-01_2024-06-15.parquet")
	if rp != wantRangePath {
		t.Errorf("rangePath mismatch:\n  got  %s\n  want %s", rp, wantRangePath)
	}
}

func sampleBars(symbol string) []domain.Bar {
	return []domain.Bar{
		{
			Symbol:     symbol,
			Timestamp:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:       185.0,
			High:       186.5,
			Low:        184.0,
			Close:      185.5,
			Volume:     50000000,
			TradeCount: 500000,
			VWAP:       185.25,
		},
		{
			Symbol:     symbol,
			Timestamp:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:       185.5,
			High:       187.0,
			Low:        185.0,
			Close:      186.0,
			Volume:     45000000,
			TradeCount: 450000,
			VWAP:       185.75,
		},
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.WriteBars(ctx, domain.MarketUS, sampleBars("AAPL")); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "AAPL", domain.MarketUS, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
	if !got[0].Timestamp.Equal(start.AddDate(0, 0, 1)) || got[0].Timestamp.Location() != time.UTC {
		t.Errorf("first bar Timestamp = %v, want 2024-01-02 UTC", got[0].Timestamp)
	}

	// Bars outside the window are filtered.
	narrow, err := ps.ReadBars(ctx, "AAPL", domain.MarketUS, start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(narrow) != 1 {
		t.Errorf("ReadBars(narrow) returned %d bars, want 1", len(narrow))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := sampleBars("MSFT")
	if err := ps.WriteBars(ctx, domain.MarketUS, bars[:1]); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Write another bar for same symbol+year; should merge, not overwrite.
	if err := ps.WriteBars(ctx, domain.MarketUS, bars[1:]); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	// Rewriting an existing timestamp replaces it.
	updated := bars[0]
	updated.Close = 190
	if err := ps.WriteBars(ctx, domain.MarketUS, []domain.Bar{updated}); err != nil {
		t.Fatalf("WriteBars (third): %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "MSFT", domain.MarketUS, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 190 {
		t.Errorf("merged bar Close = %v, want 190", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.WriteBars(ctx, domain.MarketUS, append(sampleBars("GOOGL"), sampleBars("AAPL")...)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, domain.MarketUS)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols returned %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}

	empty, err := ps.ListSymbols(ctx, domain.MarketCN)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListSymbols(cn) = %v, %v; want empty, nil", empty, err)
	}
}

func TestParquetStoreRangeCache(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	if _, ok, err := ps.LoadRange(ctx, "AAPL", start, end, time.Hour); ok || err != nil {
		t.Fatalf("LoadRange before save = %v, %v; want miss", ok, err)
	}

	if err := ps.SaveRange(ctx, "AAPL", start, end, sampleBars("AAPL")); err != nil {
		t.Fatalf("SaveRange: %v", err)
	}

	got, ok, err := ps.LoadRange(ctx, "AAPL", start, end, time.Hour)
	if err != nil || !ok {
		t.Fatalf("LoadRange = %v, %v; want hit", ok, err)
	}
	if len(got) != 2 || got[1].VWAP != 185.75 {
		t.Errorf("LoadRange returned %+v", got)
	}

	// Age the file past the max age.
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(ps.rangePath("AAPL", start, end), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if _, ok, _ := ps.LoadRange(ctx, "AAPL", start, end, time.Hour); ok {
		t.Error("LoadRange returned a stale entry")
	}
	if _, ok, _ := ps.LoadRange(ctx, "AAPL", start, end, 0); !ok {
		t.Error("LoadRange with zero maxAge should accept any age")
	}

	// No temporary files are left behind.
	entries, _ := os.ReadDir(filepath.Join(dir, "cache"))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return store
}

func TestSQLiteStoreOpen(t *testing.T) {
	store := newTestSQLite(t)

	// Verify the store is usable by pinging the database.
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func testRun(id string, created time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		ID:             id,
		Strategy:       "moving_average",
		Symbol:         "AAPL",
		Start:          time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Params:         map[string]float64{"fast_window": 20, "slow_window": 50},
		InitialCapital: 100000,
		FinalCapital:   112345.67,
		TotalReturn:    12.35,
		SharpeRatio:    1.1,
		MaxDrawdown:    -8.2,
		TotalTrades:    2,
		CreatedAt:      created,
	}
}

func TestSQLiteStoreRuns(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	trades := []domain.Trade{
		{
			EntryDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), EntryPrice: 140,
			Direction: domain.DirectionLong, Size: 1,
			ExitDate: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), ExitPrice: 154,
			PnLPercent: 10, PnLDollars: 10000,
		},
		{
			EntryDate: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), EntryPrice: 180,
			Direction: domain.DirectionLong, Size: 1,
			ExitDate: time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), ExitPrice: 171,
			PnLPercent: -5, PnLDollars: -5000,
		},
	}

	if err := store.SaveRun(ctx, testRun("run-a", now), trades); err != nil {
		t.Fatalf("SaveRun(run-a): %v", err)
	}
	if err := store.SaveRun(ctx, testRun("run-b", now.Add(time.Minute)), nil); err != nil {
		t.Fatalf("SaveRun(run-b): %v", err)
	}

	got, err := store.GetRun(ctx, "run-a")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Strategy != "moving_average" || got.Symbol != "AAPL" {
		t.Errorf("GetRun = %+v", got)
	}
	if got.Params["slow_window"] != 50 {
		t.Errorf("Params[slow_window] = %v, want 50", got.Params["slow_window"])
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
	if got.End.Format(dateLayout) != "2023-12-31" {
		t.Errorf("End = %v, want 2023-12-31", got.End)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Errorf("ListRuns order = %v, want [run-b run-a]", runIDs(runs))
	}
	limited, _ := store.ListRuns(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("ListRuns(1) returned %d runs, want 1", len(limited))
	}

	gotTrades, err := store.ListRunTrades(ctx, "run-a")
	if err != nil {
		t.Fatalf("ListRunTrades: %v", err)
	}
	if len(gotTrades) != 2 {
		t.Fatalf("ListRunTrades returned %d trades, want 2", len(gotTrades))
	}
	if gotTrades[1] != trades[1] {
		t.Errorf("trade 1 = %+v, want %+v", gotTrades[1], trades[1])
	}

	empty, err := store.ListRunTrades(ctx, "run-b")
	if err != nil || len(empty) != 0 {
		t.Errorf("ListRunTrades(run-b) = %v, %v; want empty", empty, err)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
	if _, err := store.ListRunTrades(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ListRunTrades error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreDuplicateID(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	run := testRun("dup", time.Now())

	if err := store.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(ctx, run, nil); err == nil {
		t.Error("SaveRun with duplicate ID should fail")
	}
}

func runIDs(runs []domain.RunRecord) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
