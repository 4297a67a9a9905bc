package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backtestlab/internal/domain"
)

var _ Provider = (*StaticProvider)(nil)

// StaticProvider serves pre-exported CSV files named
// <dir>/<TICKER>_<start>_<end>.csv with a Date column followed by
// Open, High, Low, Close and an optional Volume column. Columns are matched
// by header name, case-insensitively.
type StaticProvider struct {
	dir string
}

// NewStaticProvider creates a StaticProvider reading from dir.
func NewStaticProvider(dir string) *StaticProvider {
	return &StaticProvider{dir: dir}
}

// Name returns the provider identifier.
func (p *StaticProvider) Name() string { return "static" }

// Path returns the file the provider reads for a request.
func (p *StaticProvider) Path(symbol string, start, end time.Time) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s_%s.csv",
		NormalizeSymbol(symbol), start.Format(DateLayout), end.Format(DateLayout)))
}

// GetBars reads the file for the exact (symbol, start, end) request.
func (p *StaticProvider) GetBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	path := p.Path(symbol, start, end)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no static file %s", domain.ErrDataUnavailable, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrDataUnavailable, path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f, NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDataUnavailable, filepath.Base(path), err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", domain.ErrDataUnavailable, filepath.Base(path))
	}
	return bars, nil
}

// ReadCSV decodes OHLCV rows. The first column, or a column named Date, is
// the bar date; anything after the first ten characters is ignored so
// "2024-01-02 00:00:00" parses too.
func ReadCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		dateCol = 0
	}
	idx := map[string]int{}
	for _, name := range []string{"open", "high", "low", "close"} {
		i, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[name] = i
	}
	volCol, hasVol := cols["volume"]

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		raw := strings.TrimSpace(field(rec, dateCol))
		if len(raw) > len(DateLayout) {
			raw = raw[:len(DateLayout)]
		}
		day, err := time.Parse(DateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, field(rec, dateCol))
		}

		b := domain.Bar{Symbol: symbol, Timestamp: day}
		prices := map[string]*float64{"open": &b.Open, "high": &b.High, "low": &b.Low, "close": &b.Close}
		for name, dst := range prices {
			v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, idx[name])), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad %s: %w", line, name, err)
			}
			*dst = v
		}
		if hasVol {
			if v, err := strconv.ParseFloat(strings.TrimSpace(field(rec, volCol)), 64); err == nil {
				b.Volume = int64(v)
			}
		}
		bars = append(bars, b)
	}
	sortBars(bars)
	return bars, nil
}

// WriteCSV encodes bars in the layout ReadCSV accepts.
func WriteCSV(w io.Writer, bars []domain.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Timestamp.Format(DateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
