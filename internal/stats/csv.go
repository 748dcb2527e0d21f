package stats

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"Timestamp", "ID", "Side", "EntryPrice", "ExitPrice",
	"Size", "Leverage", "PnL", "PnL%", "Reason", "Duration(min)",
}

// TradeLog appends closed trades to a CSV file; the header is written once
// when the file is created.
type TradeLog struct {
	path string
	mu   sync.Mutex
}

// NewTradeLog opens (creating if needed) the CSV log at path.
func NewTradeLog(path string) (*TradeLog, error) {
	if path == "" {
		return nil, errors.New("empty trade log path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(abs)
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(f)
		_ = w.Write(csvHeader)
		w.Flush()
		_ = f.Close()
	}
	return &TradeLog{path: abs}, nil
}

// Append writes one closed trade.
func (t *TradeLog) Append(rec TradeRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	duration := rec.ClosedAt.Sub(rec.OpenedAt).Minutes()
	w := csv.NewWriter(f)
	row := []string{
		rec.ClosedAt.Format(time.RFC3339),
		rec.ID,
		string(rec.Side),
		formatF(rec.EntryPrice),
		formatF(rec.ExitPrice),
		formatF(rec.Size),
		strconv.Itoa(rec.Leverage),
		formatF(rec.PnL),
		formatF(rec.PnLPct),
		rec.Reason,
		strconv.FormatFloat(duration, 'f', 1, 64),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
