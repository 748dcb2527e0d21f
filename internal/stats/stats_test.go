package stats

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Relic999/aester-dex/internal/position"
)

func TestCloseTradePnL(t *testing.T) {
	tests := []struct {
		name     string
		side     position.Side
		entry    float64
		exit     float64
		size     float64
		leverage int
		wantPnL  float64
		wantPct  float64
	}{
		{
			name: "long win", side: position.SideLong,
			entry: 100, exit: 110, size: 2, leverage: 3,
			wantPnL: 20, wantPct: 30,
		},
		{
			name: "long loss", side: position.SideLong,
			entry: 100, exit: 95, size: 1, leverage: 2,
			wantPnL: -5, wantPct: -10,
		},
		{
			name: "short win", side: position.SideShort,
			entry: 100, exit: 90, size: 1, leverage: 1,
			wantPnL: 10, wantPct: 10,
		},
		{
			name: "short loss", side: position.SideShort,
			entry: 100, exit: 104, size: 0.5, leverage: 5,
			wantPnL: -2, wantPct: -20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.StartTrade(tt.side, tt.entry, tt.size, tt.leverage)
			rec := tr.CloseTrade(tt.exit, "take-profit")
			if rec == nil {
				t.Fatal("CloseTrade returned nil")
			}
			if math.Abs(rec.PnL-tt.wantPnL) > 1e-9 {
				t.Fatalf("PnL=%v, expected %v", rec.PnL, tt.wantPnL)
			}
			if math.Abs(rec.PnLPct-tt.wantPct) > 1e-9 {
				t.Fatalf("PnLPct=%v, expected %v", rec.PnLPct, tt.wantPct)
			}
		})
	}
}

func TestCloseTradeWithoutOpen(t *testing.T) {
	tr := NewTracker()
	if rec := tr.CloseTrade(100, "stop-loss"); rec != nil {
		t.Fatalf("closing with no open trade should return nil, got %+v", rec)
	}
}

func TestSummaryAggregates(t *testing.T) {
	tr := NewTracker()
	run := func(side position.Side, entry, exit float64) {
		tr.StartTrade(side, entry, 1, 1)
		tr.CloseTrade(exit, "test")
	}

	run(position.SideLong, 100, 110)  // +10
	run(position.SideLong, 100, 95)   // -5
	run(position.SideShort, 100, 90)  // +10
	run(position.SideLong, 100, 85)   // -15
	run(position.SideShort, 100, 104) // -4

	s := tr.Summarize()
	if s.TotalTrades != 5 || s.Wins != 2 || s.Losses != 3 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if math.Abs(s.TotalPnL+4) > 1e-9 {
		t.Fatalf("TotalPnL=%v, expected -4", s.TotalPnL)
	}
	if math.Abs(s.WinRate-40) > 1e-9 {
		t.Fatalf("WinRate=%v, expected 40", s.WinRate)
	}
	if math.Abs(s.AvgWin-10) > 1e-9 || math.Abs(s.AvgLoss-8) > 1e-9 {
		t.Fatalf("AvgWin=%v AvgLoss=%v, expected 10/8", s.AvgWin, s.AvgLoss)
	}
	if math.Abs(s.ProfitFactor-20.0/24.0) > 1e-9 {
		t.Fatalf("ProfitFactor=%v, expected %v", s.ProfitFactor, 20.0/24.0)
	}
	if s.LargestWin != 10 || s.LargestLoss != -15 {
		t.Fatalf("extremes wrong: %+v", s)
	}
	// Running PnL: 10, 5, 15, 0, -4 → peak 15, trough -4.
	if math.Abs(s.MaxDrawdown-19) > 1e-9 {
		t.Fatalf("MaxDrawdown=%v, expected 19", s.MaxDrawdown)
	}
}

func TestProfitFactorConventions(t *testing.T) {
	onlyWins := NewTracker()
	onlyWins.StartTrade(position.SideLong, 100, 1, 1)
	onlyWins.CloseTrade(110, "test")
	if pf := onlyWins.Summarize().ProfitFactor; !math.IsInf(pf, 1) {
		t.Fatalf("no losses with wins should be +Inf, got %v", pf)
	}

	onlyLosses := NewTracker()
	onlyLosses.StartTrade(position.SideLong, 100, 1, 1)
	onlyLosses.CloseTrade(90, "test")
	if pf := onlyLosses.Summarize().ProfitFactor; pf != 0 {
		t.Fatalf("no wins should be 0, got %v", pf)
	}
}

func TestTradeLogHeaderAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	tl, err := NewTradeLog(path)
	if err != nil {
		t.Fatalf("NewTradeLog returned error: %v", err)
	}

	tr := NewTracker()
	tr.StartTrade(position.SideLong, 100, 2, 3)
	rec := tr.CloseTrade(110, "take-profit")
	if err := tl.Append(*rec); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	// Reopening must not duplicate the header.
	tl2, err := NewTradeLog(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	if err := tl2.Append(*rec); err != nil {
		t.Fatalf("second Append returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Timestamp" || rows[0][10] != "Duration(min)" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "LONG" || rows[1][9] != "take-profit" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}
