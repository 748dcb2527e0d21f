package position

import "testing"

func snap(amt, entry string) RestSnapshot {
	return RestSnapshot{
		Symbol:      "BTCUSDT",
		PositionAmt: amt,
		EntryPrice:  entry,
	}
}

func TestUpdateFromRestBothFlat(t *testing.T) {
	m := NewStateManager()
	ok, err := m.UpdateFromRest(snap("0", "0"))
	if err != nil {
		t.Fatalf("UpdateFromRest returned error: %v", err)
	}
	if !ok {
		t.Fatal("flat vs flat must reconcile")
	}
	if m.Failures() != 0 {
		t.Fatalf("failures=%d, expected 0", m.Failures())
	}
}

func TestUpdateFromRestMatching(t *testing.T) {
	m := NewStateManager()
	m.SetLocal(SideLong, 100, 50000)

	ok, err := m.UpdateFromRest(snap("100", "50000"))
	if err != nil {
		t.Fatalf("UpdateFromRest returned error: %v", err)
	}
	if !ok {
		t.Fatal("matching snapshot must reconcile")
	}

	local := m.Local()
	if local.Side != SideLong || local.Size != 100 || local.AvgEntry != 50000 {
		t.Fatalf("local overwritten incorrectly: %+v", local)
	}
}

func TestUpdateFromRestEntryTolerance(t *testing.T) {
	tests := []struct {
		name      string
		restEntry string
		want      bool
	}{
		{"within 1 percent", "50400", true},
		{"outside 1 percent", "51000", false},
		{"zero entry is trusted", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateManager()
			m.SetLocal(SideLong, 100, 50000)
			ok, err := m.UpdateFromRest(snap("100", tt.restEntry))
			if err != nil {
				t.Fatalf("UpdateFromRest returned error: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("reconciled=%v, expected %v", ok, tt.want)
			}
		})
	}
}

// The exchange reporting flat while the bot believes it holds a position is
// an external close: the exchange wins, failures reset, state overwritten.
func TestUpdateFromRestExternalCloseOverride(t *testing.T) {
	m := NewStateManager()
	m.SetLocal(SideLong, 100, 50000)

	ok, err := m.UpdateFromRest(snap("0", "0"))
	if err != nil {
		t.Fatalf("UpdateFromRest returned error: %v", err)
	}
	if !ok {
		t.Fatal("flat exchange must override local position")
	}
	local := m.Local()
	if local.Side != SideFlat || local.Size != 0 {
		t.Fatalf("local not flattened: %+v", local)
	}
	if m.Failures() != 0 {
		t.Fatalf("failures=%d, expected reset to 0", m.Failures())
	}
}

// A position appearing on the exchange while local is flat (bot restart,
// manual trade) is adopted.
func TestUpdateFromRestExternalOpenOverride(t *testing.T) {
	m := NewStateManager()

	ok, err := m.UpdateFromRest(snap("-25", "3000"))
	if err != nil {
		t.Fatalf("UpdateFromRest returned error: %v", err)
	}
	if !ok {
		t.Fatal("exchange position must be adopted when local is flat")
	}
	local := m.Local()
	if local.Side != SideShort || local.Size != 25 || local.AvgEntry != 3000 {
		t.Fatalf("adopted state wrong: %+v", local)
	}
}

func TestUpdateFromRestFailureCountingAndFreeze(t *testing.T) {
	m := NewStateManager()
	m.SetLocal(SideLong, 100, 50000)

	// Same side, badly diverged size: a genuine mismatch.
	for i := 1; i <= 2; i++ {
		ok, err := m.UpdateFromRest(snap("40", "50000"))
		if err != nil {
			t.Fatalf("UpdateFromRest returned error: %v", err)
		}
		if ok {
			t.Fatal("diverged snapshot must not reconcile")
		}
		if m.Failures() != i {
			t.Fatalf("failures=%d, expected %d", m.Failures(), i)
		}
	}
	if !m.FreezeEligible() {
		t.Fatal("two consecutive failures must be freeze eligible")
	}

	// A clean match resets the counter.
	if ok, _ := m.UpdateFromRest(snap("100", "50000")); !ok {
		t.Fatal("matching snapshot must reconcile")
	}
	if m.FreezeEligible() {
		t.Fatal("freeze eligibility must clear after success")
	}
}

// Re-feeding an unchanged snapshot is idempotent.
func TestUpdateFromRestIdempotent(t *testing.T) {
	m := NewStateManager()
	m.SetLocal(SideLong, 100, 50000)

	for i := 0; i < 3; i++ {
		ok, err := m.UpdateFromRest(snap("100", "50000"))
		if err != nil || !ok {
			t.Fatalf("pass %d: ok=%v err=%v", i, ok, err)
		}
	}
	local := m.Local()
	if local.Side != SideLong || local.Size != 100 || local.AvgEntry != 50000 {
		t.Fatalf("state drifted: %+v", local)
	}
	if m.Failures() != 0 {
		t.Fatalf("failures=%d, expected 0", m.Failures())
	}
}

func TestUpdateFromRestBadPayload(t *testing.T) {
	m := NewStateManager()
	if _, err := m.UpdateFromRest(snap("not-a-number", "0")); err == nil {
		t.Fatal("unparsable positionAmt must error")
	}
}
