package position

import (
	"testing"
	"time"
)

func TestTrackerConfirmByPositionChange(t *testing.T) {
	tr := NewOrderTracker()
	now := time.Now()
	tr.TrackOrder("order-1", SideLong, 100, 50000, now)
	tr.TrackOrder("order-2", SideShort, 50, 50000, now)

	if o := tr.ConfirmByPositionChange(SideLong, 99.5); o != nil {
		t.Fatalf("size off by 0.5 must not confirm, got %+v", o)
	}
	o := tr.ConfirmByPositionChange(SideLong, 100.00005)
	if o == nil {
		t.Fatal("size within tolerance must confirm")
	}
	if o.ID != "order-1" || !o.Confirmed {
		t.Fatalf("wrong order confirmed: %+v", o)
	}

	// Already confirmed orders are not matched again.
	if o := tr.ConfirmByPositionChange(SideLong, 100); o != nil {
		t.Fatalf("confirmed order matched twice: %+v", o)
	}
}

func TestTrackerExpiry(t *testing.T) {
	tr := NewOrderTracker()
	base := time.Now()
	tr.TrackOrder("order-1", SideLong, 100, 50000, base)
	tr.TrackOrder("order-2", SideShort, 50, 49000, base)
	tr.ConfirmByPositionChange(SideShort, 50)

	if expired := tr.ExpireStale(base.Add(10 * time.Second)); len(expired) != 0 {
		t.Fatalf("nothing should expire before the deadline, got %d", len(expired))
	}

	expired := tr.ExpireStale(base.Add(31 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired order, got %d", len(expired))
	}
	if expired[0].ID != "order-1" {
		t.Fatalf("wrong order expired: %+v", expired[0])
	}
	// Confirmed order survives.
	if tr.Pending() != 1 {
		t.Fatalf("pending=%d, expected 1", tr.Pending())
	}
}

func TestTrackerClear(t *testing.T) {
	tr := NewOrderTracker()
	tr.TrackOrder("order-1", SideLong, 100, 50000, time.Now())
	tr.Clear()
	if tr.Pending() != 0 {
		t.Fatalf("pending=%d after clear, expected 0", tr.Pending())
	}
}
