package events

// Event enumerates high-level topics inside the signal engine.
type Event string

const (
	EventTick           Event = "tick"
	EventBarClose       Event = "bar_close"
	EventSignal         Event = "signal"
	EventPositionChange Event = "position_change"
	EventLog            Event = "log"
	EventStop           Event = "stop"
	EventOrderSubmitted Event = "order.submitted"
	EventOrderFilled    Event = "order.filled"
	EventOrderRejected  Event = "order.rejected"
	EventOrderExpired   Event = "order.expired"
	EventReconciliation Event = "reconciliation"
	EventBalance        Event = "balance"
)
