package aster

// PositionRisk is the signed position snapshot returned by the exchange.
// Numeric fields arrive as strings on the wire.
type PositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
}

// Balance is a single asset balance record.
type Balance struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

// Trade represents a trade print from the public stream.
type Trade struct {
	Symbol       string
	Price        float64
	Qty          float64
	Time         int64 // ms
	IsBuyerMaker bool
}

// OrderAck is the exchange acknowledgement for a submitted order.
type OrderAck struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}
