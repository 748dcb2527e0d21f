package aster

import "testing"

func TestParseTradeMessage(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1700000000100,"s":"BTCUSDT","t":12345,"p":"50123.40","q":"0.002","T":1700000000099,"m":true}`)
	trade, err := parseTradeMessage(raw)
	if err != nil {
		t.Fatalf("parseTradeMessage returned error: %v", err)
	}
	if trade.Symbol != "BTCUSDT" || trade.Price != 50123.40 || trade.Qty != 0.002 {
		t.Fatalf("unexpected trade: %+v", trade)
	}
	if trade.Time != 1700000000099 || !trade.IsBuyerMaker {
		t.Fatalf("time/maker flags wrong: %+v", trade)
	}
}

func TestParseTradeMessageRejectsOtherEvents(t *testing.T) {
	if _, err := parseTradeMessage([]byte(`{"e":"aggTrade","p":"1","q":"1"}`)); err == nil {
		t.Fatal("non-trade event should be rejected")
	}
	if _, err := parseTradeMessage([]byte(`{"e":"trade","p":"oops","q":"1"}`)); err == nil {
		t.Fatal("bad price should be rejected")
	}
}
