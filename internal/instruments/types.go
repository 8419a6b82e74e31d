package instruments

import "time"

// Instrument represents a tradable contract from the Kite instruments dump
type Instrument struct {
	InstrumentToken int64
	ExchangeToken   int64
	TradingSymbol   string
	Name            string
	LastPrice       float64
	TickSize        float64
	Expiry          time.Time
	InstrumentType  string
	Segment         string
	Exchange        string
	StrikePrice     float64
	LotSize         int64
}

// IsFuture reports whether the instrument is a futures contract.
func (i Instrument) IsFuture() bool {
	return i.InstrumentType == "FUT"
}
