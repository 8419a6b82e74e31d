package futures

import (
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/instruments"
)

// Candle is one OHLCV bar as returned by Kite.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Target pairs a configured underlying with the contract whose continuous
// series is downloaded for it.
type Target struct {
	Underlying config.Underlying
	Instrument instruments.Instrument
}

// investingRow mirrors an Investing.com "Historical Data" export, which is
// the layout the global commodity loader reads.
type investingRow struct {
	Date   string `csv:"Date"`
	Price  string `csv:"Price"`
	Open   string `csv:"Open"`
	High   string `csv:"High"`
	Low    string `csv:"Low"`
	Volume string `csv:"Vol."`
	Change string `csv:"Change %"`
}
