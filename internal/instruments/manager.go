package instruments

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/config"
	"github.com/sabarim/komoditas/internal/logger"
)

// InstrumentManager keeps the instruments of one exchange in memory
type InstrumentManager struct {
	config      config.FuturesConfig
	client      *http.Client
	instruments []Instrument
	log         *logger.Entry
}

// NewInstrumentManager creates a new instrument manager
func NewInstrumentManager(cfg config.FuturesConfig) *InstrumentManager {
	return &InstrumentManager{
		config: cfg,
		client: &http.Client{Timeout: time.Minute},
		log:    logger.GetLogger().WithComponent("instruments"),
	}
}

// DownloadInstruments fetches the exchange dump, keeps a copy at
// InstrumentsPath and loads it.
func (im *InstrumentManager) DownloadInstruments(ctx context.Context) error {
	im.log.WithFields(logger.Fields{"exchange": im.config.Exchange, "url": im.config.InstrumentsURL}).Info("downloading instruments")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, im.config.InstrumentsURL, nil)
	if err != nil {
		return err
	}
	resp, err := im.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s instruments: %w", im.config.Exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s instruments, status code: %d", im.config.Exchange, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(im.config.InstrumentsPath), 0755); err != nil {
		return fmt.Errorf("failed to create instruments directory: %w", err)
	}
	file, err := os.Create(im.config.InstrumentsPath)
	if err != nil {
		return fmt.Errorf("failed to create instruments file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to save %s instruments: %w", im.config.Exchange, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}
	return im.LoadInstruments(file)
}

// LoadInstrumentsFile loads a previously saved dump.
func (im *InstrumentManager) LoadInstrumentsFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open instruments file: %w", err)
	}
	defer file.Close()
	return im.LoadInstruments(file)
}

// LoadInstruments parses an instruments CSV, keeping the configured exchange.
func (im *InstrumentManager) LoadInstruments(r io.Reader) error {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int)
	for i, col := range header {
		columns[strings.TrimSpace(col)] = i
	}
	for _, required := range []string{"instrument_token", "tradingsymbol", "name", "expiry", "instrument_type", "exchange"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("instruments CSV lacks column %q", required)
		}
	}
	field := func(record []string, name string) string {
		if i, ok := columns[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	im.instruments = im.instruments[:0]
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}
		if field(record, "exchange") != im.config.Exchange {
			continue
		}

		instrument := Instrument{
			InstrumentToken: parseIntOrZero(field(record, "instrument_token")),
			ExchangeToken:   parseIntOrZero(field(record, "exchange_token")),
			TradingSymbol:   field(record, "tradingsymbol"),
			Name:            field(record, "name"),
			LastPrice:       parseFloatOrZero(field(record, "last_price")),
			TickSize:        parseFloatOrZero(field(record, "tick_size")),
			InstrumentType:  field(record, "instrument_type"),
			Segment:         field(record, "segment"),
			Exchange:        field(record, "exchange"),
			StrikePrice:     parseFloatOrZero(field(record, "strike")),
			LotSize:         parseIntOrZero(field(record, "lot_size")),
		}
		if expiry := field(record, "expiry"); expiry != "" {
			if t, err := time.Parse("2006-01-02", expiry); err == nil {
				instrument.Expiry = t
			}
		}
		im.instruments = append(im.instruments, instrument)
	}

	im.log.WithFields(logger.Fields{"exchange": im.config.Exchange, "count": len(im.instruments)}).Info("loaded instruments")
	return nil
}

// FrontMonth returns the futures contract on underlying with the nearest
// expiry on or after asOf.
func (im *InstrumentManager) FrontMonth(underlying string, asOf time.Time) (Instrument, error) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	var best Instrument
	found := false
	for _, in := range im.instruments {
		if !in.IsFuture() || !strings.EqualFold(in.Name, underlying) || in.Expiry.Before(day) {
			continue
		}
		if !found || in.Expiry.Before(best.Expiry) {
			best, found = in, true
		}
	}
	if !found {
		return Instrument{}, fmt.Errorf("no %s future for %s expiring on or after %s", im.config.Exchange, underlying, day.Format("2006-01-02"))
	}
	return best, nil
}

// Count returns how many instruments are loaded.
func (im *InstrumentManager) Count() int {
	return len(im.instruments)
}

func parseIntOrZero(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
