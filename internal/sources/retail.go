package sources

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sabarim/komoditas/internal/frame"
	"github.com/sabarim/komoditas/internal/logger"
)

// Retail column names, lower-case by contract.
const (
	CommodityColumn = "commodity"
	ProvinceColumn  = "province"
	PriceColumn     = "price"
)

// CommodityFromRetailFile lower-cases the file name up to its first dot.
func CommodityFromRetailFile(name string) string {
	return strings.ToLower(strings.SplitN(name, ".", 2)[0])
}

// LoadRetailPrices reads the per-commodity Indonesian price tables of dir
// (Date plus one column per province) and returns them in long form:
// Date, commodity, province, price.
func LoadRetailPrices(dir string, start, end time.Time) (*frame.Frame, error) {
	log := logger.GetLogger().WithComponent("sources.retail")

	files, err := csvFiles(dir)
	if err != nil {
		return nil, err
	}

	var groups []*frame.Frame
	for _, name := range files {
		path := filepath.Join(dir, name)
		raw, err := frame.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := requireColumns(raw, path, DateColumn); err != nil {
			return nil, err
		}
		filled, err := fillGroup(raw, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		filled.SetConst(CommodityColumn, frame.Str(CommodityFromRetailFile(name)))
		groups = append(groups, filled)
	}

	wide := frame.Concat(groups...)
	long, err := frame.Melt(wide, []string{DateColumn, CommodityColumn}, ProvinceColumn, PriceColumn)
	if err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{"files": len(files), "rows": long.Len()}).Info("retail price data ready")
	return long, nil
}
