package marketdata

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"botfleet/internal/domain"
)

// LoadCSV reads a candle series from a kline export. The expected layout
// is open_time,open,high,low,close,volume with open_time in unix
// milliseconds; extra trailing columns are ignored. A header row is
// detected and skipped.
func LoadCSV(path string) ([]domain.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open candle file %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read candle file %s", path)
	}

	candles := make([]domain.Candle, 0, len(records))
	for i, rec := range records {
		if len(rec) < 6 {
			return nil, errors.Errorf("row %d: expected at least 6 columns, got %d", i, len(rec))
		}
		millis, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			if i == 0 {
				// header row
				continue
			}
			return nil, errors.Wrapf(err, "row %d: parse open_time", i)
		}
		c, err := parseCandle(rec[1], rec[2], rec[3], rec[4], rec[5])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		c.Time = time.Unix(0, millis*int64(time.Millisecond))
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("candle file %s has no data rows", path)
	}
	return candles, nil
}
