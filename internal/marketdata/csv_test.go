package marketdata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV_ParsesHeaderAndRows(t *testing.T) {
	path := writeCSV(t, `open_time,open,high,low,close,volume,close_time
1704067200000,42000.5,42100,41900,42050.25,12.5,1704067259999
1704067260000,42050.25,42200,42000,42150,8.75,1704067319999
`)

	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, time.Unix(0, 1704067200000*int64(time.Millisecond)), first.Time)
	assert.True(t, first.Open.Equal(decimal.RequireFromString("42000.5")))
	assert.True(t, first.Close.Equal(decimal.RequireFromString("42050.25")))
	assert.True(t, first.Volume.Equal(decimal.RequireFromString("12.5")))
}

func TestLoadCSV_NoHeader(t *testing.T) {
	path := writeCSV(t, "1704067200000,1,2,0.5,1.5,100\n")
	candles, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.True(t, candles[0].High.Equal(decimal.RequireFromString("2")))
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)

	_, err = LoadCSV(writeCSV(t, "open_time,open,high,low,close,volume\n"))
	require.Error(t, err, "header only, no data rows")

	_, err = LoadCSV(writeCSV(t, "1704067200000,1,2\n"))
	require.Error(t, err, "too few columns")

	_, err = LoadCSV(writeCSV(t, "1704067200000,1,2,0.5,not-a-number,100\n"))
	require.Error(t, err)
}
