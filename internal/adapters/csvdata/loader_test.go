package csvdata_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/adapters/csvdata"
	"github.com/nguyenduccanh011/Backtest-XAUUSD/internal/domain"
)

func parse(t *testing.T, data string, opts ...csvdata.Option) (domain.Series, error) {
	t.Helper()
	return csvdata.NewLoader("test.csv", opts...).Parse(context.Background(), strings.NewReader(data))
}

func TestParse_StandardFormat(t *testing.T) {
	data := "timestamp,open,high,low,close,volume\n" +
		"2024-01-02 00:00:00,2060.1,2062.5,2059.0,2061.2,120\n" +
		"2024-01-02 00:15:00,2061.2,2063.0,2060.4,2062.8,98\n"

	s, err := parse(t, data)
	require.NoError(t, err)
	require.Len(t, s, 2)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s[0].Time)
	assert.Equal(t, 2060.1, s[0].Open)
	assert.Equal(t, 2062.5, s[0].High)
	assert.Equal(t, 2059.0, s[0].Low)
	assert.Equal(t, 2061.2, s[0].Close)
	assert.Equal(t, 120.0, s[0].Volume)
}

func TestParse_WithLocation(t *testing.T) {
	data := "timestamp,open,high,low,close\n" +
		"2024-01-02 00:00:00,2060,2062,2059,2061\n"
	broker := time.FixedZone("UTC+2", 2*60*60)

	s, err := parse(t, data, csvdata.WithLocation(broker))
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.True(t, time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC).Equal(s[0].Time))

	unix := "time,open,high,low,close\n1704153600,2060,2062,2059,2061\n"
	s, err = parse(t, unix, csvdata.WithLocation(broker))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1704153600, 0).UTC(), s[0].Time, "unix timestamps ignore the zone")
}

func TestParse_TradingViewUnixSeconds(t *testing.T) {
	data := "time,open,high,low,close\n" +
		"1704153600,2060,2062,2059,2061\n" +
		"1704154500,2061,2063,2060,2062\n"

	s, err := parse(t, data)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, time.Unix(1704153600, 0).UTC(), s[0].Time)
	assert.Zero(t, s[0].Volume, "volume is optional")
}

func TestParse_MetaTraderJoinsDateAndTime(t *testing.T) {
	data := "Date,Time,Open,High,Low,Close,Volume\n" +
		"2024.01.02,00:00,2060,2062,2059,2061,10\n" +
		"2024.01.02,00:15,2061,2063,2060,2062,11\n"

	s, err := parse(t, data)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC), s[1].Time)
}

func TestParse_DukascopySemicolon(t *testing.T) {
	data := "Local time;Open;High;Low;Close;Volume\n" +
		"02.01.2024 00:00:00.000 GMT+0200;2060;2062;2059;2061;0.5\n" +
		"02.01.2024 00:15:00.000 GMT+0200;2061;2063;2060;2062;0.4\n"

	s, err := parse(t, data)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.True(t, s[0].Time.Equal(time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0.4, s[1].Volume)
}

func TestParse_ForcedFormat(t *testing.T) {
	data := "date,open,high,low,close\n2024-01-02,1,2,0.5,1.5\n"
	s, err := parse(t, data, csvdata.WithFormat(csvdata.FormatStandard))
	require.NoError(t, err)
	assert.Len(t, s, 1)
}

func TestParse_SortsAndDropsDuplicates(t *testing.T) {
	data := "timestamp,open,high,low,close\n" +
		"2024-01-02 00:30:00,3,3,3,3\n" +
		"2024-01-02 00:00:00,1,1,1,1\n" +
		"2024-01-02 00:15:00,2,2,2,2\n" +
		"2024-01-02 00:00:00,9,9,9,9\n"

	s, err := parse(t, data)
	require.NoError(t, err)
	require.Len(t, s, 3)
	assert.Equal(t, []float64{1, 2, 3}, s.Closes(), "first occurrence wins")
	require.NoError(t, s.Validate())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		target error
		line   int
	}{
		{
			name:   "missing close column",
			data:   "timestamp,open,high,low\n2024-01-02,1,2,0.5\n",
			target: domain.ErrNoCloseData,
			line:   1,
		},
		{
			name:   "empty close value",
			data:   "timestamp,open,high,low,close\n2024-01-02,1,2,0.5,\n",
			target: domain.ErrNoCloseData,
			line:   2,
		},
		{
			name:   "empty file",
			data:   "",
			target: domain.ErrEmptySeries,
		},
		{
			name:   "header only",
			data:   "timestamp,open,high,low,close\n",
			target: domain.ErrEmptySeries,
		},
		{
			name: "high below low",
			data: "timestamp,open,high,low,close\n2024-01-02,1,0.5,2,1\n",
		},
		{
			name: "close outside range",
			data: "timestamp,open,high,low,close\n2024-01-02,1,2,0.5,3\n",
		},
		{
			name: "bad timestamp",
			data: "timestamp,open,high,low,close\nyesterday,1,2,0.5,1\n",
			line: 2,
		},
		{
			name: "bad number",
			data: "timestamp,open,high,low,close\n2024-01-02,abc,2,0.5,1\n",
			line: 2,
		},
		{
			name: "missing open column",
			data: "timestamp,high,low,close\n2024-01-02,2,0.5,1\n",
			line: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.data)
			require.Error(t, err)

			var pe *csvdata.ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.Equal(t, "test.csv", pe.Path)
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line)
			}
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestLoadBars_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xau.csv")
	data := "timestamp,open,high,low,close\n" +
		"2024-01-02 00:00:00,1,2,0.5,1.5\n" +
		"2024-01-02 01:00:00,1.5,2,1,1.8\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	s, err := csvdata.NewLoader(path).LoadBars(context.Background())
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestLoadBars_MissingFile(t *testing.T) {
	_, err := csvdata.NewLoader(filepath.Join(t.TempDir(), "nope.csv")).LoadBars(context.Background())
	var pe *csvdata.ParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFormat(t *testing.T) {
	f, err := csvdata.ParseFormat("MetaTrader")
	require.NoError(t, err)
	assert.Equal(t, csvdata.FormatMetaTrader, f)

	f, err = csvdata.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, csvdata.FormatAuto, f)

	_, err = csvdata.ParseFormat("excel")
	assert.Error(t, err)
}
