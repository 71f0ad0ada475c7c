package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/checkfeed/checkfeed/pkg/types"
)

// ErrSchemaMismatch means the table does not have the expected seven columns
// of equal length. Callers treat it like an absent table.
var ErrSchemaMismatch = errors.New("aggregate: table schema mismatch")

// Column positions in the raw results table.
const (
	colIndex = iota
	colName
	colResult
	colFailureRate
	colResultDate
	colSuccess
	colFailure

	// ColumnCount is the number of columns DecodeTable expects.
	ColumnCount
)

// DecodeStats reports how many rows were read and how many were skipped.
type DecodeStats struct {
	Rows    int
	Skipped int
}

// DecodeTable converts a columnar results table into RawTestRun values.
//
// The result date column is decoded as wall-clock time in loc. A row whose
// date cannot be decoded is skipped; the remaining rows are still returned.
func DecodeTable(columns [][]types.TableCell, loc *time.Location) ([]RawTestRun, DecodeStats, error) {
	if len(columns) != ColumnCount {
		return nil, DecodeStats{}, fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, len(columns), ColumnCount)
	}
	n := len(columns[colName])
	for i, col := range columns {
		if len(col) != n {
			return nil, DecodeStats{}, fmt.Errorf("%w: column %d has %d rows, want %d", ErrSchemaMismatch, i, len(col), n)
		}
	}

	stats := DecodeStats{Rows: n}
	runs := make([]RawTestRun, 0, n)
	for i := 0; i < n; i++ {
		ts, err := FromOADate(columns[colResultDate][i].DoubleValue, loc)
		if err != nil {
			stats.Skipped++
			slog.Debug("aggregate: skipping row with bad result date",
				"row", i, "index", columns[colIndex][i].StringValue, "err", err)
			continue
		}
		runs = append(runs, RawTestRun{
			Index:              columns[colIndex][i].StringValue,
			TestName:           columns[colName][i].StringValue,
			ResultCode:         resultCode(columns[colResult][i].DoubleValue),
			FailureRatePercent: columns[colFailureRate][i].DoubleValue,
			Timestamp:          ts,
			SuccessCount:       columns[colSuccess][i].DoubleValue,
			FailureCount:       columns[colFailure][i].DoubleValue,
		})
	}
	return runs, stats, nil
}

// resultCode rounds the stored double half-to-even. Values that do not fit an
// int32 map to -1, which reads as a failure.
func resultCode(v float64) int {
	r := math.RoundToEven(v)
	if math.IsNaN(r) || r > math.MaxInt32 || r < math.MinInt32 {
		return -1
	}
	return int(r)
}
