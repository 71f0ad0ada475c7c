package feed

import (
	"math"
	"strconv"
	"time"

	"github.com/checkfeed/checkfeed/pkg/types"
	"github.com/checkfeed/checkfeed/server/internal/aggregate"
)

// Column names, in page order.
const (
	ColumnIndex           = "Index"
	ColumnTest            = "Test"
	ColumnResult          = "Result"
	ColumnFailureRateLast = "Failure Rate % (Last run)"
	ColumnFailureRateLong = "Failure Rate % (Long Duration)"
	ColumnTime            = "Time"
)

// Argument labels and the query parameters they map to on the REST API.
const (
	ArgumentStart          = "Start Date"
	ArgumentEnd            = "Start End"
	ArgumentStartParameter = "start"
	ArgumentEndParameter   = "end"
)

// Columns returns the page columns in order.
func Columns() []types.Column {
	return []types.Column{
		{Name: ColumnIndex, Type: types.ColumnString},
		{Name: ColumnTest, Type: types.ColumnString},
		{Name: ColumnResult, Type: types.ColumnString},
		{Name: ColumnFailureRateLast, Type: types.ColumnDouble},
		{Name: ColumnFailureRateLong, Type: types.ColumnDouble},
		{Name: ColumnTime, Type: types.ColumnDateTime},
	}
}

// Arguments returns the two required window bounds.
func Arguments() []types.Argument {
	return []types.Argument{
		{Name: ArgumentStart, Param: ArgumentStartParameter, Type: types.ColumnDateTime, Required: true},
		{Name: ArgumentEnd, Param: ArgumentEndParameter, Type: types.ColumnDateTime, Required: true},
	}
}

// BuildPage decodes columns with result dates in loc, aggregates them over w
// and shapes the result. On error the returned page is empty.
//
// The location conversion happens at decode time: each result date becomes
// the instant its wall clock denotes in loc. w is compared by instant, so its
// bounds may be in any location.
func BuildPage(columns [][]types.TableCell, w aggregate.Window, loc *time.Location) (types.Page, aggregate.DecodeStats, error) {
	if loc == nil {
		loc = time.Local
	}
	runs, stats, err := aggregate.DecodeTable(columns, loc)
	if err != nil {
		return types.EmptyPage(), stats, err
	}
	summaries := aggregate.Aggregate(runs, w.Start, w.End)
	return types.Page{Rows: BuildRows(summaries), HasNextPage: false}, stats, nil
}

// BuildRows shapes one row per summary in the order of Columns.
func BuildRows(summaries []aggregate.Summary) []types.Row {
	rows := make([]types.Row, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, types.Row{Cells: []types.Cell{
			{Value: s.Index},
			{Value: s.Name},
			{Value: s.Result},
			{Value: s.FailureRate, DisplayValue: formatPercent(s.FailureRate)},
			{Value: s.LongDurationFailureRate, DisplayValue: formatPercent(s.LongDurationFailureRate)},
			{Value: s.LatestTimestamp.UTC().Format(time.RFC3339Nano)},
		}})
	}
	return rows
}

// formatPercent rounds v half-to-even to two decimals and prints it in its
// shortest form: 15 -> "15 %", 10.125 -> "10.12 %".
func formatPercent(v float64) string {
	r := math.RoundToEven(v*100) / 100
	return strconv.FormatFloat(r, 'f', -1, 64) + " %"
}
