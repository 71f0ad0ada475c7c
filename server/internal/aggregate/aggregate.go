package aggregate

import (
	"math"
	"time"
)

// Result values derived from a run's result code.
const (
	ResultOK   = "OK"
	ResultFail = "Fail"
)

// RawTestRun is one decoded row of the results table.
type RawTestRun struct {
	Index              string
	TestName           string
	ResultCode         int // 0 = success
	FailureRatePercent float64
	Timestamp          time.Time // wall clock in the source location
	SuccessCount       float64
	FailureCount       float64
}

// Summary is the windowed result for one test name.
type Summary struct {
	Index       string
	Name        string
	Result      string
	FailureRate float64 // as reported by the latest run

	// LongDurationFailureRate is Failed/Total*100 over every in-window run.
	LongDurationFailureRate float64

	LatestTimestamp time.Time // UTC

	Total  float64 // success + failure counts over every in-window run
	Failed float64
}

// Window is an inclusive [Start, End] time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, bounds included. Times
// are compared as instants, whatever their locations.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Aggregate reduces runs to one Summary per test name for the inclusive
// window [start, end].
//
// Index, Result, FailureRate and LatestTimestamp come from the run with the
// greatest timestamp; on equal timestamps the run seen first wins. Counters
// are summed over all in-window runs. Summaries are returned in the order the
// test names first appear in runs. The result is never nil.
func Aggregate(runs []RawTestRun, start, end time.Time) []Summary {
	w := Window{Start: start, End: end}
	acc := newAccumulator()
	for _, r := range runs {
		if !w.Contains(r.Timestamp) {
			continue
		}
		acc.add(r)
	}
	return acc.summaries()
}

// aggregatedTest is the running state for one test name.
type aggregatedTest struct {
	index       string
	name        string
	result      string
	failureRate float64
	latest      time.Time
	total       float64
	failed      float64
}

// accumulator keeps entries in first-seen order.
type accumulator struct {
	byName  map[string]*aggregatedTest
	ordered []*aggregatedTest
}

func newAccumulator() *accumulator {
	return &accumulator{byName: make(map[string]*aggregatedTest)}
}

func (a *accumulator) add(r RawTestRun) {
	result := ResultOK
	if r.ResultCode != 0 {
		result = ResultFail
	}

	t, ok := a.byName[r.TestName]
	if !ok {
		t = &aggregatedTest{
			index:       r.Index,
			name:        r.TestName,
			result:      result,
			failureRate: r.FailureRatePercent,
			latest:      r.Timestamp,
		}
		a.byName[r.TestName] = t
		a.ordered = append(a.ordered, t)
	} else if r.Timestamp.After(t.latest) {
		t.index = r.Index
		t.result = result
		t.failureRate = r.FailureRatePercent
		t.latest = r.Timestamp
	}

	t.total += r.SuccessCount + r.FailureCount
	t.failed += r.FailureCount
}

func (a *accumulator) summaries() []Summary {
	out := make([]Summary, 0, len(a.ordered))
	for _, t := range a.ordered {
		out = append(out, Summary{
			Index:                   t.index,
			Name:                    t.name,
			Result:                  t.result,
			FailureRate:             t.failureRate,
			LongDurationFailureRate: longDurationRate(t.failed, t.total),
			LatestTimestamp:         t.latest.UTC(),
			Total:                   t.total,
			Failed:                  t.failed,
		})
	}
	return out
}

// longDurationRate returns failed/total*100. The zero guard looks at the
// integer part of total only, so any total in (-1, 1) yields 0.
func longDurationRate(failed, total float64) float64 {
	if math.Trunc(total) == 0 {
		return 0
	}
	return (failed / total) * 100
}
