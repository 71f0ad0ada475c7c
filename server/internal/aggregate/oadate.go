package aggregate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidOADate is returned for OLE Automation dates outside the
// representable range (or NaN).
var ErrInvalidOADate = errors.New("aggregate: invalid OLE automation date")

const (
	millisPerDay = 24 * 60 * 60 * 1000

	// Exclusive bounds of a valid OLE Automation date: 0100-01-01 to 9999-12-31.
	oaDateMin = -657435.0
	oaDateMax = 2958466.0
)

// epoch day of the OLE Automation calendar: 1899-12-30.
var oaEpochUnixDays = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC).Unix() / 86400

// FromOADate decodes an OLE Automation date into a wall-clock time in loc.
//
// The integer part counts days from 1899-12-30 and the fractional part is the
// time of day. For negative values the fraction still counts forward from
// midnight, so -1.25 is 1899-12-29 06:00. The result is rounded to the
// nearest millisecond.
func FromOADate(d float64, loc *time.Location) (time.Time, error) {
	if math.IsNaN(d) || d <= oaDateMin || d >= oaDateMax {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidOADate, d)
	}
	if loc == nil {
		loc = time.Local
	}

	var millis int64
	if d >= 0 {
		millis = int64(d*millisPerDay + 0.5)
	} else {
		millis = int64(d*millisPerDay - 0.5)
	}
	if millis < 0 {
		millis -= (millis % millisPerDay) * 2
	}

	days := floorDiv(millis, millisPerDay)
	rem := millis - days*millisPerDay

	// time.Date normalises the day overflow; building the wall clock this way
	// keeps the time of day independent of DST transitions in loc.
	return time.Date(1899, time.December, 30+int(days), 0, 0, 0, int(rem)*int(time.Millisecond), loc), nil
}

// ToOADate encodes the wall-clock time of t (in t's own location) as an OLE
// Automation date. It is the inverse of FromOADate to millisecond precision.
func ToOADate(t time.Time) float64 {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()/86400 - oaEpochUnixDays

	h, mi, s := t.Clock()
	ms := int64(h)*3_600_000 + int64(mi)*60_000 + int64(s)*1000 + int64(t.Nanosecond())/int64(time.Millisecond)
	frac := float64(ms) / millisPerDay

	if days < 0 {
		return float64(days) - frac
	}
	return float64(days) + frac
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
