package interval

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/wasilibs/go-re2"
)

// isoDuration is an ISO-8601 duration split into calendar and clock parts.
// Calendar parts follow the calendar (a month is not 30 days), the clock part
// is exact.
type isoDuration struct {
	years, months, days int
	clock               time.Duration
}

var reISODuration = re2.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

func parseISODuration(s string) (isoDuration, error) {
	up := strings.ToUpper(s)
	m := reISODuration.FindStringSubmatch(up)
	if m == nil || strings.HasSuffix(up, "T") {
		return isoDuration{}, errors.Mark(errors.Newf("malformed ISO-8601 duration %q", s), ErrInvalidSpec)
	}

	var bad error
	num := func(v, part string, limit int) int {
		if v == "" || bad != nil {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil || n > limit {
			bad = errors.Mark(errors.Newf("%s in duration %q is out of range", part, s), ErrInvalidSpec)
			return 0
		}
		return n
	}

	d := isoDuration{
		years:  num(m[1], "years", maxCalendarCount),
		months: num(m[2], "months", maxCalendarCount),
		days:   num(m[3], "weeks", maxCalendarCount)*7 + num(m[4], "days", maxCalendarCount),
	}
	hours, hok := scaleDuration(num(m[5], "hours", math.MaxInt), time.Hour)
	minutes, mok := scaleDuration(num(m[6], "minutes", math.MaxInt), time.Minute)
	clock, cok := sumDuration(hours, minutes)
	if bad != nil {
		return isoDuration{}, bad
	}
	if !hok || !mok || !cok {
		return isoDuration{}, errors.Mark(errors.Newf("clock part of duration %q is out of range", s), ErrInvalidSpec)
	}
	d.clock = clock
	if m[7] != "" {
		secs, err := strconv.ParseFloat(strings.Replace(m[7], ",", ".", 1), 64)
		if err != nil {
			return isoDuration{}, errors.Mark(errors.Wrapf(err, "seconds in %q", s), ErrInvalidSpec)
		}
		if secs >= math.MaxInt64/float64(time.Second) {
			return isoDuration{}, errors.Mark(errors.Newf("seconds in duration %q are out of range", s), ErrInvalidSpec)
		}
		if d.clock, cok = sumDuration(d.clock, time.Duration(secs*float64(time.Second))); !cok {
			return isoDuration{}, errors.Mark(errors.Newf("clock part of duration %q is out of range", s), ErrInvalidSpec)
		}
	}

	if d.years == 0 && d.months == 0 && d.days == 0 && d.clock == 0 {
		return isoDuration{}, errors.Mark(errors.Newf("duration %q is zero", s), ErrInvalidSpec)
	}
	if !d.addTo(phraseProbe).After(phraseProbe) {
		return isoDuration{}, errors.Mark(errors.Newf("duration %q overflows", s), ErrInvalidSpec)
	}
	return d, nil
}

func (d isoDuration) addTo(t time.Time) time.Time {
	if d.years != 0 || d.months != 0 || d.days != 0 {
		t = t.AddDate(d.years, d.months, d.days)
	}
	return t.Add(d.clock)
}

// maxCalendarCount bounds year, month, week and day counts. Larger values
// push AddDate past the range of time.Time.
const maxCalendarCount = 1_000_000

// scaleDuration returns n*unit, or false when the product overflows.
func scaleDuration(n int, unit time.Duration) (time.Duration, bool) {
	limit := int64(math.MaxInt64) / int64(unit)
	if int64(n) > limit || int64(n) < -limit {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// sumDuration returns a+b, or false when the sum overflows.
func sumDuration(a, b time.Duration) (time.Duration, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
