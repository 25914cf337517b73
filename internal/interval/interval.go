// Package interval computes when a recurring job next becomes due.
//
// Three grammars are accepted, selected by the leading marker of the
// specification:
//
//	P10DT4H, PT15M          ISO-8601 duration, added to the last run
//	cron:*/5 * * * *, @daily cron expression (robfig/cron)
//	next day at 5:00        relative phrase, anchored at the last run
//
// A job that never ran is anchored at Never, so its first evaluation is
// always due.
package interval

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidSpec marks every error caused by a malformed interval specification.
var ErrInvalidSpec = errors.New("invalid interval specification")

// Never is the anchor used for jobs without a recorded run.
var Never = time.Unix(0, 0).UTC()

// Kind identifies the grammar of a parsed specification.
type Kind int

const (
	KindDuration Kind = iota
	KindCron
	KindPhrase
)

func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindCron:
		return "cron"
	case KindPhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

const cronPrefix = "cron:"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Spec is a parsed interval specification.
type Spec struct {
	raw      string
	kind     Kind
	duration isoDuration
	cron     cron.Schedule
	phrase   phrase
}

// Parse normalizes and parses raw.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return Spec{}, errors.Mark(errors.New("interval is empty"), ErrInvalidSpec)
	}

	spec := Spec{raw: s}
	low := strings.ToLower(s)
	switch {
	case isISODuration(low):
		d, err := parseISODuration(s)
		if err != nil {
			return Spec{}, err
		}
		spec.kind, spec.duration = KindDuration, d

	case strings.HasPrefix(low, cronPrefix) || low[0] == '@':
		expr := s
		if strings.HasPrefix(low, cronPrefix) {
			expr = strings.TrimSpace(s[len(cronPrefix):])
		}
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return Spec{}, errors.Mark(errors.Wrapf(err, "cron expression %q", expr), ErrInvalidSpec)
		}
		spec.kind, spec.cron = KindCron, sched

	default:
		p, err := parsePhrase(low)
		if err != nil {
			return Spec{}, err
		}
		spec.kind, spec.phrase = KindPhrase, p
	}
	return spec, nil
}

func isISODuration(low string) bool {
	if len(low) < 2 || low[0] != 'p' {
		return false
	}
	return low[1] == 't' || (low[1] >= '0' && low[1] <= '9')
}

// MustParse is Parse for specifications known to be valid.
func MustParse(raw string) Spec {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Kind reports the grammar of the specification.
func (s Spec) Kind() Kind { return s.kind }

// String returns the normalized specification text.
func (s Spec) String() string { return s.raw }

// Next returns the instant the job becomes due after a run at lastRun.
// A zero lastRun means "never run" and is anchored at Never. Relative
// phrases and cron expressions are evaluated in loc.
func (s Spec) Next(lastRun time.Time, loc *time.Location) (time.Time, error) {
	if lastRun.IsZero() {
		lastRun = Never
	}
	if loc == nil {
		loc = time.Local
	}

	switch s.kind {
	case KindDuration:
		next := s.duration.addTo(lastRun)
		if !next.After(lastRun) {
			return time.Time{}, errors.Mark(errors.Newf("duration %q does not move forward from %s", s.raw, lastRun.Format(time.RFC3339)), ErrInvalidSpec)
		}
		return next, nil
	case KindCron:
		next := s.cron.Next(lastRun.In(loc))
		if next.IsZero() {
			return time.Time{}, errors.Mark(errors.Newf("cron expression %q never fires", s.raw), ErrInvalidSpec)
		}
		return next, nil
	case KindPhrase:
		next := s.phrase.apply(lastRun.In(loc))
		if !next.After(lastRun) {
			return time.Time{}, errors.Mark(errors.Newf("phrase %q does not move forward from %s", s.raw, lastRun.Format(time.RFC3339)), ErrInvalidSpec)
		}
		return next, nil
	default:
		return time.Time{}, errors.Mark(errors.New("interval was not parsed"), ErrInvalidSpec)
	}
}

// Calculator evaluates due-ness in a fixed location.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a calculator anchoring phrases in loc (time.Local when nil).
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{loc: loc}
}

// Location returns the calculator's time zone.
func (c *Calculator) Location() *time.Location { return c.loc }

// NextDue parses raw and returns the next due instant after lastRun.
func (c *Calculator) NextDue(lastRun time.Time, raw string) (time.Time, error) {
	spec, err := Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(lastRun, c.loc)
}

// IsDue reports whether a job last run at lastRun is due at now, along with
// the computed next-due instant.
func (c *Calculator) IsDue(lastRun time.Time, raw string, now time.Time) (bool, time.Time, error) {
	next, err := c.NextDue(lastRun, raw)
	if err != nil {
		return false, time.Time{}, err
	}
	return !next.After(now), next, nil
}
