package interval

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/wasilibs/go-re2"
)

// phrase is a relative expression such as "next day at 5:00" or
// "+2 weeks 09:30". Date moves are applied first, then the clock is set,
// then sub-day offsets are added.
type phrase struct {
	steps       []dateStep
	clock       *clockTime
	resetClock  bool
	clockOffset time.Duration
}

type dateStep struct {
	years, months, days int

	weekday    time.Weekday
	hasWeekday bool
	direction  int // +1 next, -1 last, 0 this
}

type clockTime struct {
	hour, minute, second int
}

var (
	reToken = re2.MustCompile(`\d{1,2}(?::\d{2}){1,2}(?:\s*[ap]m)?|\d{1,2}\s*[ap]m\b|[+-]?\s*\d+|[a-z]+`)
	reClock = re2.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s*([ap]m)?$`)
	reCount = re2.MustCompile(`^([+-]?)\s*(\d+)$`)
)

type unit int

const (
	unitSecond unit = iota + 1
	unitMinute
	unitHour
	unitDay
	unitWeek
	unitFortnight
	unitMonth
	unitYear
)

var units = map[string]unit{
	"sec": unitSecond, "secs": unitSecond, "second": unitSecond, "seconds": unitSecond,
	"min": unitMinute, "mins": unitMinute, "minute": unitMinute, "minutes": unitMinute,
	"hour": unitHour, "hours": unitHour,
	"day": unitDay, "days": unitDay,
	"week": unitWeek, "weeks": unitWeek,
	"fortnight": unitFortnight, "fortnights": unitFortnight,
	"month": unitMonth, "months": unitMonth,
	"year": unitYear, "years": unitYear,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// phraseProbe is used to reject phrases that never move forward.
var phraseProbe = time.Date(2001, time.March, 14, 12, 0, 0, 0, time.UTC)

func invalidPhrase(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidSpec)
}

func tokenize(s string) ([]string, error) {
	spans := reToken.FindAllStringIndex(s, -1)
	tokens := make([]string, 0, len(spans))
	prev := 0
	for _, sp := range spans {
		if gap := strings.Trim(s[prev:sp[0]], " \t,"); gap != "" {
			return nil, invalidPhrase("unexpected %q in phrase %q", gap, s)
		}
		tokens = append(tokens, s[sp[0]:sp[1]])
		prev = sp[1]
	}
	if gap := strings.Trim(s[prev:], " \t,"); gap != "" {
		return nil, invalidPhrase("unexpected %q in phrase %q", gap, s)
	}
	return tokens, nil
}

func parsePhrase(s string) (phrase, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return phrase{}, err
	}

	var p phrase
	moves := false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		peek := ""
		if i+1 < len(tokens) {
			peek = tokens[i+1]
		}

		switch {
		case tok == "at" || tok == "and" || tok == "now":
			continue

		case tok == "next" || tok == "last" || tok == "previous" || tok == "this":
			dir := map[string]int{"next": 1, "last": -1, "previous": -1, "this": 0}[tok]
			if wd, ok := weekdays[peek]; ok {
				p.steps = append(p.steps, dateStep{weekday: wd, hasWeekday: true, direction: dir})
				p.resetClock = true
				moves = true
				i++
				continue
			}
			u, ok := units[peek]
			if !ok {
				return phrase{}, invalidPhrase("%q must be followed by a unit or weekday in %q", tok, s)
			}
			if dir == 0 {
				return phrase{}, invalidPhrase("%q %q does not move in %q", tok, peek, s)
			}
			p.add(u, dir)
			moves = true
			i++

		case tok == "tomorrow" || tok == "yesterday":
			n := 1
			if tok == "yesterday" {
				n = -1
			}
			p.steps = append(p.steps, dateStep{days: n})
			p.resetClock = true
			moves = true

		case tok == "today" || tok == "midnight":
			p.resetClock = true

		case tok == "noon":
			p.clock = &clockTime{hour: 12}

		case tok == "a" || tok == "an":
			u, ok := units[peek]
			if !ok {
				return phrase{}, invalidPhrase("%q must be followed by a unit in %q", tok, s)
			}
			if err := p.add(u, 1); err != nil {
				return phrase{}, invalidPhrase("%v in %q", err, s)
			}
			moves = true
			i++

		case strings.Contains(tok, ":") || strings.HasSuffix(tok, "am") || strings.HasSuffix(tok, "pm"):
			c, err := parseClock(tok)
			if err != nil {
				return phrase{}, err
			}
			p.clock = &c

		case reCount.MatchString(tok):
			m := reCount.FindStringSubmatch(tok)
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return phrase{}, invalidPhrase("bad count %q in %q", tok, s)
			}
			if m[1] == "-" {
				n = -n
			}
			u, ok := units[peek]
			if !ok {
				return phrase{}, invalidPhrase("count %q must be followed by a unit in %q", tok, s)
			}
			i++
			if i+1 < len(tokens) && tokens[i+1] == "ago" {
				n = -n
				i++
			}
			if err := p.add(u, n); err != nil {
				return phrase{}, invalidPhrase("%v in %q", err, s)
			}
			moves = true

		default:
			if wd, ok := weekdays[tok]; ok {
				p.steps = append(p.steps, dateStep{weekday: wd, hasWeekday: true})
				p.resetClock = true
				moves = true
				continue
			}
			return phrase{}, invalidPhrase("unknown word %q in %q", tok, s)
		}
	}

	if !moves {
		return phrase{}, invalidPhrase("phrase %q names no interval", s)
	}
	if !p.apply(phraseProbe).After(phraseProbe) {
		return phrase{}, invalidPhrase("phrase %q moves backwards", s)
	}
	return p, nil
}

func parseClock(tok string) (clockTime, error) {
	m := reClock.FindStringSubmatch(tok)
	if m == nil {
		return clockTime{}, invalidPhrase("bad time of day %q", tok)
	}
	h, _ := strconv.Atoi(m[1])
	var mi, sec int
	if m[2] != "" {
		mi, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	switch m[4] {
	case "am", "pm":
		if h < 1 || h > 12 {
			return clockTime{}, invalidPhrase("bad hour in %q", tok)
		}
		h %= 12
		if m[4] == "pm" {
			h += 12
		}
	}
	if h > 23 || mi > 59 || sec > 59 {
		return clockTime{}, invalidPhrase("time of day %q out of range", tok)
	}
	return clockTime{hour: h, minute: mi, second: sec}, nil
}

func (p *phrase) add(u unit, n int) error {
	if n > maxCalendarCount || n < -maxCalendarCount {
		return errors.Newf("count %d is out of range", n)
	}
	var step time.Duration
	switch u {
	case unitSecond:
		step = time.Duration(n) * time.Second
	case unitMinute:
		step = time.Duration(n) * time.Minute
	case unitHour:
		step = time.Duration(n) * time.Hour
	case unitDay:
		p.steps = append(p.steps, dateStep{days: n})
	case unitWeek:
		p.steps = append(p.steps, dateStep{days: 7 * n})
	case unitFortnight:
		p.steps = append(p.steps, dateStep{days: 14 * n})
	case unitMonth:
		p.steps = append(p.steps, dateStep{months: n})
	case unitYear:
		p.steps = append(p.steps, dateStep{years: n})
	}
	offset, ok := sumDuration(p.clockOffset, step)
	if !ok {
		return errors.New("time offset is out of range")
	}
	p.clockOffset = offset
	return nil
}

func (p phrase) apply(t time.Time) time.Time {
	for _, st := range p.steps {
		if st.hasWeekday {
			t = t.AddDate(0, 0, weekdayDelta(t.Weekday(), st.weekday, st.direction))
			continue
		}
		t = t.AddDate(st.years, st.months, st.days)
	}

	y, mo, d := t.Date()
	switch {
	case p.clock != nil:
		t = time.Date(y, mo, d, p.clock.hour, p.clock.minute, p.clock.second, 0, t.Location())
	case p.resetClock:
		t = time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	}
	return t.Add(p.clockOffset)
}

func weekdayDelta(from, to time.Weekday, direction int) int {
	switch {
	case direction > 0:
		delta := (int(to) - int(from) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return delta
	case direction < 0:
		delta := (int(from) - int(to) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return -delta
	default:
		return (int(to) - int(from) + 7) % 7
	}
}
