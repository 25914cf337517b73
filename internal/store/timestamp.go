package store

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Timestamp is an optional instant. The zero value means "never".
//
// It is always written as an RFC 3339 string or null. On read it also
// accepts the shapes older stores contain: a "2006-01-02 15:04:05" string,
// unix seconds or milliseconds, and an object {"date": "...", "timezone": "..."}.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp { return Timestamp{Time: t} }

// IsNever reports whether no instant is recorded.
func (ts Timestamp) IsNever() bool { return ts.Time.IsZero() }

var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsNever() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t, err := parseTimestamp(s, time.Local)
		if err != nil {
			return err
		}
		ts.Time = t
		return nil

	case '{':
		var legacy struct {
			Date     string `json:"date"`
			Timezone string `json:"timezone"`
		}
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		if legacy.Date == "" {
			return errors.Newf("timestamp object without date: %s", data)
		}
		loc, err := parseZone(legacy.Timezone)
		if err != nil {
			return err
		}
		t, err := parseTimestamp(legacy.Date, loc)
		if err != nil {
			return err
		}
		ts.Time = t
		return nil

	default:
		var secs json.Number
		if err := json.Unmarshal(data, &secs); err != nil {
			return errors.Newf("unsupported timestamp shape: %s", data)
		}
		t, err := unixTime(secs)
		if err != nil {
			return errors.Wrapf(err, "timestamp %s", data)
		}
		ts.Time = t
		return nil
	}
}

// maxUnixSeconds separates epoch seconds from epoch milliseconds: larger
// values are read as milliseconds.
const maxUnixSeconds = 1e11

// unixTime reads epoch seconds, possibly fractional, or epoch milliseconds.
func unixTime(n json.Number) (time.Time, error) {
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, err
	}
	if math.Abs(f) >= maxUnixSeconds {
		f /= 1000
	}
	if math.Abs(f) >= maxUnixSeconds {
		return time.Time{}, errors.Newf("epoch value %s is out of range", n)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second)))).UTC(), nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognized timestamp %q", s)
}

// parseZone accepts IANA names, "UTC" and numeric offsets such as "+03:00".
func parseZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	if name[0] == '+' || name[0] == '-' {
		t, err := time.Parse("-07:00", name)
		if err != nil {
			return nil, errors.Wrapf(err, "timezone offset %q", name)
		}
		_, offset := t.Zone()
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", name)
	}
	return loc, nil
}
