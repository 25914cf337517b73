package interval

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
	}{
		{"PT15M", KindDuration},
		{"p10dt4h", KindDuration},
		{"P1W", KindDuration},
		{"cron:*/5 * * * *", KindCron},
		{"@hourly", KindCron},
		{"@every 90s", KindCron},
		{"next day 5:00", KindPhrase},
		{"tomorrow at 09:00", KindPhrase},
		{"15 minutes", KindPhrase},
		{"10 days 4 hours", KindPhrase},
		{"previous day +2 days", KindPhrase},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, spec.Kind())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"P",
		"PT",
		"P1DT",
		"P0D",
		"PXM",
		"cron:not a cron",
		"@sometimes",
		"whenever",
		"5:00",
		"today",
		"yesterday",
		"next",
		"next blue",
		"this day",
		"15",
		"25:00 tomorrow",
		"13pm tomorrow",
		"tomorrow; rm -rf",
		"PT3000000H",
		"PT99999999999999999999M",
		"PT9999999999999999999S",
		"PT2000000H40000000M",
		"P99999999999Y",
		"P2000000D",
		"+99999999999999999999 minutes",
		"+3000000 hours",
		"+1000000 hours +1000000 hours +1000000 hours",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSpec), "error %v is not marked invalid", err)
		})
	}
}

func TestDuration_LargeValuesStayForward(t *testing.T) {
	calc := NewCalculator(time.UTC)
	last := at("2024-01-01T09:00:00Z")
	now := last.Add(time.Minute)

	for _, raw := range []string{"PT3000000H", "PT99999999999999999999M"} {
		due, _, err := calc.IsDue(last, raw, now)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrInvalidSpec))
		assert.False(t, due)
	}

	next, err := calc.NextDue(last, "PT2000000H")
	require.NoError(t, err)
	assert.Equal(t, last.Add(2000000*time.Hour), next)
}

func TestParse_NormalizesUnicode(t *testing.T) {
	// fullwidth letters and digits
	spec, err := Parse("ＰＴ１５Ｍ")
	require.NoError(t, err)
	assert.Equal(t, KindDuration, spec.Kind())
	assert.Equal(t, "PT15M", spec.String())
}

func TestDuration_DueExactlyAtBoundary(t *testing.T) {
	calc := NewCalculator(time.UTC)
	last := at("2024-01-01T09:00:00Z")

	next, err := calc.NextDue(last, "PT15M")
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-01T09:15:00Z"), next)

	due, _, err := calc.IsDue(last, "PT15M", next)
	require.NoError(t, err)
	assert.True(t, due, "due at t0+D")

	due, _, err = calc.IsDue(last, "PT15M", next.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.False(t, due, "not due strictly before t0+D")
}

func TestDuration_Newsletter(t *testing.T) {
	calc := NewCalculator(time.UTC)
	last := at("2024-01-01T09:00:00Z")

	due, _, err := calc.IsDue(last, "PT15M", at("2024-01-01T09:16:00Z"))
	require.NoError(t, err)
	assert.True(t, due)

	due, _, err = calc.IsDue(last, "PT15M", at("2024-01-01T09:10:00Z"))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestDuration_CalendarParts(t *testing.T) {
	tests := []struct {
		raw  string
		last string
		want string
	}{
		{"P10DT4H", "2024-01-01T00:00:00Z", "2024-01-11T04:00:00Z"},
		{"P1M", "2024-01-31T00:00:00Z", "2024-03-02T00:00:00Z"},
		{"P1Y", "2024-02-29T00:00:00Z", "2025-03-01T00:00:00Z"},
		{"P2W", "2024-01-01T00:00:00Z", "2024-01-15T00:00:00Z"},
		{"PT1.5S", "2024-01-01T00:00:00Z", "2024-01-01T00:00:01.5Z"},
		{"PT0,5S", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00.5Z"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			next, err := MustParse(tt.raw).Next(at(tt.last), time.UTC)
			require.NoError(t, err)
			assert.Equal(t, at(tt.want), next)
		})
	}
}

func TestNeverRun_IsAlwaysDue(t *testing.T) {
	calc := NewCalculator(time.UTC)
	now := at("2024-01-01T12:00:00Z")

	for _, raw := range []string{"PT15M", "P10DT4H", "P1Y", "next day 5:00", "tomorrow at 09:00", "next monday", "cron:0 5 * * *", "@weekly"} {
		t.Run(raw, func(t *testing.T) {
			due, _, err := calc.IsDue(time.Time{}, raw, now)
			require.NoError(t, err)
			assert.True(t, due)
		})
	}
}

func TestPhrase_CleanUpScenario(t *testing.T) {
	calc := NewCalculator(time.UTC)
	last := at("2024-01-01T12:00:00Z")

	next, err := calc.NextDue(last, "next day 5:00")
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-02T05:00:00Z"), next)

	due, _, err := calc.IsDue(last, "next day 5:00", at("2024-01-01T12:05:00Z"))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestPhrase_Evaluation(t *testing.T) {
	last := at("2024-01-03T12:34:00Z") // Wednesday

	tests := []struct {
		raw  string
		want string
	}{
		{"next day at 5:00", "2024-01-04T05:00:00Z"},
		{"tomorrow at 09:00", "2024-01-04T09:00:00Z"},
		{"tomorrow", "2024-01-04T00:00:00Z"},
		{"tomorrow noon", "2024-01-04T12:00:00Z"},
		{"tomorrow 5pm", "2024-01-04T17:00:00Z"},
		{"tomorrow 12:15 am", "2024-01-04T00:15:00Z"},
		{"15 minutes", "2024-01-03T12:49:00Z"},
		{"+15 min", "2024-01-03T12:49:00Z"},
		{"10 days 4 hours", "2024-01-13T16:34:00Z"},
		{"an hour", "2024-01-03T13:34:00Z"},
		{"next week", "2024-01-10T12:34:00Z"},
		{"next month 06:00", "2024-02-03T06:00:00Z"},
		{"next monday", "2024-01-08T00:00:00Z"},
		{"next wednesday 8:30", "2024-01-10T08:30:00Z"},
		{"friday 18:00", "2024-01-05T18:00:00Z"},
		{"+1 fortnight", "2024-01-17T12:34:00Z"},
		{"2 days, 30 seconds", "2024-01-05T12:34:30Z"},
		{"tomorrow +2 hours", "2024-01-04T02:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			next, err := MustParse(tt.raw).Next(last, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, at(tt.want), next)
		})
	}
}

func TestPhrase_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	last := at("2024-01-01T22:00:00Z") // 01:00 on Jan 2 in UTC+3

	next, err := MustParse("next day 5:00").Next(last, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 3, 5, 0, 0, 0, loc).UTC(), next.UTC())
}

func TestPhrase_NotForwardFromAnchor(t *testing.T) {
	// "this friday" on a Friday with no clock lands on midnight before the anchor
	last := at("2024-01-05T10:00:00Z")
	_, err := MustParse("this friday").Next(last, time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSpec))
}

func TestCron_Next(t *testing.T) {
	last := at("2024-01-01T09:07:00Z")

	next, err := MustParse("cron:*/15 * * * *").Next(last, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-01T09:15:00Z"), next)

	next, err = MustParse("@every 1h").Next(last, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-01T10:07:00Z"), next)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "duration", KindDuration.String())
	assert.Equal(t, "cron", KindCron.String())
	assert.Equal(t, "phrase", KindPhrase.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestCalculator_DefaultsToLocal(t *testing.T) {
	assert.Equal(t, time.Local, NewCalculator(nil).Location())
}
