package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtTime(t *testing.T) {
	hour, minute, err := parseAtTime("02:30")
	require.NoError(t, err)
	assert.Equal(t, 2, hour)
	assert.Equal(t, 30, minute)

	for _, bad := range []string{"2:3:4", "24:00", "12:60", "noon"} {
		_, _, err := parseAtTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"30m":   30 * time.Minute,
		"1h":    time.Hour,
		"1h30m": time.Hour + 30*time.Minute,
		"24h":   24 * time.Hour,
	}
	for input, want := range cases {
		got, err := parseInterval(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := parseInterval("soon")
	assert.Error(t, err)
}

func TestShouldRunInterval(t *testing.T) {
	s := NewScheduler(testConfig(t.TempDir()), nil)
	schedule := Schedule{Instance: 1, Every: "1h"}

	assert.True(t, s.shouldRun(schedule, time.Time{}), "first run triggers immediately")
	assert.True(t, s.shouldRun(schedule, time.Now().Add(-2*time.Hour)))
	assert.False(t, s.shouldRun(schedule, time.Now().Add(-10*time.Minute)))
}

func TestShouldRunWithoutTrigger(t *testing.T) {
	s := NewScheduler(testConfig(t.TempDir()), nil)

	assert.False(t, s.shouldRun(Schedule{Instance: 1}, time.Time{}))
}
