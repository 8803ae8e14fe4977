package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimelineNeverGoesBackwards(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	tl := NewTimeline(func() time.Time {
		ts := ticks[i]
		i++
		return ts
	}, 0)

	first := tl.Stamp("issue-42")
	second := tl.Stamp("issue-42")
	third := tl.Stamp("issue-42")

	req.Equal(base, first)
	req.Equal(base, second, "clock step back must be clamped")
	req.Equal(base.Add(time.Second), third)
}

func TestTimelineRoomsAreIndependent(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	now := base
	tl := NewTimeline(func() time.Time { return now }, 0)

	tl.Observe("a", base.Add(time.Hour))
	req.True(tl.Known("a"))
	req.False(tl.Known("b"))

	req.Equal(base.Add(time.Hour), tl.Stamp("a"))
	req.Equal(base, tl.Stamp("b"))
}

func TestTimelineTruncatesToPrecision(t *testing.T) {
	ts := time.Date(2026, 10, 17, 12, 0, 0, 123456789, time.UTC)
	tl := NewTimeline(func() time.Time { return ts }, time.Millisecond)

	require.Equal(t, time.Date(2026, 10, 17, 12, 0, 0, 123000000, time.UTC), tl.Stamp("r"))
}
