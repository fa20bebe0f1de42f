package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAtTarget(t *testing.T) {
	now := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Remaining{IsLive: true}, Compute(now, now))
	assert.Equal(t, Remaining{IsLive: true}, Compute(now, now.Add(time.Hour)))
}

func TestComputeBreakdown(t *testing.T) {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	target := now.Add(24*time.Hour + 2*time.Hour + 3*time.Minute)

	got := Compute(target, now)
	assert.Equal(t, Remaining{Days: 1, Hours: 2, Minutes: 3, Seconds: 0}, got)
	assert.Equal(t, "1d 2h 3m", got.String())

	later := Compute(target, now.Add(1500*time.Millisecond))
	assert.Equal(t, 1, later.Days)
	assert.Equal(t, 2, later.Hours)
	assert.Equal(t, 2, later.Minutes)
	assert.Equal(t, 58, later.Seconds)
	assert.False(t, later.IsLive)
}

func TestComputeSecondsStayInRange(t *testing.T) {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	target := now.Add(90 * time.Minute)
	for i := 0; i < 180; i++ {
		r := Compute(target, now.Add(time.Duration(i)*time.Second))
		require.GreaterOrEqual(t, r.Seconds, 0)
		require.LessOrEqual(t, r.Seconds, 59)
		require.LessOrEqual(t, r.Minutes, 59)
	}
}

func TestWatchTicksUntilCancelled(t *testing.T) {
	target := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	clock := target.Add(-2 * time.Second)
	ticks := 0
	now := func() time.Time {
		ticks++
		return clock.Add(time.Duration(ticks) * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := Watch(ctx, target, 5*time.Millisecond, now)

	first := <-ch
	assert.Equal(t, 1, first.Seconds)
	second := <-ch
	assert.True(t, second.IsLive)

	cancel()
	for range ch {
	}
}

func TestRemainingStringLive(t *testing.T) {
	assert.Equal(t, "live", Remaining{IsLive: true}.String())
}
