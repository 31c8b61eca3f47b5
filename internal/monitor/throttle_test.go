package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottle(100*time.Millisecond, func() time.Time { return now })

	require.True(t, th.Allow(), "first event passes")
	require.False(t, th.Allow())

	now = now.Add(99 * time.Millisecond)
	require.False(t, th.Allow())

	now = now.Add(time.Millisecond)
	require.True(t, th.Allow())
	require.False(t, th.Allow())
}

func TestThrottleZeroInterval(t *testing.T) {
	th := NewThrottle(0, nil)
	require.True(t, th.Allow())
	require.True(t, th.Allow())
}
