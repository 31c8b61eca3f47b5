package monitor

import (
	"testing"

	"github.com/dooshek/decibender/internal/types"
	"github.com/stretchr/testify/require"
)

func TestMachineHysteresis(t *testing.T) {
	thresholds := types.Thresholds{TooLoud: -20, TooQuiet: -70, Grace: 6}
	m := NewMachine()

	require.False(t, m.Evaluate(-21, thresholds))
	require.Equal(t, types.StateAcceptable, m.State())

	require.True(t, m.Evaluate(-19, thresholds))
	require.Equal(t, types.StateTooLoud, m.State())

	require.False(t, m.Evaluate(-17, thresholds))
	require.False(t, m.Evaluate(-25, thresholds))
	require.False(t, m.Evaluate(-26, thresholds))
	require.Equal(t, types.StateTooLoud, m.State())

	require.True(t, m.Evaluate(-26.5, thresholds))
	require.Equal(t, types.StateAcceptable, m.State())
}

func TestMachineBoundaryReadings(t *testing.T) {
	thresholds := types.Thresholds{TooLoud: -20, TooQuiet: -70, Grace: 6}

	m := NewMachine()
	require.True(t, m.Evaluate(-20, thresholds))
	require.Equal(t, types.StateTooLoud, m.State())

	// Leaving TooLoud needs a reading strictly below too_loud - grace.
	require.False(t, m.Evaluate(-26, thresholds))
	require.Equal(t, types.StateTooLoud, m.State())

	m = NewMachine()
	require.True(t, m.Evaluate(-70, thresholds))
	require.Equal(t, types.StateTooQuiet, m.State())

	require.False(t, m.Evaluate(-64, thresholds))
	require.Equal(t, types.StateTooQuiet, m.State())
}

func TestMachineTooQuiet(t *testing.T) {
	thresholds := types.Thresholds{TooLoud: -20, TooQuiet: -70, Grace: 6}
	m := NewMachine()

	require.True(t, m.Evaluate(-75, thresholds))
	require.Equal(t, types.StateTooQuiet, m.State())

	// TooQuiet never jumps straight to TooLoud.
	require.False(t, m.Evaluate(-64, thresholds))
	require.True(t, m.Evaluate(-10, thresholds))
	require.Equal(t, types.StateAcceptable, m.State())
}

func TestMachineScenario(t *testing.T) {
	thresholds := types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6}
	m := NewMachine()

	readings := []float64{-60, -60, -25, -25, -40, -40, -80}
	want := []types.State{
		types.StateAcceptable,
		types.StateAcceptable,
		types.StateTooLoud,
		types.StateTooLoud,
		types.StateAcceptable,
		types.StateAcceptable,
		types.StateTooQuiet,
	}

	var got []types.State
	for _, db := range readings {
		m.Evaluate(db, thresholds)
		got = append(got, m.State())
	}
	require.Equal(t, want, got)
}
