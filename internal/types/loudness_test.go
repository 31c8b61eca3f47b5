package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThresholdGuards(t *testing.T) {
	th := Thresholds{TooLoud: -20, TooQuiet: -70, Grace: 6}

	require.True(t, th.IsTooLoud(-19))
	require.True(t, th.IsTooLoud(-20))
	require.False(t, th.IsTooLoud(-21))

	require.True(t, th.IsTooQuiet(-70))
	require.False(t, th.IsTooQuiet(-69))

	require.True(t, th.AcceptableFromTooLoud(-26.1))
	require.False(t, th.AcceptableFromTooLoud(-26))

	require.True(t, th.AcceptableFromTooQuiet(-63.9))
	require.False(t, th.AcceptableFromTooQuiet(-64))
}

func TestShiftAndDirection(t *testing.T) {
	th := Thresholds{TooLoud: -35, TooQuiet: -75, Grace: 6}

	louder := th.Shift(6)
	require.Equal(t, Thresholds{TooLoud: -29, TooQuiet: -69, Grace: 6}, louder)
	require.Equal(t, DirectionLouder, DirectionBetween(th, louder))

	quieter := th.Shift(-6)
	require.Equal(t, DirectionQuieter, DirectionBetween(th, quieter))

	require.Equal(t, DirectionUnchanged, DirectionBetween(th, th))
	require.Equal(t, DirectionUnchanged, DirectionBetween(th, Thresholds{TooLoud: -35, TooQuiet: -90, Grace: 2}))
}

func TestCommandConstructors(t *testing.T) {
	require.Equal(t, CommandLouder, Louder().Kind)
	require.Equal(t, CommandQuieter, Quieter().Kind)

	th := Thresholds{TooLoud: -1, TooQuiet: -2, Grace: 0}
	require.Equal(t, Command{Kind: CommandSetThresholds, Thresholds: th}, SetThresholds(th))
	require.Equal(t, Command{Kind: CommandSetWindowSeconds, WindowSeconds: 2.5}, SetWindowSeconds(2.5))
	require.Equal(t, "set_window_seconds", CommandSetWindowSeconds.String())
}

func TestStateStrings(t *testing.T) {
	require.Equal(t, "Acceptable", StateAcceptable.String())
	require.Equal(t, "TooLoud", StateTooLoud.String())
	require.Equal(t, "TooQuiet", StateTooQuiet.String())
	require.Equal(t, "louder", DirectionLouder.String())
}
