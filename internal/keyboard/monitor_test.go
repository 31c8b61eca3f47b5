package keyboard

import (
	"testing"
	"time"

	"github.com/dooshek/decibender/internal/types"
	"github.com/stretchr/testify/require"
)

func hotkeys() types.HotkeysConfig {
	return types.HotkeysConfig{
		Enabled: true,
		Louder:  types.KeyBinding{Key: "=", Ctrl: true, Super: true},
		Quieter: types.KeyBinding{Key: "-", Ctrl: true, Super: true},
	}
}

func TestFormatCombo(t *testing.T) {
	require.Equal(t, "CTRL + SUPER + =", FormatCombo(types.KeyBinding{Key: "=", Ctrl: true, Super: true}))
	require.Equal(t, "SHIFT + ALT + A", FormatCombo(types.KeyBinding{Key: "a", Shift: true, Alt: true}))
	require.Equal(t, "CTRL", FormatCombo(types.KeyBinding{Ctrl: true}))
}

func TestNewMatcherRejectsUnknownKey(t *testing.T) {
	cfg := hotkeys()
	cfg.Quieter.Key = "f13"
	_, err := NewMatcher(cfg)
	require.ErrorContains(t, err, "quieter")
}

func TestMatcherShortcuts(t *testing.T) {
	m, err := NewMatcher(hotkeys())
	require.NoError(t, err)
	now := time.Unix(100, 0)

	_, ok := m.Feed(WaylandKeyCodes["="], keyPressed, now)
	require.False(t, ok, "no modifiers held")

	m.Feed(WaylandLeftControl, keyPressed, now)
	m.Feed(WaylandSuper, keyPressed, now)

	cmd, ok := m.Feed(WaylandKeyCodes["="], keyPressed, now)
	require.True(t, ok)
	require.Equal(t, types.Louder(), cmd)

	_, ok = m.Feed(WaylandKeyCodes["="], keyReleased, now)
	require.False(t, ok)

	cmd, ok = m.Feed(WaylandKeyCodes["-"], keyPressed, now.Add(10*time.Millisecond))
	require.True(t, ok, "debounce is per shortcut")
	require.Equal(t, types.Quieter(), cmd)

	m.Feed(WaylandLeftShift, keyPressed, now)
	_, ok = m.Feed(WaylandKeyCodes["="], keyPressed, now.Add(time.Second))
	require.False(t, ok, "extra modifier")
}

func TestMatcherDebounce(t *testing.T) {
	m, err := NewMatcher(hotkeys())
	require.NoError(t, err)
	now := time.Unix(100, 0)
	m.Feed(WaylandRightControl, keyPressed, now)
	m.Feed(WaylandSuper, keyPressed, now)

	_, ok := m.Feed(WaylandKeyCodes["="], keyPressed, now)
	require.True(t, ok)
	_, ok = m.Feed(WaylandKeyCodes["="], keyPressed, now.Add(200*time.Millisecond))
	require.False(t, ok)
	_, ok = m.Feed(WaylandKeyCodes["="], 2, now.Add(time.Second))
	require.False(t, ok, "autorepeat ignored")
	_, ok = m.Feed(WaylandKeyCodes["="], keyPressed, now.Add(time.Second))
	require.True(t, ok)
}

func TestMatcherModifierRelease(t *testing.T) {
	m, err := NewMatcher(hotkeys())
	require.NoError(t, err)
	now := time.Unix(100, 0)

	m.Feed(WaylandLeftControl, keyPressed, now)
	m.Feed(WaylandSuper, keyPressed, now)
	m.Feed(WaylandSuper, keyReleased, now)

	_, ok := m.Feed(WaylandKeyCodes["-"], keyPressed, now)
	require.False(t, ok)
}
