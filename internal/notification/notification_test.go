package notification

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/dooshek/decibender/internal/types"
	"github.com/stretchr/testify/require"
)

type recordingPlatform struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (p *recordingPlatform) send(title, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, title+": "+message)
	return p.err
}

func TestStateChangesNotify(t *testing.T) {
	p := &recordingPlatform{}
	n := &Notifier{platform: p}

	require.NoError(t, n.OnLoudness(-20))
	require.NoError(t, n.OnStateChanged(types.StateTooLoud))
	require.NoError(t, n.OnStateChanged(types.StateAcceptable))
	n.Wait()

	sort.Strings(p.messages)
	require.Equal(t, []string{
		"Decibender: ✅ Loudness is acceptable again",
		"Decibender: 🔊 Too loud!",
	}, p.messages)
}

func TestStartupThresholdsAreSilent(t *testing.T) {
	p := &recordingPlatform{}
	n := &Notifier{platform: p}

	require.NoError(t, n.OnThresholds(types.Thresholds{TooLoud: -30, TooQuiet: -80, Grace: 6}))
	n.Wait()
	require.Empty(t, p.messages)

	require.NoError(t, n.OnThresholds(types.Thresholds{TooLoud: -24, TooQuiet: -74, Grace: 6}))
	n.Wait()
	require.Equal(t, []string{"Decibender: Thresholds: too loud -24 dB, too quiet -74 dB"}, p.messages)
}

func TestSendErrorIsNotPropagated(t *testing.T) {
	n := &Notifier{platform: &recordingPlatform{err: errors.New("no daemon")}}
	require.NoError(t, n.OnStateChanged(types.StateTooQuiet))
	n.Wait()
}

func TestAppleScriptQuoting(t *testing.T) {
	require.Equal(t,
		`display notification "say \"hi\"" with title "a\\b"`,
		appleScript(`a\b`, `say "hi"`))
}
