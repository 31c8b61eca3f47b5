package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeSound(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beep.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func testPlayer(t *testing.T, body string, duration time.Duration, probeErr error) *Player {
	p := NewPlayer(writeScript(t, body))
	p.probe = func(string) (time.Duration, error) { return duration, probeErr }
	return p
}

func TestPlayerStop(t *testing.T) {
	p := testPlayer(t, "exec sleep 10", 2*time.Second, nil)

	before := time.Now()
	h, err := p.Play(context.Background(), writeSound(t))
	require.NoError(t, err)
	require.WithinDuration(t, before.Add(2*time.Second), h.ExpectDoneAt(), time.Second)

	h.Stop()
	select {
	case <-h.Done():
	default:
		t.Fatal("handle not done after stop")
	}
	require.NoError(t, h.Err())
}

func TestPlayerContextCancel(t *testing.T) {
	p := testPlayer(t, "exec sleep 10", 0, errors.New("no ffprobe"))

	ctx, cancel := context.WithCancel(context.Background())
	h, err := p.Play(ctx, writeSound(t))
	require.NoError(t, err)
	require.True(t, h.ExpectDoneAt().IsZero())

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("playback survived context cancellation")
	}
}

func TestPlayerReportsFailure(t *testing.T) {
	p := testPlayer(t, "exit 3", time.Second, nil)

	h, err := p.Play(context.Background(), writeSound(t))
	require.NoError(t, err)
	waitDone(t, h)
	require.Error(t, h.Err())
}

func TestPlayerFinishes(t *testing.T) {
	p := testPlayer(t, "exit 0", time.Second, nil)

	h, err := p.Play(context.Background(), writeSound(t))
	require.NoError(t, err)
	waitDone(t, h)
	require.NoError(t, h.Err())
}

func waitDone(t *testing.T, h *PlayHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("player did not exit")
	}
}

func TestPlayerMissingFile(t *testing.T) {
	p := testPlayer(t, "exit 0", time.Second, nil)
	_, err := p.Play(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	require.Error(t, err)
}

func TestParseProbeDuration(t *testing.T) {
	d, err := parseProbeDuration([]byte(`{"format":{"duration":"2.500000"}}`))
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, d)

	_, err = parseProbeDuration([]byte(`{"format":{}}`))
	require.Error(t, err)

	_, err = parseProbeDuration([]byte(`not json`))
	require.Error(t, err)
}
