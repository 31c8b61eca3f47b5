package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/dooshek/decibender/internal/logger"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// PlayHandle tracks one playback. Stop or cancelling the context passed to
// Play releases it.
type PlayHandle struct {
	path         string
	expectDoneAt time.Time
	cancel       context.CancelFunc
	done         chan struct{}

	mu  sync.Mutex
	err error
}

// ExpectDoneAt is the probed end time; zero when the duration is unknown.
func (h *PlayHandle) ExpectDoneAt() time.Time {
	return h.expectDoneAt
}

// Done is closed once the player process has exited.
func (h *PlayHandle) Done() <-chan struct{} {
	return h.done
}

// Err reports how the player exited. It is nil for a normal finish or a stop.
func (h *PlayHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop terminates playback and waits for the process to exit.
func (h *PlayHandle) Stop() {
	h.cancel()
	<-h.done
}

// Player plays sound files through an external command, paplay by default.
type Player struct {
	command string
	probe   func(path string) (time.Duration, error)
}

func NewPlayer(command string) *Player {
	if command == "" {
		command = "paplay"
	}
	return &Player{command: command, probe: ProbeDuration}
}

// Play starts playback of path and returns without waiting for it to finish.
func (p *Player) Play(ctx context.Context, path string) (*PlayHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}

	var expectDoneAt time.Time
	if duration, err := p.probe(path); err != nil {
		logger.Debugf("Could not probe duration of %s: %v", path, err)
	} else {
		expectDoneAt = time.Now().Add(duration)
	}

	playCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(playCtx, p.command, path)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", p.command, err)
	}
	logger.Debugf("Playing %s", path)

	h := &PlayHandle{
		path:         path,
		expectDoneAt: expectDoneAt,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		if playCtx.Err() != nil {
			err = nil
		}
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		cancel()
		close(h.done)
	}()

	return h, nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration asks ffprobe for the length of a sound file.
func ProbeDuration(path string) (time.Duration, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	return parseProbeDuration([]byte(out))
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var result probeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, fmt.Errorf("failed to parse probe output: %w", err)
	}
	if result.Format.Duration == "" {
		return 0, errors.New("probe output has no duration")
	}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", result.Format.Duration, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
