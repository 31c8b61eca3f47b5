// Package notification shows desktop notifications for monitor events.
package notification

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

const title = "Decibender"

type platformNotifier interface {
	send(title, message string) error
}

// Notifier is a monitor sink that turns state changes and threshold
// adjustments into desktop notifications. Sending never blocks the caller.
type Notifier struct {
	platform platformNotifier

	mu         sync.Mutex
	seenConfig bool
	wg         sync.WaitGroup
}

// New creates a new platform-specific notification service
func New() *Notifier {
	logger.Debug("Initializing notification system")
	var platform platformNotifier
	switch runtime.GOOS {
	case "darwin":
		logger.Debug("Using Darwin (macOS) notifier")
		platform = &darwinNotifier{}
	default:
		logger.Debug("Using Linux notifier")
		platform = &linuxNotifier{}
	}
	return &Notifier{platform: platform}
}

func (n *Notifier) Notify(message string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.platform.send(title, message); err != nil {
			logger.Errorf("Failed to send notification", err)
		}
	}()
}

// Wait blocks until pending notifications are sent.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func stateMessage(state types.State) string {
	switch state {
	case types.StateTooLoud:
		return "🔊 Too loud!"
	case types.StateTooQuiet:
		return "🔈 Too quiet"
	default:
		return "✅ Loudness is acceptable again"
	}
}

func thresholdsMessage(t types.Thresholds) string {
	return fmt.Sprintf("Thresholds: too loud %.0f dB, too quiet %.0f dB", t.TooLoud, t.TooQuiet)
}

func (n *Notifier) OnLoudness(float64) error { return nil }

func (n *Notifier) OnStateChanged(state types.State) error {
	n.Notify(stateMessage(state))
	return nil
}

// OnThresholds skips the echo of the startup configuration.
func (n *Notifier) OnThresholds(t types.Thresholds) error {
	n.mu.Lock()
	first := !n.seenConfig
	n.seenConfig = true
	n.mu.Unlock()

	if !first {
		n.Notify(thresholdsMessage(t))
	}
	return nil
}
