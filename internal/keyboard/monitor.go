// Package keyboard turns global key combinations into louder / quieter
// commands.
package keyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

// Debounce threshold - ignore repeats of the same shortcut that come too fast
const debounceThreshold = 500 * time.Millisecond

const (
	keyReleased int32 = 0
	keyPressed  int32 = 1
)

// ModifierState tracks the state of modifier keys (Ctrl, Shift, Alt, Super)
type ModifierState struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
}

func (m ModifierState) matches(kb types.KeyBinding) bool {
	return m.Ctrl == kb.Ctrl &&
		m.Shift == kb.Shift &&
		m.Alt == kb.Alt &&
		m.Super == kb.Super
}

// Submitter receives the commands produced by shortcuts.
type Submitter interface {
	Submit(ctx context.Context, cmd types.Command) error
}

type shortcut struct {
	binding types.KeyBinding
	code    uint16
	command types.Command
	last    time.Time
}

// Matcher follows modifier state across key events and reports the command
// of a completed shortcut.
type Matcher struct {
	modifiers ModifierState
	shortcuts []*shortcut
}

// NewMatcher maps the louder and quieter bindings to their key codes.
func NewMatcher(cfg types.HotkeysConfig) (*Matcher, error) {
	m := &Matcher{}
	for _, s := range []struct {
		name    string
		binding types.KeyBinding
		command types.Command
	}{
		{"louder", cfg.Louder, types.Louder()},
		{"quieter", cfg.Quieter, types.Quieter()},
	} {
		code, ok := WaylandKeyCodes[strings.ToLower(s.binding.Key)]
		if !ok {
			return nil, fmt.Errorf("unsupported key %q for %s shortcut", s.binding.Key, s.name)
		}
		m.shortcuts = append(m.shortcuts, &shortcut{binding: s.binding, code: code, command: s.command})
	}
	return m, nil
}

// Feed processes one key event. value follows evdev: 1 press, 0 release,
// 2 autorepeat (ignored).
func (m *Matcher) Feed(code uint16, value int32, now time.Time) (types.Command, bool) {
	if value != keyPressed && value != keyReleased {
		return types.Command{}, false
	}
	pressed := value == keyPressed

	switch code {
	case WaylandLeftControl, WaylandRightControl:
		m.modifiers.Ctrl = pressed
	case WaylandLeftShift, WaylandRightShift:
		m.modifiers.Shift = pressed
	case WaylandLeftAlt, WaylandRightAlt:
		m.modifiers.Alt = pressed
	case WaylandSuper:
		m.modifiers.Super = pressed
	default:
		if !pressed {
			return types.Command{}, false
		}
		for _, s := range m.shortcuts {
			if code != s.code || !m.modifiers.matches(s.binding) {
				continue
			}
			if !s.last.IsZero() && now.Sub(s.last) <= debounceThreshold {
				logger.Debugf("Ignoring %s shortcut - too soon after previous (%d ms)",
					s.command.Kind, now.Sub(s.last).Milliseconds())
				return types.Command{}, false
			}
			s.last = now
			return s.command, true
		}
	}
	return types.Command{}, false
}

// Monitor reads every keyboard device through evdev.
type Monitor struct {
	matcher *Matcher
	target  Submitter

	mu        sync.Mutex
	keyboards []*keylogger.KeyLogger
}

func NewMonitor(cfg types.HotkeysConfig, target Submitter) (*Monitor, error) {
	matcher, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &Monitor{matcher: matcher, target: target}, nil
}

// Start blocks until ctx is done or every device is gone.
func (m *Monitor) Start(ctx context.Context) error {
	devices := keylogger.FindAllKeyboardDevices()
	if len(devices) == 0 {
		return fmt.Errorf("no keyboard devices found")
	}

	events := make(chan keylogger.InputEvent)
	var wg sync.WaitGroup
	for _, dev := range devices {
		kbd, err := keylogger.New(dev)
		if err != nil {
			if strings.Contains(err.Error(), "permission denied") {
				logger.Warn("Cannot access keyboard device. Add yourself to the input group: sudo usermod -aG input $USER, then log in again.")
			}
			logger.Warnf("Skipping keyboard %s: %v", dev, err)
			continue
		}
		m.mu.Lock()
		m.keyboards = append(m.keyboards, kbd)
		m.mu.Unlock()

		wg.Add(1)
		go func(in chan keylogger.InputEvent) {
			defer wg.Done()
			for e := range in {
				select {
				case events <- e:
				case <-ctx.Done():
					return
				}
			}
		}(kbd.Read())
	}

	if len(m.keyboards) == 0 {
		return fmt.Errorf("error initializing keylogger: no usable keyboard among %d devices", len(devices))
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	logger.Infof("⌨️  Shortcuts active on %d keyboard(s)", len(m.keyboards))
	defer m.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return fmt.Errorf("keyboard devices closed")
			}
			if e.Type != keylogger.EvKey {
				continue
			}
			cmd, ok := m.matcher.Feed(e.Code, e.Value, time.Now())
			if !ok {
				continue
			}
			logger.Debugf("Detected %s shortcut", cmd.Kind)
			if err := m.target.Submit(ctx, cmd); err != nil {
				logger.Errorf("Failed to submit %s command", err, cmd.Kind)
			}
		}
	}
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kbd := range m.keyboards {
		kbd.Close()
	}
	m.keyboards = nil
}
