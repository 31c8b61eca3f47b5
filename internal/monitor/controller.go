package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/dooshek/decibender/internal/config"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
	"github.com/dooshek/decibender/internal/watch"
	"github.com/rs/zerolog"
)

const commandBuffer = 16

// Reactor receives transitions. Calls must return quickly; long work
// belongs to the reactor's own goroutines.
type Reactor interface {
	EnteredTooLoud()
	EnteredTooQuiet()
	EnteredAcceptable()
	ThresholdsAdjusted(direction types.Direction)
}

// Sink observes the controller's outputs. An error means the observer is
// gone for good and stops the controller.
type Sink interface {
	OnLoudness(db float64) error
	OnStateChanged(state types.State) error
	OnThresholds(t types.Thresholds) error
}

type Options struct {
	GracePeriod time.Duration
	StepDB      float64
	Now         func() time.Time
}

// Controller is the single writer of thresholds, window seconds and state.
// It turns loudness readings and commands into transitions and events.
type Controller struct {
	loudness      *watch.Value[float64]
	thresholds    *watch.Value[types.Thresholds]
	windowSeconds *watch.Value[float64]
	state         *watch.Value[types.State]
	commands      chan types.Command
	reactor       Reactor
	sinks         []Sink
	machine       *Machine
	opts          Options
	graceUntil    time.Time
	log           zerolog.Logger
}

func NewController(
	loudness *watch.Value[float64],
	thresholds *watch.Value[types.Thresholds],
	windowSeconds *watch.Value[float64],
	reactor Reactor,
	opts Options,
) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		loudness:      loudness,
		thresholds:    thresholds,
		windowSeconds: windowSeconds,
		state:         watch.New(types.StateAcceptable),
		commands:      make(chan types.Command, commandBuffer),
		reactor:       reactor,
		machine:       NewMachine(),
		opts:          opts,
		log:           logger.With("monitor"),
	}
}

// AddSink registers an observer. Call before Run.
func (c *Controller) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// Submit queues a command for the control loop.
func (c *Controller) Submit(ctx context.Context, cmd types.Command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) State() types.State {
	return c.state.Load()
}

func (c *Controller) Loudness() float64 {
	return c.loudness.Load()
}

func (c *Controller) Thresholds() types.Thresholds {
	return c.thresholds.Load()
}

func (c *Controller) WindowSeconds() float64 {
	return c.windowSeconds.Load()
}

// Run drives the control loop until ctx is done or a sink fails.
func (c *Controller) Run(ctx context.Context) error {
	initial := c.thresholds.Load()
	c.log.Info().Stringer("thresholds", initial).Msg("Monitoring started")
	if err := c.emitThresholds(initial); err != nil {
		return err
	}
	c.reactor.ThresholdsAdjusted(types.DirectionUnchanged)

	_, loudnessChanged := c.loudness.Watch()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			if err := c.handle(cmd); err != nil {
				return err
			}
		case <-loudnessChanged:
			var db float64
			db, loudnessChanged = c.loudness.Watch()
			if err := c.onLoudness(db); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) onLoudness(db float64) error {
	changed := false
	if !c.opts.Now().Before(c.graceUntil) {
		changed = c.machine.Evaluate(db, c.thresholds.Load())
	}

	state := c.machine.State()
	if changed {
		c.state.Store(state)
		c.log.Info().Stringer("state", state).Float64("loudness", db).Msg("State changed")
	}

	for _, s := range c.sinks {
		if err := s.OnLoudness(db); err != nil {
			return fmt.Errorf("failed to publish loudness: %w", err)
		}
	}

	if !changed {
		return nil
	}

	for _, s := range c.sinks {
		if err := s.OnStateChanged(state); err != nil {
			return fmt.Errorf("failed to publish state: %w", err)
		}
	}

	switch state {
	case types.StateTooLoud:
		c.reactor.EnteredTooLoud()
	case types.StateTooQuiet:
		c.reactor.EnteredTooQuiet()
	case types.StateAcceptable:
		c.reactor.EnteredAcceptable()
	}
	return nil
}

func (c *Controller) handle(cmd types.Command) error {
	current := c.thresholds.Load()

	var next types.Thresholds
	switch cmd.Kind {
	case types.CommandLouder:
		next = current.Shift(c.opts.StepDB)
	case types.CommandQuieter:
		next = current.Shift(-c.opts.StepDB)
	case types.CommandSetThresholds:
		next = cmd.Thresholds
	case types.CommandSetWindowSeconds:
		if err := config.ValidateWindowSeconds(cmd.WindowSeconds); err != nil {
			logger.Warnf("Ignoring window seconds update: %v", err)
			return nil
		}
		c.windowSeconds.Store(cmd.WindowSeconds)
		c.log.Info().Float64("window_seconds", cmd.WindowSeconds).Msg("Window updated")
		return nil
	default:
		logger.Warnf("Ignoring unknown command %v", cmd.Kind)
		return nil
	}

	if err := config.ValidateThresholds(next); err != nil {
		logger.Warnf("Ignoring %s command: %v", cmd.Kind, err)
		return nil
	}

	c.thresholds.Store(next)
	c.graceUntil = c.opts.Now().Add(c.opts.GracePeriod)

	direction := types.DirectionBetween(current, next)
	c.log.Info().Stringer("command", cmd.Kind).Stringer("direction", direction).Stringer("thresholds", next).Msg("Thresholds updated")

	if err := c.emitThresholds(next); err != nil {
		return err
	}
	c.reactor.ThresholdsAdjusted(direction)
	return nil
}

func (c *Controller) emitThresholds(t types.Thresholds) error {
	for _, s := range c.sinks {
		if err := s.OnThresholds(t); err != nil {
			return fmt.Errorf("failed to publish thresholds: %w", err)
		}
	}
	return nil
}
