package types

import (
	"errors"
	"fmt"
)

// ErrAlreadyInState is returned by collaborator clients when the remote
// service reports it is already in the requested state. Callers treat it as
// a warning, not a failure.
var ErrAlreadyInState = errors.New("service already in requested state")

// Thresholds are the loudness boundaries in dBFS. Updates always replace the
// whole value.
type Thresholds struct {
	TooLoud  float64 `yaml:"too_loud" json:"too_loud" validate:"gtfield=TooQuiet,lte=0"`
	TooQuiet float64 `yaml:"too_quiet" json:"too_quiet" validate:"gte=-120"`
	Grace    float64 `yaml:"grace" json:"grace" validate:"gte=0,lte=40"`
}

func (t Thresholds) String() string {
	return fmt.Sprintf("too_loud=%.1fdB too_quiet=%.1fdB grace=%.1fdB", t.TooLoud, t.TooQuiet, t.Grace)
}

func (t Thresholds) IsTooLoud(loudness float64) bool {
	return loudness >= t.TooLoud
}

func (t Thresholds) IsTooQuiet(loudness float64) bool {
	return loudness <= t.TooQuiet
}

func (t Thresholds) AcceptableFromTooLoud(loudness float64) bool {
	return loudness < t.TooLoud-t.Grace
}

func (t Thresholds) AcceptableFromTooQuiet(loudness float64) bool {
	return loudness > t.TooQuiet+t.Grace
}

// Shift moves both boundaries by delta dB, keeping grace.
func (t Thresholds) Shift(delta float64) Thresholds {
	return Thresholds{
		TooLoud:  t.TooLoud + delta,
		TooQuiet: t.TooQuiet + delta,
		Grace:    t.Grace,
	}
}

// State is the reaction state of the monitor.
type State int

const (
	StateAcceptable State = iota
	StateTooLoud
	StateTooQuiet
)

func (s State) String() string {
	switch s {
	case StateAcceptable:
		return "Acceptable"
	case StateTooLoud:
		return "TooLoud"
	case StateTooQuiet:
		return "TooQuiet"
	default:
		return "Unknown"
	}
}

// Direction is the direction of a threshold adjustment.
type Direction int

const (
	DirectionUnchanged Direction = iota
	DirectionLouder
	DirectionQuieter
)

func (d Direction) String() string {
	switch d {
	case DirectionLouder:
		return "louder"
	case DirectionQuieter:
		return "quieter"
	default:
		return "unchanged"
	}
}

// DirectionBetween reports how the tolerated loudness moved from old to next.
func DirectionBetween(old, next Thresholds) Direction {
	switch {
	case next.TooLoud > old.TooLoud:
		return DirectionLouder
	case next.TooLoud < old.TooLoud:
		return DirectionQuieter
	default:
		return DirectionUnchanged
	}
}

// CommandKind identifies a manual override or configuration event.
type CommandKind int

const (
	CommandLouder CommandKind = iota
	CommandQuieter
	CommandSetThresholds
	CommandSetWindowSeconds
)

func (k CommandKind) String() string {
	switch k {
	case CommandLouder:
		return "louder"
	case CommandQuieter:
		return "quieter"
	case CommandSetThresholds:
		return "set_thresholds"
	case CommandSetWindowSeconds:
		return "set_window_seconds"
	default:
		return "unknown"
	}
}

// Command is delivered to the monitor's control loop. Only the field
// matching Kind is meaningful.
type Command struct {
	Kind          CommandKind
	Thresholds    Thresholds
	WindowSeconds float64
}

func Louder() Command  { return Command{Kind: CommandLouder} }
func Quieter() Command { return Command{Kind: CommandQuieter} }

func SetThresholds(t Thresholds) Command {
	return Command{Kind: CommandSetThresholds, Thresholds: t}
}

func SetWindowSeconds(seconds float64) Command {
	return Command{Kind: CommandSetWindowSeconds, WindowSeconds: seconds}
}
