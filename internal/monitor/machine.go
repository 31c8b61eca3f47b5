package monitor

import "github.com/dooshek/decibender/internal/types"

// Machine holds the reaction state and applies the threshold guards with
// hysteresis. It knows nothing about time; the grace period is the
// controller's concern.
type Machine struct {
	state types.State
}

func NewMachine() *Machine {
	return &Machine{state: types.StateAcceptable}
}

func (m *Machine) State() types.State {
	return m.state
}

// Evaluate applies one loudness reading and reports whether the state changed.
func (m *Machine) Evaluate(loudness float64, t types.Thresholds) bool {
	next := m.state

	switch m.state {
	case types.StateAcceptable:
		if t.IsTooLoud(loudness) {
			next = types.StateTooLoud
		} else if t.IsTooQuiet(loudness) {
			next = types.StateTooQuiet
		}
	case types.StateTooLoud:
		if t.AcceptableFromTooLoud(loudness) {
			next = types.StateAcceptable
		}
	case types.StateTooQuiet:
		if t.AcceptableFromTooQuiet(loudness) {
			next = types.StateAcceptable
		}
	}

	if next == m.state {
		return false
	}
	m.state = next
	return true
}
