package server

import "github.com/dooshek/decibender/internal/types"

// Event is pushed to every connected client.
type Event struct {
	Type       string            `json:"type"`
	Loudness   *float64          `json:"loudness,omitempty"`
	State      string            `json:"state,omitempty"`
	Thresholds *types.Thresholds `json:"thresholds,omitempty"`
	Command    string            `json:"command,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func loudnessEvent(db float64) Event {
	return Event{Type: "loudness", Loudness: &db}
}

func stateEvent(s types.State) Event {
	return Event{Type: "state", State: s.String()}
}

func thresholdsEvent(t types.Thresholds) Event {
	return Event{Type: "thresholds", Thresholds: &t}
}

// Request is a command sent by a client.
type Request struct {
	Command       string            `json:"command" validate:"required,oneof=louder quieter thresholds window_seconds"`
	Thresholds    *types.Thresholds `json:"thresholds" validate:"required_if=Command thresholds"`
	WindowSeconds *float64          `json:"window_seconds" validate:"required_if=Command window_seconds,omitempty,gte=0.5,lte=10"`
}
