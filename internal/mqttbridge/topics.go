package mqttbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dooshek/decibender/internal/config"
	"github.com/dooshek/decibender/internal/types"
)

const defaultPrefix = "decibender"

type topics struct {
	prefix string
}

func newTopics(prefix string) topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return topics{prefix: prefix}
}

func (t topics) state() string      { return t.prefix + "/state" }
func (t topics) thresholds() string { return t.prefix + "/thresholds" }
func (t topics) loudness() string   { return t.prefix + "/loudness" }
func (t topics) status() string     { return t.prefix + "/status" }
func (t topics) commands() string   { return t.prefix + "/cmd/+" }

// command returns the command name of a topic under <prefix>/cmd/.
func (t topics) command(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.prefix+"/cmd/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func loudnessPayload(db float64) []byte {
	return []byte(strconv.FormatFloat(db, 'f', 1, 64))
}

func statePayload(s types.State) []byte {
	return []byte(s.String())
}

func thresholdsPayload(t types.Thresholds) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal thresholds: %w", err)
	}
	return data, nil
}

// parseCommand turns a message on <prefix>/cmd/<name> into a validated
// command.
func parseCommand(name string, payload []byte) (types.Command, error) {
	switch name {
	case "louder":
		return types.Louder(), nil
	case "quieter":
		return types.Quieter(), nil
	case "thresholds":
		var t types.Thresholds
		if err := json.Unmarshal(payload, &t); err != nil {
			return types.Command{}, fmt.Errorf("invalid thresholds payload: %w", err)
		}
		if err := config.ValidateThresholds(t); err != nil {
			return types.Command{}, err
		}
		return types.SetThresholds(t), nil
	case "window_seconds":
		seconds, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return types.Command{}, fmt.Errorf("invalid window seconds payload %q", payload)
		}
		if err := config.ValidateWindowSeconds(seconds); err != nil {
			return types.Command{}, err
		}
		return types.SetWindowSeconds(seconds), nil
	default:
		return types.Command{}, fmt.Errorf("unknown command %q", name)
	}
}
