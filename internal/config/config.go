package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dooshek/decibender/internal/fileops"
	"github.com/dooshek/decibender/internal/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "decibender.yaml"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateSoundEntry, types.SoundEntry{})
	v.RegisterStructValidation(validateAudio, types.AudioConfig{})
	return v
}

// An active filter needs a cutoff strictly between 0 and the Nyquist
// frequency, otherwise the recurrence diverges.
func validateAudio(sl validator.StructLevel) {
	audio := sl.Current().Interface().(types.AudioConfig)
	if audio.Filter.Mode == "" || audio.Filter.Mode == types.FilterNone {
		return
	}
	nyquist := float64(audio.SampleRate) / 2
	if audio.Filter.Cutoff <= 0 || audio.Filter.Cutoff >= nyquist {
		sl.ReportError(audio.Filter.Cutoff, "Filter.Cutoff", "cutoff", "nyquist", fmt.Sprintf("%g", nyquist))
	}
}

// A sound entry names either a file or a text to synthesize, never both.
func validateSoundEntry(sl validator.StructLevel) {
	entry := sl.Current().Interface().(types.SoundEntry)
	hasFile := strings.TrimSpace(entry.File) != ""
	hasText := strings.TrimSpace(entry.Text) != ""
	if hasFile == hasText {
		sl.ReportError(entry.File, "File", "file", "file_xor_text", "")
	}
}

// DefaultConfig returns the configuration used when a field is left out of
// the YAML file.
func DefaultConfig() *types.Config {
	return &types.Config{
		Audio: types.AudioConfig{
			SampleRate:    48000,
			FrameSize:     4000,
			WindowSeconds: 3,
			Filter: types.FilterConfig{
				Mode:      types.FilterHighPass,
				Cutoff:    100,
				Resonance: 0,
			},
		},
		Thresholds: types.Thresholds{
			TooLoud:  -35,
			TooQuiet: -75,
			Grace:    6,
		},
		Control: types.ControlConfig{
			GracePeriod: 7 * time.Second,
			StepDB:      6,
		},
		Sounds: types.SoundsConfig{
			Player:               "paplay",
			Annoying:             types.SoundEntry{File: "annoying.wav"},
			TooLoudAnnouncement:  types.SoundEntry{Text: "It is getting too loud in here."},
			TooQuietAnnouncement: types.SoundEntry{Text: "It is very quiet. Pausing the music."},
			LouderAnnouncements: []types.SoundEntry{
				{Text: "Okay, you may be a bit louder now."},
				{Text: "Fine, turn it up."},
			},
			QuieterAnnouncements: []types.SoundEntry{
				{Text: "Okay, I will expect it quieter from now on."},
				{Text: "Alright, keep it down."},
			},
		},
		Lights: types.LightsConfig{
			Timeout: 5 * time.Second,
		},
		Spotify: types.SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8888/callback",
			APIBaseURL:  "https://api.spotify.com",
		},
		Bridges: types.BridgesConfig{
			DBus: types.DBusConfig{Enabled: true},
			MQTT: types.MQTTConfig{TopicPrefix: "decibender"},
		},
		Hotkeys: types.HotkeysConfig{
			Louder:  types.KeyBinding{Key: "=", Ctrl: true, Super: true},
			Quieter: types.KeyBinding{Key: "-", Ctrl: true, Super: true},
		},
	}
}

// LoadConfig reads the configuration from path, or from the default config
// directory when path is empty. Missing fields take their defaults and the
// result is validated.
func LoadConfig(path string) (*types.Config, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if config.Sounds.Dir == "" {
		fileOps, err := fileops.NewDefaultFileOps()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file operations: %w", err)
		}
		config.Sounds.Dir = fileOps.GetSoundsDir()
	}

	return config, nil
}

func readConfig(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, fileops.ErrConfigNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return data, nil
	}

	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file operations: %w", err)
	}

	if err := fileOps.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := fileOps.LoadConfig(configFilename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			return nil, fmt.Errorf("%s/%s: %w (run with --init)", fileOps.GetConfigDir(), configFilename, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*types.Config, error) {
	config := DefaultConfig()

	// Lists replace the defaults instead of merging into them
	config.Sounds.LouderAnnouncements = nil
	config.Sounds.QuieterAnnouncements = nil

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if len(config.Sounds.LouderAnnouncements) == 0 {
		config.Sounds.LouderAnnouncements = defaults.Sounds.LouderAnnouncements
	}
	if len(config.Sounds.QuieterAnnouncements) == 0 {
		config.Sounds.QuieterAnnouncements = defaults.Sounds.QuieterAnnouncements
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks a full configuration.
func Validate(config *types.Config) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", describe(err))
	}
	return nil
}

// ValidateThresholds checks a thresholds replacement received at runtime.
func ValidateThresholds(t types.Thresholds) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid thresholds: %w", describe(err))
	}
	return nil
}

// ValidateWindowSeconds checks a window duration received at runtime.
func ValidateWindowSeconds(seconds float64) error {
	if err := validate.Var(seconds, "gte=0.5,lte=10"); err != nil {
		return fmt.Errorf("invalid window seconds %.2f: must be between 0.5 and 10", seconds)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SaveConfig writes the configuration to the default config directory.
func SaveConfig(config *types.Config) error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return saveConfig(fileOps, config)
}

func saveConfig(fileOps fileops.FileOps, config *types.Config) error {
	if err := fileOps.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileOps.SaveConfig(configFilename, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
