package sounds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
	"github.com/dooshek/decibender/pkg/wav"
)

const (
	// DefaultAnnoyingFile is the file name the default configuration uses
	// for the too-loud loop.
	DefaultAnnoyingFile = "annoying.wav"

	sirenSampleRate = 22050
	sirenLow        = 660.0
	sirenHigh       = 880.0
	sirenStep       = 250 * time.Millisecond
	sirenSteps      = 8
	sirenAmplitude  = 0.6
)

// EnsureDefaults writes a generated siren for the annoying sound when the
// configuration points at the default file and it does not exist yet.
func EnsureDefaults(cfg types.SoundsConfig) error {
	if cfg.Annoying.Text != "" || cfg.Annoying.File != DefaultAnnoyingFile {
		return nil
	}

	path := filepath.Join(cfg.Dir, DefaultAnnoyingFile)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	data, err := wav.ConvertPCMToWAV(siren(), 1, sirenSampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode default sound: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sounds directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write default sound: %w", err)
	}

	logger.Infof("Generated default annoying sound at %s", path)
	return nil
}

// siren alternates two tones.
func siren() []byte {
	var pcm []byte
	for i := 0; i < sirenSteps; i++ {
		freq := sirenLow
		if i%2 == 1 {
			freq = sirenHigh
		}
		pcm = append(pcm, wav.Tone(freq, sirenStep, sirenSampleRate, sirenAmplitude)...)
	}
	return pcm
}
