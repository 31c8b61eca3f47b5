package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

// ErrNoAPIKey is returned when text announcements are configured without a key.
var ErrNoAPIKey = errors.New("OpenAI API key is required to synthesize announcements")

// Manager synthesizes announcements once and keeps them as files in a cache
// directory, so playback never waits on the network.
type Manager struct {
	provider TTSProvider
	config   types.TTSConfig
	cacheDir string
}

// NewManager creates a Manager backed by the OpenAI provider.
func NewManager(config types.TTSConfig, cacheDir string) (*Manager, error) {
	if config.OpenAIKey == "" {
		return nil, ErrNoAPIKey
	}

	provider := NewOpenAITTSProvider(config.OpenAIKey, OpenAIConfig{
		Model:  config.Model,
		Speed:  config.Speed,
		Format: config.Format,
	})
	return NewManagerWithProvider(provider, config, cacheDir), nil
}

func NewManagerWithProvider(provider TTSProvider, config types.TTSConfig, cacheDir string) *Manager {
	logger.Infof("Initialized TTS Manager with provider: %s", provider.GetProviderName())
	return &Manager{
		provider: provider,
		config:   config,
		cacheDir: cacheDir,
	}
}

// Synthesize returns the path of a cached file holding text spoken with the
// configured voice, generating it on first use.
func (m *Manager) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("text cannot be empty")
	}

	path := m.cachePath(text)
	if _, err := os.Stat(path); err == nil {
		logger.Debugf("Using cached announcement %s", filepath.Base(path))
		return path, nil
	}

	audioData, err := m.provider.GetAudio(ctx, text, m.config.Voice)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(m.cacheDir, "tts_*.partial")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audioData); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store announcement: %w", err)
	}

	logger.Infof("🔊 Cached announcement %q", text)
	return path, nil
}

// cachePath keys the file on everything that changes the audio.
func (m *Manager) cachePath(text string) string {
	key := fmt.Sprintf("%s|%s|%.2f|%s|%s", m.provider.GetProviderName(), m.config.Model, m.config.Speed, m.config.Voice, text)
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:12]) + "." + AudioFormat(m.config.Format).Extension()
	return filepath.Join(m.cacheDir, name)
}
