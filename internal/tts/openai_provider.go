package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// OpenAITTSProvider implements TTSProvider for OpenAI TTS API
type OpenAITTSProvider struct {
	client *openai.Client
	config OpenAIConfig
}

// OpenAIConfig holds OpenAI TTS configuration
type OpenAIConfig struct {
	Model   string  // "tts-1" or "tts-1-hd"
	Speed   float64 // 0.25-4.0, default 1.0
	Format  string  // "opus", "mp3", "aac", "flac", "wav"
	BaseURL string  // empty for the public API
}

// NewOpenAITTSProvider creates a new OpenAI TTS provider
func NewOpenAITTSProvider(apiKey string, config OpenAIConfig) *OpenAITTSProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.Model == "" {
		config.Model = "tts-1-hd"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.Format == "" {
		config.Format = string(FormatMP3)
	}

	return &OpenAITTSProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// GetAudio converts text to speech and returns audio data
func (p *OpenAITTSProvider) GetAudio(ctx context.Context, text string, voice string) ([]byte, error) {
	if voice == "" {
		voice = "nova"
	}

	logger.Infof("Generating TTS for text (length: %d chars) with voice: %s", len(text), voice)

	response, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		Speed:          p.config.Speed,
		ResponseFormat: openai.SpeechResponseFormat(p.config.Format),
	})
	if err != nil {
		logger.Error("OpenAI TTS API error", err)
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer response.Close()

	audioData, err := io.ReadAll(response)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	logger.Debugf("Generated %s of %s audio", estimateFileSize(len(audioData)), p.config.Format)
	return audioData, nil
}

// GetAvailableVoices returns OpenAI TTS voices
func (p *OpenAITTSProvider) GetAvailableVoices() []string {
	return []string{
		"alloy",   // Neutral, balanced
		"echo",    // Male, clear
		"fable",   // British accent
		"onyx",    // Deep male
		"nova",    // Young female (recommended)
		"shimmer", // Warm female
	}
}

// GetProviderName returns provider name
func (p *OpenAITTSProvider) GetProviderName() string {
	return "OpenAI TTS"
}

// estimateFileSize provides human-readable size estimate
func estimateFileSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	} else if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
