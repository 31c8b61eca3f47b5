package types

import "time"

// KeyCombo interface for types that can be printed as a key combination
type KeyCombo interface {
	HasCtrl() bool
	HasShift() bool
	HasAlt() bool
	HasSuper() bool
	GetKey() string
}

type KeyBinding struct {
	Key   string `yaml:"key"`   // The actual key (e.g., "a", "=", "-", etc.)
	Ctrl  bool   `yaml:"ctrl"`  // Control key modifier
	Shift bool   `yaml:"shift"` // Shift key modifier
	Alt   bool   `yaml:"alt"`   // Alt key modifier
	Super bool   `yaml:"super"` // Super (Windows/Command) key modifier
}

// Implement KeyCombo for KeyBinding
func (kb KeyBinding) HasCtrl() bool  { return kb.Ctrl }
func (kb KeyBinding) HasShift() bool { return kb.Shift }
func (kb KeyBinding) HasAlt() bool   { return kb.Alt }
func (kb KeyBinding) HasSuper() bool { return kb.Super }
func (kb KeyBinding) GetKey() string { return kb.Key }

// FilterMode selects the response of the capture filter stage.
type FilterMode string

const (
	FilterNone     FilterMode = "none"
	FilterLowPass  FilterMode = "lowpass"
	FilterHighPass FilterMode = "highpass"
	FilterBandPass FilterMode = "bandpass"
	FilterNotch    FilterMode = "notch"
)

type FilterConfig struct {
	Mode      FilterMode `yaml:"mode" validate:"omitempty,oneof=none lowpass highpass bandpass notch"`
	Cutoff    float64    `yaml:"cutoff" validate:"gte=0"`
	Resonance float64    `yaml:"resonance" validate:"gte=0,lte=1"`
}

// AudioConfig describes the capture stream. SampleRate and FrameSize are
// fixed for the lifetime of the stream.
type AudioConfig struct {
	Device        string       `yaml:"device" validate:"required"`
	SampleRate    int          `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	FrameSize     int          `yaml:"frame_size" validate:"gte=64,lte=65536"`
	WindowSeconds float64      `yaml:"window_seconds" validate:"gte=0.5,lte=10"`
	Filter        FilterConfig `yaml:"filter"`
}

type ControlConfig struct {
	GracePeriod time.Duration `yaml:"grace_period" validate:"gte=0"`
	StepDB      float64       `yaml:"step_db" validate:"gt=0,lte=40"`
}

// SoundEntry is either a file (relative to the sounds directory or
// absolute) or a text that gets synthesized once and cached.
type SoundEntry struct {
	File string `yaml:"file,omitempty"`
	Text string `yaml:"text,omitempty"`
}

type SoundsConfig struct {
	Dir                  string       `yaml:"dir"`
	Player               string       `yaml:"player"`
	Annoying             SoundEntry   `yaml:"annoying"`
	TooLoudAnnouncement  SoundEntry   `yaml:"too_loud_announcement"`
	TooQuietAnnouncement SoundEntry   `yaml:"too_quiet_announcement"`
	LouderAnnouncements  []SoundEntry `yaml:"louder_announcements" validate:"min=1,dive"`
	QuieterAnnouncements []SoundEntry `yaml:"quieter_announcements" validate:"min=1,dive"`
}

// TTSConfig holds configuration for announcement synthesis
type TTSConfig struct {
	OpenAIKey string  `yaml:"openai_api_key"`
	Model     string  `yaml:"model"`  // "tts-1" or "tts-1-hd"
	Voice     string  `yaml:"voice"`  // default voice to use
	Speed     float64 `yaml:"speed"`  // 0.25-4.0, default 1.0
	Format    string  `yaml:"format"` // "mp3", "opus", "aac", "flac", "wav"
}

type LightZone struct {
	Name   string `yaml:"name" validate:"required"`
	OnURL  string `yaml:"on_url" validate:"required,url"`
	OffURL string `yaml:"off_url" validate:"required,url"`
}

type LightsConfig struct {
	Zones   []LightZone   `yaml:"zones,omitempty" validate:"dive"`
	Timeout time.Duration `yaml:"timeout"`
}

type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	TokenFile    string `yaml:"token_file"`
	APIBaseURL   string `yaml:"api_base_url"`
}

// Enabled reports whether enough credentials are present to talk to Spotify.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WebSocketConfig struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:8787", empty disables the server
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. "mqtt://localhost:1883", empty disables the bridge
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type BridgesConfig struct {
	DBus      DBusConfig      `yaml:"dbus"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

type HotkeysConfig struct {
	Enabled bool       `yaml:"enabled"`
	Louder  KeyBinding `yaml:"louder"`
	Quieter KeyBinding `yaml:"quieter"`
}

type Config struct {
	Audio         AudioConfig   `yaml:"audio"`
	Thresholds    Thresholds    `yaml:"thresholds"`
	Control       ControlConfig `yaml:"control"`
	Sounds        SoundsConfig  `yaml:"sounds"`
	TTS           TTSConfig     `yaml:"tts"`
	Lights        LightsConfig  `yaml:"lights"`
	Spotify       SpotifyConfig `yaml:"spotify"`
	Bridges       BridgesConfig `yaml:"bridges"`
	Hotkeys       HotkeysConfig `yaml:"hotkeys"`
	Notifications bool          `yaml:"notifications"`
}

// GetTTSConfig returns TTS configuration with defaults
func (c *Config) GetTTSConfig() TTSConfig {
	config := c.TTS

	if config.Model == "" {
		config.Model = "tts-1-hd"
	}
	if config.Voice == "" {
		config.Voice = "nova"
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if config.Format == "" {
		config.Format = "mp3"
	}

	return config
}
