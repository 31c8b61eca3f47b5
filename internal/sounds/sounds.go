// Package sounds resolves the files every reaction plays. Entries are either
// files, relative to the sounds directory or absolute, or texts that are
// synthesized once and cached.
package sounds

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

var (
	// ErrSoundMissing is returned when a configured sound file does not exist.
	ErrSoundMissing = errors.New("sound file missing")

	// ErrNoSynthesizer is returned for text entries when synthesis is unavailable.
	ErrNoSynthesizer = errors.New("text announcements need tts.openai_api_key")
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Library holds resolved paths. Safe for concurrent use.
type Library struct {
	annoying string
	tooLoud  string
	tooQuiet string
	louder   []string
	quieter  []string
	pick     func(n int) int
}

// Load resolves every entry up front so missing files fail at startup.
// synth may be nil when no entry is a text.
func Load(ctx context.Context, cfg types.SoundsConfig, synth Synthesizer) (*Library, error) {
	r := resolver{ctx: ctx, dir: cfg.Dir, synth: synth}

	lib := &Library{
		annoying: r.one("annoying", cfg.Annoying),
		tooLoud:  r.one("too_loud_announcement", cfg.TooLoudAnnouncement),
		tooQuiet: r.one("too_quiet_announcement", cfg.TooQuietAnnouncement),
		louder:   r.many("louder_announcements", cfg.LouderAnnouncements),
		quieter:  r.many("quieter_announcements", cfg.QuieterAnnouncements),
		pick:     rand.IntN,
	}
	if r.err != nil {
		return nil, r.err
	}

	logger.Infof("Loaded sounds: %d louder and %d quieter announcements", len(lib.louder), len(lib.quieter))
	return lib, nil
}

func (l *Library) Annoying() string             { return l.annoying }
func (l *Library) TooLoudAnnouncement() string  { return l.tooLoud }
func (l *Library) TooQuietAnnouncement() string { return l.tooQuiet }

// LouderAnnouncement picks one of the louder announcements at random.
func (l *Library) LouderAnnouncement() string {
	return l.louder[l.pick(len(l.louder))]
}

// QuieterAnnouncement picks one of the quieter announcements at random.
func (l *Library) QuieterAnnouncement() string {
	return l.quieter[l.pick(len(l.quieter))]
}

// resolver keeps the first error so Load reads as a flat list.
type resolver struct {
	ctx   context.Context
	dir   string
	synth Synthesizer
	err   error
}

func (r *resolver) one(name string, entry types.SoundEntry) string {
	if r.err != nil {
		return ""
	}
	path, err := r.resolve(entry)
	if err != nil {
		r.err = fmt.Errorf("sounds.%s: %w", name, err)
	}
	return path
}

func (r *resolver) many(name string, entries []types.SoundEntry) []string {
	if len(entries) == 0 && r.err == nil {
		r.err = fmt.Errorf("sounds.%s: at least one entry is required", name)
	}
	paths := make([]string, 0, len(entries))
	for i, entry := range entries {
		paths = append(paths, r.one(fmt.Sprintf("%s[%d]", name, i), entry))
	}
	return paths
}

func (r *resolver) resolve(entry types.SoundEntry) (string, error) {
	if entry.Text != "" {
		if r.synth == nil {
			return "", ErrNoSynthesizer
		}
		return r.synth.Synthesize(r.ctx, entry.Text)
	}

	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrSoundMissing, path)
	}
	return path, nil
}
