package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dooshek/decibender/internal/audio"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

// Playback is a running sound.
type Playback interface {
	ExpectDoneAt() time.Time
	Done() <-chan struct{}
	Err() error
	Stop()
}

type Player interface {
	Play(ctx context.Context, path string) (Playback, error)
}

// Lights switches every configured zone.
type Lights interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
}

// Music controls the music service playback.
type Music interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Sounds resolves the files each reaction plays.
type Sounds interface {
	Annoying() string
	TooLoudAnnouncement() string
	TooQuietAnnouncement() string
	LouderAnnouncement() string
	QuieterAnnouncement() string
}

type audioPlayer struct {
	player *audio.Player
}

// AudioPlayer adapts an audio.Player to Player.
func AudioPlayer(p *audio.Player) Player {
	return audioPlayer{player: p}
}

func (a audioPlayer) Play(ctx context.Context, path string) (Playback, error) {
	h, err := a.player.Play(ctx, path)
	if err != nil {
		return nil, err
	}
	return h, nil
}

type nopLights struct{}

func (nopLights) On(context.Context) error  { return nil }
func (nopLights) Off(context.Context) error { return nil }

type nopMusic struct{}

func (nopMusic) Pause(context.Context) error  { return nil }
func (nopMusic) Resume(context.Context) error { return nil }

// Executor runs the reaction for each transition through one Slot.
// Collaborator failures end the routine and are only logged.
type Executor struct {
	slot   *Slot
	player Player
	lights Lights
	music  Music
	sounds Sounds
}

// NewExecutor builds an executor; nil lights or music disable those steps.
func NewExecutor(slot *Slot, player Player, lights Lights, music Music, sounds Sounds) *Executor {
	if lights == nil {
		lights = nopLights{}
	}
	if music == nil {
		music = nopMusic{}
	}
	return &Executor{
		slot:   slot,
		player: player,
		lights: lights,
		music:  music,
		sounds: sounds,
	}
}

func (e *Executor) EnteredTooLoud() {
	e.dispatch("too_loud", e.tooLoud)
}

func (e *Executor) EnteredTooQuiet() {
	e.dispatch("too_quiet", e.tooQuiet)
}

func (e *Executor) EnteredAcceptable() {
	e.dispatch("acceptable", e.acceptable)
}

func (e *Executor) ThresholdsAdjusted(direction types.Direction) {
	switch direction {
	case types.DirectionLouder:
		e.dispatch("adjusted_louder", func(ctx context.Context) {
			e.announce(ctx, "louder announcement", e.sounds.LouderAnnouncement())
		})
	case types.DirectionQuieter:
		e.dispatch("adjusted_quieter", func(ctx context.Context) {
			e.announce(ctx, "quieter announcement", e.sounds.QuieterAnnouncement())
		})
	default:
		logger.Info("Thresholds unchanged")
	}
}

func (e *Executor) dispatch(name string, task Task) {
	if err := e.slot.Replace(name, task); err != nil {
		logger.Errorf("Failed to dispatch %s reaction", err, name)
	}
}

func (e *Executor) tooLoud(ctx context.Context) {
	if !e.proceed(ctx, "turn lights on", e.lights.On(ctx)) {
		return
	}
	if !e.proceed(ctx, "play too-loud announcement", e.playAndWait(ctx, e.sounds.TooLoudAnnouncement())) {
		return
	}

	for ctx.Err() == nil {
		if !e.proceed(ctx, "play annoying sound", e.playAndWait(ctx, e.sounds.Annoying())) {
			return
		}
	}
}

func (e *Executor) tooQuiet(ctx context.Context) {
	if !e.proceed(ctx, "pause music", e.music.Pause(ctx)) {
		return
	}
	e.announce(ctx, "too-quiet announcement", e.sounds.TooQuietAnnouncement())
}

func (e *Executor) acceptable(ctx context.Context) {
	if !e.proceed(ctx, "resume music", e.music.Resume(ctx)) {
		return
	}
	e.proceed(ctx, "turn lights off", e.lights.Off(ctx))
}

func (e *Executor) announce(ctx context.Context, what, path string) {
	e.proceed(ctx, "play "+what, e.playAndWait(ctx, path))
}

// playAndWait releases the playback on every exit path. A player that exits
// with an error fails the step.
func (e *Executor) playAndWait(ctx context.Context, path string) error {
	h, err := e.player.Play(ctx, path)
	if err != nil {
		return err
	}
	defer h.Stop()

	select {
	case <-h.Done():
		if err := h.Err(); err != nil {
			return fmt.Errorf("failed to play %s: %w", path, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// proceed reports whether the routine should continue after a step.
func (e *Executor) proceed(ctx context.Context, step string, err error) bool {
	switch {
	case err == nil:
		return ctx.Err() == nil
	case errors.Is(err, types.ErrAlreadyInState):
		logger.Warnf("Failed to %s: %v", step, err)
		return ctx.Err() == nil
	case ctx.Err() != nil:
		logger.Debugf("Cancelled while trying to %s", step)
		return false
	default:
		logger.Errorf("Failed to %s", err, step)
		return false
	}
}
