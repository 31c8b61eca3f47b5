package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
	"github.com/gen2brain/malgo"
)

var (
	// ErrDeviceNotFound is returned when no capture device has the configured name.
	ErrDeviceNotFound = errors.New("capture device not found")

	// ErrPipelineSevered means the capture side can no longer hand energy
	// values to the aggregator. It is always fatal.
	ErrPipelineSevered = errors.New("capture to aggregation pipeline severed")
)

const bytesPerSample = 4

// Source captures mono float32 audio from a named device, filters it and
// sends the mean-square energy of every fixed-size frame to a queue.
type Source struct {
	cfg    types.AudioConfig
	filter *Filter
	frame  []float32
	filled int
	queue  *Queue[float64]
	fatal  chan error

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func NewSource(cfg types.AudioConfig, queue *Queue[float64]) *Source {
	return &Source{
		cfg:    cfg,
		filter: NewFilter(cfg.Filter, cfg.SampleRate),
		frame:  make([]float32, cfg.FrameSize),
		queue:  queue,
		fatal:  make(chan error, 1),
	}
}

// Fatal delivers the first unrecoverable error raised from the capture
// callback.
func (s *Source) Fatal() <-chan error {
	return s.fatal
}

// Start opens the configured device and begins streaming. Failures here are
// configuration errors and are not retried.
func (s *Source) Start() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	info, err := findCaptureDevice(ctx, s.cfg.Device)
	if err != nil {
		freeContext(ctx)
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			s.onData(input)
		},
	})
	if err != nil {
		freeContext(ctx)
		return fmt.Errorf("failed to open capture device %q: %w", s.cfg.Device, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(ctx)
		return fmt.Errorf("failed to start capture device %q: %w", s.cfg.Device, err)
	}

	s.ctx = ctx
	s.device = device
	logger.Infof("🎙️  Capturing from %q at %d Hz, %d samples per frame", s.cfg.Device, s.cfg.SampleRate, s.cfg.FrameSize)
	return nil
}

// Close stops the device and releases the audio context.
func (s *Source) Close() {
	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			logger.Warnf("Failed to stop capture device: %v", err)
		}
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		freeContext(s.ctx)
		s.ctx = nil
	}
}

// onData runs on the audio thread. It must not block or allocate.
func (s *Source) onData(input []byte) {
	for i := 0; i+bytesPerSample <= len(input); i += bytesPerSample {
		s.frame[s.filled] = math.Float32frombits(binary.LittleEndian.Uint32(input[i:]))
		s.filled++
		if s.filled < len(s.frame) {
			continue
		}
		s.filled = 0

		if err := s.queue.Send(s.filter.MeanSquare(s.frame)); err != nil {
			s.raise(fmt.Errorf("%w: %v", ErrPipelineSevered, err))
			return
		}
	}
}

// raise keeps the first fatal error and drops the rest
func (s *Source) raise(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	for _, info := range infos {
		if info.Name() == name {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// ListDevices returns the names of all capture devices.
func ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer freeContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		logger.Warnf("Failed to uninitialize audio context: %v", err)
	}
	ctx.Free()
}
