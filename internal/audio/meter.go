package audio

import (
	"context"
	"errors"
	"math"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/watch"
)

const (
	// FloorDB is the lowest loudness ever published; silence maps here.
	FloorDB = -100.0

	// InitialDB is published before the first frame has been measured.
	InitialDB = -60.0
)

// EnergyWindow is a FIFO of per-frame mean-square values.
type EnergyWindow struct {
	values []float64
}

func NewEnergyWindow(capacity int) *EnergyWindow {
	return &EnergyWindow{values: make([]float64, 0, capacity)}
}

func (w *EnergyWindow) Push(v float64) {
	w.values = append(w.values, v)
}

// Trim drops the oldest values until at most target remain.
func (w *EnergyWindow) Trim(target int) {
	excess := len(w.values) - target
	if excess <= 0 {
		return
	}
	n := copy(w.values, w.values[excess:])
	w.values = w.values[:n]
}

func (w *EnergyWindow) Len() int {
	return len(w.values)
}

// Values returns a copy, oldest first.
func (w *EnergyWindow) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

func (w *EnergyWindow) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// TargetLen is the number of frames covering windowSeconds, at least one.
func TargetLen(sampleRate, frameSize int, windowSeconds float64) int {
	n := int(math.Round(float64(sampleRate) / float64(frameSize) * windowSeconds))
	if n < 1 {
		return 1
	}
	return n
}

// ToDB converts a mean-square energy to dBFS, clamped to FloorDB. A
// non-finite energy reads as FloorDB.
func ToDB(meanSquare float64) float64 {
	if math.IsNaN(meanSquare) || math.IsInf(meanSquare, 0) {
		return FloorDB
	}
	rms := math.Sqrt(math.Max(0, meanSquare))
	rms = math.Min(1, rms)
	if rms == 0 {
		return FloorDB
	}
	return math.Max(FloorDB, 20*math.Log10(rms))
}

// Aggregator turns per-frame energies into a windowed loudness reading.
type Aggregator struct {
	queue         *Queue[float64]
	sampleRate    int
	frameSize     int
	windowSeconds *watch.Value[float64]
	loudness      *watch.Value[float64]
	window        *EnergyWindow
}

func NewAggregator(queue *Queue[float64], sampleRate, frameSize int, windowSeconds, loudness *watch.Value[float64]) *Aggregator {
	return &Aggregator{
		queue:         queue,
		sampleRate:    sampleRate,
		frameSize:     frameSize,
		windowSeconds: windowSeconds,
		loudness:      loudness,
		window:        NewEnergyWindow(TargetLen(sampleRate, frameSize, 10)),
	}
}

// Add folds one frame energy into the window and publishes the new loudness.
func (a *Aggregator) Add(meanSquare float64) float64 {
	a.window.Push(meanSquare)
	a.window.Trim(TargetLen(a.sampleRate, a.frameSize, a.windowSeconds.Load()))

	db := ToDB(a.window.Mean())
	a.loudness.Store(db)
	return db
}

// Run consumes the queue until ctx is done. A queue closed underneath a live
// context is reported as ErrPipelineSevered.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		meanSquare, err := a.queue.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrQueueClosed) {
				logger.Error("Energy queue closed while monitoring", err)
				return ErrPipelineSevered
			}
			return err
		}
		a.Add(meanSquare)
	}
}
