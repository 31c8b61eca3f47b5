package audio

import (
	"math"
	"testing"

	"github.com/dooshek/decibender/internal/types"
	"github.com/stretchr/testify/require"
)

func settle(f *Filter, x float64, n int) float64 {
	var y float64
	for i := 0; i < n; i++ {
		y = f.Process(x)
	}
	return y
}

func TestNewFilterNone(t *testing.T) {
	require.Nil(t, NewFilter(types.FilterConfig{Mode: types.FilterNone}, 48000))
	require.Nil(t, NewFilter(types.FilterConfig{}, 48000))
}

func TestFilterDCResponse(t *testing.T) {
	tests := []struct {
		mode types.FilterMode
		want float64
	}{
		{types.FilterLowPass, 0.5},
		{types.FilterHighPass, 0},
		{types.FilterBandPass, 0},
		{types.FilterNotch, 0.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := NewFilter(types.FilterConfig{Mode: tt.mode, Cutoff: 100}, 48000)
			require.NotNil(t, f)
			require.InDelta(t, tt.want, settle(f, 0.5, 48000), 1e-3)
		})
	}
}

func TestHighPassKeepsHighFrequencies(t *testing.T) {
	const sampleRate = 48000
	f := NewFilter(types.FilterConfig{Mode: types.FilterHighPass, Cutoff: 100}, sampleRate)

	frame := make([]float32, sampleRate)
	for i := range frame {
		frame[i] = float32(0.5 * math.Sin(2*math.Pi*5000*float64(i)/sampleRate))
	}
	// A 5 kHz sine has mean square a²/2 and should pass nearly untouched.
	require.InDelta(t, 0.125, f.MeanSquare(frame), 0.005)
}

func TestMeanSquareWithoutFilter(t *testing.T) {
	var f *Filter
	frame := []float32{0.5, -0.5, 0.5, -0.5}
	require.InDelta(t, 0.25, f.MeanSquare(frame), 1e-9)
	require.Equal(t, 0.0, f.MeanSquare(nil))
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(types.FilterConfig{Mode: types.FilterLowPass, Cutoff: 100}, 48000)
	settle(f, 1, 1000)
	f.Reset()

	fresh := NewFilter(types.FilterConfig{Mode: types.FilterLowPass, Cutoff: 100}, 48000)
	require.Equal(t, fresh.Process(0.3), f.Process(0.3))
}
