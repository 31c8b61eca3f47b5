// Package wav builds 16-bit PCM WAV files.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const bitsPerSample = 16

// ConvertPCMToWAV wraps little-endian 16-bit PCM data in a WAV header.
func ConvertPCMToWAV(pcmData []byte, channels int, sampleRate int) ([]byte, error) {
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("invalid format: %d channels at %d Hz", channels, sampleRate)
	}
	if len(pcmData)%(channels*2) != 0 {
		return nil, fmt.Errorf("pcm data length %d is not a whole number of frames", len(pcmData))
	}

	var buffer bytes.Buffer
	header := []any{
		[]byte("RIFF"),
		uint32(len(pcmData) + 36),
		[]byte("WAVE"),

		// "fmt " chunk
		[]byte("fmt "),
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * channels * 2),
		uint16(channels * 2),
		uint16(bitsPerSample),

		// "data" chunk
		[]byte("data"),
		uint32(len(pcmData)),
	}
	for _, field := range header {
		if err := binary.Write(&buffer, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	buffer.Write(pcmData)

	return buffer.Bytes(), nil
}

// Tone renders a mono sine as 16-bit PCM. amplitude is in [0,1]; the first
// and last 5 ms are faded to avoid clicks.
func Tone(frequency float64, duration time.Duration, sampleRate int, amplitude float64) []byte {
	n := int(duration.Seconds() * float64(sampleRate))
	fade := sampleRate / 200
	amplitude = math.Max(0, math.Min(1, amplitude))

	pcm := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		gain := amplitude
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if n-i < fade {
			gain *= float64(n-i) / float64(fade)
		}
		v := gain * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}
