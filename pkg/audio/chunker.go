package audio

import (
	"io"
	"math"
	"time"
)

// StreamConfig holds configuration for chunking a PCM stream
type StreamConfig struct {
	// SampleRate is the audio sample rate (8000, 16000, 44100, etc.)
	SampleRate int
	// ChunkDuration is the wall-clock length of each emitted chunk
	ChunkDuration time.Duration
	// Speaker labels every chunk from this source
	Speaker string

	// EnableSilenceGate drops chunks whose energy falls below SilenceThreshold
	EnableSilenceGate bool
	// SilenceThreshold is the normalized energy floor (0.0-1.0)
	SilenceThreshold float64
}

// DefaultStreamConfig returns default stream configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate:        16000,
		ChunkDuration:     250 * time.Millisecond,
		EnableSilenceGate: false,
		SilenceThreshold:  0.02,
	}
}

// Chunk is one fixed-duration slice of a PCM stream.
type Chunk struct {
	Data     []byte
	Duration float64
	Speaker  string
	Energy   float64
	IsVoice  bool
}

// Chunker slices a 16-bit mono little-endian PCM stream into fixed-duration
// chunks. The final chunk may be shorter than the configured duration.
type Chunker struct {
	config        StreamConfig
	reader        io.Reader
	bytesPerChunk int
}

// NewChunker creates a chunker over the given PCM source.
func NewChunker(reader io.Reader, config StreamConfig) *Chunker {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultStreamConfig().SampleRate
	}
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = DefaultStreamConfig().ChunkDuration
	}

	// 16-bit mono: two bytes per sample.
	bytesPerChunk := int(float64(config.SampleRate)*config.ChunkDuration.Seconds()) * 2

	return &Chunker{
		config:        config,
		reader:        reader,
		bytesPerChunk: bytesPerChunk,
	}
}

// Next reads one chunk from the stream. It returns io.EOF when the stream is
// exhausted; a short final chunk is returned with its actual duration.
func (c *Chunker) Next() (Chunk, error) {
	buf := make([]byte, c.bytesPerChunk)
	n, err := io.ReadFull(c.reader, buf)
	if n == 0 {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Chunk{}, err
	}

	// Trim to an even byte count so the chunk holds whole samples.
	n -= n % 2
	if n == 0 {
		return Chunk{}, io.EOF
	}

	data := buf[:n]
	energy := frameEnergy(data)

	return Chunk{
		Data:     data,
		Duration: float64(n) / float64(c.config.SampleRate*2),
		Speaker:  c.config.Speaker,
		Energy:   energy,
		IsVoice:  energy >= c.config.SilenceThreshold,
	}, nil
}

// frameEnergy computes the normalized RMS energy of 16-bit LE PCM samples.
func frameEnergy(data []byte) float64 {
	samples := len(data) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}
