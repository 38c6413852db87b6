package audio

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives timed audio chunks. The session client satisfies this.
type Sink interface {
	SendAudioChunk(data []byte, duration float64, speaker string) error
}

// Streamer replays a PCM stream into a sink at real-time pace, simulating a
// live capture source.
type Streamer struct {
	config StreamConfig
	logger *logrus.Entry
}

// NewStreamer creates a streamer with the given configuration.
func NewStreamer(config StreamConfig, logger *logrus.Logger) *Streamer {
	if config.ChunkDuration <= 0 {
		config.ChunkDuration = DefaultStreamConfig().ChunkDuration
	}
	return &Streamer{
		config: config,
		logger: logger.WithField("component", "audio"),
	}
}

// Stream reads the source to exhaustion, sending one chunk per tick of the
// configured chunk duration. Silent chunks are dropped when the silence gate
// is enabled; pacing is unaffected so downstream timing stays live.
func (s *Streamer) Stream(ctx context.Context, reader io.Reader, sink Sink) error {
	chunker := NewChunker(reader, s.config)

	ticker := time.NewTicker(s.config.ChunkDuration)
	defer ticker.Stop()

	sent := 0
	skipped := 0
	for {
		chunk, err := chunker.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.WithFields(logrus.Fields{
					"chunks_sent":    sent,
					"chunks_skipped": skipped,
				}).Info("Audio stream exhausted")
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if s.config.EnableSilenceGate && !chunk.IsVoice {
			skipped++
			continue
		}

		if err := sink.SendAudioChunk(chunk.Data, chunk.Duration, chunk.Speaker); err != nil {
			return err
		}
		sent++
	}
}
