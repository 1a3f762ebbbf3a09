// Package sender implements the host side of the link: streaming a
// normalized WAV byte stream to the device in fixed-size chunks with
// progress reporting.
package sender

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultChunkSize is the write size per chunk; 512 bytes is 128 stereo
// frames, small enough to keep device-side buffering shallow.
const DefaultChunkSize = 512

// progressEveryChunks paces progress logging so a long transfer reports
// roughly every 10 chunks' worth of data.
const progressEveryChunks = 10

// Sender streams WAV bytes over an open transport.
type Sender struct {
	chunkSize int
	logger    *slog.Logger
}

// Config configures a Sender.
type Config struct {
	ChunkSize int // defaults to DefaultChunkSize
	Logger    *slog.Logger
}

// Stats summarizes a completed transfer.
type Stats struct {
	BytesSent int
	Duration  time.Duration
}

// Throughput returns the average transfer rate in KiB/s.
func (s Stats) Throughput() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesSent) / 1024 / secs
}

// New creates a Sender.
func New(cfg Config) *Sender {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sender{
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
	}
}

// Send writes data to the transport in fixed-size chunks, logging progress
// periodically. It stops early if ctx is cancelled or the transport fails;
// either way the returned stats cover what was actually sent.
func (s *Sender) Send(ctx context.Context, transport io.Writer, data []byte) (Stats, error) {
	total := len(data)
	s.logger.Info("starting transfer", "totalBytes", total, "chunkSize", s.chunkSize)

	start := time.Now()
	sent := 0
	chunkCount := 0

	for sent < total {
		if err := ctx.Err(); err != nil {
			return Stats{BytesSent: sent, Duration: time.Since(start)}, err
		}

		end := sent + s.chunkSize
		if end > total {
			end = total
		}

		n, err := transport.Write(data[sent:end])
		sent += n
		if err != nil {
			return Stats{BytesSent: sent, Duration: time.Since(start)},
				fmt.Errorf("transport write after %d bytes: %w", sent, err)
		}

		chunkCount++
		if chunkCount%progressEveryChunks == 0 {
			elapsed := time.Since(start)
			s.logger.Info("transfer progress",
				"percent", fmt.Sprintf("%.1f", float64(sent)/float64(total)*100),
				"sentBytes", sent, "totalBytes", total,
				"kibPerSec", fmt.Sprintf("%.1f", float64(sent)/1024/elapsed.Seconds()))
		}
	}

	stats := Stats{BytesSent: sent, Duration: time.Since(start)}
	s.logger.Info("transfer complete", "bytes", stats.BytesSent,
		"duration", stats.Duration.Round(time.Millisecond),
		"kibPerSec", fmt.Sprintf("%.1f", stats.Throughput()))

	return stats, nil
}
