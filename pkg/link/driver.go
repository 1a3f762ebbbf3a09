// Package link carries the host-to-device byte stream: the ingestion loop
// feeding the assembler, plus serial and websocket transports implementing
// the ordered byte stream contract (blocking reads, zero-byte read or
// io.EOF signalling end-of-stream).
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// DefaultChunkSize matches the 512-byte chunks the host sender writes:
// 128 stereo frames per read.
const DefaultChunkSize = 512

// ChunkSink receives raw byte chunks pulled off the transport. Implemented
// by the frame assembler.
type ChunkSink interface {
	Write(chunk []byte) error
}

// Driver pulls fixed-size byte chunks from a transport and feeds them to
// the sink until the transport signals end-of-stream. Reads happen outside
// any fifo locking; backpressure reaches the transport only through the
// sink blocking on a full fifo.
type Driver struct {
	transport io.Reader
	sink      ChunkSink
	chunkSize int
	logger    *slog.Logger

	bytesReceived atomic.Uint64
}

// DriverConfig configures the ingestion loop.
type DriverConfig struct {
	Transport io.Reader
	Sink      ChunkSink
	ChunkSize int // defaults to DefaultChunkSize
	Logger    *slog.Logger
}

// NewDriver creates an ingestion driver.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Driver{
		transport: cfg.Transport,
		sink:      cfg.Sink,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
	}
}

// Run reads chunks until end-of-stream or a transport error. A clean
// end-of-stream returns nil. A transport error is returned to the caller;
// frames already handed to the sink are unaffected and keep draining.
func (d *Driver) Run(ctx context.Context) error {
	buf := make([]byte, d.chunkSize)
	chunkCount := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := d.transport.Read(buf)
		if n > 0 {
			d.bytesReceived.Add(uint64(n))
			chunkCount++
			if err := d.sink.Write(buf[:n]); err != nil {
				return fmt.Errorf("feeding assembler: %w", err)
			}
			if chunkCount%100 == 1 {
				d.logger.Debug("link chunk received", "bytes", n, "totalBytes", d.bytesReceived.Load())
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.logger.Debug("link end of stream", "totalBytes", d.bytesReceived.Load())
				return nil
			}
			return fmt.Errorf("link read: %w", err)
		}
		if n == 0 {
			// Zero-byte read signals end-of-stream on this transport.
			d.logger.Debug("link end of stream (empty read)", "totalBytes", d.bytesReceived.Load())
			return nil
		}
	}
}

// BytesReceived returns the number of bytes pulled off the transport.
func (d *Driver) BytesReceived() uint64 {
	return d.bytesReceived.Load()
}
