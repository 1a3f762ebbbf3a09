// Package session ties one complete streaming run together: header parse,
// link ingestion, the sample fifo, and transmit statistics.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bjornbjornson73/i2s/pkg/i2s"
	"github.com/bjornbjornson73/i2s/pkg/link"
	"github.com/bjornbjornson73/i2s/pkg/wav"
)

// Session is the state of one streaming run. It owns the fifo and the
// parsed format descriptor; the link side pushes into the fifo, the bit
// clock follower pops from it, and neither holds a reference to the other.
// A session is created when streaming starts and torn down at end-of-stream
// or on a transport error; nothing persists across runs.
type Session struct {
	ID string

	format    *wav.FormatDescriptor
	fifo      *i2s.Fifo
	assembler *i2s.Assembler
	driver    *link.Driver
	follower  *i2s.Follower
	logger    *slog.Logger

	chunkSize int

	mu         sync.Mutex
	ingestErr  error
	ingestDone chan struct{}
	started    bool
	wg         sync.WaitGroup
}

// Config configures a transmission session.
type Config struct {
	FifoCapacity int // defaults to i2s.DefaultFifoCapacity
	ChunkSize    int // link read size, defaults to link.DefaultChunkSize
	Logger       *slog.Logger
}

// Stats is a snapshot of session counters.
type Stats struct {
	BytesReceived   uint64
	FramesAssembled uint64
	FramesShifted   uint64
	FifoDepth       int
}

// New creates a session with an empty fifo. Ingestion starts with Start.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Session{
		ID:         uuid.NewString(),
		fifo:       i2s.NewFifo(cfg.FifoCapacity),
		logger:     cfg.Logger,
		chunkSize:  cfg.ChunkSize,
		ingestDone: make(chan struct{}),
	}
}

// Fifo returns the frame queue the bit clock follower should pop from.
func (s *Session) Fifo() *i2s.Fifo {
	return s.fifo
}

// Format returns the parsed format descriptor, or nil before the header
// has been read.
func (s *Session) Format() *wav.FormatDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// AttachFollower registers the follower so its frame count shows up in
// Stats. The session never controls the follower; the clocked context has
// no coupling back to the link context.
func (s *Session) AttachFollower(f *i2s.Follower) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follower = f
}

// Start parses the WAV header from the transport and launches the
// ingestion loop. A malformed header fails here, before any frame is
// queued. A format other than 16-bit stereo is a warning, not a rejection:
// the sender is expected to have normalized already, and the shifter will
// emit whatever arrives as 4-byte groups.
func (s *Session) Start(ctx context.Context, transport io.Reader) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session %s already started", s.ID)
	}
	s.started = true
	s.mu.Unlock()

	desc, leftover, err := wav.ReadHeader(transport)
	if err != nil {
		close(s.ingestDone)
		return fmt.Errorf("parsing stream header: %w", err)
	}
	s.logger.Info("stream header parsed", "session", s.ID,
		"sampleRate", desc.SampleRate, "channels", desc.Channels,
		"bits", desc.BitsPerSample, "dataOffset", desc.DataOffset)

	if !desc.IsStereo16() {
		s.logger.Warn("stream is not 16-bit stereo; sender should have normalized it",
			"session", s.ID, "channels", desc.Channels, "bits", desc.BitsPerSample)
	}

	s.mu.Lock()
	s.format = desc
	s.assembler = i2s.NewAssembler(s.fifo, s.logger)
	s.driver = link.NewDriver(link.DriverConfig{
		Transport: transport,
		Sink:      s.assembler,
		ChunkSize: s.chunkSize,
		Logger:    s.logger,
	})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.ingestLoop(ctx, leftover)

	return nil
}

// ingestLoop feeds the assembler until end-of-stream or a transport error,
// then flushes the partial-frame carry. It never closes the fifo: frames
// already queued keep draining to the follower, which then starves until
// the surrounding caller decides the session is over and calls Close.
func (s *Session) ingestLoop(ctx context.Context, leftover []byte) {
	defer s.wg.Done()
	defer close(s.ingestDone)

	var err error
	if len(leftover) > 0 {
		err = s.assembler.Write(leftover)
	}
	if err == nil {
		err = s.driver.Run(ctx)
	}

	dropped := s.assembler.Flush()

	s.mu.Lock()
	s.ingestErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("ingestion aborted", "session", s.ID, "error", err,
			"bytesReceived", s.driver.BytesReceived())
		return
	}

	s.logger.Info("ingestion complete", "session", s.ID,
		"bytesReceived", s.driver.BytesReceived(),
		"framesAssembled", s.assembler.FramesAssembled(),
		"droppedTailBytes", dropped)
}

// Wait blocks until ingestion ends and returns the transport error, if
// any. A clean end-of-stream returns nil; queued frames may still be
// draining to the follower when Wait returns.
func (s *Session) Wait() error {
	<-s.ingestDone
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestErr
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	st := Stats{FifoDepth: s.fifo.Len()}
	s.mu.Lock()
	if s.driver != nil {
		st.BytesReceived = s.driver.BytesReceived()
	}
	if s.assembler != nil {
		st.FramesAssembled = s.assembler.FramesAssembled()
	}
	if s.follower != nil {
		st.FramesShifted = s.follower.FramesShifted()
	}
	s.mu.Unlock()
	return st
}

// Close tears the session down: it closes the fifo, releasing a follower
// blocked in Pop once the queue drains, and waits for the ingestion
// goroutine to exit.
func (s *Session) Close() error {
	s.fifo.Close()
	s.wg.Wait()
	return nil
}
