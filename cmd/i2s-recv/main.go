// Command i2s-recv runs the device-side transmit core on a general-purpose
// host against a simulated I2S master: header parse, link ingestion, the
// bounded fifo, and the bit clock follower, end to end without hardware.
// Input arrives on stdin or over a websocket listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bjornbjornson73/i2s/pkg/i2s"
	"github.com/bjornbjornson73/i2s/pkg/link"
	"github.com/bjornbjornson73/i2s/pkg/session"
)

func main() {
	// Parse flags
	var (
		listen      = flag.String("listen", "", "websocket listen address (empty: read stdin)")
		fifoCap     = flag.Int("fifo-capacity", i2s.DefaultFifoCapacity, "frame fifo capacity")
		chunk       = flag.Int("chunk-size", link.DefaultChunkSize, "link read size in bytes")
		maxSessions = flag.Int("max-sessions", 4, "maximum concurrent streaming sessions")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *listen == "" {
		*listen = os.Getenv("I2S_LISTEN_ADDR")
	}
	if *logLevel == "info" {
		if ll := os.Getenv("LOG_LEVEL"); ll != "" {
			*logLevel = ll
		}
	}

	logger := setupLogger(*logLevel)

	cfg := session.Config{
		FifoCapacity: *fifoCap,
		ChunkSize:    *chunk,
		Logger:       logger,
	}

	mgr := session.NewManager(session.ManagerConfig{
		MaxSessions: *maxSessions,
		Logger:      logger,
	})
	defer mgr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *listen == "" {
		go func() {
			<-sigCh
			logger.Info("interrupt received, stopping")
			cancel()
		}()

		if err := runSession(ctx, logger, mgr, cfg, os.Stdin); err != nil {
			logger.Error("session failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Websocket mode: each connection is one streaming session.
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		transport, err := link.UpgradeStream(w, r)
		if err != nil {
			logger.Error("upgrade failed", "error", err)
			return
		}
		defer transport.Close()

		if err := runSession(r.Context(), logger, mgr, cfg, transport); err != nil {
			logger.Error("session failed", "error", err)
		}
	})
	mux.HandleFunc("GET /api/v1/status", mgr.HandleStatusRequest)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", mgr.HandleStopSessionRequest)

	server := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}

	go func() {
		logger.Info("websocket receiver listening", "addr", *listen, "path", "/stream")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

// runSession streams one WAV byte stream through the full transmit core
// and reports the session counters when done.
func runSession(ctx context.Context, logger *slog.Logger, mgr *session.Manager, cfg session.Config, transport io.Reader) error {
	sess := session.New(cfg)
	if err := mgr.Register(sess); err != nil {
		return err
	}
	// Session.Close is idempotent, so deregistering after the explicit
	// teardown below is safe.
	defer mgr.Remove(sess.ID)

	master := i2s.NewSimMaster()
	follower := i2s.NewFollower(i2s.FollowerConfig{
		BCK:    master.BCK,
		WS:     master.WS,
		SD:     master.SD,
		Fifo:   sess.Fifo(),
		Logger: logger,
	})
	sess.AttachFollower(follower)

	followerDone := make(chan struct{})
	go func() {
		defer close(followerDone)
		follower.Run()
	}()

	// The sim master clocks frames until the follower stops answering,
	// standing in for the external clock source.
	masterDone := make(chan struct{})
	go func() {
		defer close(masterDone)
		for {
			if _, err := master.ClockFrame(); err != nil {
				return
			}
		}
	}()

	if err := sess.Start(ctx, transport); err != nil {
		sess.Close()
		follower.Stop()
		return err
	}

	ingestErr := sess.Wait()

	// Let the follower drain what is queued, then tear down. Draining is
	// what the real device does on a transport error too: frames already
	// accepted still go out.
	for sess.Fifo().Len() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	sess.Close()
	follower.Stop()
	<-followerDone
	<-masterDone

	stats := sess.Stats()
	logger.Info("session finished", "session", sess.ID,
		"bytesReceived", stats.BytesReceived,
		"framesAssembled", stats.FramesAssembled,
		"framesShifted", stats.FramesShifted)

	if ingestErr != nil && !errors.Is(ingestErr, context.Canceled) {
		return fmt.Errorf("ingestion: %w", ingestErr)
	}
	return nil
}

// setupLogger creates a structured logger
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
