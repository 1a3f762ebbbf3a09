package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bjornbjornson73/i2s/pkg/link"
	"github.com/bjornbjornson73/i2s/pkg/sender"
	"github.com/bjornbjornson73/i2s/pkg/wav"
)

func main() {
	// Parse flags
	var (
		port      = flag.String("port", "", "serial port of the device (auto-detected when empty)")
		baud      = flag.Int("baud", link.DefaultBaudRate, "serial baud rate")
		wsURL     = flag.String("ws-url", "", "stream to a websocket receiver instead of a serial port")
		chunkSize = flag.Int("chunk-size", sender.DefaultChunkSize, "bytes per transfer chunk")
		logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Load from environment if flags not set
	if *port == "" {
		*port = os.Getenv("I2S_PORT")
	}
	if *wsURL == "" {
		*wsURL = os.Getenv("I2S_WS_URL")
	}
	if *logLevel == "info" {
		if ll := os.Getenv("LOG_LEVEL"); ll != "" {
			*logLevel = ll
		}
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <wav-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	wavPath := flag.Arg(0)

	logger := setupLogger(*logLevel)

	// Cancel the transfer on Ctrl-C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupt received, aborting transfer")
		cancel()
	}()

	if err := run(ctx, logger, wavPath, *port, *baud, *wsURL, *chunkSize); err != nil {
		logger.Error("send failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, wavPath, port string, baud int, wsURL string, chunkSize int) error {
	file, err := os.Open(wavPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", wavPath, err)
	}
	defer file.Close()

	// Normalize to the 16-bit stereo layout the device shifts out directly
	data, format, err := wav.Normalize(file)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", wavPath, err)
	}

	logger.Info("wav normalized", "file", wavPath,
		"sampleRate", format.SampleRate, "channels", format.Channels,
		"bits", format.BitsPerSample, "totalBytes", len(data))

	transport, err := openTransport(ctx, logger, port, baud, wsURL)
	if err != nil {
		return err
	}
	defer transport.Close()

	snd := sender.New(sender.Config{
		ChunkSize: chunkSize,
		Logger:    logger,
	})

	if _, err := snd.Send(ctx, transport, data); err != nil {
		return err
	}
	return nil
}

// openTransport picks the websocket link when a URL is given, otherwise a
// serial port, auto-detecting the device when no port was specified.
func openTransport(ctx context.Context, logger *slog.Logger, port string, baud int, wsURL string) (transport io.WriteCloser, err error) {
	if wsURL != "" {
		logger.Info("connecting to websocket receiver", "url", wsURL)
		return link.DialStream(ctx, wsURL)
	}

	if port == "" {
		logger.Info("searching for Raspberry Pi device")
		port, err = link.FindPicoPort()
		if err != nil {
			return nil, fmt.Errorf("no port specified and %w", err)
		}
		logger.Info("device found", "port", port)
	}

	return link.OpenSerial(port, baud)
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
