package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/bjornbjornson73/i2s/pkg/i2s"
	"github.com/bjornbjornson73/i2s/pkg/wav"
)

// wavStream builds a complete 16-bit stereo WAV byte stream around payload.
func wavStream(t *testing.T, payload []byte) []byte {
	t.Helper()
	header := wav.EncodeHeader(22050, 2, 16, len(payload))
	return append(header, payload...)
}

func samplePayload(samples ...int16) []byte {
	var buf []byte
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}

func popAll(t *testing.T, fifo *i2s.Fifo, n int) []i2s.Frame {
	t.Helper()
	frames := make([]i2s.Frame, 0, n)
	for i := 0; i < n; i++ {
		f, ok := fifo.Pop()
		if !ok {
			t.Fatalf("fifo closed after %d of %d frames", i, n)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestSessionStreamsFramesInOrder(t *testing.T) {
	payload := samplePayload(1, 2, -1, -32768)
	stream := wavStream(t, payload)

	sess := New(Config{FifoCapacity: 8})
	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []i2s.Frame{
		{Left: 1, Right: 2},
		{Left: -1, Right: -32768},
	}
	got := popAll(t, sess.Fifo(), len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if desc := sess.Format(); desc == nil || desc.SampleRate != 22050 {
		t.Errorf("format descriptor not captured: %+v", desc)
	}
	st := sess.Stats()
	if st.BytesReceived != uint64(len(payload)) {
		t.Errorf("BytesReceived = %d, want %d", st.BytesReceived, len(payload))
	}
	if st.FramesAssembled != 2 {
		t.Errorf("FramesAssembled = %d, want 2", st.FramesAssembled)
	}
}

func TestSessionDiscardsPartialTailFrame(t *testing.T) {
	// Two full frames plus a 3-byte tail that can never complete.
	payload := append(samplePayload(10, 20, 30, 40), 0xAA, 0xBB, 0xCC)
	stream := wavStream(t, payload)

	sess := New(Config{FifoCapacity: 8})
	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := popAll(t, sess.Fifo(), 2)
	if got[0] != (i2s.Frame{Left: 10, Right: 20}) || got[1] != (i2s.Frame{Left: 30, Right: 40}) {
		t.Errorf("unexpected frames: %+v", got)
	}

	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if depth := sess.Fifo().Len(); depth != 0 {
		t.Errorf("tail bytes produced %d extra queued frames", depth)
	}
	sess.Close()
}

func TestSessionRejectsMalformedHeader(t *testing.T) {
	sess := New(Config{})
	err := sess.Start(context.Background(), bytes.NewReader([]byte("not a wav file at all, certainly not 44 bytes of RIFF")))
	if err == nil {
		t.Fatal("expected header error")
	}
	var ferr *wav.FormatError
	if !errors.As(err, &ferr) {
		t.Errorf("error %v does not unwrap to *wav.FormatError", err)
	}
	// Wait must not hang after a failed Start.
	done := make(chan struct{})
	go func() {
		sess.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait hung after failed Start")
	}
}

func TestSessionStartTwice(t *testing.T) {
	stream := wavStream(t, samplePayload(1, 2))
	sess := New(Config{})
	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Close()

	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err == nil {
		t.Fatal("second Start should fail")
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestSessionTransportErrorKeepsQueuedFrames(t *testing.T) {
	wantErr := errors.New("link dropped")
	stream := wavStream(t, samplePayload(7, 8, 9, 10))

	sess := New(Config{FifoCapacity: 8})
	err := sess.Start(context.Background(), &failingReader{data: stream, err: wantErr})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := sess.Wait(); !errors.Is(err, wantErr) {
		t.Fatalf("Wait error = %v, want wrapped %v", err, wantErr)
	}

	// Frames queued before the failure still drain in order.
	got := popAll(t, sess.Fifo(), 2)
	if got[0] != (i2s.Frame{Left: 7, Right: 8}) || got[1] != (i2s.Frame{Left: 9, Right: 10}) {
		t.Errorf("unexpected frames after transport error: %+v", got)
	}
	sess.Close()
}

func TestSessionEndToEndThroughFollower(t *testing.T) {
	payload := samplePayload(1, 2, -1, -32768)
	stream := wavStream(t, payload)

	sess := New(Config{FifoCapacity: 4})

	master := i2s.NewSimMaster()
	follower := i2s.NewFollower(i2s.FollowerConfig{
		BCK:  master.BCK,
		WS:   master.WS,
		SD:   master.SD,
		Fifo: sess.Fifo(),
	})
	sess.AttachFollower(follower)

	followerDone := make(chan struct{})
	go func() {
		defer close(followerDone)
		follower.Run()
	}()

	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := master.ClockFrames(2)
	if err != nil {
		t.Fatalf("clocking: %v", err)
	}
	want := []i2s.Frame{{Left: 1, Right: 2}, {Left: -1, Right: -32768}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	sess.Close()
	follower.Stop()

	select {
	case <-followerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not stop after session close")
	}

	st := sess.Stats()
	if st.FramesShifted != 2 {
		t.Errorf("FramesShifted = %d, want 2", st.FramesShifted)
	}
}
