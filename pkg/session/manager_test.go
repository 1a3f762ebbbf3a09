package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestManagerRegisterAndRemove(t *testing.T) {
	mgr := NewManager(ManagerConfig{MaxSessions: 2})

	a := New(Config{})
	b := New(Config{})

	if err := mgr.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := mgr.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if got := mgr.SessionCount(); got != 2 {
		t.Errorf("SessionCount = %d, want 2", got)
	}

	if got := mgr.Get(a.ID); got != a {
		t.Errorf("Get(%s) returned %v", a.ID, got)
	}
	if got := mgr.Get("no-such-id"); got != nil {
		t.Errorf("Get of unknown id returned %v", got)
	}

	if err := mgr.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := mgr.SessionCount(); got != 1 {
		t.Errorf("SessionCount after remove = %d, want 1", got)
	}
	if err := mgr.Remove(a.ID); err == nil {
		t.Error("second remove of the same session should fail")
	}

	mgr.Close()
	if got := mgr.SessionCount(); got != 0 {
		t.Errorf("SessionCount after Close = %d, want 0", got)
	}
}

func TestManagerEnforcesSessionLimit(t *testing.T) {
	mgr := NewManager(ManagerConfig{MaxSessions: 1})
	defer mgr.Close()

	if err := mgr.Register(New(Config{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.Register(New(Config{})); err == nil {
		t.Fatal("register beyond the limit should fail")
	}
}

func TestManagerRejectsDuplicateRegistration(t *testing.T) {
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	sess := New(Config{})
	if err := mgr.Register(sess); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.Register(sess); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestStatusEndpoint(t *testing.T) {
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	sess := New(Config{FifoCapacity: 8})
	if err := mgr.Register(sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	stream := wavStream(t, samplePayload(1, 2))
	if err := sess.Start(context.Background(), bytes.NewReader(stream)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	rec := httptest.NewRecorder()
	mgr.HandleStatusRequest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ActiveSessions != 1 || len(resp.Sessions) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	got := resp.Sessions[0]
	if got.ID != sess.ID {
		t.Errorf("session id = %s, want %s", got.ID, sess.ID)
	}
	if got.SampleRate != 22050 || got.Channels != 2 || got.BitsPerSample != 16 {
		t.Errorf("format not reported: %+v", got)
	}
	if got.FramesAssembled != 1 {
		t.Errorf("FramesAssembled = %d, want 1", got.FramesAssembled)
	}
}

func TestStopSessionEndpoint(t *testing.T) {
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	sess := New(Config{})
	if err := mgr.Register(sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", mgr.HandleStopSessionRequest)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if mgr.SessionCount() != 0 {
		t.Error("session still registered after stop request")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second stop status = %d, want 404", rec.Code)
	}
}
