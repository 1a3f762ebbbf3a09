package session

import (
	"encoding/json"
	"net/http"
)

// SessionStatus is one entry in a status response.
type SessionStatus struct {
	ID              string `json:"id"`
	SampleRate      uint32 `json:"sampleRate,omitempty"`
	Channels        uint16 `json:"channels,omitempty"`
	BitsPerSample   uint16 `json:"bitsPerSample,omitempty"`
	BytesReceived   uint64 `json:"bytesReceived"`
	FramesAssembled uint64 `json:"framesAssembled"`
	FramesShifted   uint64 `json:"framesShifted"`
	FifoDepth       int    `json:"fifoDepth"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	ActiveSessions int             `json:"activeSessions"`
	Sessions       []SessionStatus `json:"sessions"`
}

// HandleStatusRequest handles GET /api/v1/status with a snapshot of every
// active session's counters.
func (m *Manager) HandleStatusRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := StatusResponse{Sessions: []SessionStatus{}}

	m.mu.RLock()
	for id, sess := range m.sessions {
		st := sess.Stats()
		entry := SessionStatus{
			ID:              id,
			BytesReceived:   st.BytesReceived,
			FramesAssembled: st.FramesAssembled,
			FramesShifted:   st.FramesShifted,
			FifoDepth:       st.FifoDepth,
		}
		if desc := sess.Format(); desc != nil {
			entry.SampleRate = desc.SampleRate
			entry.Channels = desc.Channels
			entry.BitsPerSample = desc.BitsPerSample
		}
		resp.Sessions = append(resp.Sessions, entry)
	}
	m.mu.RUnlock()

	resp.ActiveSessions = len(resp.Sessions)
	json.NewEncoder(w).Encode(resp)
}

// HandleStopSessionRequest handles DELETE /api/v1/sessions/{id}: it tears
// the session down mid-stream, releasing its follower.
func (m *Manager) HandleStopSessionRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := r.PathValue("id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "session id required"})
		return
	}

	if err := m.Remove(id); err != nil {
		m.logger.Error("failed to stop session", "session", id, "error", err)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":  "stopped",
		"session": id,
	})
}
