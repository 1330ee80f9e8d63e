// Package helpers provides the fake studio API and server lifecycle helpers
// used by the roster integration tests.
package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/stacklok/studio-roster/internal/studio"
)

// FakeParticipant is one participant served by FakeStudio together with its
// check-in events
type FakeParticipant struct {
	Category string
	studio.Participant
	Events []studio.CheckinEvent
}

// FakeStudio is an in-process stand-in for the studio management API
type FakeStudio struct {
	server *httptest.Server
	token  string

	mu           sync.Mutex
	participants []FakeParticipant
	failListing  bool

	tokenCalls atomic.Int64
}

// NewFakeStudio starts a fake studio API serving participants
func NewFakeStudio(participants ...FakeParticipant) *FakeStudio {
	f := &FakeStudio{
		token:        "integration-token",
		participants: participants,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/"+studio.EndpointGenerateToken, f.generateToken)
	mux.HandleFunc("POST /api/"+studio.EndpointAllParticipants, f.allParticipants)
	mux.HandleFunc("POST /api/"+studio.EndpointClassDetails, f.classDetails)
	f.server = httptest.NewServer(mux)

	return f
}

// BaseURL returns the API root to configure the roster server with
func (f *FakeStudio) BaseURL() string {
	return f.server.URL + "/api"
}

// Close shuts the fake studio down
func (f *FakeStudio) Close() {
	f.server.Close()
}

// SetParticipants replaces the roster served by the fake studio
func (f *FakeStudio) SetParticipants(participants ...FakeParticipant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participants = participants
}

// FailListing makes the participant listing answer 500 while fail is true
func (f *FakeStudio) FailListing(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failListing = fail
}

// TokenCalls returns how many refresh runs have started against the fake studio
func (f *FakeStudio) TokenCalls() int64 {
	return f.tokenCalls.Load()
}

func (f *FakeStudio) generateToken(w http.ResponseWriter, _ *http.Request) {
	f.tokenCalls.Add(1)
	writeJSON(w, map[string]string{"msg": f.token})
}

func (f *FakeStudio) allParticipants(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["token"] != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failListing {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	byCategory := map[string][]studio.Participant{}
	for _, p := range f.participants {
		byCategory[p.Category] = append(byCategory[p.Category], p.Participant)
	}
	writeJSON(w, map[string]any{"student_detail": byCategory})
}

func (f *FakeStudio) classDetails(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["token"] != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	events := []studio.CheckinEvent{}
	for _, p := range f.participants {
		if p.ParticipantID == req["participant_id"] {
			events = append(events, p.Events...)
		}
	}
	writeJSON(w, map[string]any{"class_details": events})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
