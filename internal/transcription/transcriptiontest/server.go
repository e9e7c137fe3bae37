// Package transcriptiontest provides an in-process fake of the AssemblyAI
// upload and transcript endpoints for tests and local development.
package transcriptiontest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Utterance is a canned diarized segment returned by the fake
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// Behavior controls how the fake answers
type Behavior struct {
	// ValidKey is the only accepted Authorization value; empty accepts any key
	ValidKey string
	// Utterances returned for completed transcripts
	Utterances []Utterance
	// FailWith makes every transcript end in status "error" with this message
	FailWith string
	// PendingPolls is how many polls report "processing" before the terminal status
	PendingPolls int
	// UploadStatus, when non-zero, is returned by the upload endpoint instead of success
	UploadStatus int
}

// Submission records one transcript request
type Submission struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

// Fake implements the AssemblyAI endpoints used by the client
type Fake struct {
	mu          sync.Mutex
	behavior    Behavior
	uploads     [][]byte
	submissions []Submission
	polls       map[string]int
	nextID      int
}

// New returns a Fake with the given behavior
func New(b Behavior) *Fake {
	return &Fake{behavior: b, polls: make(map[string]int)}
}

// NewServer starts an httptest server backed by a new Fake.
// The caller must Close the returned server.
func NewServer(b Behavior) (*Fake, *httptest.Server) {
	f := New(b)
	return f, httptest.NewServer(f.Handler())
}

// Handler returns the HTTP handler serving the fake API
func (f *Fake) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", f.handleUpload)
	mux.HandleFunc("/v2/transcript", f.handleSubmit)
	mux.HandleFunc("/v2/transcript/", f.handlePoll)
	return mux
}

// SetBehavior replaces the fake's behavior for subsequent requests
func (f *Fake) SetBehavior(b Behavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behavior = b
}

// Uploads returns the bodies received by the upload endpoint
func (f *Fake) Uploads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.uploads))
	copy(out, f.uploads)
	return out
}

// Submissions returns the transcript requests received
func (f *Fake) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Submission, len(f.submissions))
	copy(out, f.submissions)
	return out
}

func (f *Fake) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	valid := f.behavior.ValidKey
	f.mu.Unlock()

	key := r.Header.Get("Authorization")
	if key == "" || (valid != "" && key != valid) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid API key"})
		return false
	}
	return true
}

func (f *Fake) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !f.authorized(w, r) {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	status := f.behavior.UploadStatus
	if status == 0 {
		f.uploads = append(f.uploads, data)
	}
	n := len(f.uploads)
	f.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"upload_url": fmt.Sprintf("https://cdn.example.test/upload/%d", n),
	})
}

func (f *Fake) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !f.authorized(w, r) {
		return
	}

	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.AudioURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "audio_url is required"})
		return
	}

	f.mu.Lock()
	f.submissions = append(f.submissions, sub)
	f.nextID++
	id := fmt.Sprintf("tr_%d", f.nextID)
	f.polls[id] = 0
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": "queued"})
}

func (f *Fake) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !f.authorized(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v2/transcript/")

	f.mu.Lock()
	polls, ok := f.polls[id]
	if ok {
		f.polls[id] = polls + 1
	}
	b := f.behavior
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Transcript not found"})
		return
	}

	switch {
	case polls < b.PendingPolls:
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": "processing"})
	case b.FailWith != "":
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": "error", "error": b.FailWith})
	default:
		texts := make([]string, 0, len(b.Utterances))
		for _, u := range b.Utterances {
			texts = append(texts, u.Text)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":         id,
			"status":     "completed",
			"text":       strings.Join(texts, " "),
			"utterances": b.Utterances,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
