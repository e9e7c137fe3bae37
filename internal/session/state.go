package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/apeckham/streamlit-assemblyai/internal/transcript"
)

// Phase is the observable stage of a session
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseTranscribing
	PhaseDisplayed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseDisplayed:
		return "displayed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Result is either a successful transcript or a service-reported failure.
// Exactly one of Utterances (possibly empty) or Failure is meaningful, as
// selected by Failed.
type Result struct {
	Failed     bool
	Failure    string
	Utterances []transcript.Utterance
}

// Success builds a successful Result
func Success(utterances []transcript.Utterance) *Result {
	return &Result{Utterances: utterances}
}

// Failure builds a failed Result carrying the service's message
func Failure(message string) *Result {
	return &Result{Failed: true, Failure: message}
}

// State is the session state passed into and returned from every operation
type State struct {
	APIKey string
	// FileID identifies the last processed upload; empty when no file is present
	FileID string
	// FileName is the original name of that upload, for display
	FileName string
	// KeyFingerprint identifies the key the last result was produced with
	KeyFingerprint string
	Result         *Result
}

// HasKey reports whether an API key is present
func (s State) HasKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// HasFile reports whether a processed upload is recorded
func (s State) HasFile() bool {
	return s.FileID != ""
}

// Phase derives the session's phase from its result
func (s State) Phase() Phase {
	switch {
	case s.Result == nil:
		return PhaseEmpty
	case s.Result.Failed:
		return PhaseFailed
	default:
		return PhaseDisplayed
	}
}

// Clear drops the upload and its result, keeping the key
func (s State) Clear() State {
	return State{APIKey: s.APIKey}
}

// Upload is an audio file received from the form
type Upload struct {
	Name string
	Data []byte
}

// ID returns the upload's identity: its name and a digest of its content
func (u Upload) ID() string {
	sum := sha256.Sum256(u.Data)
	return u.Name + ":" + hex.EncodeToString(sum[:])
}

// Fingerprint returns a short non-reversible identifier for an API key,
// safe to keep in logs
func Fingerprint(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:4])
}
