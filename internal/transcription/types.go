package transcription

import "fmt"

// Transcript job statuses reported by the service
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Options controls how a transcript is produced
type Options struct {
	SpeakerLabels bool
	// SpeakersExpected is a hint for diarization; zero lets the service decide
	SpeakersExpected int
	LanguageCode     string
}

// Utterance is one contiguous speech segment attributed to a single speaker
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"` // milliseconds
	End        int64   `json:"end"`   // milliseconds
	Confidence float64 `json:"confidence"`
}

// Transcript is the transcript resource returned by the service
type Transcript struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error,omitempty"`
	Text          string      `json:"text,omitempty"`
	AudioDuration float64     `json:"audio_duration,omitempty"`
	Utterances    []Utterance `json:"utterances,omitempty"`
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL         string `json:"audio_url"`
	SpeakerLabels    bool   `json:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
	LanguageCode     string `json:"language_code,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServiceError reports a transcript that the service finished with status "error"
type ServiceError struct {
	TranscriptID string
	Message      string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// APIError reports a non-2xx HTTP response
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assemblyai %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}
