package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/apeckham/streamlit-assemblyai/internal/audio"
	"github.com/apeckham/streamlit-assemblyai/internal/metrics"
	"github.com/apeckham/streamlit-assemblyai/internal/transcript"
	"github.com/apeckham/streamlit-assemblyai/internal/transcription"
)

// Transcriber is the external transcription service boundary
type Transcriber interface {
	Transcribe(ctx context.Context, apiKey, audioPath string, opts transcription.Options) (*transcription.Transcript, error)
}

// Notice levels
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
)

// Notice is a one-shot message shown with the next rendered page only
type Notice struct {
	Level   string
	Message string
}

// Service runs the transcription workflow over explicit session State
type Service struct {
	transcriber Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tempDir     string
}

// ServiceConfig contains Service configuration
type ServiceConfig struct {
	// TempDir holds uploads during transcription; empty uses os.TempDir
	TempDir string
}

// NewService creates a new transcription session service
func NewService(transcriber Transcriber, logger *slog.Logger, m *metrics.Metrics, cfg ServiceConfig) *Service {
	return &Service{
		transcriber: transcriber,
		logger:      logger,
		metrics:     m,
		tempDir:     cfg.TempDir,
	}
}

// Submit applies one form submission to state. A nil upload means the file
// input is empty and clears any previous transcript. The service is called
// only when both inputs are present and the (key, file) pair differs from
// the one that produced the current result.
func (s *Service) Submit(ctx context.Context, state State, apiKey string, upload *Upload) (State, *Notice) {
	state.APIKey = apiKey

	if upload == nil {
		if state.HasFile() || state.Result != nil {
			s.logger.Debug("Upload removed, clearing transcript",
				slog.String("file", state.FileName),
			)
		}
		return state.Clear(), nil
	}

	if _, ok := audio.FormatFromName(upload.Name); !ok {
		s.metrics.RecordUploadRejected("extension")
		s.logger.Info("Upload rejected",
			slog.String("file", upload.Name),
			slog.String("reason", "extension"),
		)
		return state.Clear(), &Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("%s is not a supported audio file. Choose an mp3, wav or m4a file.", upload.Name),
		}
	}

	if !state.HasKey() {
		return state, nil
	}

	if state.Result != nil && state.FileID == upload.ID() && state.KeyFingerprint == Fingerprint(apiKey) {
		s.metrics.RecordTranscriptionReused()
		s.logger.Debug("Upload unchanged, reusing transcript",
			slog.String("file", upload.Name),
			slog.String("phase", state.Phase().String()),
		)
		return state, nil
	}

	return s.RequestTranscription(ctx, state, apiKey, *upload)
}

// RequestTranscription sends upload to the transcriber with speaker labels
// enabled and records the outcome in the returned State. A service-reported
// failure is kept as the result for this upload. Any other error resets the
// result and is returned as a notice so the user can retry.
func (s *Service) RequestTranscription(ctx context.Context, state State, apiKey string, upload Upload) (State, *Notice) {
	info := audio.Inspect(upload.Name, upload.Data)
	keyFingerprint := Fingerprint(apiKey)

	s.metrics.RecordUpload(info.Size)
	s.logger.Info("Transcription started",
		slog.String("file", upload.Name),
		slog.Int("size_bytes", info.Size),
		slog.String("format", string(info.Format)),
		slog.String("container", string(info.Container)),
		slog.Duration("audio_duration", info.Duration),
		slog.String("key", keyFingerprint),
		slog.String("phase", PhaseTranscribing.String()),
	)
	if !info.Matches() {
		s.logger.Warn("Upload content does not match its extension",
			slog.String("file", upload.Name),
			slog.String("container", string(info.Container)),
		)
	}

	startTime := time.Now()
	utterances, err := s.transcribe(ctx, apiKey, upload)
	duration := time.Since(startTime)

	var serviceErr *transcription.ServiceError
	switch {
	case err == nil:
		s.metrics.RecordTranscription(metrics.OutcomeSuccess, duration.Seconds(), len(utterances))
		s.logger.Info("Transcription completed",
			slog.String("file", upload.Name),
			slog.Int("utterances", len(utterances)),
			slog.Duration("duration", duration),
		)
		return s.processed(state, upload, keyFingerprint, Success(utterances)), nil

	case errors.As(err, &serviceErr):
		s.metrics.RecordTranscription(metrics.OutcomeServiceError, duration.Seconds(), 0)
		s.logger.Warn("Transcription failed",
			slog.String("file", upload.Name),
			slog.String("transcript_id", serviceErr.TranscriptID),
			slog.String("error", serviceErr.Message),
			slog.Duration("duration", duration),
		)
		return s.processed(state, upload, keyFingerprint, Failure(serviceErr.Message)), nil

	default:
		s.metrics.RecordTranscription(metrics.OutcomeTransportError, duration.Seconds(), 0)
		s.logger.Error("Transcription request error",
			slog.String("file", upload.Name),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return state.Clear(), &Notice{
			Level:   NoticeError,
			Message: fmt.Sprintf("An error occurred: %v", err),
		}
	}
}

func (s *Service) processed(state State, upload Upload, keyFingerprint string, result *Result) State {
	state.FileID = upload.ID()
	state.FileName = upload.Name
	state.KeyFingerprint = keyFingerprint
	state.Result = result
	return state
}

// transcribe stages the upload in a temporary file for the duration of the call
func (s *Service) transcribe(ctx context.Context, apiKey string, upload Upload) ([]transcript.Utterance, error) {
	path, err := writeTemp(s.tempDir, upload)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove temporary upload",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()

	result, err := s.transcriber.Transcribe(ctx, apiKey, path, transcription.Options{SpeakerLabels: true})
	if err != nil {
		return nil, err
	}

	utterances := make([]transcript.Utterance, 0, len(result.Utterances))
	for _, u := range result.Utterances {
		utterances = append(utterances, transcript.Utterance{Speaker: u.Speaker, Text: u.Text})
	}
	return utterances, nil
}

// writeTemp writes the upload to a new file that keeps the upload's extension
func writeTemp(dir string, upload Upload) (string, error) {
	format, _ := audio.FormatFromName(upload.Name)

	f, err := os.CreateTemp(dir, "upload-*."+string(format))
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := f.Write(upload.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}

	return f.Name(), nil
}
