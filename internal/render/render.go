// Package render builds the page view for a session state and renders it as HTML.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/apeckham/streamlit-assemblyai/internal/audio"
	"github.com/apeckham/streamlit-assemblyai/internal/clipboard"
	"github.com/apeckham/streamlit-assemblyai/internal/session"
	"github.com/apeckham/streamlit-assemblyai/internal/transcript"
)

// Page text
const (
	Title      = "Audio Transcription with Speaker Diarization"
	CopyLabel  = "Copy Full Transcript (with Speaker Labels)"
	PromptKey  = "Please enter your AssemblyAI API key to continue."
	PromptFile = "Please upload an audio file to begin transcription."
)

//go:embed templates/page.html
var templateFS embed.FS

// View is everything the page template needs
type View struct {
	Title       string
	APIKey      string
	Accept      string
	MaxUploadMB int
	FileName    string

	Notice  *session.Notice
	Prompt  string
	Failure string

	Transcript bool
	Lines      []transcript.Utterance
	Copy       template.HTML

	ClipboardMessageType string
	ClipboardCopied      string
	ClipboardFailed      string
}

// Renderer turns session state into HTML
type Renderer struct {
	page        *template.Template
	copier      clipboard.Copier
	maxUploadMB int
}

// NewRenderer parses the page template
func NewRenderer(copier clipboard.Copier, maxUploadMB int) (*Renderer, error) {
	page, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	return &Renderer{
		page:        page,
		copier:      copier,
		maxUploadMB: maxUploadMB,
	}, nil
}

// Build derives the view for state. defaultKey pre-fills and stands in for
// the key when the session has none. notice is shown once, above everything else.
func (r *Renderer) Build(state session.State, notice *session.Notice, defaultKey string) (View, error) {
	if !state.HasKey() {
		state.APIKey = defaultKey
	}

	view := View{
		Title:                Title,
		APIKey:               state.APIKey,
		Accept:               audio.Accept(),
		MaxUploadMB:          r.maxUploadMB,
		FileName:             state.FileName,
		Notice:               notice,
		ClipboardMessageType: clipboard.MessageType,
		ClipboardCopied:      clipboard.MessageCopied,
		ClipboardFailed:      clipboard.MessageFailed,
	}

	switch {
	case !state.HasKey():
		view.Prompt = PromptKey
	case state.Result == nil:
		view.Prompt = PromptFile
	case state.Result.Failed:
		view.Failure = state.Result.Failure
	default:
		copyMarkup, err := r.copier.Embed(transcript.ClipboardText(state.Result.Utterances))
		if err != nil {
			return View{}, err
		}
		view.Transcript = true
		view.Lines = state.Result.Utterances
		view.Copy = copyMarkup
	}

	return view, nil
}

// Render writes the page for view
func (r *Renderer) Render(w io.Writer, view View) error {
	if err := r.page.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}
