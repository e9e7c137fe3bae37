package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/apeckham/streamlit-assemblyai/internal/clipboard"
	"github.com/apeckham/streamlit-assemblyai/internal/config"
	"github.com/apeckham/streamlit-assemblyai/internal/metrics"
	"github.com/apeckham/streamlit-assemblyai/internal/render"
	"github.com/apeckham/streamlit-assemblyai/internal/session"
	"github.com/apeckham/streamlit-assemblyai/internal/transcription"
	"github.com/apeckham/streamlit-assemblyai/internal/transcription/transcriptiontest"
)

type testEnv struct {
	fake   *transcriptiontest.Fake
	server *httptest.Server
	client *http.Client
	store  *session.Store
}

func newTestEnv(t *testing.T, b transcriptiontest.Behavior, configure func(*config.Config)) *testEnv {
	t.Helper()

	fake, api := transcriptiontest.NewServer(b)
	t.Cleanup(api.Close)

	cfg := config.Default()
	cfg.AssemblyAI.BaseURL = api.URL
	if configure != nil {
		configure(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics()

	client, err := transcription.NewClient(transcription.Config{
		BaseURL:      api.URL,
		Timeout:      5 * time.Second,
		PollInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	store := session.NewStore(logger, m, session.StoreConfig{IdleTimeout: time.Hour})
	t.Cleanup(store.Stop)

	service := session.NewService(client, logger, m, session.ServiceConfig{TempDir: t.TempDir()})

	renderer, err := render.NewRenderer(clipboard.NewFrameCopier(render.CopyLabel), cfg.HTTP.MaxUploadMB)
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	h := NewHTTPServer(HTTPServerConfig{}, logger, cfg, store, service, renderer, client, m)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to create cookie jar: %v", err)
	}

	return &testEnv{
		fake:   fake,
		server: srv,
		client: &http.Client{Jar: jar},
		store:  store,
	}
}

func twoSpeakers() []transcriptiontest.Utterance {
	return []transcriptiontest.Utterance{
		{Speaker: "A", Text: "Hi", Start: 0, End: 500},
		{Speaker: "B", Text: "Hello", Start: 600, End: 1200},
	}
}

// submit posts the form; an empty fileName leaves the file input empty
func (e *testEnv) submit(t *testing.T, apiKey, fileName string, data []byte) (int, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("api_key", apiKey)
	part, err := w.CreateFormFile("audio", fileName)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(data)
	w.Close()

	resp, err := e.client.Post(e.server.URL+"/transcribe", w.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /transcribe failed: %v", err)
	}
	return readResponse(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return readResponse(t, resp)
}

func (e *testEnv) postForm(t *testing.T, path string, values url.Values) (int, string) {
	t.Helper()

	resp, err := e.client.PostForm(e.server.URL+path, values)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return readResponse(t, resp)
}

func readResponse(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestPageIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{}, nil)

	resp, err := env.client.Get(env.server.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	status, body := readResponse(t, resp)

	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", got)
	}
	if !strings.Contains(body, render.PromptKey) {
		t.Errorf("Expected key prompt in page")
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "diarize_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected session cookie")
	}
	if !session.ValidID(cookie.Value) {
		t.Errorf("Expected UUID session id, got %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("Expected HttpOnly cookie")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("Expected SameSite=Lax, got %v", cookie.SameSite)
	}

	// Second request reuses the cookie
	env.get(t, "/")
	if got := env.store.Count(); got != 1 {
		t.Errorf("Expected 1 session, got %d", got)
	}
}

func TestTranscribeRendersTranscript(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, nil)

	status, body := env.submit(t, "key-1", "meeting.mp3", []byte("ID3 audio"))
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, body)
	}

	for _, want := range []string{
		"Transcript by Speaker",
		`<span class="speaker-label">Speaker A:</span> Hi`,
		`<span class="speaker-label">Speaker B:</span> Hello`,
		clipboard.EncodePayload("Speaker A: Hi\n\nSpeaker B: Hello"),
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}

	subs := env.fake.Submissions()
	if len(subs) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(subs))
	}
	if !subs[0].SpeakerLabels {
		t.Error("Expected speaker_labels=true")
	}
	if uploads := env.fake.Uploads(); len(uploads) != 1 || string(uploads[0]) != "ID3 audio" {
		t.Errorf("Unexpected uploads: %q", uploads)
	}

	// Same key and file again: answered from the session
	_, body = env.submit(t, "key-1", "meeting.mp3", []byte("ID3 audio"))
	if !strings.Contains(body, "Speaker B:") {
		t.Error("Expected transcript to still be shown")
	}
	if got := len(env.fake.Submissions()); got != 1 {
		t.Errorf("Expected no new submission, got %d total", got)
	}

	// Plain page load keeps showing it
	_, body = env.get(t, "/")
	if !strings.Contains(body, "Speaker A:") {
		t.Error("Expected transcript on page reload")
	}

	// Different file: transcribed again
	env.submit(t, "key-1", "other.wav", []byte("RIFF audio"))
	if got := len(env.fake.Submissions()); got != 2 {
		t.Errorf("Expected 2 submissions, got %d", got)
	}
}

func TestTranscribeServiceFailure(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{FailWith: "Audio <b>too</b> short"}, nil)

	_, body := env.submit(t, "key-1", "short.wav", []byte("RIFF"))
	if !strings.Contains(body, "Transcription failed: Audio &lt;b&gt;too&lt;/b&gt; short") {
		t.Errorf("Expected escaped failure message, got:\n%s", body)
	}
	if strings.Contains(body, "Transcript by Speaker") {
		t.Error("Expected no transcript section")
	}

	// The failure is kept for the same file; no retry
	_, body = env.submit(t, "key-1", "short.wav", []byte("RIFF"))
	if !strings.Contains(body, "Transcription failed:") {
		t.Error("Expected failure to persist")
	}
	if got := len(env.fake.Submissions()); got != 1 {
		t.Errorf("Expected 1 submission, got %d", got)
	}
}

func TestTranscribeTransportErrorIsOneShot(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{ValidKey: "good"}, nil)

	_, body := env.submit(t, "bad", "meeting.mp3", []byte("ID3"))
	if !strings.Contains(body, "An error occurred: ") {
		t.Errorf("Expected error notice, got:\n%s", body)
	}

	_, body = env.get(t, "/")
	if strings.Contains(body, "An error occurred") {
		t.Error("Expected notice to be shown only once")
	}
	if !strings.Contains(body, render.PromptFile) {
		t.Error("Expected upload prompt after transport error")
	}

	// Retrying the same file with a working key calls the service
	env.fake.SetBehavior(transcriptiontest.Behavior{ValidKey: "good", Utterances: twoSpeakers()})
	_, body = env.submit(t, "good", "meeting.mp3", []byte("ID3"))
	if !strings.Contains(body, "Speaker A:") {
		t.Error("Expected transcript after retry")
	}
}

func TestTranscribePrompts(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		fileName string
		want     string
	}{
		{name: "no key no file", want: render.PromptKey},
		{name: "file without key", fileName: "meeting.mp3", want: render.PromptKey},
		{name: "key without file", apiKey: "key-1", want: render.PromptFile},
		{name: "unsupported file", apiKey: "key-1", fileName: "notes.txt", want: "notes.txt is not a supported audio file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, nil)

			status, body := env.submit(t, tt.apiKey, tt.fileName, []byte("data"))
			if status != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", status)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("Expected page to contain %q", tt.want)
			}
			if got := len(env.fake.Uploads()); got != 0 {
				t.Errorf("Expected no uploads, got %d", got)
			}
		})
	}
}

func TestClearRemovesTranscriptKeepsKey(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, nil)

	env.submit(t, "key-1", "meeting.mp3", []byte("ID3"))

	status, body := env.postForm(t, "/clear", url.Values{"api_key": {"key-1"}})
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if strings.Contains(body, "Transcript by Speaker") {
		t.Error("Expected transcript to be cleared")
	}
	if !strings.Contains(body, render.PromptFile) {
		t.Error("Expected upload prompt")
	}
	if !strings.Contains(body, `value="key-1"`) {
		t.Error("Expected key to be kept")
	}

	// Uploading the same file again is a new request
	env.submit(t, "key-1", "meeting.mp3", []byte("ID3"))
	if got := len(env.fake.Submissions()); got != 2 {
		t.Errorf("Expected 2 submissions, got %d", got)
	}
}

func TestResetForgetsSession(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, nil)

	env.submit(t, "key-1", "meeting.mp3", []byte("ID3"))

	status, body := env.postForm(t, "/reset", url.Values{})
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 after redirect, got %d", status)
	}
	if !strings.Contains(body, render.PromptKey) {
		t.Error("Expected key prompt after reset")
	}
	if strings.Contains(body, "key-1") {
		t.Error("Expected key to be forgotten")
	}
	if got := env.store.Count(); got != 1 {
		t.Errorf("Expected only the new session, got %d", got)
	}
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, func(c *config.Config) {
		c.HTTP.MaxUploadMB = 1
	})

	status, body := env.submit(t, "key-1", "long.mp3", make([]byte, 1<<20))
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d", status)
	}
	if !strings.Contains(body, "larger than the 1 MB limit") {
		t.Errorf("Expected size notice, got:\n%s", body)
	}
	if got := len(env.fake.Uploads()); got != 0 {
		t.Errorf("Expected no uploads, got %d", got)
	}
}

func TestQueryKeyPrefillsForm(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{}, nil)

	_, body := env.get(t, "/?api_key=from-query")
	if !strings.Contains(body, `value="from-query"`) {
		t.Error("Expected key field pre-filled from query")
	}
	if !strings.Contains(body, render.PromptFile) {
		t.Error("Expected upload prompt when query supplies the key")
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{}, nil)
	env.get(t, "/")

	status, body := env.get(t, "/health")
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}

	var health struct {
		Status     string `json:"status"`
		Components struct {
			Sessions struct {
				Active int `json:"active"`
			} `json:"sessions"`
		} `json:"components"`
	}
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	// Start was never called on the test server
	if health.Status != "starting" {
		t.Errorf("Expected status starting, got %q", health.Status)
	}
	if health.Components.Sessions.Active != 1 {
		t.Errorf("Expected 1 active session, got %d", health.Components.Sessions.Active)
	}
}

func TestConfigEndpoint(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{}, nil)

	status, body := env.get(t, "/config")
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}

	var cfg map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	for _, section := range []string{"http", "assemblyai", "session", "logging"} {
		if _, ok := cfg[section]; !ok {
			t.Errorf("Expected section %q", section)
		}
	}
	if got := cfg["http"]["max_upload_mb"]; got != float64(200) {
		t.Errorf("Expected max_upload_mb 200, got %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{Utterances: twoSpeakers()}, nil)
	env.submit(t, "key-1", "meeting.mp3", []byte("ID3"))

	status, body := env.get(t, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", status)
	}
	for _, want := range []string{
		`diarize_transcription_requests_total{outcome="success"} 1`,
		"diarize_upload_size_bytes",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, transcriptiontest.Behavior{}, nil)

	if status, _ := env.get(t, "/nope"); status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
	if status, _ := env.get(t, "/transcribe"); status != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", status)
	}
}
