package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Client provides HTTP client functionality for AssemblyAI transcription requests
type Client struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	serviceFailures uint64
	failedRequests  uint64
	activeRequests  int
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration // whole upload, submit and poll cycle
	PollInterval time.Duration
	UserAgent    string
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	ServiceFailures uint64        `json:"service_failures"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}

	if config.UserAgent == "" {
		config.UserAgent = "diarize-web/1.0"
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Transcribe uploads the file at audioPath and blocks until the transcript
// reaches a terminal status. A transcript that ends in status "error" is
// returned as *ServiceError. Nothing is retried.
func (c *Client) Transcribe(ctx context.Context, apiKey, audioPath string, opts Options) (*Transcript, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	startTime := time.Now()
	c.begin()

	transcript, err := c.transcribe(ctx, apiKey, audioPath, opts)
	c.finish(time.Since(startTime), err)

	return transcript, err
}

func (c *Client) transcribe(ctx context.Context, apiKey, audioPath string, opts Options) (*Transcript, error) {
	uploadURL, err := c.upload(ctx, apiKey, audioPath)
	if err != nil {
		return nil, err
	}

	transcript, err := c.submit(ctx, apiKey, transcriptRequest{
		AudioURL:         uploadURL,
		SpeakerLabels:    opts.SpeakerLabels,
		SpeakersExpected: opts.SpeakersExpected,
		LanguageCode:     opts.LanguageCode,
	})
	if err != nil {
		return nil, err
	}

	return c.wait(ctx, apiKey, transcript)
}

// upload streams the audio file to the service and returns its private URL
func (c *Client) upload(ctx context.Context, apiKey, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var resp uploadResponse
	if err := c.doRequest(ctx, "upload", http.MethodPost, "/v2/upload", apiKey, "application/octet-stream", f, &resp); err != nil {
		return "", err
	}

	if resp.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}

	return resp.UploadURL, nil
}

// submit creates the transcript job
func (c *Client) submit(ctx context.Context, apiKey string, request transcriptRequest) (*Transcript, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript request: %w", err)
	}

	var transcript Transcript
	if err := c.doRequest(ctx, "submit", http.MethodPost, "/v2/transcript", apiKey, "application/json", bytes.NewReader(body), &transcript); err != nil {
		return nil, err
	}

	if transcript.ID == "" {
		return nil, fmt.Errorf("transcript response missing id")
	}

	return &transcript, nil
}

// wait polls the transcript until it is completed or failed
func (c *Client) wait(ctx context.Context, apiKey string, transcript *Transcript) (*Transcript, error) {
	timer := time.NewTimer(c.config.PollInterval)
	defer timer.Stop()

	for {
		switch transcript.Status {
		case StatusCompleted:
			return transcript, nil
		case StatusError:
			return nil, &ServiceError{TranscriptID: transcript.ID, Message: transcript.Error}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transcript %s: %w", transcript.ID, ctx.Err())
		case <-timer.C:
		}

		var next Transcript
		if err := c.doRequest(ctx, "poll", http.MethodGet, "/v2/transcript/"+url.PathEscape(transcript.ID), apiKey, "", nil, &next); err != nil {
			return nil, err
		}
		transcript = &next
		timer.Reset(c.config.PollInterval)
	}
}

// doRequest performs a single HTTP request and decodes a JSON response into out
func (c *Client) doRequest(ctx context.Context, op, method, path, apiKey, contentType string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Authorization", apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("assemblyai %s: HTTP request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("assemblyai %s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("assemblyai %s: failed to parse response JSON: %w", op, err)
	}

	return nil
}

// errorMessage extracts the service's error text, falling back to the raw body
func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// Statistics methods
func (c *Client) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.activeRequests++
}

func (c *Client) finish(responseTime time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeRequests--

	var serviceErr *ServiceError
	switch {
	case err == nil:
		c.successRequests++
	case errors.As(err, &serviceErr):
		c.serviceFailures++
	default:
		c.failedRequests++
	}

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		ServiceFailures: c.serviceFailures,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  c.activeRequests,
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
