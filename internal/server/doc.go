// Package server implements the HTTP surface of the transcription web form.
// It serves the page, accepts form submissions, keeps the browser session cookie,
// and provides health, configuration and Prometheus metrics endpoints.
package server
