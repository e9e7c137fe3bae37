// Package audio classifies uploaded audio files.
// It implements the upload extension filter, container sniffing from magic bytes,
// and WAV header inspection used for logging and metrics.
package audio
