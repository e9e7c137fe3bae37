// Package config provides configuration loading and validation for the transcription web service.
// It handles YAML-based configuration with per-section validation and optional
// environment overrides for deployment settings.
package config
