// Package session implements the per-user transcription session.
// A State value carries the API key, the identity of the last processed upload and
// its transcript result; Service operations take a State and return the next one.
// Store keeps States per browser session and expires idle ones.
package session
