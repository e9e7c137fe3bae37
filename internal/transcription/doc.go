// Package transcription implements the HTTP client for the AssemblyAI transcription API.
// It uploads an audio file, submits a transcript job with speaker labels, and polls
// until the job completes or fails. Failed transcripts surface as ServiceError;
// HTTP and network failures surface as APIError or wrapped errors.
package transcription
