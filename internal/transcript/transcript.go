// Package transcript formats diarized utterances for display and clipboard copy.
package transcript

import "strings"

// Utterance is one contiguous speech segment attributed to a single speaker
type Utterance struct {
	Speaker string
	Text    string
}

// Line formats an utterance as "Speaker {label}: {text}"
func (u Utterance) Line() string {
	return "Speaker " + u.Speaker + ": " + u.Text
}

// Lines formats every utterance, preserving order
func Lines(utterances []Utterance) []string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		lines = append(lines, u.Line())
	}
	return lines
}

// ClipboardText is the full transcript with utterances separated by a blank line
func ClipboardText(utterances []Utterance) string {
	return strings.Join(Lines(utterances), "\n\n")
}
