package clipboard

import (
	"html"
	"regexp"
	"strings"
	"testing"
)

var (
	srcdocRe   = regexp.MustCompile(`srcdoc="([^"]*)"`)
	dataTextRe = regexp.MustCompile(`data-text="([^"]*)"`)
)

// frameDocument returns the unescaped srcdoc document from embedded markup
func frameDocument(t *testing.T, markup string) string {
	t.Helper()
	m := srcdocRe.FindStringSubmatch(markup)
	if m == nil {
		t.Fatalf("no srcdoc attribute in %q", markup)
	}
	return html.UnescapeString(m[1])
}

func embeddedText(t *testing.T, markup string) string {
	t.Helper()
	m := dataTextRe.FindStringSubmatch(frameDocument(t, markup))
	if m == nil {
		t.Fatal("no data-text attribute in frame document")
	}
	text, err := DecodePayload(html.UnescapeString(m[1]))
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	return text
}

func TestEmbedRoundTrip(t *testing.T) {
	copier := NewFrameCopier("Copy Full Transcript (with Speaker Labels)")

	tests := []struct {
		name string
		text string
	}{
		{"two speakers", "Speaker A: Hi\n\nSpeaker B: Hello"},
		{"markup", `Speaker A: </div><script>alert("x")</script>`},
		{"quotes and ampersands", `Speaker B: "Tom & Jerry" isn't here`},
		{"unicode", "Speaker A: Це тестова транскрипція ✨"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup, err := copier.Embed(tt.text)
			if err != nil {
				t.Fatalf("Embed failed: %v", err)
			}
			if got := embeddedText(t, string(markup)); got != tt.text {
				t.Errorf("payload = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestEmbedDoesNotLeakMarkup(t *testing.T) {
	copier := NewFrameCopier("Copy")
	markup, err := copier.Embed(`</iframe><script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	s := string(markup)

	if strings.Count(s, "<") != 2 || !strings.HasPrefix(s, "<iframe ") || !strings.HasSuffix(s, "</iframe>") {
		t.Errorf("Expected a single iframe element, got %q", s)
	}
	if strings.Contains(frameDocument(t, s), "alert(1)") {
		t.Error("Expected text to appear only base64-encoded inside the frame")
	}
}

func TestEmbedFrameAttributes(t *testing.T) {
	copier := NewFrameCopier("Copy Full Transcript (with Speaker Labels)")
	markup, err := copier.Embed("Speaker A: Hi")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	s := string(markup)

	for _, want := range []string{`sandbox="allow-scripts"`, `allow="clipboard-write"`, `height="48"`} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %s in %q", want, s)
		}
	}
	if strings.Contains(s, "allow-same-origin") {
		t.Error("Frame must not share the page's origin")
	}

	doc := frameDocument(t, s)
	for _, want := range []string{
		"navigator.clipboard.writeText",
		"Copy Full Transcript (with Speaker Labels)",
		`"Transcript copied to clipboard!"`,
		`"Failed to copy to clipboard"`,
		`"clipboard-result"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected %q in frame document", want)
		}
	}
}

func TestDecodePayloadInvalid(t *testing.T) {
	if _, err := DecodePayload("not base64!"); err == nil {
		t.Error("Expected error for invalid payload")
	}
}
