// Package clipboard embeds a copy-to-clipboard control into a rendered page.
//
// The page may be shown inside a sandboxed frame without access to the
// host's clipboard API, so the control lives in its own sandboxed iframe
// that carries the text base64-encoded and calls navigator.clipboard itself.
package clipboard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
)

// Status messages shown after a copy attempt
const (
	MessageCopied = "Transcript copied to clipboard!"
	MessageFailed = "Failed to copy to clipboard"
)

// MessageType is the postMessage type the frame reports results with
const MessageType = "clipboard-result"

// Copier turns text into markup that lets the user copy it
type Copier interface {
	Embed(text string) (template.HTML, error)
}

// FrameCopier renders the copy control as a sandboxed iframe
type FrameCopier struct {
	Label  string
	Height int
}

// NewFrameCopier returns a FrameCopier with the given button label
func NewFrameCopier(label string) *FrameCopier {
	return &FrameCopier{Label: label, Height: 48}
}

var frameDoc = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8">
<style>
body { margin: 0; font-family: sans-serif; display: flex; align-items: center; gap: 0.75em; }
button { padding: 0.4em 0.9em; cursor: pointer; }
</style></head>
<body>
<div id="copyHelper" hidden data-text="{{.Payload}}"></div>
<button id="copyButton" type="button">{{.Label}}</button>
<span id="copyStatus" role="status"></span>
<script>
(function () {
  var status = document.getElementById("copyStatus");
  function report(ok) {
    status.textContent = ok ? {{.Copied}} : {{.Failed}};
    window.parent.postMessage({type: {{.MessageType}}, ok: ok}, "*");
  }
  document.getElementById("copyButton").addEventListener("click", function () {
    try {
      var binary = atob(document.getElementById("copyHelper").dataset.text);
      var bytes = Uint8Array.from(binary, function (c) { return c.charCodeAt(0); });
      var text = new TextDecoder().decode(bytes);
      navigator.clipboard.writeText(text).then(function () { report(true); }, function (err) {
        console.error("Failed to copy:", err);
        report(false);
      });
    } catch (err) {
      console.error("Failed to copy:", err);
      report(false);
    }
  });
})();
</script>
</body></html>`))

var frameTag = template.Must(template.New("tag").Parse(
	`<iframe class="clipboard-frame" title="{{.Label}}" sandbox="allow-scripts" allow="clipboard-write" ` +
		`height="{{.Height}}" style="border:0;width:100%" srcdoc="{{.Doc}}"></iframe>`))

// Embed renders the iframe. The text only ever appears base64-encoded, and
// the frame document is attribute-escaped into srcdoc.
func (c *FrameCopier) Embed(text string) (template.HTML, error) {
	var doc bytes.Buffer
	err := frameDoc.Execute(&doc, map[string]string{
		"Payload":     EncodePayload(text),
		"Label":       c.Label,
		"Copied":      MessageCopied,
		"Failed":      MessageFailed,
		"MessageType": MessageType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render clipboard frame: %w", err)
	}

	var tag bytes.Buffer
	err = frameTag.Execute(&tag, map[string]interface{}{
		"Label":  c.Label,
		"Height": c.Height,
		"Doc":    doc.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render clipboard tag: %w", err)
	}

	return template.HTML(tag.String()), nil
}

// EncodePayload encodes text for the frame's data-text attribute
func EncodePayload(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// DecodePayload reverses EncodePayload
func DecodePayload(payload string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("invalid clipboard payload: %w", err)
	}
	return string(data), nil
}
