package audio

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an accepted upload type by its file extension
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatM4A Format = "m4a"
)

// AllowedFormats lists the extensions accepted by the upload form, in display order
var AllowedFormats = []Format{FormatMP3, FormatWAV, FormatM4A}

// Accept returns the value for the file input's accept attribute
func Accept() string {
	parts := make([]string, 0, len(AllowedFormats))
	for _, f := range AllowedFormats {
		parts = append(parts, "."+string(f))
	}
	return strings.Join(parts, ",")
}

// FormatFromName returns the upload format for a filename.
// Only the extension is checked; the content is not validated.
func FormatFromName(name string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, f := range AllowedFormats {
		if ext == string(f) {
			return f, true
		}
	}
	return "", false
}

// Container is the media container detected from file content
type Container string

const (
	ContainerUnknown Container = "unknown"
	ContainerRIFF    Container = "riff"
	ContainerMPEG    Container = "mpeg"
	ContainerMP4     Container = "mp4"
)

// Sniff detects the container from the leading bytes of data
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerRIFF
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return ContainerMPEG
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return ContainerMPEG
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return ContainerMP4
	}
	return ContainerUnknown
}

// Info describes an upload for logs and metrics
type Info struct {
	Format    Format
	Container Container
	Size      int
	Duration  time.Duration // zero unless the header carries it
}

// Inspect gathers Info for an upload. It never fails; fields it cannot
// determine are left at their zero value.
func Inspect(name string, data []byte) Info {
	format, _ := FormatFromName(name)
	info := Info{
		Format:    format,
		Container: Sniff(data),
		Size:      len(data),
	}

	if info.Container == ContainerRIFF {
		if wav, err := GetWAVInfo(data); err == nil {
			info.Duration = time.Duration(wav.Duration * float64(time.Second))
		}
	}

	return info
}

// Matches reports whether the sniffed container is the one the extension implies
func (i Info) Matches() bool {
	switch i.Format {
	case FormatWAV:
		return i.Container == ContainerRIFF
	case FormatMP3:
		return i.Container == ContainerMPEG
	case FormatM4A:
		return i.Container == ContainerMP4
	}
	return false
}
