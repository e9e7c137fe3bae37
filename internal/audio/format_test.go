package audio

import "testing"

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name   string
		want   Format
		wantOK bool
	}{
		{"interview.mp3", FormatMP3, true},
		{"call.WAV", FormatWAV, true},
		{"voice memo.m4a", FormatM4A, true},
		{"archive.tar.mp3", FormatMP3, true},
		{"notes.txt", "", false},
		{"mp3", "", false},
		{"clip.flac", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FormatFromName(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FormatFromName(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAccept(t *testing.T) {
	if got := Accept(); got != ".mp3,.wav,.m4a" {
		t.Errorf("Accept() = %q", got)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Container
	}{
		{"id3 tag", []byte("ID3\x04\x00\x00\x00\x00"), ContainerMPEG},
		{"frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, ContainerMPEG},
		{"riff wave", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), ContainerRIFF},
		{"riff avi", []byte("RIFF\x24\x00\x00\x00AVI LIST"), ContainerUnknown},
		{"mp4 ftyp", []byte("\x00\x00\x00\x20ftypM4A "), ContainerMP4},
		{"text", []byte("hello world"), ContainerUnknown},
		{"empty", nil, ContainerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspectMismatch(t *testing.T) {
	info := Inspect("song.mp3", []byte("\x00\x00\x00\x20ftypM4A "))
	if info.Format != FormatMP3 {
		t.Errorf("Expected mp3 format, got %q", info.Format)
	}
	if info.Matches() {
		t.Error("Expected mp4 content under .mp3 name to mismatch")
	}
	if info.Size != 12 {
		t.Errorf("Expected size 12, got %d", info.Size)
	}
	if info.Duration != 0 {
		t.Errorf("Expected zero duration, got %v", info.Duration)
	}
}
