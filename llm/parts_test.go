// ABOUTME: Tests for part flattening and audio MIME type mapping.
// ABOUTME: Validates recursive flattening order and the mulaw/alaw audio/basic asymmetry.

package llm

import (
	"errors"
	"testing"
)

func TestFlattenSourceParts(t *testing.T) {
	parts := []Part{
		NewTextPart("before"),
		NewSourcePart("https://example.com", "Example", []Part{
			NewTextPart("cited outer"),
			NewSourcePart("https://inner.example.com", "", []Part{
				NewTextPart("cited inner"),
			}),
		}),
		NewTextPart("after"),
	}

	flat := FlattenSourceParts(parts)
	want := []string{"before", "cited outer", "cited inner", "after"}
	if len(flat) != len(want) {
		t.Fatalf("got %d parts, want %d", len(flat), len(want))
	}
	for i, text := range want {
		if flat[i].Type != PartTypeText || flat[i].Text != text {
			t.Errorf("part %d: got %+v, want text %q", i, flat[i], text)
		}
	}
}

func TestFlattenDocumentParts(t *testing.T) {
	parts := []Part{
		NewDocumentPart([]Part{
			NewTextPart("page 1"),
			NewDocumentPart([]Part{NewTextPart("page 2")}),
		}),
	}

	flat := FlattenDocumentParts(parts)
	if len(flat) != 2 {
		t.Fatalf("got %d parts, want 2", len(flat))
	}
	if flat[0].Text != "page 1" || flat[1].Text != "page 2" {
		t.Errorf("got %q, %q", flat[0].Text, flat[1].Text)
	}
}

func TestFlattenIdempotent(t *testing.T) {
	parts := []Part{NewTextPart("plain"), NewImagePart("image/png", "aGk=")}
	flat := FlattenSourceParts(FlattenDocumentParts(parts))
	if len(flat) != 2 {
		t.Fatalf("got %d parts, want 2", len(flat))
	}
}

func TestAudioFormatFromMIMEType(t *testing.T) {
	tests := []struct {
		mime string
		want AudioFormat
	}{
		{"audio/wav", AudioFormatWav},
		{"audio/x-wav", AudioFormatWav},
		{"audio/mpeg", AudioFormatMP3},
		{"audio/l16", AudioFormatLinear16},
		{"audio/flac", AudioFormatFLAC},
		{"audio/basic", AudioFormatMulaw},
		{"audio/aac", AudioFormatAAC},
		{"audio/ogg", AudioFormatOpus},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			got, err := AudioFormatFromMIMEType("test", tt.mime)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAudioFormatFromMIMETypeUnknown(t *testing.T) {
	_, err := AudioFormatFromMIMEType("test", "video/mp4")
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
	if inv.Provider != "test" {
		t.Errorf("got provider %q, want test", inv.Provider)
	}
}

func TestAudioFormatMIMEType(t *testing.T) {
	if got := AudioFormatMulaw.MIMEType(); got != "audio/basic" {
		t.Errorf("mulaw: got %q", got)
	}
	if got := AudioFormatAlaw.MIMEType(); got != "audio/basic" {
		t.Errorf("alaw: got %q", got)
	}
	// audio/basic always decodes back to mulaw, never alaw.
	format, err := AudioFormatFromMIMEType("test", "audio/basic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != AudioFormatMulaw {
		t.Errorf("got %q, want mulaw", format)
	}
}
