// ABOUTME: Part manipulation helpers: Source/Document flattening and audio MIME mapping.
// ABOUTME: Used by provider adapters that cannot represent citations, documents, or raw MIME types natively.

package llm

// FlattenSourceParts replaces every Source part with its inner content,
// recursively, preserving order. Adapters for providers without native
// citation support use this to forward the cited content losslessly.
func FlattenSourceParts(parts []Part) []Part {
	result := make([]Part, 0, len(parts))
	for _, part := range parts {
		if part.Type == PartTypeSource && part.Source != nil {
			result = append(result, FlattenSourceParts(part.Source.Content)...)
			continue
		}
		result = append(result, part)
	}
	return result
}

// FlattenDocumentParts replaces every Document part with its inner content,
// recursively, preserving order.
func FlattenDocumentParts(parts []Part) []Part {
	result := make([]Part, 0, len(parts))
	for _, part := range parts {
		if part.Type == PartTypeDocument && part.Document != nil {
			result = append(result, FlattenDocumentParts(part.Document.Content)...)
			continue
		}
		result = append(result, part)
	}
	return result
}

// AudioFormat identifies the encoding of audio part data.
type AudioFormat string

const (
	AudioFormatWav      AudioFormat = "wav"
	AudioFormatMP3      AudioFormat = "mp3"
	AudioFormatLinear16 AudioFormat = "linear16"
	AudioFormatFLAC     AudioFormat = "flac"
	AudioFormatMulaw    AudioFormat = "mulaw"
	AudioFormatAlaw     AudioFormat = "alaw"
	AudioFormatAAC      AudioFormat = "aac"
	AudioFormatOpus     AudioFormat = "opus"
)

// mimeToAudioFormat maps MIME types to audio formats. "audio/basic" decodes
// to mulaw; the alaw direction of that MIME type is one-way by design of the
// mapping, so decoders always see mulaw.
var mimeToAudioFormat = map[string]AudioFormat{
	"audio/wav":   AudioFormatWav,
	"audio/wave":  AudioFormatWav,
	"audio/x-wav": AudioFormatWav,
	"audio/mpeg":  AudioFormatMP3,
	"audio/mp3":   AudioFormatMP3,
	"audio/l16":   AudioFormatLinear16,
	"audio/flac":  AudioFormatFLAC,
	"audio/basic": AudioFormatMulaw,
	"audio/aac":   AudioFormatAAC,
	"audio/opus":  AudioFormatOpus,
	"audio/ogg":   AudioFormatOpus,
}

// AudioFormatFromMIMEType maps a MIME type to an AudioFormat. Unknown MIME
// types fail with an invariant error tagged by the provider id.
func AudioFormatFromMIMEType(provider, mimeType string) (AudioFormat, error) {
	if format, ok := mimeToAudioFormat[mimeType]; ok {
		return format, nil
	}
	return "", NewInvariantError(provider, "unknown audio MIME type "+mimeType)
}

// MIMEType returns the canonical MIME type for the format. Both mulaw and
// alaw map to "audio/basic".
func (f AudioFormat) MIMEType() string {
	switch f {
	case AudioFormatWav:
		return "audio/wav"
	case AudioFormatMP3:
		return "audio/mpeg"
	case AudioFormatLinear16:
		return "audio/l16"
	case AudioFormatFLAC:
		return "audio/flac"
	case AudioFormatMulaw, AudioFormatAlaw:
		return "audio/basic"
	case AudioFormatAAC:
		return "audio/aac"
	case AudioFormatOpus:
		return "audio/opus"
	}
	return "application/octet-stream"
}
