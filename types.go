// Package sdimeta extracts Stable-Diffusion-style generation metadata
// embedded in PNG, JPEG, and WebP image files and normalizes it into a
// uniform structured record.
//
// The package is a pure, synchronous library: Parse consumes an
// in-memory byte buffer and a format hint and returns an owned result.
// It performs no filesystem, network, or environment access, and it
// never returns an error — malformed or absent metadata simply yields
// a smaller result.
package sdimeta

// Format identifies the container the metadata was read from.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// ImageMeta is the result of a single Parse call.
//
// Fields holds normalized, dynamically-typed values (string, float64,
// bool, map[string]any, []any). Raw holds the exact decoded text of
// every source the container exposed, keyed by the container's own
// naming (PNG chunk keys, or the synthetic keys "EXIF", "XMP",
// "Comment", "parameters" that the JPEG/WebP readers assign).
type ImageMeta struct {
	Format Format
	Fields map[string]any
	Raw    map[string]string
}

// String returns a short human-readable summary, in the spirit of the
// teacher's Metadata.Summary() convenience method.
func (m ImageMeta) String() string {
	if p, ok := m.Fields["prompt"].(string); ok && p != "" {
		return string(m.Format) + ": " + p
	}
	return string(m.Format)
}

// Candidate is a single text source flowing through the selection
// pipeline: a label identifying where it came from, and the decoded
// text itself.
type Candidate struct {
	Source string
	Text   string
}

// ComfyNode is one node of a ComfyUI workflow graph.
type ComfyNode struct {
	ClassType string
	Inputs    map[string]any
}

// ComfyGraph maps node id (as a string, even when the source JSON used
// numeric ids) to its node.
type ComfyGraph map[string]ComfyNode

// DebugLog, when non-nil, receives low-volume diagnostic messages from
// the decode/recovery/ComfyUI pipeline. It defaults to nil (silent),
// per the package's no-logging-by-default contract; a caller that
// wants to see which recovery step supplied the A1111 block, or when a
// ComfyUI sampler node was found, can set it to something like
// log.Printf. Encoding selection is not reported.
var DebugLog func(format string, args ...any)

func debugf(format string, args ...any) {
	if DebugLog != nil {
		DebugLog(format, args...)
	}
}
