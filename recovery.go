package sdimeta

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// looksGarbled implements the §4.8 trigger condition (b): the
// selected text contains U+FFFD or NUL, or is mostly high-byte with
// little ASCII.
func looksGarbled(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsRune(s, 0xFFFD) || strings.ContainsRune(s, 0) {
		return true
	}
	var highByte, asciiLetters, total int
	for _, r := range s {
		total++
		if r > 0x7F {
			highByte++
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			asciiLetters++
		}
	}
	if total == 0 {
		return false
	}
	highRatio := float64(highByte) / float64(total)
	asciiRatio := float64(asciiLetters) / float64(total)
	return highRatio > 0.5 && asciiRatio < 0.10
}

// recover implements §4.8: the recovery engine, tried in order, first
// successful step wins. fileData is the entire original byte buffer.
func recover(fileData []byte) (string, bool) {
	if block, ok := recoverTargetedUTF16Scan(fileData); ok {
		debugf("recovery: targeted UTF-16 scan succeeded")
		return block, true
	}
	if block, ok := recoverWholeFileRedecode(fileData, encUTF16LE); ok {
		debugf("recovery: whole-file UTF-16LE re-decode succeeded")
		return block, true
	}
	if block, ok := recoverWholeFileRedecode(fileData, encUTF16BE); ok {
		debugf("recovery: whole-file UTF-16BE re-decode succeeded")
		return block, true
	}
	if block, ok := recoverWholeFileRedecode(fileData, encShiftJIS); ok {
		debugf("recovery: whole-file Shift_JIS re-decode succeeded")
		return block, true
	}
	if block, ok := recoverJSONScan(fileData); ok {
		debugf("recovery: JSON scan succeeded")
		return block, true
	}
	return "", false
}

// ─── step 1: targeted UTF-16 window scan (§4.8.1) ───────────────────────────

func recoverTargetedUTF16Scan(fileData []byte) (string, bool) {
	patterns := []struct {
		bytes []byte
		enc   textEncoding
	}{
		{utf16LEBytes("Negative prompt:"), encUTF16LE},
		{utf16BEBytes("Negative prompt:"), encUTF16BE},
	}
	for _, p := range patterns {
		idx := 0
		for {
			hit := indexBytes(fileData[idx:], p.bytes)
			if hit < 0 {
				break
			}
			hit += idx
			start := hit - 4096
			if start < 0 {
				start = 0
			}
			end := hit + 8192
			if end > len(fileData) {
				end = len(fileData)
			}
			text, ok := decodeWith(p.enc, fileData[start:end])
			if ok {
				if block, found := locateA1111Block(text); found {
					return block, true
				}
			}
			idx = hit + len(p.bytes)
		}
	}
	return "", false
}

func utf16LEBytes(s string) []byte {
	b, _ := decodeEncodeUTF16(s, false)
	return b
}

func utf16BEBytes(s string) []byte {
	b, _ := decodeEncodeUTF16(s, true)
	return b
}

// decodeEncodeUTF16 is a tiny ASCII-safe UTF-16 encoder, sufficient
// for encoding the fixed "Negative prompt:" search pattern (all-ASCII).
func decodeEncodeUTF16(s string, bigEndian bool) ([]byte, bool) {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		if r > 0xFFFF {
			return nil, false
		}
		hi := byte(r >> 8)
		lo := byte(r & 0xFF)
		if bigEndian {
			out = append(out, hi, lo)
		} else {
			out = append(out, lo, hi)
		}
	}
	return out, true
}

func indexBytes(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if bytesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─── step 2/3: whole-file re-decode (§4.8.2/4.8.3) ──────────────────────────

func recoverWholeFileRedecode(fileData []byte, enc textEncoding) (string, bool) {
	text, ok := decodeWith(enc, fileData)
	if !ok || text == "" {
		return "", false
	}
	if block, found := locateA1111Block(text); found {
		return block, true
	}
	// "extract from the first settings line backward to the start of text"
	if end, found := findSettingsLineEnd(text); found {
		return text[:end], true
	}
	return "", false
}

// ─── step 4: JSON scan (§4.8.4) ─────────────────────────────────────────────

var jsonScanMarkers = []string{
	"sd-metadata", "sd_metadata", `"prompt"`, `"Negative prompt"`, "Negative prompt:",
}

func recoverJSONScan(fileData []byte) (string, bool) {
	text := decodeUTF8Lossy(fileData)
	for _, marker := range jsonScanMarkers {
		idx := 0
		for {
			pos := strings.Index(text[idx:], marker)
			if pos < 0 {
				break
			}
			pos += idx
			if obj, ok := findEnclosingObject(text, pos); ok {
				var m map[string]any
				if err := json.Unmarshal([]byte(obj), &m); err == nil {
					if block, ok := forgeJSONToA1111(m); ok {
						return block, true
					}
				}
			}
			idx = pos + len(marker)
		}
	}
	return "", false
}

// decodeUTF8Lossy decodes data as UTF-8, allowing the Go runtime's
// standard replacement-character behavior for invalid sequences.
func decodeUTF8Lossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

// findEnclosingObject locates the nearest `{...}` enclosing byte
// offset pos via brace matching, searching backward for the opening
// brace and forward for its match.
func findEnclosingObject(text string, pos int) (string, bool) {
	depth := 0
	start := -1
	for i := pos; i >= 0; i-- {
		switch text[i] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				start = i
			} else {
				depth--
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return "", false
	}
	depth = 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// ─── §4.9 Forge/JSON → A1111 converter ──────────────────────────────────────

// forgeJSONToA1111 converts M to A1111 text when it exposes one of the
// shapes §4.8.4/§4.9 recognize: an sd-metadata/sd_metadata wrapper
// object, a parameters string (returned as is), or a prompt field.
func forgeJSONToA1111(m map[string]any) (string, bool) {
	if inner, ok := m["sd-metadata"].(map[string]any); ok {
		m = inner
	} else if inner, ok := m["sd_metadata"].(map[string]any); ok {
		m = inner
	} else if p, ok := m["parameters"].(string); ok {
		return p, true
	}

	prompt, hasPrompt := stringField(m, "prompt", "Prompt")
	if !hasPrompt {
		return "", false
	}

	negative, _ := stringField(m, "negativePrompt", "Negative prompt", "negative_prompt")

	var settings []string
	if steps, ok := numberField(m, "steps", "Steps"); ok {
		settings = append(settings, "Steps: "+steps)
	}
	if sampler, ok := stringField(m, "sampler", "Sampler"); ok {
		settings = append(settings, "Sampler: "+sampler)
	}
	if cfg, ok := numberField(m, "cfgScale", "cfg", "CFG scale"); ok {
		settings = append(settings, "CFG scale: "+cfg)
	}
	if seed, ok := numberField(m, "seed", "Seed"); ok {
		settings = append(settings, "Seed: "+seed)
	}
	w, wOK := numberField(m, "width", "Width")
	h, hOK := numberField(m, "height", "Height")
	if wOK && hOK {
		settings = append(settings, "Size: "+w+"x"+h)
	}
	if model, ok := modelField(m); ok {
		settings = append(settings, "Model: "+model)
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\nNegative prompt: ")
	b.WriteString(negative)
	if len(settings) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(settings, ", "))
	}
	return b.String(), true
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func numberField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch t := v.(type) {
			case float64:
				return stringifyID(t), true
			case string:
				return t, true
			}
		}
	}
	return "", false
}

func modelField(m map[string]any) (string, bool) {
	if s, ok := stringField(m, "model", "Model"); ok {
		return s, true
	}
	if hashes, ok := m["hashes"].(map[string]any); ok {
		if s, ok := hashes["model"].(string); ok {
			return s, true
		}
	}
	return "", false
}
