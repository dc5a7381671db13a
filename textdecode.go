package sdimeta

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	xtextunicode "golang.org/x/text/encoding/unicode"
)

// ─── encodings ───────────────────────────────────────────────────────────────

// textEncoding identifies one of the candidate encodings the best-of
// decoder panel tries.
type textEncoding int

const (
	encLatin1 textEncoding = iota
	encUTF8
	encUTF16LE
	encUTF16BE
	encShiftJIS
)

// allEncodings is the full panel tried by bestOf, in a stable default
// order; callers that know a likely encoding reorder a copy so it is
// tried (and, on a tie, preferred) first.
var allEncodings = []textEncoding{encUTF8, encUTF16LE, encUTF16BE, encShiftJIS, encLatin1}

func decodeWith(enc textEncoding, b []byte) (string, bool) {
	if len(b) == 0 {
		return "", true
	}
	switch enc {
	case encLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	case encUTF8:
		return string(b), true
	case encUTF16LE:
		out, err := xtextunicode.UTF16(xtextunicode.LittleEndian, xtextunicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	case encUTF16BE:
		out, err := xtextunicode.UTF16(xtextunicode.BigEndian, xtextunicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	case encShiftJIS:
		out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
	return "", false
}

// ─── scoring (§4.6.3) ────────────────────────────────────────────────────────

// scoreText implements the best-of scoring function. When forSD is
// true the SD-specific bonus terms are added on top.
func scoreText(s string, forSD bool) float64 {
	if s == "" {
		return 0
	}
	var replacement, cjk, kana, asciiPrintable, unexpectedControls int
	var commas, colons, semicolons int
	total := 0
	for _, r := range s {
		total++
		switch {
		case r == unicode.ReplacementChar:
			replacement++
		case isCJK(r):
			cjk++
		case isKana(r):
			kana++
		case r >= 0x20 && r < 0x7F:
			asciiPrintable++
			switch r {
			case ',':
				commas++
			case ':':
				colons++
			case ';':
				semicolons++
			}
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r':
			unexpectedControls++
		}
	}

	score := -100*float64(replacement) +
		5*float64(cjk) +
		4*float64(kana) +
		0.3*float64(asciiPrintable) -
		5*float64(unexpectedControls) +
		0.5*float64(commas+colons+semicolons)

	if forSD {
		low := strings.ToLower(s)
		if strings.Contains(low, "negative prompt:") {
			score += 5
		}
		if strings.Contains(low, "steps:") {
			score += 4
		}
		if strings.Contains(low, "sampler:") {
			score += 2
		}
		if strings.Contains(low, "cfg scale:") {
			score += 2
		}
		if strings.Contains(low, "seed:") {
			score += 2
		}
		if strings.Contains(low, "size:") {
			score += 2
		}
		if strings.ContainsRune(s, '’') {
			score += 1
		}
		if strings.ContainsRune(s, rune(0x19)) {
			score -= 3
		}
		if total > 0 {
			score += float64(asciiPrintable) / float64(total)
		}
	}
	return score
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func isKana(r rune) bool {
	return unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r)
}

// ─── best-of decoder ─────────────────────────────────────────────────────────

// bestOf tries every candidate in order, scores the decoded string,
// and returns the highest scorer. order may be a reordering (or
// subset ++ remainder) of allEncodings to bias which candidate wins
// ties; every encoding in allEncodings is still attempted.
func bestOf(b []byte, order []textEncoding, forSD bool) (string, textEncoding) {
	tried := make(map[textEncoding]bool, len(allEncodings))
	var bestText string
	var bestEnc textEncoding
	bestScore := -1.0
	first := true

	tryOne := func(enc textEncoding) {
		if tried[enc] {
			return
		}
		tried[enc] = true
		text, ok := decodeWith(enc, b)
		if !ok {
			return
		}
		s := scoreText(text, forSD)
		if first || s > bestScore {
			bestScore = s
			bestText = text
			bestEnc = enc
			first = false
		}
	}

	for _, enc := range order {
		tryOne(enc)
	}
	for _, enc := range allEncodings {
		tryOne(enc)
	}
	return bestText, bestEnc
}

// shiftJISBias reports whether the byte buffer's lead/trail byte-pair
// ratio suggests Shift_JIS strongly enough that it should be tried
// first (§4.6.3).
func shiftJISBias(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	pairs := 0
	hits := 0
	for i := 0; i+1 < len(b); i++ {
		pairs++
		lead := b[i]
		trail := b[i+1]
		if (lead >= 0x81 && lead <= 0x9F || lead >= 0xE0 && lead <= 0xFC) &&
			(trail >= 0x40 && trail <= 0x7E || trail >= 0x80 && trail <= 0xFC) {
			hits++
		}
	}
	if pairs == 0 {
		return false
	}
	return float64(hits)/float64(pairs) > 0.05
}

// ─── NUL statistics (used by UserComment/XMP/recovery heuristics) ───────────

type nulStats struct {
	count int
	odd   int // NUL at odd byte positions
	even  int // NUL at even byte positions
	ratio float64
}

func computeNulStats(b []byte) nulStats {
	var s nulStats
	for i, c := range b {
		if c == 0 {
			s.count++
			if i%2 == 0 {
				s.even++
			} else {
				s.odd++
			}
		}
	}
	if len(b) > 0 {
		s.ratio = float64(s.count) / float64(len(b))
	}
	return s
}

// likelyUTF16Order picks UTF-16LE vs UTF-16BE from NUL-position parity,
// per §4.6.1/§4.6.2: prefer LE when odd-position NULs are at least as
// common as even-position ones.
func likelyUTF16Order(b []byte) textEncoding {
	s := computeNulStats(b)
	if s.odd >= s.even {
		return encUTF16LE
	}
	return encUTF16BE
}

// ─── UTF-16 mis-decode repair (§4.6.4) ──────────────────────────────────────

// repairUTF16Misdecode detects UTF-16LE bytes that were decoded as
// UTF-16BE, which turns ASCII into code units with a zero low byte
// (U+6100 for "a"). When at least 30% of the code units have a zero
// low byte, it writes each unit back out as a big-endian byte pair and
// re-decodes those bytes as UTF-16LE.
func repairUTF16Misdecode(s string) string {
	units := utf16.Encode([]rune(s))
	if len(units) == 0 {
		return s
	}
	zeroLow := 0
	for _, u := range units {
		if u&0xFF == 0 {
			zeroLow++
		}
	}
	if float64(zeroLow)/float64(len(units)) < 0.30 {
		return s
	}
	raw := make([]byte, 0, len(units)*2)
	for _, u := range units {
		raw = append(raw, byte(u>>8), byte(u&0xFF))
	}
	repaired, ok := decodeWith(encUTF16LE, raw)
	if !ok {
		return s
	}
	return repaired
}

// ─── UserComment decoding (§4.6.1) ───────────────────────────────────────────

var (
	ucASCII   = []byte("ASCII\x00\x00\x00")
	ucUnicode = []byte("UNICODE\x00")
	ucJIS     = []byte("JIS\x00\x00\x00\x00\x00")
)

// decodeUserComment implements the EXIF UserComment decode rules.
func decodeUserComment(raw []byte) string {
	body := raw
	var order []textEncoding
	switch {
	case len(raw) >= 8 && string(raw[:8]) == string(ucASCII):
		body = raw[8:]
		order = []textEncoding{encLatin1, encUTF8}
	case len(raw) >= 8 && string(raw[:8]) == string(ucUnicode):
		body = raw[8:]
		order = []textEncoding{encUTF16LE, encUTF16BE}
	case len(raw) >= 8 && string(raw[:8]) == string(ucJIS):
		body = raw[8:]
		order = []textEncoding{encShiftJIS}
	default:
		stats := computeNulStats(raw)
		if stats.ratio > 0.2 {
			order = []textEncoding{likelyUTF16Order(raw)}
		}
	}

	if shiftJISBias(body) {
		order = append([]textEncoding{encShiftJIS}, order...)
	}

	text, _ := bestOf(body, order, true)
	return strings.ReplaceAll(text, "\x00", "")
}

// ─── XMP text decoding (§4.6.2) ──────────────────────────────────────────────

// decodeXMPText honors BOMs, falls back to the NUL-parity heuristic,
// then best-of, then re-decodes per an embedded encoding="..."
// declaration when present.
func decodeXMPText(raw []byte) string {
	switch {
	case len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF:
		text, _ := decodeWith(encUTF8, raw[3:])
		return finishXMPDecode(raw[3:], text)
	case len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF:
		text, _ := decodeWith(encUTF16BE, raw[2:])
		return finishXMPDecode(raw[2:], text)
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE:
		text, _ := decodeWith(encUTF16LE, raw[2:])
		return finishXMPDecode(raw[2:], text)
	}

	stats := computeNulStats(raw)
	var order []textEncoding
	if stats.ratio > 0.2 {
		order = []textEncoding{likelyUTF16Order(raw)}
	}
	if shiftJISBias(raw) {
		order = append([]textEncoding{encShiftJIS}, order...)
	}
	text, _ := bestOf(raw, order, false)
	return finishXMPDecode(raw, text)
}

var xmpEncodingDeclRe = regexp.MustCompile(`encoding\s*=\s*["']([^"']+)["']`)

var xmpEncodingNames = map[string]textEncoding{
	"utf-8":     encUTF8,
	"utf8":      encUTF8,
	"utf-16":    encUTF16LE,
	"utf-16le":  encUTF16LE,
	"utf-16be":  encUTF16BE,
	"shift_jis": encShiftJIS,
	"shift-jis": encShiftJIS,
	"sjis":      encShiftJIS,
	"windows-31j": encShiftJIS,
}

// finishXMPDecode applies the post-pass encoding="..." re-decode rule.
func finishXMPDecode(body []byte, first string) string {
	m := xmpEncodingDeclRe.FindStringSubmatch(first)
	if m == nil {
		return first
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	enc, ok := xmpEncodingNames[name]
	if !ok {
		return first
	}
	redecoded, ok := decodeWith(enc, body)
	if !ok {
		return first
	}
	if scoreText(redecoded, false) >= scoreText(first, false) {
		return redecoded
	}
	return first
}

// utf8Valid reports whether b is valid UTF-8. It has no caller in the
// package; looksGarbled (§4.8) checks decoded text for U+FFFD and NUL.
func utf8Valid(b []byte) bool {
	return utf8.Valid(b)
}
