package sdimeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// ─── chunk walk ──────────────────────────────────────────────────────────────

type pngChunk struct {
	typ  string
	data []byte
}

// readPNGChunks validates the signature and walks chunks until IEND or
// the buffer ends. CRCs are ignored (§4.2); a truncated chunk stops
// the walk and keeps whatever was already collected.
func readPNGChunks(data []byte) []pngChunk {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil
	}
	var chunks []pngChunk
	off := len(pngSignature)
	for off+8 <= len(data) {
		length := binary.BigEndian.Uint32(data[off : off+4])
		typ := string(data[off+4 : off+8])
		off += 8
		if uint64(off)+uint64(length) > uint64(len(data)) {
			break
		}
		chunkData := data[off : off+int(length)]
		off += int(length)
		if off+4 <= len(data) {
			off += 4 // CRC
		}
		chunks = append(chunks, pngChunk{typ: typ, data: chunkData})
		if typ == "IEND" {
			break
		}
	}
	return chunks
}

// parsePNG walks the PNG chunk stream and fills raw with the decoded
// text chunks (§4.2).
func parsePNG(data []byte) map[string]string {
	raw := map[string]string{}
	for _, c := range readPNGChunks(data) {
		switch c.typ {
		case "tEXt":
			key, val, ok := parseTEXt(c.data)
			if ok {
				raw[key] = val
			}
		case "zTXt":
			key, val, ok := parseZTXt(c.data)
			if ok {
				raw[key] = val
			}
		case "iTXt":
			key, val, ok := parseITXt(c.data)
			if ok {
				raw[key] = val
			}
		}
	}
	return raw
}

// ─── tEXt ─────────────────────────────────────────────────────────────────

// parseTEXt splits keyword\0value and decodes both as Latin-1.
func parseTEXt(data []byte) (key, val string, ok bool) {
	null := bytes.IndexByte(data, 0)
	if null < 0 {
		return "", "", false
	}
	k, kok := decodeWith(encLatin1, data[:null])
	v, vok := decodeWith(encLatin1, data[null+1:])
	if !kok || !vok {
		return "", "", false
	}
	return k, v, true
}

// ─── zTXt ─────────────────────────────────────────────────────────────────

// parseZTXt splits keyword\0 compression-method, inflates the
// remainder as a plain zlib stream, and decodes the result as Latin-1.
func parseZTXt(data []byte) (key, val string, ok bool) {
	null := bytes.IndexByte(data, 0)
	if null < 0 || null+1 >= len(data) {
		return "", "", false
	}
	method := data[null+1]
	if method != 0 {
		return "", "", false
	}
	inflated, ok := inflateZlib(data[null+2:])
	if !ok {
		return "", "", false
	}
	k, kok := decodeWith(encLatin1, data[:null])
	v, vok := decodeWith(encLatin1, inflated)
	if !kok || !vok {
		return "", "", false
	}
	return k, v, true
}

// ─── iTXt ─────────────────────────────────────────────────────────────────

// parseITXt reads the header fields in order (NUL-terminated keyword,
// one-byte compression flag, one-byte compression method, NUL-terminated
// language tag and translated keyword), then the (possibly deflated)
// UTF-8 text (§4.2). Per §9's Open Question decision, a best-of
// re-decode is attempted only when the plain UTF-8 pass produced
// replacement characters.
func parseITXt(data []byte) (key, val string, ok bool) {
	fields := make([][]byte, 0, 5)
	rest := data
	for i := 0; i < 4; i++ {
		if i == 1 || i == 2 { // compression flag, compression method: one byte each
			if len(rest) < 1 {
				return "", "", false
			}
			fields = append(fields, rest[:1])
			rest = rest[1:]
			continue
		}
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return "", "", false
		}
		fields = append(fields, rest[:n])
		rest = rest[n+1:]
	}
	// fields: key, compressionFlag, compressionMethod, languageTag
	// rest is translatedKeyword\0text — one more NUL to split.
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		return "", "", false
	}
	text := rest[n+1:]

	if len(fields[1]) != 1 {
		return "", "", false
	}
	compressed := fields[1][0] == 1

	if compressed {
		if len(fields[2]) != 1 || fields[2][0] != 0 {
			return "", "", false
		}
		inflated, ok := inflateZlib(text)
		if !ok {
			return "", "", false
		}
		text = inflated
	}

	k := string(fields[0])
	v := string(text)
	if bytes.ContainsRune([]byte(v), 0xFFFD) {
		if best, _ := bestOf(text, nil, true); best != "" {
			v = best
		}
	}
	return k, v, true
}

// ─── zlib inflate ─────────────────────────────────────────────────────────

func inflateZlib(data []byte) ([]byte, bool) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return out, true
}
