package sdimeta

import (
	"bytes"
	"encoding/binary"
	"sort"
)

var (
	jpegExifPrefix       = []byte("Exif\x00\x00")
	jpegXMPPrefix        = []byte("http://ns.adobe.com/xap/1.0/\x00")
	jpegXMPExtPrefix     = []byte("http://ns.adobe.com/xmp/extension/\x00")
	jpegGUIDLen          = 32
)

// jpegParseResult collects every candidate text source a JPEG file can
// carry (§4.3).
type jpegParseResult struct {
	exif       exifTexts
	xmpText    string // standard + reassembled extended XMP
	comComment string
}

// extendedXmpAssembly accumulates one GUID's Extended XMP chunks
// (§3 ExtendedXmpAssembly).
type extendedXmpAssembly struct {
	total  uint32
	chunks map[uint32][]byte // offset -> payload
}

// parseJPEG validates SOI and walks marker segments to EOI/SOS,
// dispatching APP1 EXIF/XMP/extended-XMP and COM segments.
func parseJPEG(data []byte) jpegParseResult {
	var res jpegParseResult
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return res
	}

	var exifPayload []byte
	var xmpFragments []string
	extended := map[string]*extendedXmpAssembly{}
	var comBytes []byte
	haveCom := false

	off := 2
	for off+1 < len(data) {
		if data[off] != 0xFF {
			break
		}
		marker := data[off+1]
		off += 2

		if marker == 0xD9 { // EOI
			break
		}
		if marker == 0xDA { // SOS — stop walking segments
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 { // restart markers: no length
			continue
		}
		if off+2 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[off : off+2]))
		if segLen < 2 {
			break
		}
		payloadLen := segLen - 2
		if off+2+payloadLen > len(data) {
			break
		}
		payload := data[off+2 : off+2+payloadLen]
		off += segLen

		switch marker {
		case 0xE1: // APP1
			switch {
			case bytes.HasPrefix(payload, jpegExifPrefix):
				exifPayload = payload
			case bytes.HasPrefix(payload, jpegXMPPrefix):
				xmpFragments = append(xmpFragments, decodeXMPText(payload[len(jpegXMPPrefix):]))
			case bytes.HasPrefix(payload, jpegXMPExtPrefix):
				rest := payload[len(jpegXMPExtPrefix):]
				if len(rest) < jpegGUIDLen+8 {
					continue
				}
				guid := string(rest[:jpegGUIDLen])
				total := binary.BigEndian.Uint32(rest[jpegGUIDLen : jpegGUIDLen+4])
				chunkOffset := binary.BigEndian.Uint32(rest[jpegGUIDLen+4 : jpegGUIDLen+8])
				chunkPayload := rest[jpegGUIDLen+8:]
				asm, ok := extended[guid]
				if !ok {
					asm = &extendedXmpAssembly{total: total, chunks: map[uint32][]byte{}}
					extended[guid] = asm
				}
				asm.chunks[chunkOffset] = chunkPayload
			}
		case 0xFE: // COM
			comBytes = append(comBytes[:0:0], payload...)
			haveCom = true
		}
	}

	if len(exifPayload) > 6 {
		res.exif = parseEXIF(exifPayload)
	}

	res.xmpText = strJoin(xmpFragments) + assembleExtendedXMP(extended)

	if haveCom {
		text, _ := bestOf(comBytes, nil, true)
		res.comComment = text
	}

	return res
}

func strJoin(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

// assembleExtendedXMP concatenates each GUID's chunks in ascending
// offset order and truncates to the declared total (§4.3, §3 invariant).
func assembleExtendedXMP(extended map[string]*extendedXmpAssembly) string {
	// Deterministic order across GUIDs: sort by GUID string.
	guids := make([]string, 0, len(extended))
	for g := range extended {
		guids = append(guids, g)
	}
	sort.Strings(guids)

	var out string
	for _, g := range guids {
		asm := extended[g]
		offsets := make([]uint32, 0, len(asm.chunks))
		for o := range asm.chunks {
			offsets = append(offsets, o)
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

		var buf []byte
		for _, o := range offsets {
			buf = append(buf, asm.chunks[o]...)
		}
		n := len(buf)
		if int(asm.total) < n {
			n = int(asm.total)
		}
		out += decodeXMPText(buf[:n])
	}
	return out
}
