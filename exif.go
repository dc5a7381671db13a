package sdimeta

import (
	"bytes"
	"encoding/binary"

	"github.com/rwcarlsen/goexif/exif"
)

// exifTexts holds every text-bearing tag the EXIF sub-parser extracted
// (§4.4), already decoded and repaired.
type exifTexts struct {
	imageDescription string
	userComment      string
	xpComment        string
	xpTitle          string
}

// best returns the highest-priority non-empty text, in the order the
// spec implies (UserComment is the conventional A1111 carrier,
// followed by ImageDescription, then the Windows XP tags).
func (t exifTexts) best() string {
	for _, s := range []string{t.userComment, t.imageDescription, t.xpComment, t.xpTitle} {
		if s != "" {
			return s
		}
	}
	return ""
}

// parseEXIF decodes a buffer beginning with the 6-byte "Exif\x00\x00"
// header followed by a TIFF block (§4.4). It uses goexif for the
// standard ImageDescription/UserComment tags (goexif already resolves
// the Exif sub-IFD, endian-aware) and a small hand-rolled IFD0 walk
// for the two Windows XP tags goexif's field table doesn't carry.
func parseEXIF(data []byte) exifTexts {
	var out exifTexts

	const exifHeaderLen = 6
	if len(data) < exifHeaderLen || string(data[:exifHeaderLen]) != "Exif\x00\x00" {
		return out
	}
	tiffBody := data[exifHeaderLen:]

	// goexif expects a bare TIFF block (it recognises "II*\x00"/"MM\x00*"
	// directly); the "Exif\x00\x00" framing is this package's own
	// convention, stripped before handing off.
	x, err := exif.Decode(bytes.NewReader(tiffBody))
	if err == nil {
		if tag, err := x.Get(exif.ImageDescription); err == nil {
			out.imageDescription = repairExifString(decodeExifASCIITag(tag.Val))
		}
		if tag, err := x.Get(exif.UserComment); err == nil {
			out.userComment = repairExifString(decodeUserComment(tag.Val))
		}
	}

	xp := scanXPTags(tiffBody)
	out.xpComment = repairExifString(xp.comment)
	out.xpTitle = repairExifString(xp.title)

	return out
}

// decodeExifASCIITag decodes a tag whose goexif-reported Val is the
// raw tag bytes (ASCII, or, per §4.4, heuristically UTF-16/Shift_JIS).
func decodeExifASCIITag(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	stats := computeNulStats(raw)
	var order []textEncoding
	if stats.ratio > 0.2 {
		order = []textEncoding{likelyUTF16Order(raw)}
	}
	text, enc := bestOf(raw, order, true)
	if enc == encUTF8 && bytes.ContainsRune([]byte(text), 0xFFFD) {
		if sjis, ok := decodeWith(encShiftJIS, raw); ok {
			return sjis
		}
	}
	return text
}

// repairExifString applies the §4.6.4 UTF-16 mis-decode heuristic to
// every EXIF-derived string.
func repairExifString(s string) string {
	return repairUTF16Misdecode(s)
}

// ─── Windows XP tags (0x9C9B/0x9C9C) ─────────────────────────────────────────

type xpTags struct {
	title   string
	comment string
}

// scanXPTags walks IFD0 by hand looking for XPTitle (0x9C9B) and
// XPComment (0x9C9C), which are UTF-16LE byte arrays with trailing
// NULs (§4.4). tiffBody is the buffer starting at the TIFF header
// (i.e. right after "Exif\x00\x00").
func scanXPTags(tiffBody []byte) xpTags {
	var out xpTags
	if len(tiffBody) < 8 {
		return out
	}
	var order binary.ByteOrder
	switch {
	case tiffBody[0] == 'I' && tiffBody[1] == 'I':
		order = binary.LittleEndian
	case tiffBody[0] == 'M' && tiffBody[1] == 'M':
		order = binary.BigEndian
	default:
		return out
	}
	if order.Uint16(tiffBody[2:4]) != 42 {
		return out
	}
	ifd0Offset := order.Uint32(tiffBody[4:8])
	if uint64(ifd0Offset)+2 > uint64(len(tiffBody)) {
		return out
	}
	entryCount := int(order.Uint16(tiffBody[ifd0Offset : ifd0Offset+2]))
	base := int(ifd0Offset) + 2
	for i := 0; i < entryCount; i++ {
		entryOff := base + i*12
		if entryOff+12 > len(tiffBody) {
			break
		}
		tagID := order.Uint16(tiffBody[entryOff : entryOff+2])
		if tagID != 0x9C9B && tagID != 0x9C9C {
			continue
		}
		typ := order.Uint16(tiffBody[entryOff+2 : entryOff+4])
		count := order.Uint32(tiffBody[entryOff+4 : entryOff+8])
		if typ != 1 { // BYTE array, per the Windows XP tag convention
			continue
		}
		var valBytes []byte
		if count <= 4 {
			valBytes = tiffBody[entryOff+8 : entryOff+8+int(count)]
		} else {
			voff := order.Uint32(tiffBody[entryOff+8 : entryOff+12])
			if uint64(voff)+uint64(count) > uint64(len(tiffBody)) {
				continue
			}
			valBytes = tiffBody[voff : uint64(voff)+uint64(count)]
		}
		text, _ := decodeWith(encUTF16LE, valBytes)
		text = trimTrailingNuls(text)
		switch tagID {
		case 0x9C9B:
			out.title = text
		case 0x9C9C:
			out.comment = text
		}
	}
	return out
}

func trimTrailingNuls(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
