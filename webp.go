package sdimeta

import (
	"bytes"
	"encoding/binary"
)

// webpParseResult mirrors jpegParseResult for the WebP RIFF container
// (§4.5): EXIF-derived texts and the XMP text, if present.
type webpParseResult struct {
	exif    exifTexts
	xmpText string
}

// parseWebP validates the RIFF/WEBP signature and walks chunks from
// offset 12, handling the even-padding rule (§4.5).
func parseWebP(data []byte) webpParseResult {
	var res webpParseResult
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return res
	}

	off := 12
	for off+8 <= len(data) {
		tag := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		off += 8
		if uint64(off)+uint64(size) > uint64(len(data)) {
			break
		}
		chunkData := data[off : off+int(size)]
		off += int(size)
		if size%2 == 1 && off < len(data) {
			off++ // padding byte
		}

		switch tag {
		case "EXIF":
			// WebP's EXIF chunk holds the bare TIFF block; prepend the
			// "Exif\x00\x00" framing this package's EXIF sub-parser
			// expects (§4.5).
			framed := append(append([]byte{}, jpegExifPrefix...), chunkData...)
			res.exif = parseEXIF(framed)
		case "XMP ":
			res.xmpText = decodeXMPText(chunkData)
		}
	}
	return res
}
