package sdimeta

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildJPEGSegment(marker byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, marker})
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(payload)+2))
	buf.Write(lenBuf)
	buf.Write(payload)
	return buf.Bytes()
}

func buildJPEG(segments ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8}) // SOI
	for _, s := range segments {
		buf.Write(s)
	}
	buf.Write([]byte{0xFF, 0xD9}) // EOI
	return buf.Bytes()
}

func TestParseJPEGCOMComment(t *testing.T) {
	seg := buildJPEGSegment(0xFE, []byte("a cat\nNegative prompt: blurry\nSteps: 20"))
	data := buildJPEG(seg)
	res := parseJPEG(data)
	if res.comComment != "a cat\nNegative prompt: blurry\nSteps: 20" {
		t.Fatalf("got %q", res.comComment)
	}
}

func TestParseJPEGXMPStandard(t *testing.T) {
	payload := append(append([]byte{}, jpegXMPPrefix...), []byte(`<x:xmpmeta parameters="a cat"/>`)...)
	seg := buildJPEGSegment(0xE1, payload)
	data := buildJPEG(seg)
	res := parseJPEG(data)
	if res.xmpText == "" {
		t.Fatal("expected non-empty XMP text")
	}
}

func TestParseJPEGExtendedXMPAssembly(t *testing.T) {
	guid := "0123456789ABCDEF0123456789ABCDEF"[:32]
	full := []byte("a cat\nNegative prompt: blurry\nSteps: 20")

	chunk := func(offset uint32, part []byte) []byte {
		var payload []byte
		payload = append(payload, jpegXMPExtPrefix...)
		payload = append(payload, []byte(guid)...)
		total := make([]byte, 4)
		binary.BigEndian.PutUint32(total, uint32(len(full)))
		payload = append(payload, total...)
		off := make([]byte, 4)
		binary.BigEndian.PutUint32(off, offset)
		payload = append(payload, off...)
		payload = append(payload, part...)
		return buildJPEGSegment(0xE1, payload)
	}

	mid := len(full) / 2
	data := buildJPEG(chunk(0, full[:mid]), chunk(uint32(mid), full[mid:]))
	res := parseJPEG(data)
	if res.xmpText != string(full) {
		t.Fatalf("got %q want %q", res.xmpText, string(full))
	}
}

func TestParseJPEGRejectsNonJPEG(t *testing.T) {
	res := parseJPEG([]byte("not a jpeg"))
	if res.comComment != "" || res.xmpText != "" {
		t.Fatal("expected an empty result for a non-JPEG buffer")
	}
}

func TestParseJPEGStopsAtSOS(t *testing.T) {
	sos := []byte{0xFF, 0xDA, 0x00, 0x02}
	com := buildJPEGSegment(0xFE, []byte("should not be seen"))
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write(sos)
	buf.Write(com)
	buf.Write([]byte{0xFF, 0xD9})
	res := parseJPEG(buf.Bytes())
	if res.comComment != "" {
		t.Fatal("expected the comment segment after SOS to be unreachable")
	}
}
