package sdimeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"
)

func buildPNGChunk(typ string, data []byte) []byte {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	buf.Write(lenBuf)
	buf.WriteString(typ)
	buf.Write(data)
	buf.Write([]byte{0, 0, 0, 0}) // CRC, ignored by the reader
	return buf.Bytes()
}

func buildPNG(chunks ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	for _, c := range chunks {
		buf.Write(c)
	}
	buf.Write(buildPNGChunk("IEND", nil))
	return buf.Bytes()
}

func TestParsePNGTEXt(t *testing.T) {
	data := buildPNG(buildPNGChunk("tEXt", []byte("parameters\x00a cat\nSteps: 20")))
	raw := parsePNG(data)
	if raw["parameters"] != "a cat\nSteps: 20" {
		t.Fatalf("got %q", raw["parameters"])
	}
}

func TestParsePNGZTXt(t *testing.T) {
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	w.Write([]byte("a cat\nSteps: 20"))
	w.Close()

	chunkData := append([]byte("parameters\x00\x00"), compressed.Bytes()...)
	data := buildPNG(buildPNGChunk("zTXt", chunkData))
	raw := parsePNG(data)
	if raw["parameters"] != "a cat\nSteps: 20" {
		t.Fatalf("got %q", raw["parameters"])
	}
}

func TestParsePNGITXtUncompressed(t *testing.T) {
	// key\0 compressionFlag compressionMethod languageTag\0 translatedKeyword\0 text
	var chunkData []byte
	chunkData = append(chunkData, []byte("parameters")...)
	chunkData = append(chunkData, 0, 0, 0, 0, 0) // key NUL, flag=0, method=0, lang="", translated=""
	chunkData = append(chunkData, []byte("a cat\nSteps: 20")...)

	data := buildPNG(buildPNGChunk("iTXt", chunkData))
	raw := parsePNG(data)
	if raw["parameters"] != "a cat\nSteps: 20" {
		t.Fatalf("got %q", raw["parameters"])
	}
}

func TestParsePNGZTXtBadZlibDropsChunk(t *testing.T) {
	chunkData := append([]byte("parameters\x00\x00"), []byte("not actually zlib")...)
	data := buildPNG(buildPNGChunk("zTXt", chunkData))
	raw := parsePNG(data)
	if _, ok := raw["parameters"]; ok {
		t.Fatal("expected chunk to be dropped on decompression failure")
	}
}

func TestReadPNGChunksStopsAtIEND(t *testing.T) {
	data := buildPNG(buildPNGChunk("tEXt", []byte("a\x00b")))
	chunks := readPNGChunks(data)
	if len(chunks) != 2 {
		t.Fatalf("expected tEXt + IEND, got %d chunks", len(chunks))
	}
	if chunks[len(chunks)-1].typ != "IEND" {
		t.Fatal("expected walk to stop at IEND")
	}
}

func TestReadPNGChunksRejectsBadSignature(t *testing.T) {
	if chunks := readPNGChunks([]byte("not a png")); chunks != nil {
		t.Fatal("expected nil for a bad signature")
	}
}
