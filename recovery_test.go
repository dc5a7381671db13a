package sdimeta

import "testing"

func TestLooksGarbledReplacementChar(t *testing.T) {
	if !looksGarbled("abc�def") {
		t.Fatal("expected U+FFFD to trigger garbled detection")
	}
}

func TestLooksGarbledNUL(t *testing.T) {
	if !looksGarbled("abc\x00def") {
		t.Fatal("expected a NUL byte to trigger garbled detection")
	}
}

func TestLooksGarbledCleanText(t *testing.T) {
	if looksGarbled("a cat, masterpiece\nNegative prompt: blurry\nSteps: 20") {
		t.Fatal("did not expect clean A1111 text to be flagged as garbled")
	}
}

func TestLooksGarbledHighByteRatio(t *testing.T) {
	s := string([]rune{0x00E9, 0x00E8, 0x00EA, 0x00EB, 0x00EC, 0x00ED, 0x00EE, 0x00EF})
	if !looksGarbled(s) {
		t.Fatal("expected mostly-high-byte text with no ascii letters to be flagged")
	}
}

func TestRecoverTargetedUTF16Scan(t *testing.T) {
	block := "a cat, masterpiece\nNegative prompt: blurry\nSteps: 20, Sampler: Euler a"
	data := utf16LEBytes(block)

	recovered, ok := recoverTargetedUTF16Scan(data)
	if !ok {
		t.Fatal("expected a recovered block")
	}
	if recovered != block {
		t.Fatalf("got %q", recovered)
	}
}

func TestRecoverTargetedUTF16ScanNoHit(t *testing.T) {
	if _, ok := recoverTargetedUTF16Scan([]byte("plain ascii with no markers")); ok {
		t.Fatal("expected no recovery without an encoded marker")
	}
}

func TestRecoverWholeFileRedecodeLocatesBlock(t *testing.T) {
	block := "a cat\nNegative prompt: blurry\nSteps: 20, Sampler: Euler a"
	encoded := utf16LEBytes(block)
	recovered, ok := recoverWholeFileRedecode(encoded, encUTF16LE)
	if !ok {
		t.Fatal("expected a recovered block")
	}
	if recovered != block {
		t.Fatalf("got %q", recovered)
	}
}

func TestFindEnclosingObjectBasic(t *testing.T) {
	text := `prefix {"a": 1, "b": {"c": 2}} suffix`
	pos := len(`prefix {"a": `)
	obj, ok := findEnclosingObject(text, pos)
	if !ok {
		t.Fatal("expected an enclosing object")
	}
	if obj != `{"a": 1, "b": {"c": 2}}` {
		t.Fatalf("got %q", obj)
	}
}

func TestFindEnclosingObjectNoBrace(t *testing.T) {
	if _, ok := findEnclosingObject("no braces here", 3); ok {
		t.Fatal("expected no match without a brace")
	}
}

func TestForgeJSONToA1111Basic(t *testing.T) {
	m := map[string]any{
		"prompt":         "a cat, masterpiece",
		"negativePrompt": "blurry",
		"steps":          float64(20),
		"sampler":        "Euler a",
		"cfgScale":       float64(7),
		"seed":           float64(12345),
		"width":          float64(512),
		"height":         float64(512),
		"model":          "foo",
	}
	block, ok := forgeJSONToA1111(m)
	if !ok {
		t.Fatal("expected a conversion")
	}
	want := "a cat, masterpiece\nNegative prompt: blurry\nSteps: 20, Sampler: Euler a, CFG scale: 7, Seed: 12345, Size: 512x512, Model: foo"
	if block != want {
		t.Fatalf("got %q", block)
	}
}

func TestForgeJSONToA1111Unwraps(t *testing.T) {
	m := map[string]any{
		"sd-metadata": map[string]any{"prompt": "a cat"},
	}
	block, ok := forgeJSONToA1111(m)
	if !ok {
		t.Fatal("expected a conversion")
	}
	if block != "a cat\nNegative prompt: " {
		t.Fatalf("got %q", block)
	}
}

func TestForgeJSONToA1111ParametersPassthrough(t *testing.T) {
	m := map[string]any{"parameters": "a cat\nNegative prompt: blurry"}
	block, ok := forgeJSONToA1111(m)
	if !ok {
		t.Fatal("expected a conversion")
	}
	if block != "a cat\nNegative prompt: blurry" {
		t.Fatalf("got %q", block)
	}
}

func TestForgeJSONToA1111NoPromptFails(t *testing.T) {
	if _, ok := forgeJSONToA1111(map[string]any{"foo": "bar"}); ok {
		t.Fatal("expected no conversion without a prompt field")
	}
}

func TestRecoverJSONScan(t *testing.T) {
	data := []byte(`{"prompt": "a cat", "Negative prompt": "blurry", "steps": 20}`)
	block, ok := recoverJSONScan(data)
	if !ok {
		t.Fatal("expected a recovered block")
	}
	if block != "a cat\nNegative prompt: blurry\nSteps: 20" {
		t.Fatalf("got %q", block)
	}
}
