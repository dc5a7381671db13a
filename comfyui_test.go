package sdimeta

import "testing"

func samplerGraphFields() map[string]any {
	return map[string]any{
		"prompt_json": map[string]any{
			"3": map[string]any{
				"class_type": "KSampler",
				"inputs": map[string]any{
					"seed":         float64(12345),
					"steps":        float64(20),
					"cfg":          float64(7),
					"sampler_name": "euler",
					"positive":     []any{"5", float64(0)},
					"negative":     []any{"6", float64(0)},
				},
			},
			"5": map[string]any{
				"class_type": "CLIPTextEncode",
				"inputs":     map[string]any{"text": "a cat, masterpiece"},
			},
			"6": map[string]any{
				"class_type": "CLIPTextEncode",
				"inputs":     map[string]any{"text": "blurry"},
			},
		},
	}
}

func TestExtractComfyUIFieldsResolvesPrompts(t *testing.T) {
	out := extractComfyUIFields(samplerGraphFields())
	if out == nil {
		t.Fatal("expected a resolved field set")
	}
	if out["prompt"] != "a cat, masterpiece" {
		t.Fatalf("got %v", out["prompt"])
	}
	if out["negative_prompt"] != "blurry" {
		t.Fatalf("got %v", out["negative_prompt"])
	}
	if out["sampler"] != "euler" {
		t.Fatalf("got %v", out["sampler"])
	}
}

func TestExtractComfyUIFieldsNoSamplerNode(t *testing.T) {
	fields := map[string]any{
		"prompt_json": map[string]any{
			"5": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "a cat"}},
		},
	}
	if out := extractComfyUIFields(fields); out != nil {
		t.Fatalf("expected nil without a sampler node, got %v", out)
	}
}

func TestToGraphRejectsNonGraphObjects(t *testing.T) {
	if _, ok := toGraph(map[string]any{"foo": "bar"}); ok {
		t.Fatal("expected a plain object to be rejected as a graph")
	}
}

func TestWorkflowNodesToGraph(t *testing.T) {
	obj := map[string]any{
		"nodes": []any{
			map[string]any{"id": float64(1), "class_type": "KSamplerAdvanced", "inputs": map[string]any{}},
		},
	}
	g, ok := workflowNodesToGraph(obj)
	if !ok {
		t.Fatal("expected a graph")
	}
	if _, ok := g["1"]; !ok {
		t.Fatal("expected numeric id to be stringified")
	}
}

func TestStringifyID(t *testing.T) {
	if got := stringifyID(float64(42)); got != "42" {
		t.Fatalf("got %q", got)
	}
	if got := stringifyID("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := stringifyID(float64(1.5)); got != "1.5" {
		t.Fatalf("got %q", got)
	}
}

func TestFindSamplerNodeIsDeterministicAcrossMultipleSamplers(t *testing.T) {
	graph := ComfyGraph{
		"9":  ComfyNode{ClassType: "KSamplerAdvanced"},
		"20": ComfyNode{ClassType: "CLIPTextEncode"},
		"3":  ComfyNode{ClassType: "KSampler"},
	}
	for i := 0; i < 20; i++ {
		id, _, ok := findSamplerNode(graph)
		if !ok {
			t.Fatal("expected a sampler node")
		}
		if id != "3" {
			t.Fatalf("expected the lowest sorted KSampler* id %q, got %q", "3", id)
		}
	}
}

func TestConnectionSourceID(t *testing.T) {
	if id, ok := connectionSourceID([]any{"7", float64(0)}); !ok || id != "7" {
		t.Fatalf("got %q ok=%v", id, ok)
	}
	if _, ok := connectionSourceID(nil); ok {
		t.Fatal("expected nil input to fail")
	}
}
