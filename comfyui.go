package sdimeta

import (
	"sort"
	"strconv"
	"strings"
)

// extractComfyUIFields implements §4.11: collect candidate graphs,
// find the first graph with a KSampler node, and resolve its sampler
// settings and prompts. Returns nil when no candidate graph yields a
// sampler node.
func extractComfyUIFields(fields map[string]any) map[string]any {
	for _, graph := range candidateGraphs(fields) {
		if out := extractFromGraph(graph); out != nil {
			return out
		}
	}
	return nil
}

// candidateGraphs gathers every object-shaped value that could be a
// ComfyUI graph, in the order §4.11 describes.
func candidateGraphs(fields map[string]any) []ComfyGraph {
	var graphs []ComfyGraph

	if v, ok := fields["prompt_json"]; ok {
		if obj, ok := asObject(v); ok {
			if g, ok := toGraph(obj); ok {
				graphs = append(graphs, g)
			}
		}
	}

	if v, ok := fields["workflow_json"]; ok {
		if obj, ok := asObject(v); ok {
			if g, ok := workflowNodesToGraph(obj); ok {
				graphs = append(graphs, g)
			}
		}
	}

	for k, v := range fields {
		if !strings.HasSuffix(k, "_json") || k == "prompt_json" || k == "workflow_json" {
			continue
		}
		obj, ok := asObject(v)
		if !ok {
			continue
		}
		if p, ok := obj["prompt"]; ok {
			if pobj, ok := asObject(p); ok {
				if g, ok := toGraph(pobj); ok {
					graphs = append(graphs, g)
				}
			}
		}
		if w, ok := obj["workflow"]; ok {
			if wobj, ok := asObject(w); ok {
				if g, ok := workflowNodesToGraph(wobj); ok {
					graphs = append(graphs, g)
				}
			}
		}
	}

	return graphs
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// toGraph converts a JSON object shaped {id: {class_type, inputs}, ...}
// into a ComfyGraph, iff it is a graph (§4.11: at least one value is an
// object whose class_type is a string).
func toGraph(obj map[string]any) (ComfyGraph, bool) {
	graph := ComfyGraph{}
	isGraph := false
	for id, v := range obj {
		node, ok := asObject(v)
		if !ok {
			continue
		}
		classType, _ := node["class_type"].(string)
		if classType != "" {
			isGraph = true
		}
		inputs, _ := asObject(node["inputs"])
		graph[id] = ComfyNode{ClassType: classType, Inputs: inputs}
	}
	if !isGraph {
		return nil, false
	}
	return graph, true
}

// workflowNodesToGraph projects a {nodes: [{id, ...}, ...]} shaped
// object to an id->node ComfyGraph (§4.11).
func workflowNodesToGraph(obj map[string]any) (ComfyGraph, bool) {
	nodesVal, ok := obj["nodes"]
	if !ok {
		return nil, false
	}
	nodes, ok := nodesVal.([]any)
	if !ok {
		return nil, false
	}
	graph := ComfyGraph{}
	isGraph := false
	for _, nv := range nodes {
		node, ok := asObject(nv)
		if !ok {
			continue
		}
		id := stringifyID(node["id"])
		if id == "" {
			continue
		}
		classType, _ := node["class_type"].(string)
		if classType != "" {
			isGraph = true
		}
		inputs, _ := asObject(node["inputs"])
		graph[id] = ComfyNode{ClassType: classType, Inputs: inputs}
	}
	if !isGraph {
		return nil, false
	}
	return graph, true
}

func stringifyID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return ""
}

// ─── sampler node + field mapping (§4.11) ────────────────────────────────────

// samplerInputMap maps KSampler input names to normalized field keys.
var samplerInputMap = map[string]string{
	"seed":          "seed",
	"steps":         "steps",
	"cfg":           "cfg_scale",
	"sampler_name":  "sampler",
	"scheduler":     "scheduler",
	"denoise":       "denoise",
}

// extractFromGraph finds the first KSampler* node, maps its scalar
// inputs, and resolves the positive/negative prompts through
// connected text-encoder nodes. Returns nil if no sampler node exists.
func extractFromGraph(graph ComfyGraph) map[string]any {
	_, node, ok := findSamplerNode(graph)
	if !ok {
		return nil
	}

	out := map[string]any{"generator": "ComfyUI"}
	for inputKey, fieldKey := range samplerInputMap {
		if v, ok := node.Inputs[inputKey]; ok {
			out[fieldKey] = v
		}
	}

	if text, ok := resolvePromptInput(graph, node.Inputs["positive"]); ok {
		out["prompt"] = text
	}
	if text, ok := resolvePromptInput(graph, node.Inputs["negative"]); ok {
		out["negative_prompt"] = text
	}

	debugf("comfyui: sampler node found, %d fields resolved", len(out))
	return out
}

// findSamplerNode returns the first node, by ascending sorted id, whose
// class_type starts with "KSampler". Map iteration order is randomized,
// so graphs with more than one KSampler* node (refiner/upscale
// workflows commonly have two) need a stable tie-break to keep the
// resolved sampler deterministic across calls on the same input (§5).
func findSamplerNode(graph ComfyGraph) (string, ComfyNode, bool) {
	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if strings.HasPrefix(graph[id].ClassType, "KSampler") {
			return id, graph[id], true
		}
	}
	return "", ComfyNode{}, false
}

// resolvePromptInput resolves a `positive`/`negative` sampler input,
// which is typically [source_node_id, output_name] (or a bare id), to
// the connected text-encoder node's text.
func resolvePromptInput(graph ComfyGraph, input any) (string, bool) {
	sourceID, ok := connectionSourceID(input)
	if !ok {
		return "", false
	}
	node, ok := graph[sourceID]
	if !ok {
		return "", false
	}
	if text, ok := node.Inputs["text"].(string); ok {
		return text, true
	}
	g, gOK := node.Inputs["text_g"].(string)
	l, lOK := node.Inputs["text_l"].(string)
	switch {
	case gOK && lOK:
		return g + " " + l, true
	case gOK:
		return g, true
	case lOK:
		return l, true
	}
	return "", false
}

func connectionSourceID(input any) (string, bool) {
	switch v := input.(type) {
	case []any:
		if len(v) == 0 {
			return "", false
		}
		return stringifyID(v[0]), true
	case string:
		return v, true
	case float64:
		return stringifyID(v), true
	}
	return "", false
}
