package sdimeta

import (
	"encoding/json"
	"regexp"
	"strings"
)

// kvLineRe matches a normalizer settings line "Key: Value" (§4.10 step 1).
var kvLineRe = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

// recognizedPassthroughKeys are copied from raw to fields verbatim,
// with whitespace in the key collapsed to underscores (§4.10 step 1).
var recognizedPassthroughKeys = []string{"prompt", "negative_prompt", "Prompt", "Negative prompt"}

// normalize builds the `fields` map from the `raw` map (§4.10).
func normalize(raw map[string]string) map[string]any {
	fields := map[string]any{}

	if params, ok := raw["parameters"]; ok {
		normalizeParameters(params, fields)
	}

	for _, key := range recognizedPassthroughKeys {
		if v, ok := raw[key]; ok {
			fields[collapseWhitespace(key)] = v
		}
	}

	for k, v := range raw {
		if j, ok := parseJSONValue(v); ok {
			fields[k+"_json"] = j
		}
	}

	if comfy := extractComfyUIFields(fields); comfy != nil {
		for k, v := range comfy {
			fields[k] = v
		}
	}

	return fields
}

// normalizeParameters implements §4.10 step 1: copy parameters_raw,
// split the first line into prompt, and parse every subsequent line
// as one or more comma-separated "Key: Value" settings.
func normalizeParameters(params string, fields map[string]any) {
	fields["parameters_raw"] = params

	lines := splitLines(params)
	if len(lines) > 0 {
		fields["prompt"] = lines[0]
	}
	for _, line := range lines[minInt(1, len(lines)):] {
		parseSettingsLine(line, fields)
	}
}

// parseSettingsLine splits a line on "," into candidate "Key: Value"
// pieces. A settings line like "Steps: 20, Sampler: Euler a" carries
// several key:value pairs on one line; a piece with no colon of its
// own (e.g. the second half of "Negative prompt: blurry, low
// quality") is a continuation of the previous key's value rather than
// a new key.
func parseSettingsLine(line string, fields map[string]any) {
	var lastKey string
	haveLast := false
	for _, piece := range strings.Split(line, ",") {
		m := kvLineRe.FindStringSubmatch(piece)
		if m == nil {
			if haveLast {
				fields[lastKey] = fields[lastKey].(string) + "," + piece
			}
			continue
		}
		key := strings.TrimSpace(m[1])
		val := strings.TrimSpace(m[2])
		if key == "" {
			if haveLast {
				fields[lastKey] = fields[lastKey].(string) + "," + piece
			}
			continue
		}
		fields[key] = val
		lastKey = key
		haveLast = true
	}
}

// splitLines splits on \r\n or \n, per §4.10's `\r?\n`.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// parseJSONValue implements §4.10 step 2: a raw value whose trimmed
// text begins/ends with matching {}/[] brackets and parses as JSON.
func parseJSONValue(v string) (any, bool) {
	t := strings.TrimSpace(v)
	if t == "" {
		return nil, false
	}
	isObj := strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")
	isArr := strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")
	if !isObj && !isArr {
		return nil, false
	}
	var out any
	if err := json.Unmarshal([]byte(t), &out); err != nil {
		return nil, false
	}
	return out, true
}
