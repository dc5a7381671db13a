package sdimeta

import (
	"regexp"
	"strings"
)

// xmpAttributeKeys is the ordered list of attribute names the XMP
// attribute extractor looks for (§4.12).
var xmpAttributeKeys = []string{"sd-metadata", "sd_metadata", "parameters", "Parameters"}

// xmpAttributeRe finds `key = "value"` or `key = 'value'`, single-line
// dot-all, case-sensitive on the key (built per-key below).
func xmpAttributeRe(key string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(key) + `\s*=\s*(["'])([\s\S]*?)\1`)
}

var xmpAttributeRegexes = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(xmpAttributeKeys))
	for _, k := range xmpAttributeKeys {
		m[k] = xmpAttributeRe(k)
	}
	return m
}()

var xmpEntityUnescaper = strings.NewReplacer(
	"&quot;", `"`,
	"&apos;", "'",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
)

// extractXMPAttribute scans xmpText for the first occurrence of any
// recognized attribute key and returns its HTML-unescaped value.
func extractXMPAttribute(xmpText string) (string, bool) {
	for _, key := range xmpAttributeKeys {
		re := xmpAttributeRegexes[key]
		if m := re.FindStringSubmatch(xmpText); m != nil {
			return xmpEntityUnescaper.Replace(m[2]), true
		}
	}
	return "", false
}
