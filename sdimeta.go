package sdimeta

import "strings"

// Parse extracts Stable-Diffusion-style generation metadata from an
// in-memory image buffer (§6). formatHint ("png", "jpeg", "jpg",
// "webp", case-insensitive, an optional leading "." stripped) selects
// the reader; each reader validates the container's own signature and
// yields an empty result on mismatch rather than Parse guessing from
// magic bytes itself.
func Parse(data []byte, formatHint string) ImageMeta {
	format := detectFormat(formatHint)

	raw := map[string]string{}
	var candidates []Candidate

	switch format {
	case FormatPNG:
		raw = parsePNG(data)
		for key, val := range raw {
			candidates = append(candidates, Candidate{Source: key, Text: val})
		}
	case FormatJPEG:
		res := parseJPEG(data)
		addExifCandidate(&candidates, raw, res.exif)
		addXMPCandidates(&candidates, raw, res.xmpText)
		if res.comComment != "" {
			raw["Comment"] = res.comComment
			candidates = append(candidates, Candidate{Source: "Comment", Text: res.comComment})
		}
	case FormatWebP:
		res := parseWebP(data)
		addExifCandidate(&candidates, raw, res.exif)
		addXMPCandidates(&candidates, raw, res.xmpText)
	}

	_, block, ok := selectA1111(candidates)
	if !ok || looksGarbled(block) {
		if recovered, found := recover(data); found {
			block = recovered
			ok = true
			debugf("parse: recovery engine supplied the A1111 block")
		}
	}
	if ok {
		raw["parameters"] = block
	}

	return ImageMeta{
		Format: format,
		Fields: normalize(raw),
		Raw:    raw,
	}
}

func addExifCandidate(candidates *[]Candidate, raw map[string]string, texts exifTexts) {
	if best := texts.best(); best != "" {
		raw["EXIF"] = best
		*candidates = append(*candidates, Candidate{Source: "EXIF", Text: best})
	}
}

func addXMPCandidates(candidates *[]Candidate, raw map[string]string, xmpText string) {
	if xmpText == "" {
		return
	}
	raw["XMP"] = xmpText
	*candidates = append(*candidates, Candidate{Source: "XMP", Text: xmpText})
	if attr, ok := extractXMPAttribute(xmpText); ok {
		*candidates = append(*candidates, Candidate{Source: "XMP-attribute", Text: attr})
	}
}

// detectFormat dispatches purely on the caller-provided hint (§4.1);
// signature sniffing is each reader's job, not the entry point's.
func detectFormat(hint string) Format {
	switch strings.ToLower(strings.TrimPrefix(hint, ".")) {
	case "png":
		return FormatPNG
	case "jpeg", "jpg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	}
	return FormatUnknown
}
