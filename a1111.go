package sdimeta

import (
	"regexp"
	"strings"
)

var negativePromptRe = regexp.MustCompile(`Negative prompt:`)

// settingsLineRe matches the preferred "Steps:" settings line,
// multiline, case-insensitive, anchored to the start of a line
// (§4.7 step 3).
var settingsLineRe = regexp.MustCompile(`(?im)^[\t ]*Steps:[^\n]*`)

// settingsLabels is the fallback label list, tried when no "Steps:"
// line is found; the earliest-starting match among them wins.
var settingsLabels = []string{
	"Sampler:", "CFG scale:", "Seed:", "Size:", "Model:",
	"Schedule type:", "Denoising strength:", "Hires steps:",
}

var settingsLabelRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(settingsLabels))
	for i, label := range settingsLabels {
		res[i] = regexp.MustCompile(`(?m)^[\t ]*` + regexp.QuoteMeta(label) + `[^\n]*`)
	}
	return res
}()

// locateA1111Block implements §4.7: find "Negative prompt:", find the
// settings line in the tail, and return the byte-exact substring of
// text from position 0 through the end of that settings line. Returns
// ("", false) if "Negative prompt:" is absent.
func locateA1111Block(text string) (string, bool) {
	loc := negativePromptRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	nl := strings.IndexByte(text[loc[1]:], '\n')
	if nl < 0 {
		// No newline after the match: nothing to search, whole text wins.
		return text, true
	}
	tailStart := loc[1] + nl + 1
	tail := text[tailStart:]

	settingsEnd, found := findSettingsLineEnd(tail)
	if !found {
		return text, true
	}
	return text[:tailStart+settingsEnd], true
}

// findSettingsLineEnd finds the preferred "Steps:" line first; failing
// that, the earliest-starting line matching one of settingsLabels.
// Returns the offset (within tail) of the end of that line.
func findSettingsLineEnd(tail string) (int, bool) {
	if loc := settingsLineRe.FindStringIndex(tail); loc != nil {
		return loc[1], true
	}

	bestStart, bestEnd := -1, -1
	for _, re := range settingsLabelRes {
		if loc := re.FindStringIndex(tail); loc != nil {
			if bestStart < 0 || loc[0] < bestStart {
				bestStart, bestEnd = loc[0], loc[1]
			}
		}
	}
	if bestStart < 0 {
		return 0, false
	}
	return bestEnd, true
}

// ─── selection across sources (§4.7 Selector) ────────────────────────────────

// sourcePriority orders candidate sources when scores tie, highest
// first: EXIF > XMP attributes > XMP text > JPEG COM.
var sourcePriority = map[string]int{
	"EXIF":          4,
	"XMP-attribute": 3,
	"XMP":           2,
	"Comment":       1,
}

// selectA1111 locates a block in every candidate's text, scores each,
// and returns the winning source label and block text.
func selectA1111(candidates []Candidate) (source, block string, ok bool) {
	bestScore := -1.0
	bestPriority := -1

	for _, c := range candidates {
		b, found := locateA1111Block(c.Text)
		if !found {
			continue
		}
		score := scoreA1111Candidate(b)
		priority := sourcePriority[c.Source]
		if !ok || score > bestScore || (score == bestScore && priority > bestPriority) {
			bestScore = score
			bestPriority = priority
			source = c.Source
			block = b
			ok = true
		}
	}
	return source, block, ok
}

// scoreA1111Candidate implements the §4.7 selector scoring.
func scoreA1111Candidate(block string) float64 {
	low := strings.ToLower(block)
	score := 0.0
	if strings.Contains(low, "negative prompt:") {
		score += 5
	}
	if strings.Contains(low, "steps:") {
		score += 4
	}
	if strings.Contains(low, "sampler:") {
		score += 2
	}
	if strings.Contains(low, "cfg scale:") {
		score += 2
	}
	if strings.Contains(low, "seed:") {
		score += 2
	}
	if strings.Contains(low, "size:") {
		score += 2
	}

	nonEmptyLines := 0
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmptyLines++
		}
	}
	switch {
	case nonEmptyLines == 3:
		score += 3
	case nonEmptyLines == 2:
		score += 2
	case nonEmptyLines >= 4:
		score += 1
	}

	if n := len(block); n > 50 && n < 4000 {
		score += 1
	}
	return score
}
