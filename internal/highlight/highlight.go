// Package highlight wraps evaluator key phrases inside the original submission
// text with emphasis markers. It is a pure text transform with no I/O.
package highlight

import (
	"regexp"
	"sort"
	"strings"
)

const (
	openMark  = "<em>"
	closeMark = "</em>"
)

var emphasisSpan = regexp.MustCompile(`(?is)<em>.*?</em>`)

// Apply wraps every boundary-delimited occurrence of each phrase in emphasis
// markers. Phrases are matched case-insensitively, longest first so a short
// phrase never splits a longer one that should be wrapped whole. Occurrences
// already inside an emphasis span are left untouched, which makes the transform
// idempotent under re-application with the same phrase list.
func Apply(text string, phrases []string) string {
	cleaned := normalizePhrases(phrases)
	if len(cleaned) == 0 {
		return text
	}

	out := text
	for _, phrase := range cleaned {
		out = wrapPhrase(out, phrase)
	}

	return out
}

func normalizePhrases(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	cleaned := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		trimmed := strings.TrimSpace(phrase)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})

	return cleaned
}

// boundary = start/end of string, whitespace, or sentence punctuation on both sides.
const boundaryClass = `[\s.,!?;:"'()\[\]{}]`

func wrapPhrase(text, phrase string) string {
	pattern := regexp.MustCompile(`(?i)(^|` + boundaryClass + `)(` + regexp.QuoteMeta(phrase) + `)($|` + boundaryClass + `)`)
	spans := emphasisSpan.FindAllStringIndex(text, -1)

	var builder strings.Builder
	last := 0
	offset := 0
	for offset < len(text) {
		match := pattern.FindStringSubmatchIndex(text[offset:])
		if match == nil {
			break
		}

		phraseStart := offset + match[4]
		phraseEnd := offset + match[5]

		if insideSpan(spans, phraseStart) {
			offset = phraseEnd
			continue
		}

		builder.WriteString(text[last:phraseStart])
		builder.WriteString(openMark)
		builder.WriteString(text[phraseStart:phraseEnd])
		builder.WriteString(closeMark)
		last = phraseEnd
		offset = phraseEnd
	}

	if last == 0 {
		return text
	}

	builder.WriteString(text[last:])
	return builder.String()
}

func insideSpan(spans [][]int, pos int) bool {
	for _, span := range spans {
		if pos >= span[0] && pos < span[1] {
			return true
		}
	}
	return false
}
