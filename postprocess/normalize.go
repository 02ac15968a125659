package postprocess

import "strings"

// NormalizeSentence collapses raw generation output into one clean sentence:
// carriage returns are dropped, the text is cut after the first sentence
// terminator (or at the first newline, whichever comes first), surrounding
// whitespace is trimmed, and interior tabs, newlines and space runs become
// single spaces.
//
// When anchor is non-empty and occurs at a positive offset, the leading
// filler before it is discarded before the sentence cut. The repair fires at
// most once; an absent anchor or one already at offset 0 leaves the text
// alone. It is a heuristic with no correctness guarantee.
func NormalizeSentence(text string, terminators []string, anchor string) string {
	s := strings.ReplaceAll(text, "\r", "")
	if anchor != "" {
		if at := strings.Index(s, anchor); at > 0 {
			s = s[at:]
		}
	}
	return normalizeOnce(s, terminators)
}

func normalizeOnce(s string, terminators []string) string {
	s = cutFirstSentence(s, terminators)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return collapseSpaces(s)
}

// cutFirstSentence truncates s after the first terminator occurrence, or at
// the first newline if that comes earlier. Terminators are matched as opaque
// byte sequences.
func cutFirstSentence(s string, terminators []string) string {
	end := -1
	for _, t := range terminators {
		if t == "" {
			continue
		}
		if p := strings.Index(s, t); p >= 0 {
			if after := p + len(t); end < 0 || after < end {
				end = after
			}
		}
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && (end < 0 || nl < end) {
		return s[:nl]
	}
	if end >= 0 {
		return s[:end]
	}
	return s
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
