package knowledge

import (
	"regexp"
	"strings"
)

const (
	minParagraphChars = 40
	chunkOverlapChars = 200
)

var (
	reSpaces     = regexp.MustCompile(`[ \t\r\f\v]+`)
	reParagraphs = regexp.MustCompile(`\n\s*\n`)
)

// Split breaks text into paragraphs longer than 40 characters; paragraphs
// longer than maxChars are windowed with a 200 character overlap.
func Split(text string, maxChars int) []string {
	var out []string
	for _, para := range reParagraphs.Split(text, -1) {
		para = normalize(para)
		if len(para) <= minParagraphChars {
			continue
		}
		out = append(out, window(para, maxChars, chunkOverlapChars)...)
	}
	return out
}

func window(s string, size, overlap int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	if overlap >= size {
		overlap = size / 4
	}
	var out []string
	for start := 0; start < len(s); {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[start:end])
		if end == len(s) {
			break
		}
		start = end - overlap
	}
	return out
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(reSpaces.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}
