package helpers

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	blockClosers = regexp.MustCompile(`(?i)</(p|div|section|article|li|ul|ol|h[1-6]|tr|table|blockquote|pre)>|<br\s*/?>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// PlainText removes all markup from s and decodes the entities the strict
// policy leaves behind, so "it's" stays "it's" rather than "it&#39;s".
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(StrictHTMLPolicy().Sanitize(s)))
}

// HTMLParagraphs converts an HTML fragment to plain text with a blank line
// after every block element.
func HTMLParagraphs(fragment string) string {
	marked := blockClosers.ReplaceAllString(fragment, "$0\n\n")
	text := PlainText(marked)
	return blankRuns.ReplaceAllString(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
}
