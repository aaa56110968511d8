package helpers

import (
	"strings"
	"testing"
)

func TestPlainTextStripsMarkup(t *testing.T) {
	in := `<p onclick="x()">Hello <b>there</b><script>alert(1)</script></p>`
	if got := PlainText(in); got != "Hello there" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestPlainTextKeepsEntitiesReadable(t *testing.T) {
	if got := PlainText("It's 5 < 6 & fine"); got != "It's 5 < 6 & fine" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestPlainTextEmpty(t *testing.T) {
	if got := PlainText("   "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestHTMLParagraphs(t *testing.T) {
	in := `<h1>Pricing</h1><p>Starter plan is ten dollars.</p><ul><li>One</li><li>Two</li></ul>`
	got := HTMLParagraphs(in)
	parts := strings.Split(got, "\n\n")
	if len(parts) < 4 {
		t.Fatalf("expected paragraph breaks, got %q", got)
	}
	if strings.TrimSpace(parts[0]) != "Pricing" || strings.TrimSpace(parts[1]) != "Starter plan is ten dollars." {
		t.Fatalf("unexpected paragraphs %q", parts)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank runs not collapsed: %q", got)
	}
}
