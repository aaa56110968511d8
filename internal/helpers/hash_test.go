package helpers

import "testing"

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	if got := NormalizeText(" Hello\tWorld\nNew  Line "); got != "hello world new line" {
		t.Fatalf("NormalizeText() = %q", got)
	}
}

func TestContentHashIgnoresCosmeticChanges(t *testing.T) {
	t.Parallel()
	a := ContentHash("Our Starter plan costs $10.")
	b := ContentHash("  our starter   PLAN costs $10.  ")
	if a != b {
		t.Fatalf("expected identical hashes, got %s vs %s", a, b)
	}
	if a == ContentHash("Our Pro plan costs $30.") {
		t.Fatalf("different content hashed equal")
	}
	if len(a) != 64 {
		t.Fatalf("unexpected hash length %d", len(a))
	}
}
