package config

import "testing"

func TestKnowledgeNormalize(t *testing.T) {
	cfg := KnowledgeConfig{
		Allow:    []string{"Docs.Example.com", "https://www.example.com/pricing"},
		Disallow: []string{"www.Bad.com", "BAD.com"},
	}

	norm := cfg.Normalize()
	if len(norm.Allow) != 2 || norm.Allow[0] != "docs.example.com" || norm.Allow[1] != "example.com" {
		t.Fatalf("unexpected allow list: %#v", norm.Allow)
	}
	if len(norm.Disallow) != 1 || norm.Disallow[0] != "bad.com" {
		t.Fatalf("unexpected disallow list: %#v", norm.Disallow)
	}
	if norm.TopK != 3 {
		t.Fatalf("expected default top_k 3, got %d", norm.TopK)
	}
}

func TestKnowledgeValidate(t *testing.T) {
	valid := KnowledgeConfig{Allow: []string{"example.com"}, Disallow: []string{"blocked.com"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	conflict := KnowledgeConfig{Allow: []string{"example.com"}, Disallow: []string{"https://example.com"}}
	if err := conflict.Validate(); err == nil {
		t.Fatalf("expected conflict validation error")
	}
}

func TestKnowledgePermits(t *testing.T) {
	cfg := KnowledgeConfig{Allow: []string{"example.com"}, Disallow: []string{"private.example.com"}}.Normalize()

	cases := map[string]bool{
		"https://example.com/docs":         true,
		"https://help.example.com/faq":     true,
		"https://private.example.com/wiki": false,
		"https://other.org/":               false,
		"./docs/pricing.md":                true,
	}
	for raw, want := range cases {
		if got := cfg.Permits(raw); got != want {
			t.Fatalf("Permits(%q) = %v, want %v", raw, got, want)
		}
	}
}
