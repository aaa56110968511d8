package helpers

import "testing"

func TestCanonicalURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"defaults https and cleans path", "Example.com/docs/../pricing", "https://example.com/pricing"},
		{"drops default port fragment and tracking", "http://Acme.io:80/plans?id=3&utm_source=ads#top", "http://acme.io/plans?id=3"},
		{"sorts query and keeps trailing slash", "https://acme.io/faq/?b=2&a=1&fbclid=x", "https://acme.io/faq/?a=1&b=2"},
		{"schemeless double slash", "//blog.acme.io/post/42?utm_medium=email", "https://blog.acme.io/post/42"},
		{"keeps non default port", "https://acme.io:8443/", "https://acme.io:8443/"},
		{"collapses repeated slashes", "https://acme.io//a//b", "https://acme.io/a/b"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalURL(tc.in)
			if err != nil {
				t.Fatalf("CanonicalURL(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalURLErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "https://"} {
		if _, err := CanonicalURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestIsWebURL(t *testing.T) {
	if !IsWebURL("HTTPS://acme.io") || IsWebURL("./docs/faq.md") || IsWebURL("/tmp/x.txt") {
		t.Fatalf("IsWebURL misclassified input")
	}
}
