package knowledge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/chimera/config"
)

const pricingPage = `<!doctype html><html><head><title>Pricing | Acme</title></head><body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Pricing</h1>
<p>The Starter plan costs forty dollars per month and includes email support for small teams.</p>
<p>The Enterprise plan adds single sign on, audit logs and a dedicated success manager for larger companies.</p>
<p>Every plan comes with a fourteen day free trial and can be cancelled at any time without fees.</p>
</article>
<script>var tracking = "should never be indexed";</script>
</body></html>`

func TestIngesterAddURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(pricingPage))
	}))
	defer srv.Close()

	g := NewIngester(newTestIndex(t, nil), nil, config.KnowledgeConfig{}, quiet)
	n, err := g.AddURL(context.Background(), srv.URL+"/pricing?utm_source=ads#plans")
	if err != nil {
		t.Fatalf("add url: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected paragraphs indexed, got %d", n)
	}
	sources := g.Index().Sources()
	if _, ok := sources[srv.URL+"/pricing"]; !ok {
		t.Fatalf("expected canonical source key, got %v", sources)
	}
	got, err := g.Index().Search(context.Background(), "enterprise audit logs", 1)
	if err != nil || len(got) != 1 || !strings.Contains(got[0], "Enterprise plan") {
		t.Fatalf("unexpected search %q %v", got, err)
	}
	all, _ := g.Index().Search(context.Background(), "tracking", 5)
	for _, c := range all {
		if strings.Contains(c, "should never be indexed") {
			t.Fatalf("script content indexed: %q", c)
		}
	}
}

func TestIngesterDisallowedDomain(t *testing.T) {
	g := NewIngester(newTestIndex(t, nil), HTTPFetcher{}, config.KnowledgeConfig{Disallow: []string{"blocked.example"}}, quiet)
	_, err := g.AddURL(context.Background(), "https://docs.blocked.example/faq")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
}

func TestIngesterAddTextRejectsEmpty(t *testing.T) {
	g := NewIngester(newTestIndex(t, nil), HTTPFetcher{}, config.KnowledgeConfig{}, quiet)
	if _, err := g.AddText(context.Background(), "   ", ""); err == nil {
		t.Fatalf("expected error for empty text")
	}
	n, err := g.AddText(context.Background(), "Support is available around the clock through chat and email.", "")
	if err != nil || n != 1 {
		t.Fatalf("add text: n=%d err=%v", n, err)
	}
	if g.Index().Sources()["inline"] != 1 {
		t.Fatalf("expected inline source, got %v", g.Index().Sources())
	}
}

func TestIngesterLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("faq.md", "Chimera integrates with most CRMs through a simple webhook endpoint.\n\nDemos are booked through the scheduler and last thirty minutes.")
	write("pricing.html", pricingPage)
	write("image.png", "not text")

	g := NewIngester(newTestIndex(t, nil), HTTPFetcher{}, config.KnowledgeConfig{}, quiet)
	total := g.Load(context.Background(), []string{dir, filepath.Join(dir, "missing.txt")})
	if total < 4 {
		t.Fatalf("expected chunks from both files, got %d", total)
	}
	sources := g.Index().Sources()
	if sources[filepath.Join(dir, "faq.md")] != 2 {
		t.Fatalf("unexpected sources %v", sources)
	}
	if _, ok := sources[filepath.Join(dir, "image.png")]; ok {
		t.Fatalf("unsupported file indexed")
	}
}
