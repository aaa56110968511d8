package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/helpers"
)

// ErrDisallowed is returned when a URL falls outside the configured domain rules.
var ErrDisallowed = errors.New("knowledge: domain not permitted")

var documentExts = map[string]bool{".txt": true, ".md": true, ".markdown": true, ".html": true, ".htm": true}

// Ingester loads text, files and web pages into an Index.
type Ingester struct {
	index   *Index
	fetcher Fetcher
	cfg     config.KnowledgeConfig
	logger  *log.Logger
}

// NewIngester wires an index to a fetcher. A nil fetcher selects headless
// Chrome when cfg.RenderJS is set and a plain HTTP client otherwise.
func NewIngester(index *Index, fetcher Fetcher, cfg config.KnowledgeConfig, logger *log.Logger) *Ingester {
	cfg = cfg.Normalize()
	if fetcher == nil {
		if cfg.RenderJS {
			fetcher = BrowserFetcher{}
		} else {
			fetcher = HTTPFetcher{}
		}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[KNOWLEDGE] ", log.LstdFlags)
	}
	return &Ingester{index: index, fetcher: fetcher, cfg: cfg, logger: logger}
}

// Index returns the index the ingester writes to.
func (g *Ingester) Index() *Index { return g.index }

// AddText indexes raw text under source.
func (g *Ingester) AddText(ctx context.Context, text, source string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("knowledge: empty text")
	}
	if source == "" {
		source = "inline"
	}
	return g.index.AddText(ctx, text, source, "")
}

// AddURL fetches a page, extracts its readable text and indexes it under the
// canonical form of the address.
func (g *Ingester) AddURL(ctx context.Context, rawURL string) (int, error) {
	canonical, err := helpers.CanonicalURL(rawURL)
	if err != nil {
		return 0, fmt.Errorf("knowledge: bad url %q: %w", rawURL, err)
	}
	if !g.cfg.Permits(canonical) {
		return 0, fmt.Errorf("%w: %s", ErrDisallowed, canonical)
	}
	fctx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()
	html, err := g.fetcher.Fetch(fctx, canonical)
	if err != nil {
		return 0, err
	}
	article, err := Extract(html, canonical, g.cfg.MaxChars)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", canonical, err)
	}
	n, err := g.index.AddText(ctx, article.Text, canonical, article.Title)
	if err != nil {
		return n, err
	}
	g.logger.Printf("indexed %d chunks from %s", n, canonical)
	return n, nil
}

// AddFile indexes a local text, markdown or HTML file.
func (g *Ingester) AddFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := string(raw)
	title := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		article, err := Extract(text, "file://"+path, g.cfg.MaxChars)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", path, err)
		}
		text = article.Text
		if article.Title != "" {
			title = article.Title
		}
	}
	return g.index.AddText(ctx, text, path, title)
}

// Load ingests every configured document: URLs are fetched, directories
// walked for supported files and plain paths read directly. Failures are
// logged and skipped; the total number of new chunks is returned.
func (g *Ingester) Load(ctx context.Context, docs []string) int {
	total := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return total
		}
		n, err := g.loadOne(ctx, doc)
		if err != nil {
			g.logger.Printf("skip %s: %v", doc, err)
			continue
		}
		total += n
	}
	g.logger.Printf("knowledge base ready: %d chunks", g.index.Count())
	return total
}

func (g *Ingester) loadOne(ctx context.Context, doc string) (int, error) {
	if helpers.IsWebURL(doc) {
		return g.AddURL(ctx, doc)
	}
	info, err := os.Stat(doc)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return g.AddFile(ctx, doc)
	}
	total := 0
	err = filepath.WalkDir(doc, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !documentExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		n, ferr := g.AddFile(ctx, path)
		if ferr != nil {
			g.logger.Printf("skip %s: %v", path, ferr)
			return nil
		}
		total += n
		return nil
	})
	return total, err
}
