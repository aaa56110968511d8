package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/chimera/internal/helpers"
)

const userAgent = "ChimeraKnowledge/1.0 (+https://github.com/mohammad-safakhou/chimera)"

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher downloads pages with a plain GET.
type HTTPFetcher struct {
	Client  *http.Client
	MaxBody int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := f.MaxBody
	if limit <= 0 {
		limit = 5 << 20
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// BrowserFetcher renders pages in headless Chrome before extraction.
type BrowserFetcher struct{}

func (BrowserFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	return html, nil
}

// Article is the readable content of a page.
type Article struct {
	Title string
	Text  string
}

// Extract pulls the main readable text out of an HTML document, keeping
// paragraph breaks so the result can be chunked.
func Extract(html, rawURL string, maxChars int) (Article, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		base = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return Article{}, fmt.Errorf("readability: %w", err)
	}
	text := strings.TrimSpace(helpers.HTMLParagraphs(article.Content))
	if text == "" {
		text = strings.TrimSpace(article.TextContent)
	}
	if text == "" {
		return Article{}, errors.New("no readable text extracted")
	}
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return Article{Title: strings.TrimSpace(article.Title), Text: text}, nil
}
