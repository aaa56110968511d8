package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// KnowledgeConfig controls the retrieval index backing the conversation step.
type KnowledgeConfig struct {
	Documents    []string      `mapstructure:"documents"` // files, directories or http(s) URLs
	TopK         int           `mapstructure:"top_k"`
	RenderJS     bool          `mapstructure:"render_js"`
	MaxChars     int           `mapstructure:"max_chars"`
	ChunkChars   int           `mapstructure:"chunk_chars"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Allow        []string      `mapstructure:"allow"`
	Disallow     []string      `mapstructure:"disallow"`
}

// Normalize cleans domain lists and applies retrieval defaults.
func (c KnowledgeConfig) Normalize() KnowledgeConfig {
	norm := c
	norm.Allow = sanitizeDomainList(norm.Allow)
	norm.Disallow = sanitizeDomainList(norm.Disallow)
	if norm.TopK <= 0 {
		norm.TopK = 3
	}
	if norm.MaxChars <= 0 {
		norm.MaxChars = 20000
	}
	if norm.ChunkChars <= 0 {
		norm.ChunkChars = 1200
	}
	if norm.FetchTimeout <= 0 {
		norm.FetchTimeout = 15 * time.Second
	}
	return norm
}

// Validate ensures domain rules do not conflict.
func (c KnowledgeConfig) Validate() error {
	norm := c.Normalize()
	allow := make(map[string]struct{}, len(norm.Allow))
	for _, host := range norm.Allow {
		allow[host] = struct{}{}
	}
	for _, host := range norm.Disallow {
		if _, ok := allow[host]; ok {
			return fmt.Errorf("knowledge conflict: host %q present in both allow and disallow lists", host)
		}
	}
	return nil
}

// Permits reports whether a remote document may be fetched. Local paths are always permitted.
func (c KnowledgeConfig) Permits(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return true
	}
	host := normalizeHost(raw)
	if host == "" {
		return false
	}
	for _, d := range c.Disallow {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	if len(c.Allow) == 0 {
		return true
	}
	for _, a := range c.Allow {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func sanitizeDomainList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		host := normalizeHost(raw)
		if host == "" {
			continue
		}
		seen[host] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func normalizeHost(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil && u.Host != "" {
			return strings.TrimPrefix(u.Hostname(), "www.")
		}
	}
	return strings.TrimPrefix(value, "www.")
}
