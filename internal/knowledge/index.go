// Package knowledge is the document index behind the conversation step:
// BM25 over paragraph chunks, optionally fused with embedding similarity.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/chimera/internal/helpers"
	"github.com/mohammad-safakhou/chimera/internal/llm"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Searcher returns the n most relevant chunk texts for a query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]string, error)
}

// Chunk is one indexed passage.
type Chunk struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text"`
	Hash       string    `json:"hash"`
	ChunkIndex int       `json:"chunk_index"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Hit is a ranked search result.
type Hit struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

type embedVec struct {
	id  string
	vec []float32
}

// Index holds chunks in a memory-only bleve index plus their vectors.
type Index struct {
	bleve     bleve.Index
	embedder  llm.Embedder
	chunkSize int
	logger    *log.Logger

	mu      sync.RWMutex
	meta    map[string]Chunk
	hashes  map[string]struct{}
	vectors []embedVec
	sources map[string]int
}

// NewIndex creates an empty index. embedder may be nil, in which case search
// is BM25 only.
func NewIndex(embedder llm.Embedder, chunkSize int, logger *log.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[KNOWLEDGE] ", log.LstdFlags)
	}
	return &Index{
		bleve:     idx,
		embedder:  embedder,
		chunkSize: chunkSize,
		logger:    logger,
		meta:      make(map[string]Chunk),
		hashes:    make(map[string]struct{}),
		sources:   make(map[string]int),
	}, nil
}

// AddText splits text into chunks and indexes the ones not seen before.
// It returns the number of new chunks.
func (x *Index) AddText(ctx context.Context, text, source, title string) (int, error) {
	parts := Split(text, x.chunkSize)
	now := time.Now().UTC()

	x.mu.Lock()
	var fresh []Chunk
	for i, part := range parts {
		hash := helpers.ContentHash(part)
		if _, dup := x.hashes[hash]; dup {
			continue
		}
		c := Chunk{
			ID:         fmt.Sprintf("%s#%03d", hash[:16], i),
			Source:     source,
			Title:      title,
			Text:       part,
			Hash:       hash,
			ChunkIndex: i,
			IngestedAt: now,
		}
		if err := x.bleve.Index(c.ID, c); err != nil {
			x.mu.Unlock()
			return len(fresh), fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		x.hashes[hash] = struct{}{}
		x.meta[c.ID] = c
		x.sources[source]++
		fresh = append(fresh, c)
	}
	x.mu.Unlock()

	if len(fresh) == 0 || x.embedder == nil {
		return len(fresh), nil
	}
	texts := make([]string, len(fresh))
	for i, c := range fresh {
		texts[i] = c.Text
	}
	vecs, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		x.logger.Printf("embedding %d chunks from %s failed, keeping BM25 only: %v", len(fresh), source, err)
		return len(fresh), nil
	}
	x.mu.Lock()
	for i, v := range vecs {
		x.vectors = append(x.vectors, embedVec{id: fresh[i].ID, vec: v})
	}
	x.mu.Unlock()
	return len(fresh), nil
}

// Search implements Searcher.
func (x *Index) Search(ctx context.Context, query string, n int) ([]string, error) {
	hits, err := x.Hits(ctx, query, n)
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Text
	}
	return out, nil
}

// Hits runs a hybrid search and returns at most n fused hits.
func (x *Index) Hits(ctx context.Context, query string, n int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || x.Count() == 0 {
		return nil, nil
	}
	if n <= 0 {
		n = 3
	}
	bm, err := x.bm25(query, n)
	if err != nil {
		return nil, err
	}
	if x.embedder == nil || !x.hasVectors() {
		return bm, nil
	}
	qv, err := x.embedder.Embed(ctx, []string{query})
	if err != nil || len(qv) == 0 {
		x.logger.Printf("query embedding failed, using BM25 only: %v", err)
		return bm, nil
	}
	return fuseRRF(bm, x.vectorSearch(qv[0], n), n), nil
}

func (x *Index) bm25(q string, k int) ([]Hit, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k*3, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []Hit
	for _, hit := range res.Hits {
		c, ok := x.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{ID: hit.ID, Source: c.Source, Text: c.Text, Score: hit.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (x *Index) vectorSearch(q []float32, k int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	scoreds := make([]scored, 0, len(x.vectors))
	for _, v := range x.vectors {
		scoreds = append(scoreds, scored{id: v.id, score: cosine(q, v.vec)})
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []Hit
	for _, sc := range scoreds {
		c := x.meta[sc.id]
		out = append(out, Hit{ID: sc.id, Source: c.Source, Text: c.Text, Score: sc.score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out
}

func fuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		hit   Hit
		score float64
		first int
	}
	m := map[string]*agg{}
	order := 0
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.ID]
			if !ok {
				x = &agg{hit: h, first: order}
				m[h.ID] = x
				order++
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].first < items[j].first
	})
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Hit, len(items))
	for i, it := range items {
		out[i] = it.hit
		out[i].Score = it.score
		out[i].Rank = i + 1
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (x *Index) hasVectors() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors) > 0
}

// Count returns the number of indexed chunks.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}

// Sources returns chunk counts per source.
func (x *Index) Sources() map[string]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]int, len(x.sources))
	for k, v := range x.sources {
		out[k] = v
	}
	return out
}

// Close releases the bleve index.
func (x *Index) Close() error { return x.bleve.Close() }
