package knowledge

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
)

var quiet = log.New(io.Discard, "", 0)

const kb = `Chimera offers a Starter plan for small teams at forty dollars per month.

The Enterprise plan includes single sign on, audit logs and a dedicated manager.

Product demos are available on weekdays and last about thirty minutes each.`

func newTestIndex(t *testing.T, e *fakeEmbedder) *Index {
	t.Helper()
	var idx *Index
	var err error
	if e == nil {
		idx, err = NewIndex(nil, 1200, quiet)
	} else {
		idx, err = NewIndex(e, 1200, quiet)
	}
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// fakeEmbedder maps each text to a vector of keyword hits.
type fakeEmbedder struct {
	words []string
	fail  bool
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(f.words))
		lt := strings.ToLower(t)
		for j, w := range f.words {
			if strings.Contains(lt, w) {
				v[j] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

func TestIndexBM25(t *testing.T) {
	idx := newTestIndex(t, nil)
	n, err := idx.AddText(context.Background(), kb, "faq.md", "FAQ")
	if err != nil || n != 3 {
		t.Fatalf("add: n=%d err=%v", n, err)
	}
	got, err := idx.Search(context.Background(), "enterprise sign on", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "Enterprise plan") {
		t.Fatalf("unexpected results %q", got)
	}
	if idx.Sources()["faq.md"] != 3 {
		t.Fatalf("unexpected sources %v", idx.Sources())
	}
}

func TestIndexDedupesChunks(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()
	if _, err := idx.AddText(ctx, kb, "a", ""); err != nil {
		t.Fatal(err)
	}
	n, err := idx.AddText(ctx, strings.ToUpper(kb), "b", "")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || idx.Count() != 3 {
		t.Fatalf("expected duplicates skipped, n=%d count=%d", n, idx.Count())
	}
}

func TestIndexEmptyQuery(t *testing.T) {
	idx := newTestIndex(t, nil)
	got, err := idx.Search(context.Background(), "pricing", 3)
	if err != nil || got != nil {
		t.Fatalf("expected no results on empty index, got %q %v", got, err)
	}
}

func TestIndexSearchNoMatch(t *testing.T) {
	idx := newTestIndex(t, nil)
	ctx := context.Background()
	if _, err := idx.AddText(ctx, kb, "faq.md", ""); err != nil {
		t.Fatal(err)
	}
	got, err := idx.Search(ctx, "xylophone", 3)
	if err != nil || got != nil {
		t.Fatalf("expected nil results for unmatched query, got %q %v", got, err)
	}
}

func TestIndexHybrid(t *testing.T) {
	e := &fakeEmbedder{words: []string{"demo", "plan", "weekdays"}}
	idx := newTestIndex(t, e)
	ctx := context.Background()
	if _, err := idx.AddText(ctx, kb, "faq.md", ""); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Hits(ctx, "when can I see a demo on weekdays", 2)
	if err != nil {
		t.Fatalf("hits: %v", err)
	}
	if len(hits) == 0 || !strings.Contains(hits[0].Text, "demos are available") {
		t.Fatalf("unexpected hits %+v", hits)
	}
	for i, h := range hits {
		if h.Rank != i+1 {
			t.Fatalf("rank mismatch at %d: %+v", i, h)
		}
	}
	if e.calls != 2 {
		t.Fatalf("expected one embed for chunks and one for the query, got %d", e.calls)
	}
}

func TestIndexEmbeddingFailureFallsBackToBM25(t *testing.T) {
	e := &fakeEmbedder{fail: true}
	idx := newTestIndex(t, e)
	ctx := context.Background()
	if _, err := idx.AddText(ctx, kb, "faq.md", ""); err != nil {
		t.Fatalf("add should not fail on embedding errors: %v", err)
	}
	got, err := idx.Search(ctx, "starter plan", 1)
	if err != nil || len(got) != 1 || !strings.Contains(got[0], "Starter plan") {
		t.Fatalf("unexpected results %q %v", got, err)
	}
}

func TestFuseRRF(t *testing.T) {
	a := []Hit{{ID: "x", Rank: 1}, {ID: "y", Rank: 2}}
	b := []Hit{{ID: "y", Rank: 1}, {ID: "z", Rank: 2}}
	got := fuseRRF(a, b, 3)
	if len(got) != 3 || got[0].ID != "y" {
		t.Fatalf("expected y first, got %+v", got)
	}
	if got[1].ID != "x" || got[2].ID != "z" {
		t.Fatalf("unexpected tie order %+v", got)
	}
}

func TestCosine(t *testing.T) {
	if c := cosine([]float32{1, 0}, []float32{1, 0}); c < 0.999 {
		t.Fatalf("expected 1, got %f", c)
	}
	if c := cosine([]float32{0, 0}, []float32{1, 0}); c != 0 {
		t.Fatalf("expected 0 for zero vector, got %f", c)
	}
}
