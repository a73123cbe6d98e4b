package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestLRU_Eviction(t *testing.T) {
	c := newLRU[string, []float32](2)
	if v, ok := c.get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.put("a", []float32{1, 2, 3})
	c.put("b", []float32{4, 5})
	if _, ok := c.get("a"); !ok { // a becomes newest
		t.Fatal("expected a")
	}
	c.put("c", []float32{6}) // evicts b
	if _, ok := c.get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.get("a"); !ok || v[0] != 1 {
		t.Errorf("a: got %v, %v", v, ok)
	}
	c.put("c", []float32{7})
	if v, _ := c.get("c"); v[0] != 7 {
		t.Errorf("overwrite: got %v", v)
	}
	if c.len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.len())
	}
}

func TestLRU_Disabled(t *testing.T) {
	c := newLRU[string, []float32](0)
	c.put("a", []float32{1})
	if _, ok := c.get("a"); ok {
		t.Error("zero capacity should not store")
	}
}

type countingEmbedder struct {
	*HashEmbedder
	calls int
	fail  bool
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls += len(texts)
	if e.fail {
		return nil, errors.New("model unavailable")
	}
	return e.HashEmbedder.EmbedBatch(ctx, texts)
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("model unavailable")
	}
	return e.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}

	embs, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 || embs[0] == nil || embs[2] == nil {
		t.Fatalf("unexpected batch %v", embs)
	}
	if inner.calls != 3 {
		t.Errorf("expected only misses to reach inner, got %d calls", inner.calls)
	}
	if e.Dimensions() != 16 {
		t.Errorf("expected 16 dims, got %d", e.Dimensions())
	}

	inner.fail = true
	if _, err := e.EmbedBatch(ctx, []string{"delta"}); err == nil {
		t.Error("expected inner error")
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "The quick brown fox")
	b, _ := e.Embed(ctx, "the quick, brown fox!")
	c, _ := e.Embed(ctx, "completely unrelated sentence here")
	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}

	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit vector, norm^2=%f", norm)
	}
	if d := squaredL2(a, b); d > 1e-9 {
		t.Errorf("same terms should embed identically, distance %f", d)
	}
	if d := squaredL2(a, c); d < 0.1 {
		t.Errorf("different terms should be far apart, distance %f", d)
	}

	empty, _ := e.Embed(ctx, "  ...  ")
	for _, v := range empty {
		if v != 0 {
			t.Fatal("text without terms should embed to zero")
		}
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.EmbedBatch(canceled, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
