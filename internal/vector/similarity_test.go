package vector

import (
	"context"
	"math"
	"testing"
)

func TestInnerProduct(t *testing.T) {
	if got := InnerProduct([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("InnerProduct=%v, want 32", got)
	}
	if got := InnerProduct([]float32{1, 2}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths should yield 0, got %v", got)
	}
	if got := InnerProduct(nil, nil); got != 0 {
		t.Errorf("empty vectors should yield 0, got %v", got)
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm({3,4})=%v, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil)=%v, want 0", got)
	}
}

func TestSearchScoresAreInnerProducts(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	vecs := [][]float32{{0.6, 0.8, 0}, {0, 0, 1}}
	if err := idx.Add(ctx, []string{"a", "b"}, vecs); err != nil {
		t.Fatal(err)
	}
	query := []float32{1, 0, 0}
	results, err := idx.Search(ctx, query, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("top result=%s, want a", results[0].ID)
	}
	if math.Abs(results[0].Score-InnerProduct(query, vecs[0])) > 1e-9 {
		t.Errorf("score %v does not match inner product %v", results[0].Score, InnerProduct(query, vecs[0]))
	}
	if math.Abs(results[0].Score-0.6) > 1e-9 {
		t.Errorf("score for top hit=%v, want 0.6", results[0].Score)
	}
	if results[1].Score != 0 {
		t.Errorf("score for orthogonal vector=%v, want 0", results[1].Score)
	}
}

func TestCosineSimilarityUnnormalized(t *testing.T) {
	// Parallel vectors of different magnitudes are still perfectly similar.
	if got := CosineSimilarity([]float32{3, 0}, []float32{7, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("CosineSimilarity of parallel vectors=%v, want 1", got)
	}
	if got := CosineSimilarity([]float32{2, 0}, []float32{0, 5}); got != 0 {
		t.Errorf("CosineSimilarity of orthogonal vectors=%v, want 0", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("CosineSimilarity with zero vector=%v, want 0", got)
	}
}
