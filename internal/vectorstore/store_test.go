package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/vector"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	idx, err := vector.NewMemoryIndex(64)
	if err != nil {
		t.Fatal(err)
	}
	return New(embedding.NewHashEmbedder(64), idx)
}

func seedDocs() []Document {
	return []Document{
		{
			ID:   "AAPL_20240101_20240130",
			Text: "AAPL OHLCV data uptrend strong bullish momentum",
			Metadata: map[string]interface{}{
				models.MetaTicker:    "AAPL",
				models.MetaTrend:     models.TrendUptrend,
				models.MetaRSIAvg:    75.2,
				models.MetaStartDate: "2024-01-01",
				models.MetaEndDate:   "2024-01-30",
			},
		},
		{
			ID:   "AAPL_20240116_20240214",
			Text: "AAPL OHLCV data sideways consolidation low volume",
			Metadata: map[string]interface{}{
				models.MetaTicker:    "AAPL",
				models.MetaTrend:     models.TrendSideways,
				models.MetaRSIAvg:    48.0,
				models.MetaStartDate: "2024-01-16",
				models.MetaEndDate:   "2024-02-14",
			},
		},
		{
			ID:   "MSFT_20240101_20240130",
			Text: "MSFT OHLCV data downtrend bearish selling pressure",
			Metadata: map[string]interface{}{
				models.MetaTicker:    "MSFT",
				models.MetaTrend:     models.TrendDowntrend,
				models.MetaRSIAvg:    28.4,
				models.MetaStartDate: "2024-01-01",
				models.MetaEndDate:   "2024-01-30",
			},
		},
	}
}

func TestStoreAddAndSearch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ids, err := s.Add(ctx, seedDocs())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 3 || s.Size() != 3 {
		t.Fatalf("ids=%v size=%d", ids, s.Size())
	}

	hits, err := s.Search(ctx, "uptrend bullish momentum", 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("hit %d: score %v out of [0,1]", i, h.Score)
		}
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted by score")
	}
}

func TestStoreSearchTickerFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, seedDocs()); err != nil {
		t.Fatal(err)
	}

	filter := &Filter{Conditions: []Condition{{Field: models.MetaTicker, Op: OpEq, Value: "MSFT"}}}
	hits, err := s.Search(ctx, "price action", 10, filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("want 1 hit, got %d", len(hits))
	}
	if hits[0].Metadata[models.MetaTicker] != "MSFT" {
		t.Errorf("filter leaked: %v", hits[0].Metadata)
	}
}

func TestStoreSearchNumericFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, seedDocs()); err != nil {
		t.Fatal(err)
	}

	filter := &Filter{Conditions: []Condition{{Field: models.MetaRSIAvg, Op: OpGt, Value: 70.0}}}
	hits, err := s.Search(ctx, "overbought", 10, filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "AAPL_20240101_20240130" {
		t.Fatalf("want the overbought window only, got %+v", hits)
	}
}

func TestStoreSearchDateOverlap(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, seedDocs()); err != nil {
		t.Fatal(err)
	}

	filter := &Filter{Overlap: &DateRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
	}}
	hits, err := s.Search(ctx, "consolidation", 10, filter)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "AAPL_20240116_20240214" {
		t.Fatalf("want the overlapping window only, got %+v", hits)
	}
}

func TestStoreSearchUnknownOperator(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, seedDocs()); err != nil {
		t.Fatal(err)
	}

	filter := &Filter{Conditions: []Condition{{Field: models.MetaRSIAvg, Op: "~=", Value: 50.0}}}
	_, err := s.Search(ctx, "anything", 5, filter)
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestStoreReplaceExisting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	docs := seedDocs()
	if _, err := s.Add(ctx, docs); err != nil {
		t.Fatal(err)
	}
	docs[0].Text = "AAPL OHLCV data revised window"
	if _, err := s.Add(ctx, docs[:1]); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 3 {
		t.Errorf("replacing should not grow the store: size %d", s.Size())
	}
	d, ok := s.Get(docs[0].ID)
	if !ok || d.Text != "AAPL OHLCV data revised window" {
		t.Errorf("replacement not stored: %+v", d)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newStore(t)
	if _, err := s.Add(ctx, seedDocs()); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := newStore(t)
	if err := restored.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if restored.Size() != 3 {
		t.Fatalf("Size after load: %d", restored.Size())
	}
	hits, err := restored.Search(ctx, "downtrend bearish", 1, nil)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("want 1 hit, got %d", len(hits))
	}
}

func TestStoreSearchEmpty(t *testing.T) {
	s := newStore(t)
	hits, err := s.Search(context.Background(), "anything", 5, nil)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("want no hits, got %d", len(hits))
	}
}
