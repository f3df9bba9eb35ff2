// Package vectorstore layers documents and metadata filtering on top of the
// raw vector index. It owns the embedder: callers add and search by text.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/vector"
)

// Document is one indexable text with its metadata.
type Document struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Hit is one search result. Score is cosine similarity clamped to [0, 1].
type Hit struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Score    float64
}

// Store combines an embedder, a vector index, and a metadata table.
type Store struct {
	embedder embedding.Embedder
	index    vector.Index

	mu   sync.RWMutex
	docs map[string]Document
}

// New creates a store over the given embedder and index.
func New(embedder embedding.Embedder, index vector.Index) *Store {
	return &Store{
		embedder: embedder,
		index:    index,
		docs:     make(map[string]Document),
	}
}

// Add embeds and indexes the documents, returning their IDs. Documents
// without an ID get a generated one. A document whose ID already exists is
// replaced.
func (s *Store) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = uuid.New().String()
			docs[i] = d
		}
		ids[i] = d.ID
		texts[i] = d.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &models.IndexError{Op: "embed", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var replaced []string
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			replaced = append(replaced, id)
		}
	}
	if len(replaced) > 0 {
		if err := s.index.Remove(ctx, replaced); err != nil {
			return nil, &models.IndexError{Op: "remove", Err: err}
		}
	}
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		return nil, &models.IndexError{Op: "add", Err: err}
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return ids, nil
}

// Search embeds the query and returns up to k hits matching the filter,
// highest score first. A nil filter matches everything.
func (s *Store) Search(ctx context.Context, query string, k int, filter *Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, &models.ValidationError{Field: "k", Reason: "must be positive"}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &models.IndexError{Op: "embed query", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Over-fetch so metadata filtering still leaves k candidates. With a
	// filter we scan the whole index; chunk counts stay small enough.
	fetch := k
	if filter != nil {
		fetch = s.index.Size()
	}
	raw, err := s.index.Search(ctx, qvec, fetch)
	if err != nil {
		return nil, &models.IndexError{Op: "search", Err: err}
	}

	hits := make([]Hit, 0, k)
	for _, r := range raw {
		doc, ok := s.docs[r.ID]
		if !ok {
			continue
		}
		match, err := filter.Match(doc.Metadata)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		score := r.Score
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		hits = append(hits, Hit{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata, Score: score})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Get returns the stored document for id.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	return d, ok
}

// Remove deletes documents by ID. Unknown IDs are ignored.
func (s *Store) Remove(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Remove(ctx, ids); err != nil {
		return &models.IndexError{Op: "remove", Err: err}
	}
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

// Size returns the number of indexed documents.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Save persists vectors and documents under dir.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.IndexError{Op: "save", Err: err}
	}
	if err := s.index.Save(filepath.Join(dir, "vectors.bin")); err != nil {
		return &models.IndexError{Op: "save", Err: err}
	}
	docs := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return &models.IndexError{Op: "save", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, "documents.json"), data, 0644); err != nil {
		return &models.IndexError{Op: "save", Err: err}
	}
	return nil
}

// Load restores vectors and documents from dir. A missing directory leaves
// the store empty.
func (s *Store) Load(dir string) error {
	if dir == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Load(filepath.Join(dir, "vectors.bin")); err != nil {
		return &models.IndexError{Op: "load", Err: err}
	}
	data, err := os.ReadFile(filepath.Join(dir, "documents.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &models.IndexError{Op: "load", Err: err}
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return &models.IndexError{Op: "load", Err: fmt.Errorf("decode documents: %w", err)}
	}
	s.docs = make(map[string]Document, len(docs))
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

// Close releases the embedder and index.
func (s *Store) Close() error {
	if err := s.embedder.Close(); err != nil {
		return err
	}
	return s.index.Close()
}
