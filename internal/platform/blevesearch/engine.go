// Package blevesearch stores the catalogue in embedded bleve indexes. It
// needs no external service and backs local runs and tests.
package blevesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bookcatalogue/internal/book"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

var (
	// ErrIndexNotFound is returned for operations on an index that was never
	// created.
	ErrIndexNotFound = errors.New("blevesearch: index not found")
	ErrIndexExists   = errors.New("blevesearch: index already exists")
)

// Engine implements book.Engine over named bleve indexes. With an empty dir
// indexes live in memory only.
type Engine struct {
	dir string

	mu      sync.Mutex
	indexes map[string]bleve.Index

	// writeMu serializes read-modify-write operations.
	writeMu sync.Mutex
}

// New returns an engine keeping indexes under dir, or in memory when dir is
// empty.
func New(dir string) *Engine {
	return &Engine{dir: dir, indexes: make(map[string]bleve.Index)}
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.dir, name+".bleve")
}

// open returns the named index, opening it from disk on first use.
func (e *Engine) open(name string) (bleve.Index, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}
	if e.dir == "" {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	idx, err := bleve.Open(e.path(name))
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("blevesearch: open %s: %w", name, err)
	}
	slog.Info("opened bleve index", "index", name, "path", e.path(name))
	e.indexes[name] = idx
	return idx, nil
}

func (e *Engine) CreateIndex(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.indexes[name]; ok {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}

	m, err := buildIndexMapping()
	if err != nil {
		return fmt.Errorf("blevesearch: build mapping: %w", err)
	}

	var idx bleve.Index
	if e.dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(e.dir, 0o755); err != nil {
			return fmt.Errorf("blevesearch: create dir: %w", err)
		}
		idx, err = bleve.New(e.path(name), m)
	}
	if errors.Is(err, bleve.ErrorIndexPathExists) {
		return fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	if err != nil {
		return fmt.Errorf("blevesearch: create %s: %w", name, err)
	}

	slog.Info("created bleve index", "index", name, "in_memory", e.dir == "")
	e.indexes[name] = idx
	return nil
}

func toDocument(id string, b book.Book) (document, error) {
	b.ID = id
	raw, err := json.Marshal(b)
	if err != nil {
		return document{}, fmt.Errorf("blevesearch: encode book: %w", err)
	}
	return document{
		ID:          id,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Genre:       b.Genre,
		PublishDate: b.PublishDate.UTC(),
		Publisher:   b.Publisher,
		Source:      string(raw),
	}, nil
}

func (e *Engine) Index(ctx context.Context, index, id string, b book.Book) error {
	idx, err := e.open(index)
	if err != nil {
		return err
	}
	doc, err := toDocument(id, b)
	if err != nil {
		return err
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("blevesearch: index %s: %w", id, err)
	}
	return nil
}

// source loads the stored JSON of a document, or nil when it is missing.
func source(ctx context.Context, idx bleve.Index, id string) ([]byte, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{sourceField}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("blevesearch: get %s: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	raw, _ := res.Hits[0].Fields[sourceField].(string)
	return []byte(raw), nil
}

func decodeSource(raw []byte) (book.Book, error) {
	var b book.Book
	if err := json.Unmarshal(raw, &b); err != nil {
		return book.Book{}, fmt.Errorf("blevesearch: decode source: %w", err)
	}
	return b, nil
}

func (e *Engine) Get(ctx context.Context, index, id string) (book.Book, bool, error) {
	idx, err := e.open(index)
	if err != nil {
		return book.Book{}, false, err
	}
	raw, err := source(ctx, idx, id)
	if err != nil || raw == nil {
		return book.Book{}, false, err
	}
	b, err := decodeSource(raw)
	if err != nil {
		return book.Book{}, false, err
	}
	return b, true, nil
}

// UpdateMerge overlays the JSON fields of b onto the stored document.
func (e *Engine) UpdateMerge(ctx context.Context, index, id string, b book.Book) error {
	idx, err := e.open(index)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	raw, err := source(ctx, idx, id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("blevesearch: update %s: %w", id, book.ErrNotFound)
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return fmt.Errorf("blevesearch: decode source: %w", err)
	}
	patch, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("blevesearch: encode book: %w", err)
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return fmt.Errorf("blevesearch: merge: %w", err)
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("blevesearch: merge: %w", err)
	}

	updated, err := decodeSource(out)
	if err != nil {
		return err
	}
	doc, err := toDocument(id, updated)
	if err != nil {
		return err
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("blevesearch: update %s: %w", id, err)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, index, id string) error {
	idx, err := e.open(index)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	raw, err := source(ctx, idx, id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("blevesearch: delete %s: %w", id, book.ErrNotFound)
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("blevesearch: delete %s: %w", id, err)
	}
	return nil
}

func (e *Engine) Search(ctx context.Context, index string, plan book.Plan) ([]book.Book, error) {
	idx, err := e.open(index)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(toQuery(plan), plan.Size, 0, false)
	req.Fields = []string{sourceField}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("blevesearch: search: %w", err)
	}

	books := make([]book.Book, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, _ := hit.Fields[sourceField].(string)
		b, err := decodeSource([]byte(raw))
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// toQuery translates a plan into a conjunction of bleve queries.
func toQuery(plan book.Plan) query.Query {
	if plan.MatchAll() {
		return bleve.NewMatchAllQuery()
	}

	conjuncts := make([]query.Query, 0, len(plan.Clauses))
	for _, c := range plan.Clauses {
		switch c.Kind {
		case book.MustMatch:
			q := bleve.NewMatchQuery(c.Value)
			q.SetField(c.Field)
			conjuncts = append(conjuncts, q)
		case book.FilterTerm:
			q := bleve.NewTermQuery(c.Value)
			q.SetField(c.Field)
			conjuncts = append(conjuncts, q)
		case book.FilterRange:
			conjuncts = append(conjuncts, dateRangeQuery(c.Field, c.Range))
		}
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

func dateRangeQuery(field string, r book.DateRange) query.Query {
	var from, to time.Time
	if r.From != nil {
		from = clampTime(*r.From)
	}
	if r.To != nil {
		to = clampTime(*r.To)
	}
	inclusive := true
	q := bleve.NewDateRangeInclusiveQuery(from, to, &inclusive, &inclusive)
	q.SetField(field)
	return q
}

func clampTime(t time.Time) time.Time {
	switch {
	case t.Before(minIndexableTime):
		return minIndexableTime
	case t.After(maxIndexableTime):
		return maxIndexableTime
	default:
		return t
	}
}

// Close closes every open index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, idx := range e.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("blevesearch: close %s: %w", name, err))
		}
		delete(e.indexes, name)
	}
	return errors.Join(errs...)
}
