package book

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Service provides the catalogue operations on top of a search engine.
type Service struct {
	engine Engine
	index  string
	newID  func() string
}

// NewService creates a catalogue service storing books in the named index.
// The engine is shared by every request and must outlive the service.
func NewService(engine Engine, index string) *Service {
	return &Service{
		engine: engine,
		index:  index,
		newID:  uuid.NewString,
	}
}

// Index returns the name of the index the service reads and writes.
func (s *Service) Index() string {
	return s.index
}

// Create stores a new book under a freshly generated id. Any id already on
// the record is replaced; retrying a failed create yields a different id.
func (s *Service) Create(ctx context.Context, b Book) (Book, error) {
	if err := Validate(b); err != nil {
		return Book{}, err
	}

	b.ID = s.newID()
	b.PublishDate = b.PublishDate.UTC()
	if err := s.engine.Index(ctx, s.index, b.ID, b); err != nil {
		return Book{}, &PersistenceError{Op: "create", Err: err}
	}
	return b, nil
}

// Get returns the book with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	if id == "" {
		return Book{}, invalidField("id", "id is required")
	}

	b, found, err := s.engine.Get(ctx, s.index, id)
	if err != nil {
		return Book{}, &PersistenceError{Op: "get", Err: err}
	}
	if !found {
		return Book{}, ErrNotFound
	}
	return b, nil
}

// Update merges the full record into the stored document. Fields are sent as
// they are, so callers must supply the complete book, not a sparse patch.
func (s *Service) Update(ctx context.Context, b Book) (Book, error) {
	if b.ID == "" {
		return Book{}, invalidField("id", "id is required")
	}
	if err := Validate(b); err != nil {
		return Book{}, err
	}

	b.PublishDate = b.PublishDate.UTC()
	if err := s.engine.UpdateMerge(ctx, s.index, b.ID, b); err != nil {
		return Book{}, &PersistenceError{Op: "update", Err: err}
	}
	return b, nil
}

// Remove deletes the book with the given id. Removing an unknown id is an
// error wrapping ErrNotFound.
func (s *Service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return invalidField("id", "id is required")
	}

	if err := s.engine.Delete(ctx, s.index, id); err != nil {
		return &PersistenceError{Op: "remove", Err: err}
	}
	return nil
}

// Search runs the criteria against the index and returns matches in engine
// order, at most c.Limit() of them.
func (s *Service) Search(ctx context.Context, c Criteria) ([]Book, error) {
	plan := BuildQuery(c)
	slog.DebugContext(ctx, "search plan",
		"index", s.index,
		"clauses", len(plan.Clauses),
		"match_all", plan.MatchAll(),
		"size", plan.Size,
	)

	books, err := s.engine.Search(ctx, s.index, plan)
	if err != nil {
		return nil, &PersistenceError{Op: "search", Err: err}
	}
	if books == nil {
		books = []Book{}
	}
	if len(books) > plan.Size {
		books = books[:plan.Size]
	}
	return books, nil
}

// CreateIndex creates the catalogue index. It is an administrative
// operation run once before the service handles requests.
func (s *Service) CreateIndex(ctx context.Context) error {
	if err := s.engine.CreateIndex(ctx, s.index); err != nil {
		return &PersistenceError{Op: "create index", Err: err}
	}
	return nil
}

// Ping reports whether the engine is reachable. Engines that cannot tell
// are assumed ready.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.engine.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}
