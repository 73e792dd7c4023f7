package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookcatalogue/internal/book"
	"bookcatalogue/internal/platform/openlibrary"

	"github.com/google/uuid"
)

type Config struct {
	BooksMax  int
	Subjects  []string
	BatchSize int
}

type OpenLibraryClient interface {
	SearchBooks(ctx context.Context, subject string, limit int) (*openlibrary.SearchResponse, error)
	GetBooksByISBN(ctx context.Context, isbns []string) (map[string]openlibrary.BookDetails, error)
}

// Catalogue receives the imported books.
type Catalogue interface {
	Create(ctx context.Context, b book.Book) (book.Book, error)
}

type Service struct {
	olClient  OpenLibraryClient
	catalogue Catalogue
	cfg       Config
}

func NewService(olClient OpenLibraryClient, catalogue Catalogue, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Service{
		olClient:  olClient,
		catalogue: catalogue,
		cfg:       cfg,
	}
}

// Run imports up to BooksMax books across the configured subjects. A failed
// subject search fails the run; a book that cannot be created is logged and
// counted. The returned Run is never nil.
func (s *Service) Run(ctx context.Context) (run *Run, err error) {
	run = &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		Subjects:  s.cfg.Subjects,
		BooksMax:  s.cfg.BooksMax,
		StartedAt: time.Now(),
	}
	slog.InfoContext(ctx, "import started", "run_id", run.ID, "subjects", run.Subjects, "books_max", run.BooksMax)

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err != nil && run.Error == "" {
			run.Error = err.Error()
		}

		if run.Error != "" {
			run.Status = StatusFailed
		} else {
			run.Status = StatusCompleted
		}
		slog.InfoContext(ctx, "import finished",
			"run_id", run.ID,
			"status", run.Status,
			"fetched", run.BooksFetched,
			"created", run.BooksCreated,
			"failed", run.BooksFailed,
			"duration", run.Duration().String(),
		)
	}()

	if s.cfg.BooksMax <= 0 {
		return run, nil
	}

	processedISBNs := make(map[string]bool)

	for _, subject := range s.cfg.Subjects {
		if s.done(run) {
			break
		}

		// Discovery
		needed := s.cfg.BooksMax - run.BooksCreated
		searchLimit := 100
		if needed < 50 {
			searchLimit = needed * 2
		}

		searchRes, err := s.olClient.SearchBooks(ctx, subject, searchLimit)
		if err != nil {
			run.Error = fmt.Sprintf("search failed for %s: %v", subject, err)
			return run, err
		}

		var isbnsToHydrate []string
		for _, doc := range searchRes.Docs {
			isbn := preferredISBN(doc.ISBN)
			if isbn == "" || processedISBNs[isbn] {
				continue
			}
			processedISBNs[isbn] = true

			isbnsToHydrate = append(isbnsToHydrate, isbn)
			if len(isbnsToHydrate) >= s.cfg.BatchSize {
				s.hydrateBatch(ctx, run, subject, isbnsToHydrate)
				isbnsToHydrate = nil
				if s.done(run) {
					break
				}
			}
		}
		if len(isbnsToHydrate) > 0 && !s.done(run) {
			s.hydrateBatch(ctx, run, subject, isbnsToHydrate)
		}
	}

	return run, ctx.Err()
}

func (s *Service) done(run *Run) bool {
	return run.BooksCreated >= s.cfg.BooksMax
}

// preferredISBN picks the 13 digit ISBN when Open Library lists several.
func preferredISBN(isbns []string) string {
	if len(isbns) == 0 {
		return ""
	}
	for _, i := range isbns {
		if len(i) == 13 {
			return i
		}
	}
	return isbns[0]
}

func (s *Service) hydrateBatch(ctx context.Context, run *Run, subject string, isbns []string) {
	batch, err := s.olClient.GetBooksByISBN(ctx, isbns)
	if err != nil {
		slog.WarnContext(ctx, "failed to hydrate batch", "run_id", run.ID, "size", len(isbns), "error", err)
		return
	}
	run.BooksFetched += len(batch)

	// Keep the search order so runs are reproducible.
	for _, isbn := range isbns {
		details, ok := batch["ISBN:"+isbn]
		if !ok {
			continue
		}
		if s.done(run) {
			return
		}

		created, err := s.catalogue.Create(ctx, ToBook(details, subject))
		if err != nil {
			run.BooksFailed++
			slog.WarnContext(ctx, "failed to create book", "run_id", run.ID, "isbn", isbn, "error", err)
			continue
		}
		run.BooksCreated++
		slog.DebugContext(ctx, "book imported", "run_id", run.ID, "isbn", isbn, "id", created.ID)
	}
}

// ToBook maps Open Library edition details to a catalogue book. The subject
// the edition was found under becomes its genre.
func ToBook(d openlibrary.BookDetails, subject string) book.Book {
	title := d.Title
	if d.Subtitle != "" {
		title += ": " + d.Subtitle
	}
	authors := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	return book.Book{
		Title:       title,
		Author:      strings.Join(authors, ", "),
		Description: d.NotesText(),
		Genre:       subject,
		PublishDate: ParsePublishDate(d.PublishDate),
		Publisher:   formatPublishers(d.Publishers),
	}
}

var publishDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006-01-02",
	"January 2006",
	"Jan 2006",
	"2006",
}

// ParsePublishDate reads the free-form dates Open Library uses. Unparseable
// input yields the zero time.
func ParsePublishDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatPublishers(p []openlibrary.Publisher) string {
	if len(p) == 0 {
		return ""
	}
	names := make([]string, len(p))
	for i, pub := range p {
		names[i] = pub.Name
	}
	return strings.Join(names, ", ")
}
