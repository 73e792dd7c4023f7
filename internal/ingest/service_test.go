package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bookcatalogue/internal/book"
	"bookcatalogue/internal/platform/openlibrary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOLClient struct {
	mock.Mock
}

func (m *mockOLClient) SearchBooks(ctx context.Context, subject string, limit int) (*openlibrary.SearchResponse, error) {
	args := m.Called(ctx, subject, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openlibrary.SearchResponse), args.Error(1)
}

func (m *mockOLClient) GetBooksByISBN(ctx context.Context, isbns []string) (map[string]openlibrary.BookDetails, error) {
	args := m.Called(ctx, isbns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]openlibrary.BookDetails), args.Error(1)
}

type mockCatalogue struct {
	mock.Mock
}

func (m *mockCatalogue) Create(ctx context.Context, b book.Book) (book.Book, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(book.Book), args.Error(1)
}

func details(title, author string) openlibrary.BookDetails {
	return openlibrary.BookDetails{
		Title:       title,
		Authors:     []openlibrary.Author{{URL: "/authors/OL1A", Name: author}},
		PublishDate: "1965",
	}
}

func titled(title string) interface{} {
	return mock.MatchedBy(func(b book.Book) bool { return b.Title == title })
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		BooksMax:  2,
		Subjects:  []string{"test"},
		BatchSize: 5,
	}

	t.Run("nothing to import", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, Config{BooksMax: 0, Subjects: []string{"test"}})

		run, err := s.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		mOL.AssertNotCalled(t, "SearchBooks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("creates fetched books", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, cfg)

		searchRes := &openlibrary.SearchResponse{
			Docs: []openlibrary.SearchDoc{
				{ISBN: []string{"isbn1"}},
				{ISBN: []string{"0441013597", "9780441013593"}},
			},
		}
		mOL.On("SearchBooks", ctx, "test", 4).Return(searchRes, nil)
		mOL.On("GetBooksByISBN", ctx, []string{"isbn1", "9780441013593"}).Return(map[string]openlibrary.BookDetails{
			"ISBN:isbn1":         details("Book 1", "Author 1"),
			"ISBN:9780441013593": details("Dune", "Frank Herbert"),
		}, nil)

		mCatalogue.On("Create", ctx, titled("Book 1")).Return(book.Book{ID: "1"}, nil)
		mCatalogue.On("Create", ctx, titled("Dune")).Return(book.Book{ID: "2"}, nil)

		run, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		assert.Equal(t, 2, run.BooksFetched)
		assert.Equal(t, 2, run.BooksCreated)
		assert.NotNil(t, run.FinishedAt)

		mOL.AssertExpectations(t)
		mCatalogue.AssertExpectations(t)
	})

	t.Run("stops at the target", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, Config{BooksMax: 1, Subjects: []string{"a", "b"}, BatchSize: 5})

		mOL.On("SearchBooks", ctx, "a", 2).Return(&openlibrary.SearchResponse{
			Docs: []openlibrary.SearchDoc{{ISBN: []string{"i1"}}, {ISBN: []string{"i2"}}},
		}, nil)
		mOL.On("GetBooksByISBN", ctx, []string{"i1", "i2"}).Return(map[string]openlibrary.BookDetails{
			"ISBN:i1": details("First", "A"),
			"ISBN:i2": details("Second", "B"),
		}, nil)
		mCatalogue.On("Create", ctx, titled("First")).Return(book.Book{ID: "1"}, nil)

		run, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, run.BooksCreated)
		mCatalogue.AssertNumberOfCalls(t, "Create", 1)
		mOL.AssertNotCalled(t, "SearchBooks", ctx, "b", mock.Anything)
	})

	t.Run("deduplicates ISBNs within a run", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, cfg)

		searchRes := &openlibrary.SearchResponse{
			Docs: []openlibrary.SearchDoc{
				{ISBN: []string{"isbn_dup"}},
				{ISBN: []string{"isbn_dup"}}, // Duplicate ISBN in search results
			},
		}
		mOL.On("SearchBooks", ctx, "test", 4).Return(searchRes, nil)
		mOL.On("GetBooksByISBN", ctx, []string{"isbn_dup"}).Return(map[string]openlibrary.BookDetails{
			"ISBN:isbn_dup": details("Dup Book", "Someone"),
		}, nil)
		mCatalogue.On("Create", ctx, mock.Anything).Return(book.Book{ID: "1"}, nil)

		_, err := s.Run(ctx)
		assert.NoError(t, err)

		mOL.AssertNumberOfCalls(t, "GetBooksByISBN", 1)
		mCatalogue.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("counts books the catalogue rejects", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, cfg)

		mOL.On("SearchBooks", ctx, "test", 4).Return(&openlibrary.SearchResponse{
			Docs: []openlibrary.SearchDoc{{ISBN: []string{"i1"}}, {ISBN: []string{"i2"}}},
		}, nil)
		mOL.On("GetBooksByISBN", ctx, []string{"i1", "i2"}).Return(map[string]openlibrary.BookDetails{
			"ISBN:i1": {Title: "No Author"},
			"ISBN:i2": details("Fine", "B"),
		}, nil)
		mCatalogue.On("Create", ctx, titled("No Author")).Return(book.Book{}, &book.ValidationError{})
		mCatalogue.On("Create", ctx, titled("Fine")).Return(book.Book{ID: "2"}, nil)

		run, err := s.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		assert.Equal(t, 1, run.BooksCreated)
		assert.Equal(t, 1, run.BooksFailed)
	})

	t.Run("records failure if SearchBooks fails", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, cfg)

		mOL.On("SearchBooks", ctx, "test", 4).Return(nil, fmt.Errorf("search error"))

		run, err := s.Run(ctx)
		assert.Error(t, err)
		assert.Equal(t, StatusFailed, run.Status)
		assert.Contains(t, run.Error, "search failed for test")
		mCatalogue.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("skips a batch that cannot be hydrated", func(t *testing.T) {
		mOL := new(mockOLClient)
		mCatalogue := new(mockCatalogue)

		s := NewService(mOL, mCatalogue, cfg)

		mOL.On("SearchBooks", ctx, "test", 4).Return(&openlibrary.SearchResponse{
			Docs: []openlibrary.SearchDoc{{ISBN: []string{"i1"}}},
		}, nil)
		mOL.On("GetBooksByISBN", ctx, []string{"i1"}).Return(nil, fmt.Errorf("timeout"))

		run, err := s.Run(ctx)
		assert.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		assert.Zero(t, run.BooksCreated)
	})
}

func TestToBook(t *testing.T) {
	d := openlibrary.BookDetails{
		Title:       "Dune",
		Subtitle:    "Deluxe Edition",
		Publishers:  []openlibrary.Publisher{{Name: "Chilton"}, {Name: "Ace"}},
		PublishDate: "August 1, 1965",
		Authors:     []openlibrary.Author{{Name: "Frank Herbert"}, {Name: ""}},
		Notes:       map[string]any{"type": "/type/text", "value": "First edition"},
	}

	b := ToBook(d, "science_fiction")

	assert.Equal(t, "Dune: Deluxe Edition", b.Title)
	assert.Equal(t, "Frank Herbert", b.Author)
	assert.Equal(t, "First edition", b.Description)
	assert.Equal(t, "science_fiction", b.Genre)
	assert.Equal(t, "Chilton, Ace", b.Publisher)
	assert.Equal(t, time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC), b.PublishDate)
}

func TestParsePublishDate(t *testing.T) {
	cases := map[string]time.Time{
		"1965":           time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC),
		"Aug 1965":       time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC),
		"Aug 3, 1965":    time.Date(1965, 8, 3, 0, 0, 0, 0, time.UTC),
		"3 August 1965":  time.Date(1965, 8, 3, 0, 0, 0, 0, time.UTC),
		" 1965-08-03 ":   time.Date(1965, 8, 3, 0, 0, 0, 0, time.UTC),
		"circa the 60's": {},
		"":               {},
	}
	for in, want := range cases {
		assert.Equal(t, want, ParsePublishDate(in), in)
	}
}
