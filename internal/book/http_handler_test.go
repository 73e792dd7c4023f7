package book

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookcatalogue/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) (*http.ServeMux, *MockEngine, *Service) {
	ctrl := gomock.NewController(t)
	engine := NewMockEngine(ctrl)
	service := NewService(engine, testIndex)
	mux := http.NewServeMux()
	NewHTTPHandler(service).Register(mux)
	return mux, engine, service
}

func serve(mux *http.ServeMux, r *http.Request) testutil.RecordResponse {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return testutil.RecordHTTPResponse(w)
}

func TestHTTPHandler_Search(t *testing.T) {
	t.Run("defaults to match all", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Search(gomock.Any(), testIndex, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, plan Plan) ([]Book, error) {
				assert.True(t, plan.MatchAll())
				assert.Equal(t, DefaultLimit, plan.Size)
				return []Book{{ID: "1", Title: "Dune"}}, nil
			})

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/search", nil))

		assert.Equal(t, http.StatusOK, resp.Code)
		require.Len(t, resp.List(), 1)
		meta := resp.Body["meta"].(map[string]interface{})
		assert.EqualValues(t, 1, meta["count"])
	})

	t.Run("all parameters", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Search(gomock.Any(), testIndex, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, plan Plan) ([]Book, error) {
				require.Equal(t, []ClauseKind{MustMatch, FilterTerm, FilterRange}, kinds(plan))
				assert.Equal(t, "dune", plan.Clauses[0].Value)
				assert.Equal(t, "scifi", plan.Clauses[1].Value)
				r := plan.Clauses[2].Range
				assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *r.From)
				assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), *r.To)
				assert.Equal(t, 5, plan.Size)
				return nil, nil
			})

		resp := serve(mux, httptest.NewRequest(http.MethodGet,
			"/api/book/search?term=Dune&genre=SciFi&startDate=2020-01-01&endDate=2020-12-31T00:00:00Z&take=5", nil))

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.NotNil(t, resp.Body["data"])
		assert.Empty(t, resp.List())
	})

	t.Run("take is clamped", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Search(gomock.Any(), testIndex, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, plan Plan) ([]Book, error) {
				assert.Equal(t, MaxTake, plan.Size)
				return nil, nil
			})

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/search?take=5000", nil))

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		mux, _, _ := newTestMux(t)

		for _, q := range []string{"startDate=yesterday", "endDate=2020-13-01", "take=ten"} {
			resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/search?"+q, nil))

			assert.Equal(t, http.StatusBadRequest, resp.Code, q)
			assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode(), q)
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Search(gomock.Any(), testIndex, gomock.Any()).Return(nil, errors.New("boom"))

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/search?term=x", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode())
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		stored := sampleBook()
		stored.ID = "abc"
		engine.EXPECT().Get(gomock.Any(), testIndex, "abc").Return(stored, true, nil)

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/abc", nil))

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "abc", resp.Data()["id"])
		assert.Equal(t, "Dune Messiah", resp.Data()["title"])
		assert.Equal(t, "1969-10-15T00:00:00Z", resp.Data()["publishDate"])
	})

	t.Run("not found", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Get(gomock.Any(), testIndex, "missing").Return(Book{}, false, nil)

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/missing", nil))

		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Equal(t, "NOT_FOUND", resp.ErrorCode())
	})

	t.Run("engine failure", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Get(gomock.Any(), testIndex, "abc").Return(Book{}, false, context.DeadlineExceeded)

		resp := serve(mux, httptest.NewRequest(http.MethodGet, "/api/book/abc", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

func TestHTTPHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mux, engine, service := newTestMux(t)
		service.newID = func() string { return "new-id" }
		engine.EXPECT().Index(gomock.Any(), testIndex, "new-id", gomock.Any()).Return(nil)

		body := map[string]any{
			"id":          "ignored",
			"title":       "Dune",
			"author":      "Frank Herbert",
			"genre":       "SciFi",
			"publishDate": "1965-08-01T00:00:00Z",
		}
		resp := serve(mux, testutil.NewRequest(http.MethodPost, "/api/book", body))

		assert.Equal(t, http.StatusCreated, resp.Code)
		assert.Equal(t, "new-id", resp.Data()["id"])
		assert.Equal(t, "/api/book/new-id", resp.Header.Get("Location"))
	})

	t.Run("missing fields", func(t *testing.T) {
		mux, _, _ := newTestMux(t)

		resp := serve(mux, testutil.NewRequest(http.MethodPost, "/api/book", map[string]any{"genre": "SciFi"}))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode())
		details := resp.Body["error"].(map[string]interface{})["details"].([]interface{})
		assert.Len(t, details, 2)
	})

	t.Run("malformed json", func(t *testing.T) {
		mux, _, _ := newTestMux(t)

		resp := serve(mux, testutil.NewRawRequest(http.MethodPost, "/api/book", `{"title":`))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "BAD_REQUEST", resp.ErrorCode())
	})

	t.Run("engine failure", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Index(gomock.Any(), testIndex, gomock.Any(), gomock.Any()).Return(errors.New("unavailable"))

		resp := serve(mux, testutil.NewRequest(http.MethodPost, "/api/book", toDTO(sampleBook())))

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

func TestHTTPHandler_Update(t *testing.T) {
	t.Run("replaced", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		want := sampleBook()
		want.ID = "abc"
		engine.EXPECT().UpdateMerge(gomock.Any(), testIndex, "abc", want).Return(nil)

		in := sampleBook()
		resp := serve(mux, testutil.NewRequest(http.MethodPut, "/api/book/abc", toDTO(in)))

		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("id mismatch", func(t *testing.T) {
		mux, _, _ := newTestMux(t)
		in := sampleBook()
		in.ID = "other"

		resp := serve(mux, testutil.NewRequest(http.MethodPut, "/api/book/abc", toDTO(in)))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().UpdateMerge(gomock.Any(), testIndex, "gone", gomock.Any()).
			Return(fmt.Errorf("document missing: %w", ErrNotFound))

		resp := serve(mux, testutil.NewRequest(http.MethodPut, "/api/book/gone", toDTO(sampleBook())))

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("incomplete record", func(t *testing.T) {
		mux, _, _ := newTestMux(t)

		resp := serve(mux, testutil.NewRequest(http.MethodPut, "/api/book/abc", map[string]any{"title": "Only"}))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestHTTPHandler_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Delete(gomock.Any(), testIndex, "abc").Return(nil)

		resp := serve(mux, httptest.NewRequest(http.MethodDelete, "/api/book/abc", nil))

		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		mux, engine, _ := newTestMux(t)
		engine.EXPECT().Delete(gomock.Any(), testIndex, "gone").Return(ErrNotFound)

		resp := serve(mux, httptest.NewRequest(http.MethodDelete, "/api/book/gone", nil))

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2020-01-02":                time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		"2020-01-02T10:30:00":       time.Date(2020, 1, 2, 10, 30, 0, 0, time.UTC),
		"2020-01-02T10:30:00+02:00": time.Date(2020, 1, 2, 8, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(*got), in)
		assert.Equal(t, time.UTC, got.Location(), in)
	}

	got, err := parseDate("  ")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("02/01/2020")
	assert.Error(t, err)
}
