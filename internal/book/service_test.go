package book

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = "books"

func newTestService(t *testing.T) (*Service, *MockEngine) {
	ctrl := gomock.NewController(t)
	engine := NewMockEngine(ctrl)
	svc := NewService(engine, testIndex)
	return svc, engine
}

func sampleBook() Book {
	return Book{
		Title:       "Dune Messiah",
		Author:      "Frank Herbert",
		Genre:       "Science Fiction",
		PublishDate: time.Date(1969, 10, 15, 0, 0, 0, 0, time.UTC),
		Publisher:   "Putnam",
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns a fresh id", func(t *testing.T) {
		svc, engine := newTestService(t)
		svc.newID = func() string { return "id-1" }

		in := sampleBook()
		in.ID = "caller-id"
		want := sampleBook()
		want.ID = "id-1"
		engine.EXPECT().Index(ctx, testIndex, "id-1", want).Return(nil)

		got, err := svc.Create(ctx, in)

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("retry yields a new id", func(t *testing.T) {
		svc, engine := newTestService(t)
		ids := []string{"first", "second"}
		svc.newID = func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}

		gomock.InOrder(
			engine.EXPECT().Index(ctx, testIndex, "first", gomock.Any()).Return(errors.New("connection refused")),
			engine.EXPECT().Index(ctx, testIndex, "second", gomock.Any()).Return(nil),
		)

		_, err := svc.Create(ctx, sampleBook())
		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "create", perr.Op)

		got, err := svc.Create(ctx, sampleBook())
		require.NoError(t, err)
		assert.Equal(t, "second", got.ID)
	})

	t.Run("rejects missing title and author", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Create(ctx, Book{Title: "  "})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields := []string{}
		for _, f := range verr.Fields {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"title", "author"}, fields)
	})

	t.Run("uses uuid by default", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Index(ctx, testIndex, gomock.Any(), gomock.Any()).Return(nil).Times(2)

		a, err := svc.Create(ctx, sampleBook())
		require.NoError(t, err)
		b, err := svc.Create(ctx, sampleBook())
		require.NoError(t, err)

		assert.Len(t, a.ID, 36)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		svc, engine := newTestService(t)
		stored := sampleBook()
		stored.ID = "id-1"
		engine.EXPECT().Get(ctx, testIndex, "id-1").Return(stored, true, nil)

		got, err := svc.Get(ctx, "id-1")

		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})

	t.Run("not found is not a persistence error", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Get(ctx, testIndex, "missing").Return(Book{}, false, nil)

		_, err := svc.Get(ctx, "missing")

		assert.ErrorIs(t, err, ErrNotFound)
		var perr *PersistenceError
		assert.False(t, errors.As(err, &perr))
	})

	t.Run("engine failure", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Get(ctx, testIndex, "id-1").Return(Book{}, false, errors.New("index_not_found_exception"))

		_, err := svc.Get(ctx, "id-1")

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "get", perr.Op)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Get(ctx, "")

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the full record", func(t *testing.T) {
		svc, engine := newTestService(t)
		b := sampleBook()
		b.ID = "id-1"
		b.Description = ""
		engine.EXPECT().UpdateMerge(ctx, testIndex, "id-1", b).Return(nil)

		_, err := svc.Update(ctx, b)

		require.NoError(t, err)
	})

	t.Run("requires an id", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Update(ctx, sampleBook())

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "id", verr.Fields[0].Field)
	})

	t.Run("missing id reported by engine", func(t *testing.T) {
		svc, engine := newTestService(t)
		b := sampleBook()
		b.ID = "gone"
		engine.EXPECT().UpdateMerge(ctx, testIndex, "gone", b).Return(fmt.Errorf("document_missing_exception: %w", ErrNotFound))

		_, err := svc.Update(ctx, b)

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Delete(ctx, testIndex, "id-1").Return(nil)

		assert.NoError(t, svc.Remove(ctx, "id-1"))
	})

	t.Run("missing id is surfaced", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Delete(ctx, testIndex, "gone").Return(ErrNotFound)

		err := svc.Remove(ctx, "gone")

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "remove", perr.Op)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates the built plan", func(t *testing.T) {
		svc, engine := newTestService(t)
		criteria := NewCriteria("Dune", "", nil, nil, 2)
		engine.EXPECT().Search(ctx, testIndex, BuildQuery(criteria)).Return([]Book{{ID: "1"}, {ID: "2"}}, nil)

		got, err := svc.Search(ctx, criteria)

		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("no matches is an empty result", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Search(ctx, testIndex, gomock.Any()).Return(nil, nil)

		got, err := svc.Search(ctx, NewCriteria("", "", nil, nil, 10))

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("never returns more than the limit", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Search(ctx, testIndex, gomock.Any()).Return([]Book{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil)

		got, err := svc.Search(ctx, NewCriteria("", "", nil, nil, 1))

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("engine failure aborts", func(t *testing.T) {
		svc, engine := newTestService(t)
		engine.EXPECT().Search(ctx, testIndex, gomock.Any()).Return([]Book{{ID: "1"}}, errors.New("search_phase_execution_exception"))

		got, err := svc.Search(ctx, NewCriteria("dune", "", nil, nil, 10))

		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Nil(t, got)
	})
}

func TestService_CreateIndex(t *testing.T) {
	ctx := context.Background()
	svc, engine := newTestService(t)
	engine.EXPECT().CreateIndex(ctx, testIndex).Return(errors.New("resource_already_exists_exception"))

	err := svc.CreateIndex(ctx)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create index", perr.Op)
}

func TestService_Ping(t *testing.T) {
	ctx := context.Background()

	t.Run("engine without ping is ready", func(t *testing.T) {
		svc, _ := newTestService(t)
		assert.NoError(t, svc.Ping(ctx))
	})

	t.Run("engine ping is used", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		engine := struct {
			*MockEngine
			*MockPinger
		}{NewMockEngine(ctrl), NewMockPinger(ctrl)}
		engine.MockPinger.EXPECT().Ping(ctx).Return(errors.New("down"))

		svc := NewService(engine, testIndex)

		assert.Error(t, svc.Ping(ctx))
	})
}
