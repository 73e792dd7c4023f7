package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"bookcatalogue/internal/book"

	"github.com/spf13/cobra"
)

var (
	seedGenres     = []string{"Fiction", "Science Fiction", "History", "Science", "Technology", "Romance", "Mystery", "Biography", "Philosophy", "Art"}
	seedPublishers = []string{"Penguin", "HarperCollins", "Oxford", "Cambridge", "MIT Press", "Springer", "Wiley", "Elsevier"}
	seedAuthors    = []string{"Ada Lovelace", "Mary Shelley", "Jules Verne", "Ursula Le Guin", "Isaac Asimov", "Agatha Christie", "Toni Morrison", "Italo Calvino"}
	seedWords      = []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
)

func newSeedRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// seedBook generates the i-th fake book.
func seedBook(rng *rand.Rand, i int) book.Book {
	pick := func(xs []string) string { return xs[rng.IntN(len(xs))] }

	year := 1950 + rng.IntN(75)
	return book.Book{
		Title:       fmt.Sprintf("Book Title %d - %s", i+1, pick(seedWords)),
		Author:      pick(seedAuthors),
		Description: fmt.Sprintf("This is a book about %s. It explores the fundamental concepts and provides insights into the subject matter.", pick(seedWords)),
		Genre:       pick(seedGenres),
		PublishDate: time.Date(year, time.Month(1+rng.IntN(12)), 1+rng.IntN(28), 0, 0, 0, 0, time.UTC),
		Publisher:   pick(seedPublishers),
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		count int
		seed  uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create generated books through the catalogue service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := newSeedRand(seed)

			slog.Info("seeding books", "count", count, "index", a.service.Index(), "seed", seed)
			for i := 0; i < count; i++ {
				if _, err := a.service.Create(cmd.Context(), seedBook(rng, i)); err != nil {
					return fmt.Errorf("seed book %d: %w", i+1, err)
				}
				if (i+1)%1000 == 0 {
					slog.Info("seed progress", "created", i+1, "total", count)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d books in %s\n", count, a.service.Index())
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 100, "number of books to create")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
