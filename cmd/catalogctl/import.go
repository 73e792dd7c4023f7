package main

import (
	"fmt"
	"time"

	"bookcatalogue/internal/ingest"
	"bookcatalogue/internal/platform/openlibrary"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		subjects  []string
		booksMax  int
		batchSize int
		retries   int
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Import books from Open Library",
		Example: `  catalogctl import --subject science_fiction --subject history --max 200`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(subjects) == 0 {
				return fmt.Errorf("at least one --subject is required")
			}

			client := openlibrary.NewClient(a.cfg.OpenLibraryAgent, a.cfg.OpenLibraryRPS, retries,
				openlibrary.WithBaseURL(baseURL))
			svc := ingest.NewService(client, a.service, ingest.Config{
				BooksMax:  booksMax,
				Subjects:  subjects,
				BatchSize: batchSize,
			})

			run, err := svc.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: fetched=%d created=%d failed=%d in %s\n",
				run.ID, run.Status, run.BooksFetched, run.BooksCreated, run.BooksFailed, run.Duration().Round(time.Millisecond))
			return err
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subject", nil, "Open Library subject to import (repeatable)")
	cmd.Flags().IntVar(&booksMax, "max", 100, "maximum number of books to create")
	cmd.Flags().IntVar(&batchSize, "batch", 20, "ISBNs hydrated per Open Library request")
	cmd.Flags().IntVar(&retries, "retries", 3, "retries for throttled or failed Open Library requests")
	cmd.Flags().StringVar(&baseURL, "openlibrary-url", openlibrary.DefaultBaseURL, "Open Library base URL")
	return cmd
}
