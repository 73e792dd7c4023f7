package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bookcatalogue/internal/book"
	"bookcatalogue/internal/config"
	"bookcatalogue/internal/platform/logger"

	"github.com/spf13/cobra"
)

// engineOpener builds the engine a command runs against.
type engineOpener func(cfg config.Config) (book.Engine, io.Closer, error)

// app carries the state shared by every subcommand.
type app struct {
	open engineOpener

	indexName string
	engine    string

	cfg     config.Config
	service *book.Service
	closer  io.Closer
}

func newRootCmd(open engineOpener) (*cobra.Command, *app) {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Administer the book catalogue",
		Long:          `Creates the catalogue index, seeds it with generated books and imports books from Open Library.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Runnable() || cmd == cmd.Root() {
				return nil
			}
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.indexName, "index", "", "index name (overrides INDEX_NAME)")
	root.PersistentFlags().StringVar(&a.engine, "engine", "", "search engine: elasticsearch or bleve (overrides SEARCH_ENGINE)")

	root.AddCommand(newIndexCmd(a), newSeedCmd(a), newImportCmd(a))
	return root, a
}

// execute runs root and then releases the engine, whether or not the
// command succeeded.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error: close engine:", cerr)
		err = errors.Join(err, cerr)
	}
	return err
}

func (a *app) init() error {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.engine != "" {
		cfg.Engine = strings.ToLower(a.engine)
	}
	if a.indexName != "" {
		cfg.IndexName = a.indexName
	}
	logger.Init(os.Stderr, cfg.LogLevel)

	engine, closer, err := a.open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	a.cfg = cfg
	a.service = book.NewService(engine, cfg.IndexName)
	a.closer = closer
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
