// Package engines builds the configured search engine.
package engines

import (
	"fmt"
	"io"
	"log/slog"

	"bookcatalogue/internal/book"
	"bookcatalogue/internal/config"
	"bookcatalogue/internal/platform/blevesearch"
	"bookcatalogue/internal/platform/elastic"
	"bookcatalogue/internal/platform/metrics"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open creates the engine selected by cfg.Engine, instrumented with
// metrics. The returned closer releases it and must be called on shutdown.
func Open(cfg config.Config) (book.Engine, io.Closer, error) {
	switch cfg.Engine {
	case config.EngineElasticsearch:
		es, err := elastic.New(elastic.Config{
			Addresses: cfg.ElasticURLs,
			Username:  cfg.ElasticUsername,
			Password:  cfg.ElasticPassword,
			Refresh:   cfg.ElasticRefresh,
		})
		if err != nil {
			return nil, nil, err
		}
		addrs := make([]string, len(cfg.ElasticURLs))
		for i, u := range cfg.ElasticURLs {
			addrs[i] = config.RedactURL(u)
		}
		slog.Info("using elasticsearch engine", "addresses", addrs, "refresh", cfg.ElasticRefresh)
		return metrics.NewEngine(es), nopCloser{}, nil

	case config.EngineBleve:
		bl := blevesearch.New(cfg.BleveDir)
		slog.Info("using bleve engine", "dir", cfg.BleveDir, "in_memory", cfg.BleveDir == "")
		return metrics.NewEngine(bl), bl, nil

	default:
		return nil, nil, fmt.Errorf("engines: unknown engine %q", cfg.Engine)
	}
}
