package blevesearch

import (
	"time"

	"bookcatalogue/internal/book"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	textAnalyzer  = "catalogue_text"
	genreAnalyzer = "catalogue_genre"

	// sourceField holds the JSON encoding of the book for retrieval.
	sourceField = "source"
)

// Range bounds outside this window are rejected by bleve date queries.
var (
	minIndexableTime = time.Date(1677, 12, 1, 0, 0, 0, 0, time.UTC)
	maxIndexableTime = time.Date(2262, 4, 11, 11, 59, 59, 0, time.UTC)
)

// document is what gets indexed for one book.
type document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Genre       string    `json:"genre"`
	PublishDate time.Time `json:"publishDate"`
	Publisher   string    `json:"publisher"`
	Source      string    `json:"source"`
}

// buildIndexMapping maps text fields with a lowercasing unicode analyzer
// without stop words, genre as a single lowercased token and publishDate as
// a datetime.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(textAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	err = indexMapping.AddCustomAnalyzer(genreAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = textAnalyzer

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	for _, field := range []string{book.FieldTitle, "author", "description", "publisher"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = textAnalyzer
		docMapping.AddFieldMappingsAt(field, fm)
	}

	genre := bleve.NewTextFieldMapping()
	genre.Analyzer = genreAnalyzer
	docMapping.AddFieldMappingsAt(book.FieldGenre, genre)

	id := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", id)

	published := bleve.NewDateTimeFieldMapping()
	docMapping.AddFieldMappingsAt(book.FieldPublishDate, published)

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.DocValues = false
	docMapping.AddFieldMappingsAt(sourceField, source)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}
