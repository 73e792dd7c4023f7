// Package elastic stores the catalogue in an Elasticsearch index.
package elastic

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bookcatalogue/internal/book"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"gopkg.in/yaml.v3"
)

//go:embed index.yaml
var indexDefinition []byte

// Config holds the connection settings for a cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	// Refresh is passed as the refresh parameter of every write. Empty
	// leaves the cluster default.
	Refresh string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Engine implements book.Engine over the Elasticsearch REST API. One Engine
// is created per process and shared by all requests.
type Engine struct {
	es      *elasticsearch.Client
	refresh string
}

// New creates an Engine for the given cluster. No request is made.
func New(cfg Config) (*Engine, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elastic: create client: %w", err)
	}
	return &Engine{es: es, refresh: cfg.Refresh}, nil
}

// ResponseError is a non-success reply from the cluster.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elastic: status %d", e.Status)
	}
	return fmt.Sprintf("elastic: status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// errorBody covers the error replies used here: exceptions carry an error
// object, document misses carry found or result.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Found  *bool           `json:"found"`
	Result string          `json:"result"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// decodeError turns a failed response into an error. A 404 about the
// document itself, not the index, wraps book.ErrNotFound.
func decodeError(res *esapi.Response) error {
	raw, _ := io.ReadAll(res.Body)

	var body errorBody
	_ = json.Unmarshal(raw, &body)

	rerr := &ResponseError{Status: res.StatusCode}
	if len(body.Error) > 0 {
		var cause errorCause
		if err := json.Unmarshal(body.Error, &cause); err == nil {
			rerr.Type, rerr.Reason = cause.Type, cause.Reason
		} else {
			_ = json.Unmarshal(body.Error, &rerr.Reason)
		}
	}

	if res.StatusCode == http.StatusNotFound {
		missing := (body.Found != nil && !*body.Found) ||
			body.Result == "not_found" ||
			rerr.Type == "document_missing_exception"
		if missing {
			return fmt.Errorf("%w: %w", book.ErrNotFound, rerr)
		}
	}
	return rerr
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("elastic: encode body: %w", err)
	}
	return &buf, nil
}

// document is the stored form of a book. An undated book stores a null
// publishDate so it is not indexed and no date filter matches it.
type document struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Description string     `json:"description"`
	Genre       string     `json:"genre"`
	PublishDate *time.Time `json:"publishDate"`
	Publisher   string     `json:"publisher"`
}

func toDocument(b book.Book) document {
	doc := document{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Genre:       b.Genre,
		Publisher:   b.Publisher,
	}
	if !b.PublishDate.IsZero() {
		t := b.PublishDate.UTC()
		doc.PublishDate = &t
	}
	return doc
}

// Index stores doc under id, replacing any document already there.
func (e *Engine) Index(ctx context.Context, index, id string, doc book.Book) error {
	body, err := encode(toDocument(doc))
	if err != nil {
		return err
	}

	opts := []func(*esapi.IndexRequest){
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(id),
	}
	if e.refresh != "" {
		opts = append(opts, e.es.Index.WithRefresh(e.refresh))
	}

	res, err := e.es.Index(index, body, opts...)
	if err != nil {
		return fmt.Errorf("elastic: index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

type getResponse struct {
	ID     string    `json:"_id"`
	Found  bool      `json:"found"`
	Source book.Book `json:"_source"`
}

// Get fetches a document by id. A missing document is found=false; a
// missing index is an error.
func (e *Engine) Get(ctx context.Context, index, id string) (book.Book, bool, error) {
	res, err := e.es.Get(index, id, e.es.Get.WithContext(ctx))
	if err != nil {
		return book.Book{}, false, fmt.Errorf("elastic: get request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := decodeError(res)
		if errors.Is(err, book.ErrNotFound) {
			return book.Book{}, false, nil
		}
		return book.Book{}, false, err
	}

	var out getResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return book.Book{}, false, fmt.Errorf("elastic: decode get: %w", err)
	}
	if !out.Found {
		return book.Book{}, false, nil
	}
	if out.Source.ID == "" {
		out.Source.ID = out.ID
	}
	return out.Source, true, nil
}

// UpdateMerge sends doc as a partial update. Every field of doc is sent,
// empty values included, so clearing the date stores null.
func (e *Engine) UpdateMerge(ctx context.Context, index, id string, doc book.Book) error {
	body, err := encode(map[string]any{"doc": toDocument(doc)})
	if err != nil {
		return err
	}

	opts := []func(*esapi.UpdateRequest){e.es.Update.WithContext(ctx)}
	if e.refresh != "" {
		opts = append(opts, e.es.Update.WithRefresh(e.refresh))
	}

	res, err := e.es.Update(index, id, body, opts...)
	if err != nil {
		return fmt.Errorf("elastic: update request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, index, id string) error {
	opts := []func(*esapi.DeleteRequest){e.es.Delete.WithContext(ctx)}
	if e.refresh != "" {
		opts = append(opts, e.es.Delete.WithRefresh(e.refresh))
	}

	res, err := e.es.Delete(index, id, opts...)
	if err != nil {
		return fmt.Errorf("elastic: delete request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string    `json:"_id"`
			Source book.Book `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs plan against index and returns hits in relevance order.
func (e *Engine) Search(ctx context.Context, index string, plan book.Plan) ([]book.Book, error) {
	body, err := encode(plan.Source())
	if err != nil {
		return nil, err
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(index),
		e.es.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic: search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeError(res)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elastic: decode search: %w", err)
	}

	books := make([]book.Book, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		b := hit.Source
		if b.ID == "" {
			b.ID = hit.ID
		}
		books = append(books, b)
	}
	return books, nil
}

// IndexDefinition returns the settings and mappings used by CreateIndex.
func IndexDefinition() (map[string]any, error) {
	var def map[string]any
	if err := yaml.Unmarshal(indexDefinition, &def); err != nil {
		return nil, fmt.Errorf("elastic: parse index definition: %w", err)
	}
	return def, nil
}

// CreateIndex creates index with the catalogue settings and mappings. An
// existing index is an error.
func (e *Engine) CreateIndex(ctx context.Context, index string) error {
	def, err := IndexDefinition()
	if err != nil {
		return err
	}
	body, err := encode(def)
	if err != nil {
		return err
	}

	res, err := e.es.Indices.Create(index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("elastic: create index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// Ping checks that the cluster answers.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elastic: ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return &ResponseError{Status: res.StatusCode}
	}
	return nil
}
