// Package es talks to Elasticsearch: index management, bulk indexing and
// search.
package es

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.elastic.co/fastjson"
	"go.uber.org/zap"
)

var (
	truee = true
)

type Config struct {
	Addresses []string

	// FastHTTP sends requests through the fasthttp transport instead of
	// net/http.
	FastHTTP bool

	// LogRequests logs the first few requests sent by the fasthttp
	// transport.
	LogRequests bool

	// CompressionLevel gzips bulk request bodies at the given level.
	// Zero disables compression.
	CompressionLevel int

	// Transport overrides the HTTP transport. Used by tests.
	Transport http.RoundTripper

	Logger *zap.Logger
}

// ES is a connection to an Elasticsearch cluster. An ES value is owned by a
// single worker and is not safe for concurrent BulkIndex calls.
type ES struct {
	es  *elasticsearch.Client
	cfg Config
	log *zap.Logger

	jsonw fastjson.Writer
	buf   bytes.Buffer
	gzipw *gzip.Writer

	bulkIndexDocs int64
	bulkIndexSecs float64
}

func New(cfg Config) (*ES, error) {
	if cfg.CompressionLevel < 0 || cfg.CompressionLevel > gzip.BestCompression {
		return nil, errors.Errorf("expected compression level in range [0,9], got %d", cfg.CompressionLevel)
	}

	s := &ES{cfg: cfg, log: cfg.Logger}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	config := elasticsearch.Config{
		Addresses: append([]string(nil), cfg.Addresses...),
		// Failed bulk requests are not retried.
		DisableRetry: true,
	}
	switch {
	case cfg.Transport != nil:
		config.Transport = cfg.Transport
	case cfg.FastHTTP:
		t := NewLoggingTransport(s.log)
		t.EnableLogging = cfg.LogRequests
		config.Transport = t
	}

	var err error
	s.es, err = elasticsearch.NewClient(config)
	if err != nil {
		return nil, errors.Wrap(err, "error creating the client")
	}

	if cfg.CompressionLevel > 0 {
		s.gzipw, _ = gzip.NewWriterLevel(&s.buf, cfg.CompressionLevel)
	}

	return s, nil
}

// Ping checks that Elasticsearch can be reached, retrying once a second.
// At least one attempt is made.
func (s *ES) Ping(ctx context.Context, retries int) error {
	var lastErr error

	if retries < 1 {
		retries = 1
	}
	for ; retries > 0; retries-- {
		res, err := s.es.Ping(
			s.es.Ping.WithContext(ctx),
			s.es.Ping.WithErrorTrace(),
		)
		lastErr = checkResponse(res, err)
		if res != nil {
			res.Body.Close()
		}
		if lastErr == nil {
			s.log.Info("pinged elasticsearch successfully")
			return nil
		}

		s.log.Warn("pinging elasticsearch failed",
			zap.Error(lastErr),
			zap.Int("retries_remaining", retries-1),
		)
		if retries == 1 {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "ping cancelled")
		case <-time.After(time.Second):
		}
	}

	return errors.Wrap(lastErr, "could not reach elasticsearch")
}

// IndexExists reports whether indexName exists.
func (s *ES) IndexExists(ctx context.Context, indexName string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{
		Index: []string{indexName},
	}.Do(ctx, s.es)
	if err != nil {
		return false, errors.Wrapf(err, "could not check index %s", indexName)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, errors.Errorf("unexpected status checking index %s: %s", indexName, res.String())
}

// DeleteIndex deletes indexName. A missing index is not an error.
func (s *ES) DeleteIndex(ctx context.Context, indexName string) error {
	res, err := esapi.IndicesDeleteRequest{
		Index:             []string{indexName},
		IgnoreUnavailable: &truee,
	}.Do(ctx, s.es)
	if err := checkResponse(res, err); err != nil {
		return errors.Wrapf(err, "could not delete index %s", indexName)
	}
	res.Body.Close()

	s.log.Info("deleted index", zap.String("index", indexName), zap.Int("status", res.StatusCode))
	return nil
}

// CreateIndex creates indexName from body unless it already exists. When
// recreate is set an existing index is deleted first.
func (s *ES) CreateIndex(ctx context.Context, indexName string, body []byte, recreate bool) error {
	if recreate {
		if err := s.DeleteIndex(ctx, indexName); err != nil {
			return err
		}
	}

	exists, err := s.IndexExists(ctx, indexName)
	if err != nil {
		return err
	}
	if exists {
		s.log.Info("index already exists", zap.String("index", indexName))
		return nil
	}

	res, err := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.es)
	if err := checkResponse(res, err); err != nil {
		return errors.Wrapf(err, "could not create index %s", indexName)
	}
	res.Body.Close()

	s.log.Info("created index", zap.String("index", indexName), zap.Int("status", res.StatusCode))
	return nil
}

// Refresh makes recently indexed documents searchable.
func (s *ES) Refresh(ctx context.Context, indexName string) error {
	res, err := esapi.IndicesRefreshRequest{
		Index: []string{indexName},
	}.Do(ctx, s.es)
	if err := checkResponse(res, err); err != nil {
		return errors.Wrapf(err, "could not refresh index %s", indexName)
	}
	res.Body.Close()
	return nil
}

// BulkIndex submits docs in a single bulk request. Documents are sent in
// order as index actions, so a repeated ID overwrites the earlier document.
func (s *ES) BulkIndex(ctx context.Context, indexName string, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.resetBuf()

	var w io.Writer = &s.buf
	if s.gzipw != nil {
		w = s.gzipw
	}

	for _, d := range docs {
		s.writeMeta(d.ID)
		if _, err := w.Write(s.jsonw.Bytes()); err != nil {
			return errors.Wrap(err, "could not write bulk action")
		}

		docJ, err := json.Marshal(d)
		if err != nil {
			return errors.Wrapf(err, "could not marshal doc id %s", d.ID)
		}
		docJ = append(docJ, '\n')
		if _, err := w.Write(docJ); err != nil {
			return errors.Wrap(err, "could not write bulk document")
		}
	}

	req := esapi.BulkRequest{
		Index:      indexName,
		Body:       &s.buf,
		Refresh:    "false",
		Header:     make(http.Header),
		FilterPath: []string{"errors", "items.*._id", "items.*.status", "items.*.error.type", "items.*.error.reason"},
	}
	if s.gzipw != nil {
		if err := s.gzipw.Close(); err != nil {
			return errors.Wrap(err, "could not close gzip writer")
		}
		req.Header.Set("Content-Encoding", "gzip")
	}

	timer := time.Now()

	res, err := req.Do(ctx, s.es)
	if err := checkResponse(res, err); err != nil {
		return errors.Wrap(err, "bulk request failed")
	}
	defer res.Body.Close()

	var br BulkResponse
	if err := Unmarshal(res, &br); err != nil {
		return err
	}

	if br.Errors {
		if item, ok := br.FirstError(); ok {
			return errors.Errorf("error while bulk indexing doc %s (status: %d): %s: %s",
				item.ID, item.Status, item.Error.Type, item.Error.Reason)
		}
		return errors.New("error while bulk indexing")
	}

	s.bulkIndexDocs += int64(len(docs))
	s.bulkIndexSecs += time.Since(timer).Seconds()

	return nil
}

func (s *ES) writeMeta(id string) {
	s.jsonw.Reset()
	s.jsonw.RawString(`{"index":{"_id":`)
	s.jsonw.String(id)
	s.jsonw.RawString("}}\n")
}

func (s *ES) resetBuf() {
	s.buf.Reset()
	if s.gzipw != nil {
		s.gzipw.Reset(&s.buf)
	}
}

// BulkIndexingRate returns the average number of documents indexed per
// second of bulk request time.
func (s *ES) BulkIndexingRate() float64 {
	if s.bulkIndexSecs == 0 {
		return 0
	}
	return float64(s.bulkIndexDocs) / s.bulkIndexSecs
}

func (s *ES) Search(ctx context.Context, indexName string, queryJSON []byte) (hits map[string]interface{}, err error) {
	res, err := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}.Do(ctx, s.es)
	if err := checkResponse(res, err); err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	defer res.Body.Close()

	hits = make(map[string]interface{})
	if err := Unmarshal(res, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func checkResponse(res *esapi.Response, err error) error {
	if err != nil {
		return errors.Wrap(err, "error getting response")
	}
	if res.IsError() {
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return errors.Errorf("error response: [%d] %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func Unmarshal(res *esapi.Response, o interface{}) error {
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if err := json.Unmarshal(data, o); err != nil {
		return errors.Wrapf(err, "error unmarshalling response body: %s", string(data))
	}
	return nil
}

type BulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]BulkResponseItem `json:"items"`
}

type BulkResponseItem struct {
	ID     string  `json:"_id"`
	Status int     `json:"status"`
	Error  ESError `json:"error"`
}

type ESError struct {
	Type   string `json:"type"`   // Error type for the operation.
	Reason string `json:"reason"` // Reason for the failed operation.
}

// FirstError returns the first item that failed.
func (br *BulkResponse) FirstError() (BulkResponseItem, bool) {
	for _, item := range br.Items {
		for _, it := range item {
			if it.Error.Type != "" || it.Status > 299 {
				return it, true
			}
		}
	}
	return BulkResponseItem{}, false
}
