// Package bulk buffers parsed documents and submits them to a search engine
// in batches bounded by size and document count.
package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/anrid/trecload/pkg/domain"
	"go.uber.org/zap"
)

const (
	DefaultSizeThreshold  = 4000 * 1024 // bytes
	DefaultCountThreshold = 1000
)

type Config struct {
	IndexName string

	// Path names the archive file the documents come from. It is only
	// used for error reporting and logging.
	Path string

	// SizeThreshold is the number of buffered bytes that, once exceeded,
	// triggers a flush. Zero selects DefaultSizeThreshold.
	SizeThreshold int

	// CountThreshold is the number of buffered documents that triggers a
	// flush. Zero selects DefaultCountThreshold.
	CountThreshold int

	// Timeout bounds each bulk request. Zero means no timeout.
	Timeout time.Duration

	Logger  *zap.Logger
	Metrics *Metrics
}

// FlushError is returned when a bulk request fails. The batch it carried is
// dropped.
type FlushError struct {
	Path  string
	DocID string // document whose Add (or the last one before Flush) triggered the request
	Docs  int
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("bulk request of %d docs failed (file: %s, doc: %s): %s", e.Docs, e.Path, e.DocID, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// Accumulator collects documents for a single worker. It is not safe for
// concurrent use.
type Accumulator struct {
	cfg     Config
	w       domain.BulkWriter
	log     *zap.Logger
	pending []*domain.Document
	size    int
	count   int
	flushes int
}

func New(w domain.BulkWriter, cfg Config) *Accumulator {
	if cfg.SizeThreshold <= 0 {
		cfg.SizeThreshold = DefaultSizeThreshold
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = DefaultCountThreshold
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{cfg: cfg, w: w, log: log}
}

// Add buffers doc and flushes when the buffered size exceeds the size
// threshold or the buffered count reaches a multiple of the count threshold.
func (a *Accumulator) Add(ctx context.Context, doc *domain.Document) error {
	a.pending = append(a.pending, doc)
	a.size += doc.Size()
	a.count++

	if a.cfg.Metrics != nil {
		a.cfg.Metrics.DocsAdded.Inc()
	}

	if a.size > a.cfg.SizeThreshold || a.count%a.cfg.CountThreshold == 0 {
		return a.Flush(ctx)
	}
	return nil
}

// Flush submits all buffered documents in one request. It does nothing when
// the buffer is empty. Callers must call Flush once the document source is
// exhausted.
func (a *Accumulator) Flush(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}

	docs := a.pending
	size := a.size
	lastID := docs[len(docs)-1].ID

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	timer := time.Now()
	err := a.w.BulkIndex(ctx, a.cfg.IndexName, docs)
	elapsed := time.Since(timer)

	a.flushes++
	a.reset()

	if a.cfg.Metrics != nil {
		a.cfg.Metrics.observe(len(docs), elapsed, err)
	}

	if err != nil {
		return &FlushError{Path: a.cfg.Path, DocID: lastID, Docs: len(docs), Err: err}
	}

	a.log.Debug("bulk indexed",
		zap.String("file", a.cfg.Path),
		zap.Int("docs", len(docs)),
		zap.Float64("kib", float64(size)/1024),
		zap.Duration("took", elapsed),
	)
	return nil
}

func (a *Accumulator) reset() {
	// The writer may still hold the old slice, so don't reuse it.
	a.pending = nil
	a.size = 0
	a.count = 0
}

// Len returns the number of buffered documents.
func (a *Accumulator) Len() int { return len(a.pending) }

// Size returns the estimated number of buffered bytes.
func (a *Accumulator) Size() int { return a.size }

// Count returns the number of documents added since the last flush.
func (a *Accumulator) Count() int { return a.count }

// Flushes returns the number of bulk requests issued so far.
func (a *Accumulator) Flushes() int { return a.flushes }
