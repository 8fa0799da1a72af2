// Loader package handles loading corpus archive files into a search engine
// index.
package loader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/anrid/trecload/pkg/bulk"
	"github.com/anrid/trecload/pkg/corpus"
	"github.com/anrid/trecload/pkg/domain"
	"github.com/anrid/trecload/pkg/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Format string

const (
	FormatTREC    Format = "trec"
	FormatClueWeb Format = "clueweb"
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTREC, FormatClueWeb:
		return f, nil
	}
	return "", errors.Errorf("unknown corpus format %q, available: [%s %s]", s, FormatTREC, FormatClueWeb)
}

// DefaultSuffix is the archive file suffix for the format.
func (f Format) DefaultSuffix() string {
	if f == FormatClueWeb {
		return ".warc.gz"
	}
	return ".gz"
}

// FileError reports a file that could not be read or parsed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %s", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FileResult describes one ingested archive file.
type FileResult struct {
	Path      string
	Processed int // documents handed to the accumulator
	Empty     int // records without a usable document (ClueWeb only)
	Declared  int // documents declared by the archive (ClueWeb only)
	Flushes   int
	Duration  time.Duration
	Rate      float64 // docs/sec spent in bulk requests, when the writer reports it
}

// RateReporter is implemented by bulk writers that track their own
// indexing rate, such as *es.ES.
type RateReporter interface {
	BulkIndexingRate() float64
}

// Variance is the number of declared documents that were neither processed
// nor counted as empty. It is zero for formats that declare no count.
func (r FileResult) Variance() int {
	if r.Declared == 0 {
		return 0
	}
	return r.Declared - r.Processed - r.Empty
}

type Config struct {
	IndexName string
	Format    Format
	Bulk      bulk.Config // IndexName and Path are set per file
	Stats     *stats.Stats
	Logger    *zap.Logger
}

// Worker ingests archive files one at a time through its own bulk writer.
type Worker struct {
	cfg Config
	w   domain.BulkWriter
	log *zap.Logger
}

func NewWorker(w domain.BulkWriter, cfg Config) *Worker {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{cfg: cfg, w: w, log: log}
}

// Ingest parses the archive at path and indexes its documents. The last
// partial batch is flushed before Ingest returns.
func (wk *Worker) Ingest(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}
	timer := time.Now()

	wk.log.Info("processing file", zap.String("file", path))

	a, err := corpus.OpenArchive(path)
	if err != nil {
		return res, &FileError{Path: path, Err: err}
	}
	defer a.Close()

	bcfg := wk.cfg.Bulk
	bcfg.IndexName = wk.cfg.IndexName
	bcfg.Path = path
	if bcfg.Logger == nil {
		bcfg.Logger = wk.log
	}
	acc := bulk.New(wk.w, bcfg)

	each := func(doc *domain.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if wk.cfg.Stats != nil {
			wk.cfg.Stats.Read(doc)
		}
		res.Processed++
		return acc.Add(ctx, doc)
	}

	err = wk.parse(a, each, &res)
	if err == nil {
		err = acc.Flush(ctx)
	}
	res.Flushes = acc.Flushes()
	res.Duration = time.Since(timer)
	if rr, ok := wk.w.(RateReporter); ok {
		res.Rate = rr.BulkIndexingRate()
	}

	if err != nil {
		var fe *bulk.FlushError
		if !errors.As(err, &fe) {
			err = &FileError{Path: path, Err: err}
		}
		return res, err
	}

	wk.log.Info("file completed",
		zap.String("file", path),
		zap.Duration("duration", res.Duration),
		zap.Int("declared", res.Declared),
		zap.Int("processed", res.Processed),
		zap.Int("empty", res.Empty),
		zap.Int("variance", res.Variance()),
		zap.Int("bulk_requests", res.Flushes),
		zap.Float64("bulk_rate", res.Rate),
	)
	return res, nil
}

func (wk *Worker) parse(r io.Reader, each corpus.EachDocument, res *FileResult) error {
	switch wk.cfg.Format {
	case FormatClueWeb:
		st, err := corpus.ReadClueWeb(r, each)
		res.Declared = st.Declared
		res.Empty = st.Empty
		return err
	case FormatTREC, "":
		_, err := corpus.ReadTREC(r, each)
		return err
	}
	return errors.Errorf("unknown corpus format %q", wk.cfg.Format)
}
