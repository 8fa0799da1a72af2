package loader

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WriterFactory opens a new bulk writer. Every worker gets its own writer,
// so writers need not be safe for concurrent use.
type WriterFactory func(ctx context.Context) (domain.BulkWriter, error)

type PoolConfig struct {
	Config

	// Workers is the maximum number of files ingested concurrently.
	// Zero selects runtime.NumCPU().
	Workers int

	// ContinueOnError keeps ingesting the remaining files after a file
	// fails, and Run returns every failure. Otherwise the first failure
	// cancels the run.
	ContinueOnError bool
}

// Summary aggregates the results of a run.
type Summary struct {
	Files     []FileResult // in input order; failed files keep their partial counts
	Failed    int
	Cancelled int // files stopped or skipped because the run was cancelled
	Processed int
	Empty     int
	Duration  time.Duration
}

// BulkRate returns the mean bulk indexing rate of the files whose writer
// reported one.
func (s Summary) BulkRate() float64 {
	var sum float64
	var n int
	for _, f := range s.Files {
		if f.Rate > 0 {
			sum += f.Rate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Pool ingests files concurrently with a bounded number of workers.
type Pool struct {
	cfg       PoolConfig
	newWriter WriterFactory
	log       *zap.Logger
}

func NewPool(newWriter WriterFactory, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{cfg: cfg, newWriter: newWriter, log: log}
}

// Run ingests files and waits for all workers to finish.
func (p *Pool) Run(ctx context.Context, files []string) (Summary, error) {
	timer := time.Now()
	results := make([]FileResult, len(files))
	failed := make([]bool, len(files))
	cancelled := make([]bool, len(files))

	var (
		mu   sync.Mutex
		errs error
	)

	var g *errgroup.Group
	gctx := ctx
	if p.cfg.ContinueOnError {
		g = new(errgroup.Group)
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}
	g.SetLimit(p.cfg.Workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				cancelled[i] = true
				return nil
			}

			res, err := p.ingest(gctx, f)
			results[i] = res
			if err == nil {
				return nil
			}

			if gctx.Err() != nil && errors.Is(err, context.Canceled) {
				cancelled[i] = true
				p.log.Warn("file cancelled", zap.String("file", f))
				return nil
			}

			failed[i] = true
			p.log.Error("file failed", zap.String("file", f), zap.Error(err))

			if p.cfg.ContinueOnError {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		errs = err
	}

	sum := Summary{Files: results, Duration: time.Since(timer)}
	for i, r := range results {
		if r.Path == "" {
			results[i].Path = files[i]
		}
		if failed[i] {
			sum.Failed++
		}
		if cancelled[i] {
			sum.Cancelled++
		}
		sum.Processed += r.Processed
		sum.Empty += r.Empty
	}

	if errs == nil && ctx.Err() != nil {
		errs = errors.Wrap(ctx.Err(), "run cancelled")
	}

	return sum, errs
}

func (p *Pool) ingest(ctx context.Context, path string) (FileResult, error) {
	w, err := p.newWriter(ctx)
	if err != nil {
		return FileResult{Path: path}, &FileError{Path: path, Err: errors.Wrap(err, "could not open bulk writer")}
	}
	return NewWorker(w, p.cfg.Config).Ingest(ctx, path)
}
