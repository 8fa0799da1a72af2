package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anrid/trecload/pkg/bulk"
	"github.com/anrid/trecload/pkg/config"
	"github.com/anrid/trecload/pkg/corpus"
	"github.com/anrid/trecload/pkg/domain"
	"github.com/anrid/trecload/pkg/loader"
	"github.com/anrid/trecload/pkg/logging"
	"github.com/anrid/trecload/pkg/schema"
	"github.com/anrid/trecload/pkg/search/es"
	"github.com/anrid/trecload/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	// The config file is read before the other flags are bound so that
	// flags override values from the file.
	configFile := configPath(os.Args[1:])

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal(err)
	}

	pflag.String("config", "", "YAML config file")
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()

	if err := cfg.Validate(); err != nil {
		pflag.Usage()
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("load failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	esConfig := es.Config{
		Addresses:        cfg.Elasticsearch.Addresses,
		FastHTTP:         cfg.Elasticsearch.FastHTTP,
		LogRequests:      cfg.Logging.Level == "debug",
		CompressionLevel: cfg.Elasticsearch.CompressionLevel,
		Logger:           logger,
	}

	admin, err := es.New(esConfig)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Elasticsearch.PingRetries+1)*time.Second)
	defer cancel()
	if err := admin.Ping(pingCtx, cfg.Elasticsearch.PingRetries); err != nil {
		return err
	}

	if cfg.Index.Create {
		body, err := schema.Body(cfg.Index.MappingsFile, cfg.Index.Schema)
		if err != nil {
			return err
		}

		ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := admin.CreateIndex(ictx, cfg.Index.Name, body, cfg.Index.Recreate); err != nil {
			return err
		}
	}

	files, err := corpus.Walk(corpus.WalkParams{
		Path:      cfg.Corpus.Dir,
		Suffix:    cfg.Corpus.Suffix,
		StartFrom: cfg.Corpus.StartFrom,
		Max:       cfg.Corpus.MaxFiles,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Found %d files in %s\n", len(files), cfg.Corpus.Dir)

	reg := prometheus.NewRegistry()
	bulkConfig := cfg.BulkConfig()
	bulkConfig.Metrics = bulk.NewMetrics(reg)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	var st *stats.Stats
	if cfg.Corpus.DetailedStats {
		st = stats.New()
	}

	newWriter := func(ctx context.Context) (domain.BulkWriter, error) {
		return es.New(esConfig)
	}

	pool := loader.NewPool(newWriter, loader.PoolConfig{
		Config: loader.Config{
			IndexName: cfg.Index.Name,
			Format:    loader.Format(cfg.Corpus.Format),
			Bulk:      bulkConfig,
			Stats:     st,
			Logger:    logger,
		},
		Workers:         cfg.Workers,
		ContinueOnError: cfg.Corpus.ContinueOnError,
	})

	sum, err := pool.Run(ctx, files)

	fmt.Printf("Done. Loaded %d files (%d failed, %d cancelled) with %d docs (%d empty) in %s\n",
		len(sum.Files)-sum.Failed-sum.Cancelled, sum.Failed, sum.Cancelled, sum.Processed, sum.Empty, sum.Duration)
	if secs := sum.Duration.Seconds(); secs > 0 {
		fmt.Printf("Indexing rate: %.02f docs / sec\n", float64(sum.Processed)/secs)
	}
	if rate := sum.BulkRate(); rate > 0 {
		fmt.Printf("Bulk indexing rate: %.02f docs / sec per worker\n", rate)
	}

	if st != nil {
		st.Print(os.Stdout)
	}

	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
	}
}

// configPath finds the value of --config in args without parsing the other
// flags.
func configPath(args []string) string {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	fs.Parse(args)
	return *path
}
