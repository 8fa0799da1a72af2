// Package config holds the loader configuration. Values come from defaults,
// an optional YAML file and command line flags, in that order.
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/anrid/trecload/pkg/bulk"
	"github.com/anrid/trecload/pkg/loader"
	"github.com/anrid/trecload/pkg/schema"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Index         IndexConfig         `yaml:"index"`
	Bulk          BulkConfig          `yaml:"bulk"`
	Corpus        CorpusConfig        `yaml:"corpus"`
	Workers       int                 `yaml:"workers"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ElasticsearchConfig struct {
	Addresses        []string `yaml:"addresses"`
	FastHTTP         bool     `yaml:"fasthttp"`
	CompressionLevel int      `yaml:"compressionLevel"`
	PingRetries      int      `yaml:"pingRetries"`
}

type IndexConfig struct {
	Name         string        `yaml:"name"`
	Create       bool          `yaml:"create"`
	Recreate     bool          `yaml:"recreate"`
	MappingsFile string        `yaml:"mappingsFile"`
	Schema       schema.Params `yaml:"schema"`
}

type BulkConfig struct {
	SizeKiB int           `yaml:"sizeKiB"`
	Count   int           `yaml:"count"`
	Timeout time.Duration `yaml:"timeout"`
}

type CorpusConfig struct {
	Dir             string `yaml:"dir"`
	Format          string `yaml:"format"`
	Suffix          string `yaml:"suffix"`
	StartFrom       string `yaml:"startFrom"`
	MaxFiles        int    `yaml:"maxFiles"`
	ContinueOnError bool   `yaml:"continueOnError"`
	DetailedStats   bool   `yaml:"detailedStats"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Elasticsearch: ElasticsearchConfig{
			Addresses:   []string{"http://localhost:9200"},
			PingRetries: 10,
		},
		Index: IndexConfig{
			Name: "aquaint_all",
		},
		Bulk: BulkConfig{
			SizeKiB: bulk.DefaultSizeThreshold / 1024,
			Count:   bulk.DefaultCountThreshold,
			Timeout: 600 * time.Second,
		},
		Corpus: CorpusConfig{
			Dir:    "data/",
			Format: string(loader.FormatTREC),
		},
		Workers: runtime.NumCPU(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "could not read config file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "could not parse config file %s", path)
	}
	return cfg, nil
}

// BindFlags registers flags on fs that override cfg when set.
func (cfg *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&cfg.Elasticsearch.Addresses, "es", cfg.Elasticsearch.Addresses, "Elasticsearch addresses")
	fs.BoolVar(&cfg.Elasticsearch.FastHTTP, "fasthttp", cfg.Elasticsearch.FastHTTP, "Use the fasthttp transport")
	fs.IntVar(&cfg.Elasticsearch.CompressionLevel, "gzip-level", cfg.Elasticsearch.CompressionLevel, "Gzip level for bulk request bodies (0 disables compression)")

	fs.StringVar(&cfg.Index.Name, "index", cfg.Index.Name, "Index name")
	fs.BoolVar(&cfg.Index.Create, "create-index", cfg.Index.Create, "Create the index if it does not exist")
	fs.BoolVar(&cfg.Index.Recreate, "recreate-index", cfg.Index.Recreate, "Drop and recreate the index")
	fs.StringVar(&cfg.Index.MappingsFile, "mappings", cfg.Index.MappingsFile, "JSON file with index settings and mappings (overrides the built-in schema)")
	fs.StringVar(&cfg.Index.Schema.StopwordsPath, "stopwords", cfg.Index.Schema.StopwordsPath, "Stopwords file path, relative to the Elasticsearch config dir")

	fs.IntVar(&cfg.Bulk.SizeKiB, "bulk-size-kib", cfg.Bulk.SizeKiB, "Flush a bulk request once buffered documents exceed this many KiB")
	fs.IntVar(&cfg.Bulk.Count, "bulk-count", cfg.Bulk.Count, "Flush a bulk request every this many documents")
	fs.DurationVar(&cfg.Bulk.Timeout, "timeout", cfg.Bulk.Timeout, "Timeout of a single bulk request")

	fs.StringVar(&cfg.Corpus.Dir, "dir", cfg.Corpus.Dir, "Directory tree with gzipped archive files")
	fs.StringVar(&cfg.Corpus.Format, "format", cfg.Corpus.Format, "Archive format, available: ['trec', 'clueweb']")
	fs.StringVar(&cfg.Corpus.Suffix, "suffix", cfg.Corpus.Suffix, "Archive file suffix (default depends on --format)")
	fs.StringVar(&cfg.Corpus.StartFrom, "start-from", cfg.Corpus.StartFrom, "File to (re)start from")
	fs.IntVar(&cfg.Corpus.MaxFiles, "max-files", cfg.Corpus.MaxFiles, "Max number of files to load (0 loads all)")
	fs.BoolVar(&cfg.Corpus.ContinueOnError, "continue-on-error", cfg.Corpus.ContinueOnError, "Keep loading other files when a file fails")
	fs.BoolVar(&cfg.Corpus.DetailedStats, "detailed-stats", cfg.Corpus.DetailedStats, "Calculate detailed word stats (WARN: requires lots of memory)")

	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of files loaded concurrently")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Logging.Development, "dev-log", cfg.Logging.Development, "Human readable development logging")
	fs.StringVar(&cfg.Metrics.Addr, "metrics-addr", cfg.Metrics.Addr, "Serve Prometheus metrics on this address (e.g. :9100)")
}

// Validate checks cfg and fills in values derived from other fields.
func (cfg *Config) Validate() error {
	if len(cfg.Elasticsearch.Addresses) == 0 {
		return errors.New("no elasticsearch addresses")
	}
	if cfg.Index.Name == "" {
		return errors.New("missing index name")
	}
	if strings.ToLower(cfg.Index.Name) != cfg.Index.Name {
		return errors.Errorf("index name %q must be lowercase", cfg.Index.Name)
	}
	if cfg.Corpus.Dir == "" {
		return errors.New("missing corpus dir")
	}
	format, err := loader.ParseFormat(cfg.Corpus.Format)
	if err != nil {
		return err
	}
	cfg.Corpus.Format = string(format)
	if cfg.Corpus.Suffix == "" {
		cfg.Corpus.Suffix = format.DefaultSuffix()
	}
	if cfg.Bulk.SizeKiB <= 0 || cfg.Bulk.Count <= 0 {
		return errors.Errorf("bulk thresholds must be positive (size: %d KiB, count: %d)", cfg.Bulk.SizeKiB, cfg.Bulk.Count)
	}
	if cfg.Elasticsearch.CompressionLevel < 0 || cfg.Elasticsearch.CompressionLevel > 9 {
		return errors.Errorf("gzip level must be in [0,9], got %d", cfg.Elasticsearch.CompressionLevel)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Index.Recreate {
		cfg.Index.Create = true
	}
	return nil
}

// BulkConfig returns the accumulator settings.
func (cfg *Config) BulkConfig() bulk.Config {
	return bulk.Config{
		SizeThreshold:  cfg.Bulk.SizeKiB * 1024,
		CountThreshold: cfg.Bulk.Count,
		Timeout:        cfg.Bulk.Timeout,
	}
}
