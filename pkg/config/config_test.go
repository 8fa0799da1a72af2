package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	r := require.New(t)

	cfg, err := Load("")
	r.NoError(err)
	r.NoError(cfg.Validate())

	r.Equal(".gz", cfg.Corpus.Suffix)
	bc := cfg.BulkConfig()
	r.Equal(4000*1024, bc.SizeThreshold)
	r.Equal(1000, bc.CountThreshold)
	r.Equal(600*time.Second, bc.Timeout)
}

func TestLoadFileAndFlags(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "load.yaml")
	r.NoError(os.WriteFile(path, []byte(`
elasticsearch:
  addresses: ["http://es1:9200", "http://es2:9200"]
  compressionLevel: 3
index:
  name: clueweb12b_test
  recreate: true
  schema:
    body:
      b: 0.4
      k1: 0.9
bulk:
  sizeKiB: 2000
  timeout: 30s
corpus:
  format: clueweb
  dir: /data/clueweb12_diskb
workers: 4
`), 0o644))

	cfg, err := Load(path)
	r.NoError(err)

	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	r.NoError(fs.Parse([]string{"--bulk-count", "500", "--workers", "8"}))
	r.NoError(cfg.Validate())

	r.Equal([]string{"http://es1:9200", "http://es2:9200"}, cfg.Elasticsearch.Addresses)
	r.Equal(3, cfg.Elasticsearch.CompressionLevel)
	r.Equal("clueweb12b_test", cfg.Index.Name)
	r.True(cfg.Index.Create)
	r.Equal(0.4, cfg.Index.Schema.Body.B)
	r.Equal(".warc.gz", cfg.Corpus.Suffix)
	r.Equal(8, cfg.Workers)

	bc := cfg.BulkConfig()
	r.Equal(2000*1024, bc.SizeThreshold)
	r.Equal(500, bc.CountThreshold)
	r.Equal(30*time.Second, bc.Timeout)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"format": func(c *Config) { c.Corpus.Format = "nyt" },
		"index":  func(c *Config) { c.Index.Name = "" },
		"upper":  func(c *Config) { c.Index.Name = "Aquaint" },
		"es":     func(c *Config) { c.Elasticsearch.Addresses = nil },
		"bulk":   func(c *Config) { c.Bulk.Count = 0 },
		"gzip":   func(c *Config) { c.Elasticsearch.CompressionLevel = 10 },
		"dir":    func(c *Config) { c.Corpus.Dir = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	r := require.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	r.Error(err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	r.NoError(os.WriteFile(path, []byte("workers: [1"), 0o644))
	_, err = Load(path)
	r.Error(err)
}
