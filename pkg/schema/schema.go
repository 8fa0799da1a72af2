// Package schema builds the index settings and mappings used for corpus
// indexes: an English analyzer with Terrier stopwords and Porter stemming,
// and a separate BM25 similarity for the title and body fields.
package schema

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	AnalyzerName     = "my_english"
	StopFilterName   = "terrier_stopwords"
	TitleSimilarity  = "sim_title"
	BodySimilarity   = "sim_body"
	DefaultStopwords = "stopwords/terrier-stop.txt"
	DefaultBM25B     = 0.75
	DefaultBM25K1    = 1.2
	DefaultShards    = 1
	DefaultReplicas  = 0
	FieldTypeText    = "text"
	SimilarityBM25   = "BM25"
)

// BM25 holds the parameters of a BM25 similarity.
type BM25 struct {
	B  float64 `yaml:"b"`
	K1 float64 `yaml:"k1"`
}

// Params describes an index. Zero values select the defaults.
type Params struct {
	Shards        int    `yaml:"shards"`
	Replicas      int    `yaml:"replicas"`
	StopwordsPath string `yaml:"stopwordsPath"`
	Title         BM25   `yaml:"title"`
	Body          BM25   `yaml:"body"`
	StoreSource   bool   `yaml:"storeSource"`
}

type Index struct {
	Settings Settings `json:"settings"`
	Mappings Mappings `json:"mappings"`
}

type Settings struct {
	NumberOfShards   int                   `json:"number_of_shards"`
	NumberOfReplicas int                   `json:"number_of_replicas"`
	Analysis         Analysis              `json:"analysis"`
	Similarity       map[string]Similarity `json:"similarity"`
}

type Analysis struct {
	Analyzer map[string]Analyzer `json:"analyzer"`
	Filter   map[string]Filter   `json:"filter"`
}

type Analyzer struct {
	Tokenizer string   `json:"tokenizer"`
	Filter    []string `json:"filter"`
}

type Filter struct {
	Type          string `json:"type"`
	StopwordsPath string `json:"stopwords_path,omitempty"`
}

type Similarity struct {
	Type string  `json:"type"`
	B    float64 `json:"b"`
	K1   float64 `json:"k1"`
}

type Mappings struct {
	Source     Source           `json:"_source"`
	Properties map[string]Field `json:"properties"`
}

type Source struct {
	Enabled bool `json:"enabled"`
}

type Field struct {
	Type       string `json:"type"`
	Similarity string `json:"similarity,omitempty"`
	Analyzer   string `json:"analyzer,omitempty"`
}

// New returns the index definition for p.
func New(p Params) *Index {
	if p.Shards <= 0 {
		p.Shards = DefaultShards
	}
	if p.Replicas < 0 {
		p.Replicas = DefaultReplicas
	}
	if p.StopwordsPath == "" {
		p.StopwordsPath = DefaultStopwords
	}
	p.Title = withDefaults(p.Title)
	p.Body = withDefaults(p.Body)

	return &Index{
		Settings: Settings{
			NumberOfShards:   p.Shards,
			NumberOfReplicas: p.Replicas,
			Analysis: Analysis{
				Analyzer: map[string]Analyzer{
					AnalyzerName: {
						Tokenizer: "standard",
						Filter:    []string{"lowercase", StopFilterName, "porter_stem"},
					},
				},
				Filter: map[string]Filter{
					StopFilterName: {Type: "stop", StopwordsPath: p.StopwordsPath},
				},
			},
			Similarity: map[string]Similarity{
				TitleSimilarity: {Type: SimilarityBM25, B: p.Title.B, K1: p.Title.K1},
				BodySimilarity:  {Type: SimilarityBM25, B: p.Body.B, K1: p.Body.K1},
			},
		},
		Mappings: Mappings{
			Source: Source{Enabled: p.StoreSource},
			Properties: map[string]Field{
				"title": {Type: FieldTypeText, Similarity: TitleSimilarity, Analyzer: AnalyzerName},
				"body":  {Type: FieldTypeText, Similarity: BodySimilarity, Analyzer: AnalyzerName},
			},
		},
	}
}

func withDefaults(b BM25) BM25 {
	if b.B == 0 && b.K1 == 0 {
		return BM25{B: DefaultBM25B, K1: DefaultBM25K1}
	}
	return b
}

// JSON returns the request body for the create index API.
func (i *Index) JSON() ([]byte, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal index definition")
	}
	return data, nil
}

// Body returns the index definition from mappingsFile when it is set, and
// the definition built from p otherwise.
func Body(mappingsFile string, p Params) ([]byte, error) {
	if mappingsFile == "" {
		return New(p).JSON()
	}

	data, err := os.ReadFile(mappingsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read mappings file %s", mappingsFile)
	}
	if !json.Valid(data) {
		return nil, errors.Errorf("mappings file %s is not valid JSON", mappingsFile)
	}
	return data, nil
}
