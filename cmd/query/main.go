package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/anrid/trecload/pkg/search/es"
	"github.com/anrid/trecload/pkg/util"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
)

var (
	addrs      = pflag.StringSlice("es", []string{"http://localhost:9200"}, "Elasticsearch addresses")
	indexName  = pflag.String("index", "aquaint_all", "search engine index name")
	query      = pflag.String("query", "", "query string (Lucene query_string syntax)")
	queryJSON  = pflag.String("query-file", "", "query to run (path to JSON file, overrides --query)")
	fields     = pflag.StringSlice("fields", []string{"title^2", "body^1"}, "fields to search, with optional boosts")
	size       = pflag.Int("size", 10, "number of hits to return")
	count      = pflag.Int("count", 0, "number of extra calls to run as a latency benchmark")
	dumpResult = pflag.Bool("dump", true, "dump search engine result of first query")
	fastHTTP   = pflag.Bool("fasthttp", false, "use the fasthttp transport")
)

type QueryString struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
}

type SearchBody struct {
	Size  int `json:"size"`
	Query struct {
		QueryString QueryString `json:"query_string"`
	} `json:"query"`
}

func main() {
	pflag.Parse()

	body, err := buildQuery()
	if err != nil {
		pflag.Usage()
		log.Fatal(err)
	}
	fmt.Printf("Query payload:\n%s\n", string(body))

	s, err := es.New(es.Config{Addresses: *addrs, FastHTTP: *fastHTTP})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hits, err := s.Search(ctx, *indexName, body)
	if err != nil {
		log.Fatal(err)
	}

	if *dumpResult {
		util.Dump(hits)
	}

	if *count <= 0 {
		return
	}

	// Run benchmark
	var durations []time.Duration
	t := time.Now()
	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(*count)*10*time.Second)
	defer cancel()

	fmt.Printf("Running benchmark, iteration count: %d\n", *count)

	for i := 0; i < *count; i++ {
		t0 := time.Now()

		if _, err := s.Search(ctx, *indexName, body); err != nil {
			log.Fatal(err)
		}

		durations = append(durations, time.Since(t0))
	}

	sorted := append(make([]time.Duration, 0), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Printf(
		"Completed %d requests in %s (%.1f req/s) | min: %s / max: %s / median: %s\n\n",
		*count,
		time.Since(t),
		float64(*count)/time.Since(t).Seconds(),
		sorted[0],
		sorted[(len(sorted)-1)],
		sorted[(len(sorted)-1)/2],
	)
}

func buildQuery() ([]byte, error) {
	if *queryJSON != "" {
		return os.ReadFile(*queryJSON)
	}
	if *query == "" {
		return nil, fmt.Errorf("missing --query or --query-file arg")
	}

	var b SearchBody
	b.Size = *size
	b.Query.QueryString = QueryString{Query: *query, Fields: *fields}

	return json.MarshalIndent(b, "", "  ")
}
