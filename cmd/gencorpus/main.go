package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/anrid/trecload/pkg/corpus"
	"github.com/anrid/trecload/pkg/datagen"
	"github.com/anrid/trecload/pkg/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/pflag"
)

const builtinText = `the police said on sunday that the government had arrested
dozens of people after the match in the capital and officials said the talks
would resume next week while the president and the minister met in the city
to discuss the economy the election and the new trade agreement`

var (
	sourceDir     = pflag.String("source", "", "Directory with TREC archives to learn the word distribution from (default: builtin text)")
	maxSource     = pflag.Int("max-source-files", 10, "Max number of source files to read")
	outDir        = pflag.String("out", "data/synthetic", "Output directory")
	files         = pflag.Int("files", 4, "Number of files to generate")
	docsPerFile   = pflag.Int("docs", 1_000, "Number of docs per file")
	headlineWords = pflag.Int("headline-words", 8, "Words per headline")
	bodyWords     = pflag.Int("body-words", 300, "Words per body")
	seed          = pflag.Int64("seed", 1, "Random seed")
	verbose       = pflag.BoolP("verbose", "v", false, "Verbose output")
)

func main() {
	pflag.Parse()

	d := datagen.NewDictionary()

	if *sourceDir != "" {
		paths, err := corpus.Walk(corpus.WalkParams{Path: *sourceDir, Suffix: ".gz", Max: *maxSource})
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range paths {
			if *verbose {
				fmt.Printf("Reading file: %s\n", p)
			}
			if err := readSource(p, d); err != nil {
				log.Fatal(err)
			}
		}
	} else {
		d.AddText(builtinText)
	}

	fmt.Printf("Dictionary contains %d words\n", d.Len())
	if *verbose {
		for i, c := range d.Top(10) {
			fmt.Printf("Top %d. %s (%d)\n", i+1, c.Word, c.Count)
		}
	}

	wd, err := d.Distribution(*seed)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	for i := 1; i <= *files; i++ {
		prefix := fmt.Sprintf("SYN%04d", i)
		outfile := filepath.Join(*outDir, prefix+".gz")

		if err := writeFile(outfile, wd, datagen.TRECParams{
			Prefix:        prefix,
			Docs:          *docsPerFile,
			HeadlineWords: *headlineWords,
			BodyWords:     *bodyWords,
			Paragraphs:    3,
		}); err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Wrote %d docs to file %s\n", *docsPerFile, outfile)
	}
}

func readSource(path string, d *datagen.Dictionary) error {
	a, err := corpus.OpenArchive(path)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = corpus.ReadTREC(a, func(doc *domain.Document) error {
		d.AddDocument(doc)
		return nil
	})
	return err
}

func writeFile(path string, wd *datagen.WordDistribution, p datagen.TRECParams) error {
	o, err := os.Create(path)
	if err != nil {
		return err
	}
	defer o.Close()

	gw := gzip.NewWriter(o)
	if err := datagen.WriteTREC(gw, wd, p); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return o.Close()
}
