// Package datagen generates synthetic corpora whose words follow the
// distribution of a real corpus, for load testing the loaders.
package datagen

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/pkg/errors"
)

var (
	nonWord = regexp.MustCompile(`[^a-z0-9\-_']+`)
)

func splitWords(text string) []string {
	var words []string
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if len(w) > 0 {
			words = append(words, w)
		}
	}
	return words
}

// Dictionary counts words.
type Dictionary struct {
	w map[string]int64
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		w: make(map[string]int64),
	}
}

func (d *Dictionary) AddText(text string) {
	for _, w := range splitWords(text) {
		d.w[w]++
	}
}

// AddDocument counts the words of a document, ignoring placeholders.
func (d *Dictionary) AddDocument(doc *domain.Document) {
	if doc.Title != domain.Placeholder {
		d.AddText(doc.Title)
	}
	if doc.Body != domain.Placeholder {
		d.AddText(doc.Body)
	}
}

func (d *Dictionary) Len() int {
	return len(d.w)
}

// Top returns the n most common words.
func (d *Dictionary) Top(n int) []Count {
	var top []Count

	for word, count := range d.w {
		top = append(top, Count{word, count})
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Count == top[j].Count {
			return top[i].Word < top[j].Word
		}
		return top[i].Count > top[j].Count
	})

	if len(top) > n {
		top = top[:n]
	}
	return top
}

func (d *Dictionary) Distribution(seed int64) (*WordDistribution, error) {
	return NewWordDistribution(d.w, seed)
}

type TRECParams struct {
	Prefix        string // DOCNO prefix, e.g. "SYN19980601"
	Docs          int
	HeadlineWords int
	BodyWords     int
	Paragraphs    int
}

// WriteTREC writes p.Docs AQUAINT-style <DOC> records to w.
func WriteTREC(w io.Writer, wd *WordDistribution, p TRECParams) error {
	if p.Paragraphs <= 0 {
		p.Paragraphs = 1
	}

	for i := 1; i <= p.Docs; i++ {
		var sb strings.Builder

		fmt.Fprintf(&sb, "<DOC>\n<DOCNO> %s.%04d </DOCNO>\n<DOCTYPE> NEWS STORY </DOCTYPE>\n<BODY>\n", p.Prefix, i)
		if p.HeadlineWords > 0 {
			fmt.Fprintf(&sb, "<HEADLINE>\n%s\n</HEADLINE>\n", wd.RandomSentence(p.HeadlineWords))
		}
		sb.WriteString("<TEXT>\n")
		perParagraph := p.BodyWords / p.Paragraphs
		for j := 0; j < p.Paragraphs; j++ {
			n := perParagraph
			if j == p.Paragraphs-1 {
				n = p.BodyWords - perParagraph*(p.Paragraphs-1)
			}
			fmt.Fprintf(&sb, "<P>\n%s.\n</P>\n", wd.RandomSentence(n))
		}
		sb.WriteString("</TEXT>\n</BODY>\n</DOC>\n")

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return errors.Wrapf(err, "could not write doc %d", i)
		}
	}

	return nil
}
