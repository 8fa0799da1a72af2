package corpus

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/anrid/trecload/pkg/warc"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	htmlEntity      = regexp.MustCompile(`&\w{4,6};`)
	htmlPunctuation = strings.NewReplacer(",", " ", "-", " ", ".", " ")
	htmlStart       = []byte("<html")
)

type ClueWebStats struct {
	Declared  int // WARC-Number-Of-Documents of the warcinfo record
	Processed int
	Empty     int // response records without an HTML document
}

// Variance is the number of declared documents that were neither processed
// nor counted as empty.
func (s ClueWebStats) Variance() int {
	return s.Declared - s.Processed - s.Empty
}

// ReadClueWeb parses a ClueWeb WARC stream from r. Every response record
// that carries an HTML page yields a document identified by its
// WARC-TREC-ID, with the page title as title and the alphanumeric words of
// the page body as body.
func ReadClueWeb(r io.Reader, fn EachDocument) (ClueWebStats, error) {
	var stats ClueWebStats
	var records int

	wr := warc.NewReader(r)
	for {
		rec, err := wr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		records++

		switch rec.Type() {
		case warc.TypeWarcinfo:
			if n := rec.Header.Get(warc.FieldNumberOfDocuments); n != "" {
				stats.Declared, err = strconv.Atoi(strings.TrimSpace(n))
				if err != nil {
					return stats, &RecordError{Record: records, Reason: "bad " + warc.FieldNumberOfDocuments + ": " + n}
				}
			}

		case warc.TypeResponse:
			id := strings.TrimSpace(rec.Header.Get(warc.FieldTrecID))
			if id == "" {
				return stats, &RecordError{Record: records, Reason: "missing " + warc.FieldTrecID}
			}

			doc, ok := parseHTMLRecord(id, rec.Content)
			if !ok {
				stats.Empty++
				continue
			}

			stats.Processed++
			if err := fn(doc); err != nil {
				return stats, err
			}
		}
	}
}

// parseHTMLRecord extracts a document from an HTTP response payload. It
// returns false when the payload has no HTML document.
func parseHTMLRecord(id string, payload []byte) (*domain.Document, bool) {
	start := bytes.Index(bytes.ToLower(payload), htmlStart)
	if start < 0 {
		return nil, false
	}

	page := scrubHTML(payload[start:])

	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, false
	}

	var titles []string
	var body *html.Node

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if t := strings.TrimSpace(textContent(n)); t != "" {
					titles = append(titles, t)
				}
				return
			case atom.Body:
				if body == nil {
					body = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)

	var text string
	if body != nil {
		text = alnumWords(textContent(body))
	}

	return domain.NewDocument(id, strings.Join(titles, " "), text), true
}

// scrubHTML drops control and non-ASCII bytes and named entities, and turns
// commas, hyphens and full stops into spaces.
func scrubHTML(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c == '\t' || c == '\n' || c == '\r':
			out = append(out, c)
		case c < 0x20 || c >= 0x7f:
		default:
			out = append(out, c)
		}
	}
	s := htmlEntity.ReplaceAllString(string(out), "")
	return htmlPunctuation.Replace(s)
}

// textContent returns the text below n, skipping scripts and styles.
func textContent(n *html.Node) string {
	var sb strings.Builder

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)

	return sb.String()
}

func alnumWords(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		if isAlnum(w) {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func isAlnum(w string) bool {
	for i := 0; i < len(w); i++ {
		c := w[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return w != ""
}
