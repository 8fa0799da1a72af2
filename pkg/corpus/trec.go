package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/pkg/errors"
)

const maxRecordSize = 64 << 20

var (
	trecEntity    = regexp.MustCompile(`&\w{2,6};`)
	trecParagraph = strings.NewReplacer("<P>", " ", "</P>", " ", "<p>", " ", "</p>", " ", "\n", " ", "\r", " ", "\t", " ")
	trecTag       = regexp.MustCompile(`<[^>]*>`)
	trecDocEnd    = []byte("</DOC>")
)

// RecordError reports a record that could not be turned into a document.
type RecordError struct {
	Record int // 1-based position of the record in its file
	DocID  string
	Reason string
}

func (e *RecordError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("record %d (%s): %s", e.Record, e.DocID, e.Reason)
	}
	return fmt.Sprintf("record %d: %s", e.Record, e.Reason)
}

// EachDocument is called for every document parsed from an archive. A
// non-nil error stops parsing and is returned to the caller.
type EachDocument func(doc *domain.Document) error

type TRECStats struct {
	Records int
}

// ReadTREC parses TREC-style SGML (as found in the AQUAINT collection) from
// r. Each <DOC> yields a document with the trimmed DOCNO as its ID, the
// HEADLINE as title and the TEXT as body. When the record has a BODY
// element, HEADLINE and TEXT are looked up inside it.
func ReadTREC(r io.Reader, fn EachDocument) (TRECStats, error) {
	var stats TRECStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxRecordSize)
	scanner.Split(splitDocs)

	for scanner.Scan() {
		rec := scanner.Bytes()
		start := bytes.Index(rec, []byte("<DOC>"))
		if start < 0 {
			// Trailing whitespace or junk after the last record.
			continue
		}
		stats.Records++

		doc, err := parseTRECDoc(string(rec[start:]))
		if err != nil {
			err.Record = stats.Records
			return stats, err
		}

		if err := fn(doc); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrapf(err, "could not read record %d", stats.Records+1)
	}

	return stats, nil
}

func splitDocs(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, trecDocEnd); i >= 0 {
		end := i + len(trecDocEnd)
		return end, data[:end], nil
	}
	if atEOF {
		if len(bytes.TrimSpace(data)) > 0 && bytes.Contains(data, []byte("<DOC>")) {
			return 0, nil, errors.New("unterminated <DOC> record")
		}
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func parseTRECDoc(rec string) (*domain.Document, *RecordError) {
	rec = trecEntity.ReplaceAllString(rec, "")
	rec = trecParagraph.Replace(rec)

	id, ok := element(rec, "DOCNO")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return nil, &RecordError{Reason: "missing DOCNO"}
	}

	scope := rec
	if body, ok := element(rec, "BODY"); ok {
		scope = body
	}

	headline, _ := element(scope, "HEADLINE")
	text, _ := element(scope, "TEXT")

	return domain.NewDocument(id, clean(headline), clean(text)), nil
}

// element returns the content of the first <name>...</name> in s. Opening
// tags may carry attributes.
func element(s, name string) (string, bool) {
	open := strings.Index(s, "<"+name)
	for open >= 0 {
		rest := s[open+len(name)+1:]
		if len(rest) > 0 && (rest[0] == '>' || rest[0] == ' ') {
			break
		}
		next := strings.Index(rest, "<"+name)
		if next < 0 {
			return "", false
		}
		open += len(name) + 1 + next
	}
	if open < 0 {
		return "", false
	}

	gt := strings.IndexByte(s[open:], '>')
	if gt < 0 {
		return "", false
	}
	content := s[open+gt+1:]

	end := strings.Index(content, "</"+name+">")
	if end < 0 {
		return "", false
	}
	return content[:end], true
}

// clean drops nested tags and collapses whitespace.
func clean(s string) string {
	s = trecTag.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
