package corpus

import (
	"strconv"
	"strings"
	"testing"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/anrid/trecload/pkg/warc"
	"github.com/stretchr/testify/require"
)

func warcRecord(typ string, headers map[string]string, content string) string {
	var sb strings.Builder
	sb.WriteString("WARC/1.0\r\nWARC-Type: " + typ + "\r\n")
	for k, v := range headers {
		sb.WriteString(k + ": " + v + "\r\n")
	}
	sb.WriteString("Content-Length: " + strconv.Itoa(len(content)) + "\r\n\r\n")
	sb.WriteString(content)
	sb.WriteString("\r\n\r\n")
	return sb.String()
}

const pageOne = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n" +
	`<!DOCTYPE html><HTML><head><title>Search-engine news, today</title>` +
	`<script>var x = 1;</script></head>` +
	`<body><h1>Hello world!</h1><p>Visit e.g. caf` + "\xc3\xa9" + ` &nbsp;now &amp; 2012 x=y</p></body></HTML>`

const pageNoBody = "HTTP/1.1 200 OK\r\n\r\n<html><head><title>Only a title</title></head></html>"

func clueWebSample() string {
	return warcRecord("warcinfo", map[string]string{"WARC-Number-Of-Documents": "4"}, "software: Heritrix\r\n") +
		warcRecord(warc.TypeRequest, nil, "GET / HTTP/1.1\r\n\r\n") +
		warcRecord("response", map[string]string{"WARC-TREC-ID": "clueweb12-0000tw-00-00001"}, pageOne) +
		warcRecord("response", map[string]string{"WARC-TREC-ID": "clueweb12-0000tw-00-00002"}, "HTTP/1.1 302 Found\r\nLocation: /\r\n\r\n") +
		warcRecord("response", map[string]string{"WARC-TREC-ID": "clueweb12-0000tw-00-00003"}, pageNoBody)
}

func TestReadClueWeb(t *testing.T) {
	r := require.New(t)

	var docs []*domain.Document
	stats, err := ReadClueWeb(strings.NewReader(clueWebSample()), collect(&docs))
	r.NoError(err)

	r.Equal(ClueWebStats{Declared: 4, Processed: 2, Empty: 1}, stats)
	r.Equal(1, stats.Variance())
	r.Len(docs, 2)

	r.Equal("clueweb12-0000tw-00-00001", docs[0].ID)
	r.Equal("Search engine news  today", docs[0].Title)
	r.Equal("Hello Visit e g caf now 2012", docs[0].Body)

	r.Equal("clueweb12-0000tw-00-00003", docs[1].ID)
	r.Equal("Only a title", docs[1].Title)
	r.Equal(domain.Placeholder, docs[1].Body)
}

func TestReadClueWebMissingID(t *testing.T) {
	r := require.New(t)

	in := warcRecord("response", nil, pageOne)
	_, err := ReadClueWeb(strings.NewReader(in), func(*domain.Document) error { return nil })

	var re *RecordError
	r.ErrorAs(err, &re)
	r.Equal(1, re.Record)
}

func TestScrubHTML(t *testing.T) {
	r := require.New(t)

	r.Equal("a b c d", scrubHTML([]byte("a,b-c.d")))
	r.Equal("ok", scrubHTML([]byte("o\x00\x7f\xffk")))
	r.Equal("xy &lt; z", scrubHTML([]byte("x&nbsp;y &lt; z")))
}
