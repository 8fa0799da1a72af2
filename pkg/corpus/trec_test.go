package corpus

import (
	"strings"
	"testing"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const aquaintSample = `<DOC>
<DOCNO> APW19980601.0003 </DOCNO>
<DOCTYPE> NEWS STORY </DOCTYPE>
<DATE_TIME> 1998-06-01 00:08 </DATE_TIME>
<BODY>
<SLUG> BC-Soccer-Dutch </SLUG>
<HEADLINE>
Dutch &AMP; Belgian fans clash
</HEADLINE>
<TEXT>
<P>
	AMSTERDAM, Netherlands (AP) _ Police arrested 20 fans&amp;.
</P>
<P>
Officials said the match went ahead.
</P>
</TEXT>
</BODY>
<TRAILER>
AP-NY-06-01-98 0008EDT
</TRAILER>
</DOC>
<DOC>
<DOCNO> APW19980601.0004 </DOCNO>
<BODY>
<TEXT>
No headline here.
</TEXT>
</BODY>
</DOC>
`

func collect(docs *[]*domain.Document) EachDocument {
	return func(doc *domain.Document) error {
		*docs = append(*docs, doc)
		return nil
	}
}

func TestReadTREC(t *testing.T) {
	r := require.New(t)

	var docs []*domain.Document
	stats, err := ReadTREC(strings.NewReader(aquaintSample), collect(&docs))
	r.NoError(err)
	r.Equal(2, stats.Records)
	r.Len(docs, 2)

	r.Equal("APW19980601.0003", docs[0].ID)
	r.Equal("Dutch Belgian fans clash", docs[0].Title)
	r.Equal("AMSTERDAM, Netherlands (AP) _ Police arrested 20 fans. Officials said the match went ahead.", docs[0].Body)

	r.Equal("APW19980601.0004", docs[1].ID)
	r.Equal(domain.Placeholder, docs[1].Title)
	r.Equal("No headline here.", docs[1].Body)
}

func TestReadTRECWithoutBody(t *testing.T) {
	r := require.New(t)

	in := `<DOC><DOCNO>WSJ870324-0001</DOCNO><HL>ignored</HL><HEADLINE>Top level</HEADLINE><TEXT>Flat layout</TEXT></DOC>`

	var docs []*domain.Document
	_, err := ReadTREC(strings.NewReader(in), collect(&docs))
	r.NoError(err)
	r.Len(docs, 1)
	r.Equal("WSJ870324-0001", docs[0].ID)
	r.Equal("Top level", docs[0].Title)
	r.Equal("Flat layout", docs[0].Body)
}

func TestReadTRECMissingDocno(t *testing.T) {
	r := require.New(t)

	in := aquaintSample + "<DOC><BODY><TEXT>orphan</TEXT></BODY></DOC>"

	var docs []*domain.Document
	_, err := ReadTREC(strings.NewReader(in), collect(&docs))
	r.Error(err)

	var re *RecordError
	r.True(errors.As(err, &re))
	r.Equal(3, re.Record)
	r.Len(docs, 2)
}

func TestReadTRECUnterminated(t *testing.T) {
	r := require.New(t)

	_, err := ReadTREC(strings.NewReader("<DOC><DOCNO>X</DOCNO><TEXT>cut off"), func(*domain.Document) error { return nil })
	r.Error(err)
}

func TestReadTRECCallbackError(t *testing.T) {
	r := require.New(t)

	stop := errors.New("stop")
	calls := 0
	_, err := ReadTREC(strings.NewReader(aquaintSample), func(*domain.Document) error {
		calls++
		return stop
	})
	r.Equal(stop, err)
	r.Equal(1, calls)
}
