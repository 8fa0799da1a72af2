package es

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/anrid/trecload/pkg/search/es/estest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestES(t *testing.T, srv *estest.Server, level int) *ES {
	s, err := New(Config{
		Addresses:        []string{srv.URL},
		Transport:        http.DefaultTransport,
		CompressionLevel: level,
	})
	require.NoError(t, err)
	return s
}

func TestBulkIndex(t *testing.T) {
	for _, level := range []int{0, 5} {
		r := require.New(t)

		srv := estest.NewServer(t)
		s := newTestES(t, srv, level)

		docs := []*domain.Document{
			domain.NewDocument("APW19980601.0001", "Quake hits", "An earthquake struck"),
			domain.NewDocument(`NYT"19980601`, "", "Body with \"quotes\""),
			domain.NewDocument("XIE19980601.0003", "Title", ""),
		}

		r.NoError(s.BulkIndex(context.Background(), "aquaint", docs))

		bulks := srv.Bulks()
		r.Len(bulks, 1)
		r.Len(bulks[0], 3)

		r.Equal("index", bulks[0][0].Action)
		r.Equal("aquaint", bulks[0][0].Index)
		r.Equal("APW19980601.0001", bulks[0][0].ID)
		r.Equal("Quake hits", bulks[0][0].Source["title"])
		r.Equal("An earthquake struck", bulks[0][0].Source["body"])
		r.NotContains(bulks[0][0].Source, "id")

		r.Equal(`NYT"19980601`, bulks[0][1].ID)
		r.Equal("-", bulks[0][1].Source["title"])
		r.Equal("XIE19980601.0003", bulks[0][2].ID)
		r.Equal("-", bulks[0][2].Source["body"])
	}
}

func TestBulkIndexReusesBuffer(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 1)

	r.NoError(s.BulkIndex(context.Background(), "aquaint", []*domain.Document{domain.NewDocument("a", "t", "b")}))
	r.NoError(s.BulkIndex(context.Background(), "aquaint", []*domain.Document{domain.NewDocument("b", "t", "b")}))

	bulks := srv.Bulks()
	r.Len(bulks, 2)
	r.Len(bulks[1], 1)
	r.Equal("b", bulks[1][0].ID)
}

func TestBulkIndexEmpty(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 0)

	r.NoError(s.BulkIndex(context.Background(), "aquaint", nil))
	r.Empty(srv.Bulks())
}

func TestBulkIndexErrors(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 0)

	srv.RejectIDs["bad"] = true
	err := s.BulkIndex(context.Background(), "aquaint", []*domain.Document{
		domain.NewDocument("good", "t", "b"),
		domain.NewDocument("bad", "t", "b"),
	})
	r.Error(err)
	r.Contains(err.Error(), "bad")
	r.Contains(err.Error(), "mapper_parsing_exception")

	srv.FailBulk = true
	err = s.BulkIndex(context.Background(), "aquaint", []*domain.Document{domain.NewDocument("a", "t", "b")})
	r.Error(err)
	r.Contains(err.Error(), "500")
}

func TestCreateIndex(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 0)
	ctx := context.Background()

	exists, err := s.IndexExists(ctx, "aquaint")
	r.NoError(err)
	r.False(exists)

	r.NoError(s.CreateIndex(ctx, "aquaint", []byte(`{"settings":{}}`), false))
	body, ok := srv.Index("aquaint")
	r.True(ok)
	r.JSONEq(`{"settings":{}}`, string(body))

	// Existing index is kept.
	r.NoError(s.CreateIndex(ctx, "aquaint", []byte(`{"settings":{"x":1}}`), false))
	body, _ = srv.Index("aquaint")
	r.JSONEq(`{"settings":{}}`, string(body))

	// Recreate replaces it.
	r.NoError(s.CreateIndex(ctx, "aquaint", []byte(`{"settings":{"x":1}}`), true))
	body, _ = srv.Index("aquaint")
	r.JSONEq(`{"settings":{"x":1}}`, string(body))

	r.NoError(s.Refresh(ctx, "aquaint"))
}

func TestPingAndSearch(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 0)
	ctx := context.Background()

	r.NoError(s.Ping(ctx, 0))
	r.Contains(srv.Requests(), "HEAD /")

	srv.SearchResponse = `{"hits":{"total":{"value":1},"hits":[{"_id":"APW19980601.0001","_score":1.5}]}}`
	hits, err := s.Search(ctx, "aquaint", []byte(`{"query":{"match_all":{}}}`))
	r.NoError(err)
	r.Contains(hits, "hits")
}

func TestPingUnreachable(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s := newTestES(t, srv, 0)
	srv.Close()

	err := s.Ping(context.Background(), 0)
	r.Error(err)
	r.Contains(err.Error(), "could not reach elasticsearch")
}

func TestFastHTTPTransport(t *testing.T) {
	r := require.New(t)

	srv := estest.NewServer(t)
	s, err := New(Config{
		Addresses:        []string{srv.URL},
		FastHTTP:         true,
		LogRequests:      true,
		CompressionLevel: 1,
	})
	r.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.NoError(s.Ping(ctx, 1))
	r.NoError(s.BulkIndex(ctx, "aquaint", []*domain.Document{
		domain.NewDocument("APW19980601.0001", "Quake hits", "An earthquake struck"),
		domain.NewDocument("APW19980601.0002", "", "Aftershocks"),
	}))
	r.NoError(s.BulkIndex(context.Background(), "aquaint", []*domain.Document{
		domain.NewDocument("APW19980601.0003", "No deadline", "body"),
	}))

	bulks := srv.Bulks()
	r.Len(bulks, 2)
	r.Len(bulks[0], 2)
	r.Equal("APW19980601.0001", bulks[0][0].ID)
	r.Equal("Quake hits", bulks[0][0].Source["title"])
	r.Equal("-", bulks[0][1].Source["title"])
	r.Equal("APW19980601.0003", bulks[1][0].ID)
	r.Greater(s.BulkIndexingRate(), 0.0)

	tr := NewLoggingTransport(zap.NewNop())
	r.Equal(2, tr.MaxLogCount)
}

func TestNewRejectsBadCompressionLevel(t *testing.T) {
	_, err := New(Config{CompressionLevel: 12})
	require.Error(t, err)
}
