// Package estest provides an in-process fake Elasticsearch server for tests.
package estest

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// BulkItem is one action/document pair received by the fake server.
type BulkItem struct {
	Index  string
	ID     string
	Action string
	Source map[string]interface{}
}

// Server records bulk requests and tracks which indexes exist.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	indexes  map[string][]byte
	bulks    [][]BulkItem
	requests []string

	// FailBulk makes bulk requests return a 500 status.
	FailBulk bool

	// RejectIDs makes the listed document IDs fail with a mapper error.
	RejectIDs map[string]bool

	// SearchResponse is returned for search requests.
	SearchResponse string
}

// NewServer starts a fake Elasticsearch that is closed via t.Cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{
		indexes:        make(map[string][]byte),
		RejectIDs:      make(map[string]bool),
		SearchResponse: `{"hits":{"total":{"value":0},"hits":[]}}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/":
		io.WriteString(w, `{"version":{"number":"8.5.0"},"tagline":"You Know, for Search"}`)
	case parts[len(parts)-1] == "_bulk":
		index := ""
		if len(parts) == 2 {
			index = parts[0]
		}
		s.handleBulk(w, r, index)
	case len(parts) == 2 && parts[1] == "_search":
		io.WriteString(w, s.SearchResponse)
	case len(parts) == 2 && parts[1] == "_refresh":
		io.WriteString(w, `{"_shards":{"total":1,"successful":1,"failed":0}}`)
	case len(parts) == 1:
		s.handleIndex(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"not found"}`)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, index string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.indexes[index]

	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodDelete:
		delete(s.indexes, index)
		io.WriteString(w, `{"acknowledged":true}`)
	case http.MethodPut:
		if exists {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"type":"resource_already_exists_exception"},"status":400}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.indexes[index] = body
		io.WriteString(w, `{"acknowledged":true,"index":"`+index+`"}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request, index string) {
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer gr.Close()
		body = gr
	}

	if s.FailBulk {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"type":"es_rejected_execution_exception"},"status":500}`)
		return
	}

	var items []BulkItem
	var resp bytes.Buffer
	var hasErrors bool

	resp.WriteString(`{"items":[`)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		action := make(map[string]map[string]string)
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !scanner.Scan() {
			http.Error(w, "expected source", http.StatusBadRequest)
			return
		}
		source := make(map[string]interface{})
		if err := json.Unmarshal(scanner.Bytes(), &source); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var item BulkItem
		for name, meta := range action {
			item.Action = name
			item.ID = meta["_id"]
			item.Index = meta["_index"]
		}
		if item.Index == "" {
			item.Index = index
		}
		item.Source = source
		items = append(items, item)

		if len(items) > 1 {
			resp.WriteByte(',')
		}
		id, _ := json.Marshal(item.ID)
		if s.RejectIDs[item.ID] {
			hasErrors = true
			resp.WriteString(`{"` + item.Action + `":{"_id":` + string(id) +
				`,"status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}`)
		} else {
			resp.WriteString(`{"` + item.Action + `":{"_id":` + string(id) + `,"status":201}}`)
		}
	}
	if hasErrors {
		resp.WriteString(`],"errors":true}`)
	} else {
		resp.WriteString(`],"errors":false}`)
	}

	s.mu.Lock()
	s.bulks = append(s.bulks, items)
	s.mu.Unlock()

	w.Write(resp.Bytes())
}

// Bulks returns the bulk requests received so far.
func (s *Server) Bulks() [][]BulkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]BulkItem(nil), s.bulks...)
}

// Index returns the body the index was created with.
func (s *Server) Index(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.indexes[name]
	return b, ok
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}
