package domain

import (
	"context"
)

// Placeholder is stored in place of a title or body that a record does not carry.
const Placeholder = "-"

// BulkWriter submits an ordered batch of documents to a search engine index
// in a single request.
type BulkWriter interface {
	BulkIndex(ctx context.Context, indexName string, docs []*Document) error
}

// Document is a parsed corpus record ready to be indexed.
type Document struct {
	ID    string `json:"-"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewDocument returns a document with placeholders filled in for an empty
// title or body.
func NewDocument(id, title, body string) *Document {
	if title == "" {
		title = Placeholder
	}
	if body == "" {
		body = Placeholder
	}
	return &Document{ID: id, Title: title, Body: body}
}

// Size is the estimated byte size of the document's indexed content.
func (d *Document) Size() int {
	return len(d.Title) + len(d.Body)
}
