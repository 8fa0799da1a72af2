// Package warc reads records from WARC (Web ARChive) files.
package warc

import (
	"bufio"
	"bytes"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	TypeWarcinfo = "warcinfo"
	TypeResponse = "response"
	TypeRequest  = "request"
)

// Header field names used by ClueWeb archives. Lookups through
// textproto.MIMEHeader.Get are case-insensitive.
const (
	FieldType              = "WARC-Type"
	FieldTrecID            = "WARC-TREC-ID"
	FieldContentLength     = "Content-Length"
	FieldNumberOfDocuments = "WARC-Number-Of-Documents"
)

// DefaultMaxRecordSize bounds the payload of a single record.
const DefaultMaxRecordSize = 64 << 20

var ErrMalformed = errors.New("malformed warc record")

// Record is a single WARC record. Header keys are canonicalised with
// textproto.CanonicalMIMEHeaderKey.
type Record struct {
	Version string
	Header  textproto.MIMEHeader
	Content []byte
}

// Type returns the lower-cased WARC-Type of the record.
func (r *Record) Type() string {
	return strings.ToLower(r.Header.Get(FieldType))
}

// Reader reads consecutive records from an uncompressed WARC stream.
type Reader struct {
	// MaxRecordSize is the largest Content-Length accepted. Larger records
	// fail with ErrMalformed.
	MaxRecordSize int

	br     *bufio.Reader
	tp     *textproto.Reader
	offset int
}

func NewReader(r io.Reader) *Reader {
	br := bufio.NewReaderSize(r, 64<<10)
	return &Reader{MaxRecordSize: DefaultMaxRecordSize, br: br, tp: textproto.NewReader(br)}
}

// Next returns the next record, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (*Record, error) {
	version, err := r.readVersion()
	if err != nil {
		return nil, err
	}
	r.offset++

	header, err := r.tp.ReadMIMEHeader()
	if err != nil && !(errors.Is(err, io.EOF) && len(header) > 0) {
		return nil, errors.Wrapf(ErrMalformed, "record %d: reading header: %s", r.offset, err)
	}

	length, err := strconv.Atoi(header.Get(FieldContentLength))
	if err != nil || length < 0 {
		return nil, errors.Wrapf(ErrMalformed, "record %d: bad Content-Length %q", r.offset, header.Get(FieldContentLength))
	}
	if r.MaxRecordSize > 0 && length > r.MaxRecordSize {
		return nil, errors.Wrapf(ErrMalformed, "record %d: Content-Length %d exceeds %d", r.offset, length, r.MaxRecordSize)
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r.br, content); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "record %d: short content: %s", r.offset, err)
	}

	return &Record{Version: version, Header: header, Content: content}, nil
}

// readVersion skips the blank lines separating records and returns the
// version line, e.g. "WARC/1.0".
func (r *Reader) readVersion() (string, error) {
	for {
		line, err := r.br.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			if !bytes.HasPrefix(trimmed, []byte("WARC/")) {
				return "", errors.Wrapf(ErrMalformed, "record %d: expected version line, got %q", r.offset+1, truncate(trimmed, 40))
			}
			return string(trimmed), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", errors.Wrap(err, "could not read warc stream")
		}
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
