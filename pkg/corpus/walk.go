// Package corpus finds archive files on disk and parses the document
// container formats they hold into domain.Documents.
package corpus

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type WalkParams struct {
	Path      string
	Suffix    string // Only files ending in Suffix are returned. Empty matches all.
	StartFrom string // Skip files until one whose path contains StartFrom.
	Max       int    // If Max > 0: return at most this many files.
	Logger    *zap.Logger
}

// Walk returns the archive files below p.Path in lexical order. Hidden files
// and directories are skipped.
func Walk(p WalkParams) ([]string, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var files []string

	err := filepath.WalkDir(p.Path, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(de.Name(), ".") && path != p.Path {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if de.IsDir() {
			return nil
		}
		if !strings.HasSuffix(de.Name(), p.Suffix) {
			log.Debug("skipping file", zap.String("file", path))
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not walk %s", p.Path)
	}

	sort.Strings(files)

	if p.StartFrom != "" {
		start := -1
		for i, f := range files {
			if strings.Contains(f, p.StartFrom) {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, errors.Errorf("no file matches start-from %q", p.StartFrom)
		}
		log.Info("starting from file", zap.String("file", files[start]), zap.Int("skipped", start))
		files = files[start:]
	}

	if p.Max > 0 && len(files) > p.Max {
		files = files[:p.Max]
	}

	return files, nil
}

// Archive is an open gzip-compressed archive file.
type Archive struct {
	io.Reader
	f  *os.File
	gz *gzip.Reader
}

// OpenArchive opens a gzip-compressed file. Concatenated gzip members are
// read as one stream.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open archive")
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "could not read gzip header of %s", path)
	}

	return &Archive{Reader: gz, f: f, gz: gz}, nil
}

func (a *Archive) Close() error {
	err := a.gz.Close()
	if ferr := a.f.Close(); err == nil {
		err = ferr
	}
	return err
}
