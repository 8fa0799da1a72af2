package corpus

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	_, err = gw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
}

func TestWalk(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()
	for _, name := range []string{
		"nyt/1999/19990101_NYT.gz",
		"apw/1998/19980602_APW_ENG.gz",
		"apw/1998/19980601_APW_ENG.gz",
		"apw/1998/README",
		".cache/skip.gz",
	} {
		writeGzip(t, filepath.Join(dir, name), "x")
	}

	files, err := Walk(WalkParams{Path: dir, Suffix: ".gz"})
	r.NoError(err)
	r.Equal([]string{
		filepath.Join(dir, "apw/1998/19980601_APW_ENG.gz"),
		filepath.Join(dir, "apw/1998/19980602_APW_ENG.gz"),
		filepath.Join(dir, "nyt/1999/19990101_NYT.gz"),
	}, files)

	files, err = Walk(WalkParams{Path: dir, Suffix: ".gz", StartFrom: "19980602"})
	r.NoError(err)
	r.Len(files, 2)
	r.Contains(files[0], "19980602_APW_ENG.gz")

	files, err = Walk(WalkParams{Path: dir, Suffix: ".gz", Max: 1})
	r.NoError(err)
	r.Len(files, 1)

	_, err = Walk(WalkParams{Path: dir, Suffix: ".gz", StartFrom: "2001"})
	r.Error(err)

	_, err = Walk(WalkParams{Path: filepath.Join(dir, "missing")})
	r.Error(err)
}

func TestOpenArchive(t *testing.T) {
	r := require.New(t)

	path := filepath.Join(t.TempDir(), "a.gz")
	writeGzip(t, path, aquaintSample)

	a, err := OpenArchive(path)
	r.NoError(err)
	data, err := io.ReadAll(a)
	r.NoError(err)
	r.Equal(aquaintSample, string(data))
	r.NoError(a.Close())

	plain := filepath.Join(t.TempDir(), "plain.txt")
	r.NoError(os.WriteFile(plain, []byte("not gzip"), 0o644))
	_, err = OpenArchive(plain)
	r.Error(err)
}
