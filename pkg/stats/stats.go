package stats

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anrid/trecload/pkg/domain"
)

var tokenizer = regexp.MustCompile(`[^[:alnum:]]+`)

func New() *Stats {
	return &Stats{
		timer: time.Now(),
		Words: make(map[string]uint64),
	}
}

// Stats collects word statistics over indexed documents. It is safe for
// concurrent use by multiple workers.
type Stats struct {
	mu                sync.Mutex
	timer             time.Time
	TotalDocCount     uint64
	TotalWordCount    uint64
	TitleWordCount    uint64
	BodyWordCount     uint64
	PlaceholderTitles uint64
	PlaceholderBodies uint64
	Words             map[string]uint64
}

func (s *Stats) Read(d *domain.Document) {
	tw := tokenizer.Split(strings.ToLower(d.Title), -1)
	bw := tokenizer.Split(strings.ToLower(d.Body), -1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalDocCount++

	if d.Title == domain.Placeholder {
		s.PlaceholderTitles++
	} else {
		for _, w := range tw {
			if w != "" {
				s.Words[w]++
				s.TitleWordCount++
				s.TotalWordCount++
			}
		}
	}
	if d.Body == domain.Placeholder {
		s.PlaceholderBodies++
	} else {
		for _, w := range bw {
			if w != "" {
				s.Words[w]++
				s.BodyWordCount++
				s.TotalWordCount++
			}
		}
	}
}

type Entry struct {
	W string
	C uint64
}

// Common returns the n most common words, most common first.
func (s *Stats) Common(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]Entry, 0, len(s.Words))
	for w, c := range s.Words {
		sorted = append(sorted, Entry{W: w, C: c})
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].C == sorted[j].C {
			return sorted[i].W < sorted[j].W
		}
		return sorted[i].C > sorted[j].C
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func (s *Stats) Print(out io.Writer) {
	common := s.Common(100)

	s.mu.Lock()
	defer s.mu.Unlock()

	secs := time.Since(s.timer).Seconds()

	fmt.Fprintln(out, "\nStats:")
	fmt.Fprintf(out, "Document count          : %d\n", s.TotalDocCount)
	fmt.Fprintf(out, "Word count              : %d\n", s.TotalWordCount)
	fmt.Fprintf(out, "Unique word count       : %d\n", len(s.Words))
	fmt.Fprintf(out, "Title word count        : %d\n", s.TitleWordCount)
	fmt.Fprintf(out, "Body word count         : %d\n", s.BodyWordCount)
	fmt.Fprintf(out, "Missing titles          : %d\n", s.PlaceholderTitles)
	fmt.Fprintf(out, "Missing bodies          : %d\n", s.PlaceholderBodies)
	fmt.Fprintf(out, "Indexing rate           : %.02f / sec\n", float64(s.TotalDocCount)/secs)
	fmt.Fprintln(out, "")

	fmt.Fprintln(out, "Common words:")
	for _, e := range common {
		fmt.Fprintf(out, "%s:%d ", e.W, e.C)
	}
	fmt.Fprintln(out, "")
}
