package stats

import (
	"bytes"
	"sync"
	"testing"

	"github.com/anrid/trecload/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	r := require.New(t)

	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Read(domain.NewDocument("a", "The quake", "The quake struck, the city shook."))
			s.Read(domain.NewDocument("b", "", "city"))
		}()
	}
	wg.Wait()

	r.EqualValues(20, s.TotalDocCount)
	r.EqualValues(20, s.TitleWordCount)
	r.EqualValues(70, s.BodyWordCount)
	r.EqualValues(10, s.PlaceholderTitles)
	r.EqualValues(0, s.PlaceholderBodies)

	common := s.Common(2)
	r.Equal([]Entry{{W: "the", C: 30}, {W: "city", C: 20}}, common)

	var out bytes.Buffer
	s.Print(&out)
	r.Contains(out.String(), "Document count          : 20")
	r.Contains(out.String(), "the:30")
}
