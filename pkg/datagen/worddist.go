package datagen

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// A WordDistribution is a an array of words associated with numeric ranges
// that represent how often the word occurs in a given body of text.
// It can be used to randomly select words from a text according to the natural
// distribution of those words in a given text.
// For example, the word `and` will occur far more often than the word `house`
// in a typical English text. This should be reflected in generated
// documents used to load test a search engine.
type WordDistribution struct {
	d         []*Offset
	rnd       *rand.Rand
	Length    int
	MaxOffset int64
}

type Offset struct {
	Word   string
	Offset int64
}

type Count struct {
	Word  string
	Count int64
}

func NewWordDistribution(wordCounts map[string]int64, seed int64) (*WordDistribution, error) {
	wd := &WordDistribution{rnd: rand.New(rand.NewSource(seed))}

	var words []*Count
	for word, count := range wordCounts {
		if word == "" || count <= 0 {
			return nil, errors.Errorf("illegal word '%s' or count %d", word, count)
		}
		words = append(words, &Count{word, count})
	}

	if len(words) == 0 {
		return nil, errors.New("empty word distribution")
	}

	// Sort by count descending, then by word to keep offsets stable.
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count == words[j].Count {
			return words[i].Word < words[j].Word
		}
		return words[i].Count > words[j].Count
	})

	var offset int64
	for _, w := range words {
		wd.d = append(wd.d, &Offset{w.Word, offset})
		offset += w.Count
	}

	wd.MaxOffset = offset
	wd.Length = len(wd.d)

	return wd, nil
}

func (wd *WordDistribution) RandomSentence(numWords int) string {
	var sentence []string

	for i := 0; i < numWords; i++ {
		sentence = append(sentence, wd.RandomWord())
	}

	return strings.Join(sentence, " ")
}

func (wd *WordDistribution) RandomWord() string {
	if len(wd.d) == 1 {
		return wd.d[0].Word
	}

	return wd.GetWord(wd.rnd.Int63n(wd.MaxOffset))
}

// GetWord returns the word whose range [offset, next offset) holds offset.
// Offsets outside [0, MaxOffset) are clamped to the first or last word.
func (wd *WordDistribution) GetWord(offset int64) string {
	// Perform a binary search on our word distribution to find
	// the first interval starting after our offset.
	i := sort.Search(len(wd.d), func(i int) bool {
		return wd.d[i].Offset > offset
	})

	if i == 0 {
		return wd.d[0].Word
	}
	return wd.d[i-1].Word
}
