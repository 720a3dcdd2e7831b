// internal/words/words.go
//
// Word corpus for turns. Categories are loaded from an embedded JSON document
// unless WORDS_FILE points at a replacement with the same shape:
//
//	{"category": ["word", ...], ...}
package words

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
)

//go:embed corpus.json
var embeddedCorpus []byte

// ErrCategoryUnavailable is returned when there is nothing to draw from.
var ErrCategoryUnavailable = errors.New("word category unavailable")

// Corpus maps category name to its words.
type Corpus map[string][]string

// Pool draws random words from a fixed corpus.
type Pool struct {
	mu         sync.Mutex
	rng        *rand.Rand
	categories []string
	corpus     Corpus
}

// NewPool builds a pool over corpus. rng must not be shared with other goroutines; the pool serialises its own use of it.
func NewPool(corpus Corpus, rng *rand.Rand) *Pool {
	cats := make([]string, 0, len(corpus))
	clean := make(Corpus, len(corpus))
	for name, list := range corpus {
		ws := make([]string, 0, len(list))
		for _, w := range list {
			if w = strings.TrimSpace(w); w != "" {
				ws = append(ws, w)
			}
		}
		cats = append(cats, name)
		clean[name] = ws
	}
	// map order is random; sort so a seeded rng is reproducible
	sort.Strings(cats)
	return &Pool{rng: rng, categories: cats, corpus: clean}
}

// Next picks a uniformly random category, then a uniformly random word from it.
func (p *Pool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.categories) == 0 {
		return "", ErrCategoryUnavailable
	}
	cat := p.categories[p.rng.Intn(len(p.categories))]
	list := p.corpus[cat]
	if len(list) == 0 {
		return "", fmt.Errorf("%w: %q is empty", ErrCategoryUnavailable, cat)
	}
	return list[p.rng.Intn(len(list))], nil
}

// Categories lists category names in sorted order.
func (p *Pool) Categories() []string {
	return append([]string(nil), p.categories...)
}

// LoadCorpus reads the corpus from path, or the embedded default when path is empty.
func LoadCorpus(path string) (Corpus, error) {
	data := embeddedCorpus
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read word corpus %s: %w", path, err)
		}
		data = b
	}
	var c Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse word corpus: %w", err)
	}
	return c, nil
}
