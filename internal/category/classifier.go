// Package category assigns grocery items to the aisles of the target
// application.
package category

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// minimum Jaro-Winkler similarity for a misspelled word to count as a keyword
const fuzzyThreshold = 0.92

type keyword struct {
	phrase   string
	category Id
	single   bool
}

// Classifier maps free text to a category. Classify is a pure function of its
// input, results are memoized.
type Classifier struct {
	keywords []keyword
	fallback Id
	memo     *expirable.LRU[string, Id]
}

func NewClassifier(table []Category, fallback Id) *Classifier {
	var keywords []keyword
	for _, c := range table {
		for _, k := range c.Keywords {
			phrase := strings.Join(tokenize(k), " ")
			if phrase == "" {
				continue
			}
			keywords = append(keywords, keyword{
				phrase:   phrase,
				category: c.Id,
				single:   !strings.Contains(phrase, " "),
			})
		}
	}
	return &Classifier{
		keywords: keywords,
		fallback: fallback,
		memo:     expirable.NewLRU[string, Id](1024, nil, time.Hour),
	}
}

// DefaultClassifier returns the process-wide classifier over DefaultTable.
// Every classifier owns a memo cleanup goroutine, so callers share this one.
var DefaultClassifier = sync.OnceValue(func() *Classifier {
	return NewClassifier(DefaultTable, Other)
})

func (c *Classifier) Classify(text string) Id {
	tokens := tokenize(text)
	normalized := strings.Join(tokens, " ")
	if normalized == "" {
		return c.fallback
	}
	if id, ok := c.memo.Get(normalized); ok {
		return id
	}

	id := c.exact(normalized)
	if id == "" {
		id = c.fuzzy(tokens)
	}
	if id == "" {
		id = c.fallback
	}
	c.memo.Add(normalized, id)
	return id
}

// exact picks the longest keyword phrase appearing as whole words, so that
// "peanut butter" beats "butter".
func (c *Classifier) exact(normalized string) Id {
	padded := " " + normalized + " "
	var best keyword
	for _, k := range c.keywords {
		if len(k.phrase) <= len(best.phrase) {
			continue
		}
		if strings.Contains(padded, " "+k.phrase+" ") {
			best = k
		}
	}
	return best.category
}

func (c *Classifier) fuzzy(tokens []string) Id {
	var best Id
	var bestScore float64
	for _, token := range tokens {
		if len(token) < 4 {
			continue
		}
		for _, k := range c.keywords {
			if !k.single {
				continue
			}
			score := matchr.JaroWinkler(token, k.phrase, false)
			if score >= fuzzyThreshold && score > bestScore {
				best = k.category
				bestScore = score
			}
		}
	}
	return best
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for i, f := range fields {
		fields[i] = singular(f)
	}
	return fields
}

func singular(word string) string {
	switch {
	case len(word) <= 3:
		return word
	case strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "oes"),
		strings.HasSuffix(word, "ches"),
		strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "xes"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"), strings.HasSuffix(word, "us"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}
