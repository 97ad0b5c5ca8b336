// Package stopwords holds the function-word lists used by the cleaner and the
// pattern extractor. Lists are embedded, one word per line, and looked up in lowercase.
package stopwords

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"

	"caoba.org/botcheck/utils"
)

//go:embed data/*.txt
var data embed.FS

// Set is an immutable stopword list for one language.
type Set struct {
	lang  string
	words map[string]struct{}
}

var (
	cache   = map[string]*Set{}
	cacheMu sync.Mutex
)

// ForLanguage returns the stopword set for an ISO 639-1 code ("es", "en").
func ForLanguage(lang string) (*Set, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if set, ok := cache[lang]; ok {
		return set, nil
	}
	buf, err := data.ReadFile("data/" + lang + ".txt")
	if err != nil {
		return nil, fmt.Errorf("stopwords: unsupported language %q", lang)
	}
	words, err := utils.ReadSet(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	set := &Set{lang: lang, words: words}
	cache[lang] = set
	return set, nil
}

func (s *Set) Lang() string {
	return s.lang
}

func (s *Set) Len() int {
	return len(s.words)
}

func (s *Set) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}
