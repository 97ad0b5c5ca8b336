// Package patterns builds surface-keyed syntactic patterns from a dependency parse.
package patterns

import (
	"strings"

	"caoba.org/botcheck/types"
)

type Word struct {
	Text string `json:"text"`
	Pos  string `json:"pos"`
}

// Pattern is an ordered run of words; its key is the words joined by a space.
type Pattern []Word

func (p Pattern) Key() string {
	texts := make([]string, len(p))
	for i, w := range p {
		texts[i] = w.Text
	}
	return strings.Join(texts, " ")
}

// Patterns groups patterns by their dominant part of speech. A later pattern with the same
// key replaces the earlier one.
type Patterns struct {
	Noun map[string]Pattern `json:"NOUN"`
	Verb map[string]Pattern `json:"VERB"`
	Adv  map[string]Pattern `json:"ADV"`
	Adj  map[string]Pattern `json:"ADJ"`
}

func New() *Patterns {
	return &Patterns{
		Noun: map[string]Pattern{},
		Verb: map[string]Pattern{},
		Adv:  map[string]Pattern{},
		Adj:  map[string]Pattern{},
	}
}

func (p *Patterns) Len() int {
	return len(p.Noun) + len(p.Verb) + len(p.Adv) + len(p.Adj)
}

func put(group map[string]Pattern, words ...Word) {
	pattern := Pattern(words)
	group[pattern.Key()] = pattern
}

// item is what the rules look at: a token, or a noun chunk seen through its root.
type item struct {
	text  string
	token *types.Token
}

func (it item) word() Word {
	return Word{Text: it.text, Pos: it.token.Pos}
}

func word(token *types.Token) Word {
	return Word{Text: token.Lower(), Pos: token.Pos}
}

func skip(token *types.Token) bool {
	return token.IsStop || token.IsPunct || token.Pos == "" || token.Pos == types.PosPron
}

// Extract walks every sentence of doc. With types.ScopeNounChunks only noun-chunk roots are
// visited and the whole chunk text is used as their surface; any other scope visits every token.
func Extract(doc *types.Doc, scope string) *Patterns {
	result := New()
	for _, it := range items(doc, scope) {
		if skip(it.token) {
			continue
		}
		result.visit(it)
	}
	return result
}

func items(doc *types.Doc, scope string) []item {
	if scope == types.ScopeNounChunks {
		chunks := doc.NounChunks()
		out := make([]item, len(chunks))
		for i, chunk := range chunks {
			out[i] = item{text: strings.ToLower(chunk.Text), token: chunk.Root}
		}
		return out
	}

	out := make([]item, 0, len(doc.Tokens))
	for _, sent := range doc.Sentences {
		for _, token := range sent.Tokens {
			out = append(out, item{text: token.Lower(), token: token})
		}
	}
	return out
}

func (p *Patterns) visit(it item) {
	token := it.token
	self := it.word()

	switch token.Pos {
	case types.PosNoun:
		put(p.Noun, self)
		for _, child := range token.Children {
			switch child.Pos {
			case types.PosAdj:
				pattern := []Word{word(child), self}
				put(p.Noun, pattern...)
				put(p.Adj, pattern...)
			case types.PosAdp:
				put(p.Noun, word(child), self)
			}
		}
	case types.PosPron, types.PosPropn:
		for _, child := range token.Children {
			if child.Pos == types.PosNoun {
				put(p.Noun, self, word(child))
			}
		}
	case types.PosAdj:
		put(p.Adj, self)
		for _, child := range token.Children {
			if child.Pos == types.PosNoun {
				put(p.Adj, self, word(child))
			}
		}
	}

	// roots are their own head, so the head rules apply to them as well
	head := token.Head
	if head == nil {
		head = token
	}
	headWord := word(head)
	for _, child := range token.Children {
		switch head.Pos {
		case types.PosNoun:
			if child.Pos == types.PosAdp {
				put(p.Noun, headWord, word(child), self)
			}
		case types.PosAdj:
			if child.Pos == types.PosAdj {
				put(p.Noun, headWord, word(child), self)
				put(p.Adj, headWord, word(child), self)
			}
		case types.PosVerb:
			switch child.Pos {
			case types.PosAdj:
				put(p.Verb, headWord, self, word(child))
			case types.PosAdp:
				put(p.Verb, headWord, word(child), self)
			}
		case types.PosAdv:
			switch child.Pos {
			case types.PosAdv:
				put(p.Adv, headWord, word(child), self)
			case types.PosAdj:
				put(p.Adv, headWord, self, word(child))
			}
		}
	}
}
