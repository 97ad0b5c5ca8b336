package types

import "strings"

type Sentence struct {
	Text          string
	Tokens        []*Token
	Language      string
	LanguageScore float64
}

// Root returns the first root token of the sentence, or nil for an empty sentence.
func (sent *Sentence) Root() *Token {
	for _, token := range sent.Tokens {
		if token.IsRoot() {
			return token
		}
	}
	return nil
}

// String joins token texts when the parser did not keep the sentence text.
func (sent *Sentence) String() string {
	if sent.Text != "" {
		return sent.Text
	}
	words := make([]string, len(sent.Tokens))
	for i, token := range sent.Tokens {
		words[i] = token.Text
	}
	return strings.Join(words, " ")
}

// Doc is a parsed text: sentences in order, and the same tokens flattened in document order.
type Doc struct {
	Text      string
	Lang      string
	Sentences []*Sentence
	Tokens    []*Token
}

// Span returns the text of tokens[begin:end] joined the way the parser split them.
func (doc *Doc) Span(begin int, end int) string {
	if begin < 0 {
		begin = 0
	}
	if end > len(doc.Tokens) {
		end = len(doc.Tokens)
	}
	if begin >= end {
		return ""
	}
	words := make([]string, 0, end-begin)
	for _, token := range doc.Tokens[begin:end] {
		words = append(words, token.Text)
	}
	return strings.Join(words, " ")
}
