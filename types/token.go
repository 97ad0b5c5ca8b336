package types

import (
	"strings"
	"unicode"
)

// Universal POS tags the pattern extractor and the chunker care about.
const (
	PosNoun  = "NOUN"
	PosPropn = "PROPN"
	PosPron  = "PRON"
	PosAdj   = "ADJ"
	PosAdp   = "ADP"
	PosAdv   = "ADV"
	PosVerb  = "VERB"
	PosPunct = "PUNCT"
)

// DepRoot is the dependency label of a sentence root.
const DepRoot = "ROOT"

type Token struct {
	// Index is the position of the token inside its document.
	Index    int
	Text     string
	Lemma    string
	Stem     string
	Pos      string
	Tag      string
	Dep      string
	Shape    string
	IsAlpha  bool
	IsStop   bool
	IsDigit  bool
	IsPunct  bool
	Head     *Token
	Children []*Token
	Sentence *Sentence
}

// Lower is the surface form used to build pattern keys.
func (token *Token) Lower() string {
	return strings.ToLower(token.Text)
}

// IsRoot reports whether the token heads its own sentence. Roots point at themselves.
func (token *Token) IsRoot() bool {
	return token.Head == nil || token.Head == token
}

// LeftEdge returns the leftmost token of the token's subtree.
func (token *Token) LeftEdge() *Token {
	edge := token
	for _, child := range token.Children {
		if child.Index >= edge.Index {
			continue
		}
		if left := child.LeftEdge(); left.Index < edge.Index {
			edge = left
		}
	}
	return edge
}

// GetShape follows the spaCy convention: letters become X/x, digits d, other runes are kept
// and runs of the same class longer than four are cut.
func GetShape(txt string) string {
	var sb strings.Builder
	var last rune
	run := 0
	for _, r := range txt {
		var ch rune
		switch {
		case unicode.IsDigit(r):
			ch = 'd'
		case unicode.IsUpper(r):
			ch = 'X'
		case unicode.IsLetter(r):
			ch = 'x'
		default:
			ch = r
		}
		if ch == last {
			run++
		} else {
			last = ch
			run = 1
		}
		if run <= 4 {
			sb.WriteRune(ch)
		}
	}

	return sb.String()
}

// IsAlphaText is true for non-empty text made only of letters.
func IsAlphaText(txt string) bool {
	if txt == "" {
		return false
	}
	for _, r := range txt {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// IsDigitText is true for non-empty text made only of decimal digits.
func IsDigitText(txt string) bool {
	if txt == "" {
		return false
	}
	for _, r := range txt {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
