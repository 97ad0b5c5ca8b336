package types

import "strings"

// nominal dependency labels that open a noun chunk
var chunkDeps = map[string]struct{}{
	"nsubj":      {},
	"nsubj:pass": {},
	"nsubjpass":  {},
	"obj":        {},
	"dobj":       {},
	"iobj":       {},
	"obl":        {},
	"nmod":       {},
	"pobj":       {},
	"pcomp":      {},
	"appos":      {},
	"attr":       {},
	DepRoot:      {},
}

// left dependents a noun chunk extends over; case markers stay outside
var chunkLeftDeps = map[string]struct{}{
	"det":    {},
	"fixed":  {},
	"neg":    {},
	"amod":   {},
	"nummod": {},
}

// Chunk is a base noun phrase: Doc.Tokens[Begin:End], headed by Root.
type Chunk struct {
	Root  *Token
	Begin int
	End   int
	Text  string
}

// NounChunks walks the document left to right. A chunk spans from the leftmost determiner or
// modifier of a nominal token to the token itself; chunks overlapping the previous one are
// skipped.
func (doc *Doc) NounChunks() []Chunk {
	var chunks []Chunk
	prevEnd := -1
	for _, token := range doc.Tokens {
		switch token.Pos {
		case PosNoun, PosPropn, PosPron:
		default:
			continue
		}
		if _, ok := chunkDeps[strings.ToLower(token.Dep)]; !ok && token.Dep != DepRoot {
			continue
		}
		begin := chunkBegin(token)
		if begin <= prevEnd {
			continue
		}
		end := token.Index + 1
		chunks = append(chunks, Chunk{
			Root:  token,
			Begin: begin,
			End:   end,
			Text:  doc.Span(begin, end),
		})
		prevEnd = end - 1
	}
	return chunks
}

func chunkBegin(root *Token) int {
	begin := root.Index
	for _, child := range root.Children {
		if child.Index >= root.Index {
			break
		}
		label := strings.ToLower(child.Dep)
		if i := strings.IndexByte(label, ':'); i >= 0 {
			label = label[:i]
		}
		if _, ok := chunkLeftDeps[label]; !ok {
			continue
		}
		if edge := child.LeftEdge().Index; edge < begin {
			begin = edge
		}
	}
	return begin
}
