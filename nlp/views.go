package nlp

import "caoba.org/botcheck/types"

type TaggerItem struct {
	Text    string `json:"text"`
	Lemma   string `json:"lemma"`
	Stem    string `json:"stem"`
	Pos     string `json:"pos"`
	Tag     string `json:"tag"`
	Dep     string `json:"dep"`
	Shape   string `json:"shape"`
	IsAlpha bool   `json:"is_alpha"`
	IsStop  bool   `json:"is_stop"`
	IsDigit bool   `json:"is_digit"`
	IsPunct bool   `json:"is_punct"`
}

func newTaggerItem(token *types.Token) TaggerItem {
	return TaggerItem{
		Text:    token.Text,
		Lemma:   token.Lemma,
		Stem:    token.Stem,
		Pos:     token.Pos,
		Tag:     token.Tag,
		Dep:     token.Dep,
		Shape:   token.Shape,
		IsAlpha: token.IsAlpha,
		IsStop:  token.IsStop,
		IsDigit: token.IsDigit,
		IsPunct: token.IsPunct,
	}
}

// TaggerItems lists every token of an analyzed document.
func TaggerItems(doc *types.Doc) []TaggerItem {
	items := make([]TaggerItem, len(doc.Tokens))
	for i, token := range doc.Tokens {
		items[i] = newTaggerItem(token)
	}
	return items
}

// DocLanguage is the language of the first sentence scoring above LanguageThreshold.
func DocLanguage(doc *types.Doc) string {
	for _, sent := range doc.Sentences {
		if sent.LanguageScore > LanguageThreshold {
			return sent.Language
		}
	}
	return ""
}

func ChunkTexts(doc *types.Doc) []string {
	chunks := doc.NounChunks()
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return texts
}

type DependencyItem struct {
	Chunk    string `json:"chunk"`
	Text     string `json:"text"`
	RootText string `json:"root_text"`
	RootDep  string `json:"root_dep"`
}

type ChildDependency struct {
	Child    string `json:"child"`
	Pos      string `json:"pos"`
	Dep      string `json:"dep"`
	Tag      string `json:"tag"`
	Lemma    string `json:"lemma"`
	IsStop   bool   `json:"is_stop"`
	IsPunct  bool   `json:"is_punct"`
	HeadText string `json:"head_text"`
	HeadPos  string `json:"head_pos"`
}

// ChunkDependency is a noun chunk seen through its root token.
type ChunkDependency struct {
	Chunk    string            `json:"chunk"`
	Text     string            `json:"text"`
	Pos      string            `json:"pos"`
	Dep      string            `json:"dep"`
	Tag      string            `json:"tag"`
	Lemma    string            `json:"lemma"`
	IsStop   bool              `json:"is_stop"`
	IsPunct  bool              `json:"is_punct"`
	HeadText string            `json:"head_text"`
	HeadPos  string            `json:"head_pos"`
	Children []ChildDependency `json:"children"`
}

type TokenDependency struct {
	Chunk    string            `json:"chunk"`
	Text     string            `json:"text"`
	Pos      string            `json:"pos"`
	Dep      string            `json:"dep"`
	Tag      string            `json:"tag"`
	HeadText string            `json:"head_text"`
	HeadPos  string            `json:"head_pos"`
	Children []ChildDependency `json:"children"`
}

func head(token *types.Token) *types.Token {
	if token.Head == nil {
		return token
	}
	return token.Head
}

func children(token *types.Token) []ChildDependency {
	if len(token.Children) == 0 {
		return nil
	}
	out := make([]ChildDependency, len(token.Children))
	for i, child := range token.Children {
		out[i] = ChildDependency{
			Child:    child.Text,
			Pos:      child.Pos,
			Dep:      child.Dep,
			Tag:      child.Tag,
			Lemma:    child.Lemma,
			IsStop:   child.IsStop,
			IsPunct:  child.IsPunct,
			HeadText: head(child).Text,
			HeadPos:  head(child).Pos,
		}
	}
	return out
}

func newChunkDependency(chunk types.Chunk) ChunkDependency {
	root := chunk.Root
	return ChunkDependency{
		Chunk:    chunk.Text,
		Text:     root.Text,
		Pos:      root.Pos,
		Dep:      root.Dep,
		Tag:      root.Tag,
		Lemma:    root.Lemma,
		IsStop:   root.IsStop,
		IsPunct:  root.IsPunct,
		HeadText: head(root).Text,
		HeadPos:  head(root).Pos,
		Children: children(root),
	}
}

func newTokenDependency(token *types.Token) TokenDependency {
	return TokenDependency{
		Chunk:    token.Text,
		Text:     token.Text,
		Pos:      token.Pos,
		Dep:      token.Dep,
		Tag:      token.Tag,
		HeadText: head(token).Text,
		HeadPos:  head(token).Pos,
		Children: children(token),
	}
}
