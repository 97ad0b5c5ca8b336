package conllu

import (
	"context"
	"fmt"

	"caoba.org/botcheck/types"
)

// Source turns raw text into a CoNLL-U document, typically a remote parser.
type Source interface {
	Process(ctx context.Context, text string) (string, error)
}

// Analyzer parses the output of a Source.
type Analyzer struct {
	source Source
}

func NewAnalyzer(source Source) *Analyzer {
	return &Analyzer{source: source}
}

func (a *Analyzer) Analyze(ctx context.Context, text string) (*types.Doc, error) {
	out, err := a.source.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("conllu: source failed: %w", err)
	}
	doc, err := ParseString(out)
	if err != nil {
		return nil, err
	}
	doc.Text = text
	return doc, nil
}
