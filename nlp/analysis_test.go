package nlp

import (
	"context"
	"errors"
	"os"
	"testing"

	"caoba.org/botcheck/conllu"
	"caoba.org/botcheck/types"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	conll string
	err   error
	panic bool
	texts []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (*types.Doc, error) {
	f.texts = append(f.texts, text)
	if f.panic {
		panic("parser crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	doc, err := conllu.ParseString(f.conll)
	if err != nil {
		return nil, err
	}
	doc.Text = text
	return doc, nil
}

func sampleAnalysis(t *testing.T) (*TextAnalysis, *fakeAnalyzer) {
	buf, err := os.ReadFile("../conllu/testdata/es_sample.conllu")
	require.NoError(t, err)
	fake := &fakeAnalyzer{conll: string(buf)}
	ta, err := NewTextAnalysis(types.LangSpanish, fake)
	require.NoError(t, err)
	return ta, fake
}

func TestNewTextAnalysis(t *testing.T) {
	_, err := NewTextAnalysis("fr", &fakeAnalyzer{})
	require.Error(t, err)
	_, err = NewTextAnalysis(types.LangSpanish, nil)
	require.Error(t, err)

	ta, err := NewTextAnalysis(types.LangEnglish, &fakeAnalyzer{})
	require.NoError(t, err)
	require.Equal(t, types.LangEnglish, ta.Lang())
}

func TestAnalyze(t *testing.T) {
	ta, _ := sampleAnalysis(t)
	doc, err := ta.Analyze(context.Background(), "la casa roja está en la ciudad grande. vamos al parque")
	require.NoError(t, err)
	require.Equal(t, types.LangSpanish, doc.Lang)
	require.Len(t, doc.Tokens, 13)

	la, casa, esta := doc.Tokens[0], doc.Tokens[1], doc.Tokens[3]
	require.True(t, la.IsStop)
	require.False(t, casa.IsStop)
	require.NotEmpty(t, casa.Stem)
	require.Equal(t, "xxxx", esta.Shape)
	require.True(t, esta.IsAlpha)
	require.False(t, esta.IsDigit)
	require.Equal(t, "estar", esta.Lemma)

	parque := doc.Tokens[12]
	require.Equal(t, "parque", parque.Text)
	require.NotEmpty(t, parque.Lemma, "lemma falls back to the dictionary")

	punct := doc.Tokens[8]
	require.True(t, punct.IsPunct)
	require.False(t, punct.IsAlpha)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("Analyzer error", func(t *testing.T) {
		ta, fake := sampleAnalysis(t)
		fake.err = errors.New("parser offline")
		_, err := ta.Tagger(context.Background(), "hola")
		require.ErrorIs(t, err, fake.err)
	})
	t.Run("Analyzer panic", func(t *testing.T) {
		ta, fake := sampleAnalysis(t)
		fake.panic = true
		_, err := ta.Analyze(context.Background(), "hola")
		require.ErrorContains(t, err, "got panic")
	})
}

func TestViews(t *testing.T) {
	ctx := context.Background()

	t.Run("Tagger lowercases its input", func(t *testing.T) {
		ta, fake := sampleAnalysis(t)
		items, err := ta.Tagger(ctx, "La Casa")
		require.NoError(t, err)
		require.Equal(t, []string{"la casa"}, fake.texts)
		require.Len(t, items, 13)
		require.Equal(t, "casa", items[1].Text)
		require.Equal(t, types.PosNoun, items[1].Pos)
		require.Equal(t, "nsubj", items[1].Dep)
		require.Equal(t, "NCFS000", items[1].Tag)
	})
	t.Run("Dependency", func(t *testing.T) {
		ta, _ := sampleAnalysis(t)
		items, err := ta.Dependency(ctx, "x")
		require.NoError(t, err)
		require.Equal(t, []DependencyItem{
			{Chunk: "la casa", Text: "la casa", RootText: "casa", RootDep: "nsubj"},
			{Chunk: "la ciudad", Text: "la ciudad", RootText: "ciudad", RootDep: "obl"},
			{Chunk: "el parque", Text: "el parque", RootText: "parque", RootDep: "obl"},
		}, items)
	})
	t.Run("DependencyAll", func(t *testing.T) {
		ta, _ := sampleAnalysis(t)
		items, err := ta.DependencyAll(ctx, "x")
		require.NoError(t, err)
		require.Len(t, items, 3)
		casa := items[0]
		require.Equal(t, "casa", casa.Text)
		require.Equal(t, "está", casa.HeadText)
		require.Equal(t, types.PosVerb, casa.HeadPos)
		require.Len(t, casa.Children, 2)
		require.Equal(t, "roja", casa.Children[1].Child)
		require.Equal(t, "casa", casa.Children[1].HeadText)
	})
	t.Run("DependencyChild", func(t *testing.T) {
		ta, _ := sampleAnalysis(t)
		items, err := ta.DependencyChild(ctx, "x")
		require.NoError(t, err)
		require.Len(t, items, 13)
		require.Nil(t, items[0].Children)
		esta := items[3]
		require.Equal(t, types.DepRoot, esta.Dep)
		require.Equal(t, "está", esta.HeadText)
		require.Len(t, esta.Children, 3)
	})
	t.Run("SentenceDetection and Chunks keep case", func(t *testing.T) {
		ta, fake := sampleAnalysis(t)
		sentences, err := ta.SentenceDetection(ctx, "La Casa")
		require.NoError(t, err)
		require.Equal(t, []string{"la casa roja está en la ciudad grande.", "vamos al parque"}, sentences)

		chunks, err := ta.Chunks(ctx, "La Casa")
		require.NoError(t, err)
		require.Equal(t, []string{"la casa", "la ciudad", "el parque"}, chunks)
		require.Equal(t, []string{"La Casa", "La Casa"}, fake.texts)
	})
	t.Run("SyntaxPatterns", func(t *testing.T) {
		ta, _ := sampleAnalysis(t)
		result, err := ta.SyntaxPatterns(ctx, "x", types.ScopeTokens)
		require.NoError(t, err)
		// stopwords are flagged before extraction
		require.Contains(t, result.Adj, "roja casa")
		require.Contains(t, result.Noun, "roja casa")
		require.Contains(t, result.Verb, "está en ciudad")
	})
	t.Run("CleanText and Stopwords", func(t *testing.T) {
		ta, _ := sampleAnalysis(t)
		out, err := ta.CleanText("Visita http://x.co hoy!", types.CleanOptions{URL: true, Mention: true})
		require.NoError(t, err)
		require.Equal(t, "visita hoy", out)

		out, err = ta.Stopwords("la casa de la ciudad")
		require.NoError(t, err)
		require.Equal(t, "casa ciudad", out)
	})
}

func TestLanguageDetector(t *testing.T) {
	conll := "# text = el gobierno anunció hoy que las nuevas medidas económicas entrarán en vigor la próxima semana en todo el país y que los ciudadanos podrán consultar los detalles en la página oficial\n" +
		"1\tel\tel\tDET\t_\t_\t2\tdet\t_\t_\n" +
		"2\tgobierno\tgobierno\tNOUN\t_\t_\t0\troot\t_\t_\n"
	ta, err := NewTextAnalysis(types.LangSpanish, &fakeAnalyzer{conll: conll})
	require.NoError(t, err)

	doc, err := ta.Analyze(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, types.LangSpanish, doc.Sentences[0].Language)
	require.Greater(t, doc.Sentences[0].LanguageScore, 0.0)

	lang, err := ta.LanguageDetector(context.Background(), "x")
	require.NoError(t, err)
	if doc.Sentences[0].LanguageScore > LanguageThreshold {
		require.Equal(t, types.LangSpanish, lang)
	} else {
		require.Empty(t, lang)
	}
}

func TestProperEncoding(t *testing.T) {
	out, err := ProperEncoding("Bogotá, Pontificia Universidad Javeriana")
	require.NoError(t, err)
	require.Equal(t, "Bogota, Pontificia Universidad Javeriana", out)
}
