// Package nlp annotates dependency parses and exposes the views used to study a tweet:
// tagger rows, noun chunks, dependencies, sentences, language and syntactic patterns.
package nlp

import (
	"context"
	"fmt"
	"strings"

	"caoba.org/botcheck/cleaner"
	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/patterns"
	"caoba.org/botcheck/stopwords"
	"caoba.org/botcheck/types"
	"caoba.org/botcheck/utils"
	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/aaaton/golem/v4/dicts/es"
	"github.com/abadojack/whatlanggo"
	"github.com/kljensen/snowball"
	"github.com/rs/zerolog"
)

// LanguageThreshold is the sentence score above which LanguageDetector trusts a guess.
const LanguageThreshold = 0.8

// Analyzer is the pretrained tokenizer, tagger and dependency parser.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*types.Doc, error)
}

var stemLanguages = map[string]string{
	types.LangSpanish: "spanish",
	types.LangEnglish: "english",
}

// TextAnalysis is immutable after NewTextAnalysis and safe to share between goroutines
// as long as its Analyzer is.
type TextAnalysis struct {
	lang       string
	stemLang   string
	analyzer   Analyzer
	lemmatizer *golem.Lemmatizer
	stopwords  *stopwords.Set
	cleaner    *cleaner.Cleaner
	bcLogger   zerolog.Logger
	errLogger  zerolog.Logger
}

func NewTextAnalysis(lang string, analyzer Analyzer) (*TextAnalysis, error) {
	stemLang, ok := stemLanguages[lang]
	if !ok {
		return nil, fmt.Errorf("nlp: unsupported language %q", lang)
	}
	if analyzer == nil {
		return nil, fmt.Errorf("nlp: analyzer is required")
	}

	var pack golem.LanguagePack
	if lang == types.LangSpanish {
		pack = es.New()
	} else {
		pack = en.New()
	}
	lemmatizer, err := golem.New(pack)
	if err != nil {
		return nil, fmt.Errorf("nlp: loading lemmatizer: %w", err)
	}
	set, err := stopwords.ForLanguage(lang)
	if err != nil {
		return nil, err
	}
	cl, err := cleaner.New(lang)
	if err != nil {
		return nil, err
	}

	bcLogger := logger.NewLogger("Text Analysis").With().Str("lang", lang).Logger()
	bcLogger.Info().Msg("Text analysis is ready")
	return &TextAnalysis{
		lang:       lang,
		stemLang:   stemLang,
		analyzer:   analyzer,
		lemmatizer: lemmatizer,
		stopwords:  set,
		cleaner:    cl,
		bcLogger:   bcLogger,
		errLogger:  bcLogger.With().Caller().Logger(),
	}, nil
}

func (ta *TextAnalysis) Lang() string {
	return ta.lang
}

// Analyze parses text and fills the token and sentence attributes the parser leaves out.
func (ta *TextAnalysis) Analyze(ctx context.Context, text string) (doc *types.Doc, err error) {
	defer utils.RecoverWithError(&err)

	doc, err = ta.analyzer.Analyze(ctx, text)
	if err != nil {
		ta.errLogger.Err(err).Msg("Analysis failed")
		return nil, err
	}
	doc.Lang = ta.lang
	for _, token := range doc.Tokens {
		ta.annotate(token)
	}
	for _, sent := range doc.Sentences {
		info := whatlanggo.Detect(sent.String())
		sent.Language = info.Lang.Iso6391()
		sent.LanguageScore = info.Confidence
	}
	return doc, nil
}

func (ta *TextAnalysis) annotate(token *types.Token) {
	lower := token.Lower()
	if stem, err := snowball.Stem(lower, ta.stemLang, true); err == nil {
		token.Stem = stem
	} else {
		ta.bcLogger.Debug().Err(err).Str("token", token.Text).Msg("Stemming failed")
	}
	if token.Lemma == "" && !token.IsPunct {
		token.Lemma = ta.lemmatizer.Lemma(lower)
	}
	token.IsStop = ta.stopwords.Contains(lower)
	token.Shape = types.GetShape(token.Text)
	token.IsAlpha = types.IsAlphaText(token.Text)
	token.IsDigit = types.IsDigitText(token.Text)
}

func (ta *TextAnalysis) analyzeLower(ctx context.Context, text string) (*types.Doc, error) {
	return ta.Analyze(ctx, strings.ToLower(text))
}

// Tagger lists every token of the lowercased text with its attributes.
func (ta *TextAnalysis) Tagger(ctx context.Context, text string) ([]TaggerItem, error) {
	doc, err := ta.analyzeLower(ctx, text)
	if err != nil {
		return nil, err
	}
	return TaggerItems(doc), nil
}

// LanguageDetector returns the language of the first sentence scoring above
// LanguageThreshold, or "" when no sentence does.
func (ta *TextAnalysis) LanguageDetector(ctx context.Context, text string) (string, error) {
	doc, err := ta.analyzeLower(ctx, text)
	if err != nil {
		return "", err
	}
	return DocLanguage(doc), nil
}

// Dependency lists the noun chunks of the lowercased text with their roots.
func (ta *TextAnalysis) Dependency(ctx context.Context, text string) ([]DependencyItem, error) {
	doc, err := ta.analyzeLower(ctx, text)
	if err != nil {
		return nil, err
	}
	chunks := doc.NounChunks()
	items := make([]DependencyItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = DependencyItem{
			Chunk:    chunk.Text,
			Text:     chunk.Text,
			RootText: chunk.Root.Text,
			RootDep:  chunk.Root.Dep,
		}
	}
	return items, nil
}

// DependencyAll describes every noun chunk root and its children.
func (ta *TextAnalysis) DependencyAll(ctx context.Context, text string) ([]ChunkDependency, error) {
	doc, err := ta.analyzeLower(ctx, text)
	if err != nil {
		return nil, err
	}
	chunks := doc.NounChunks()
	items := make([]ChunkDependency, len(chunks))
	for i, chunk := range chunks {
		items[i] = newChunkDependency(chunk)
	}
	return items, nil
}

// DependencyChild describes every token with its head and children.
func (ta *TextAnalysis) DependencyChild(ctx context.Context, text string) ([]TokenDependency, error) {
	doc, err := ta.analyzeLower(ctx, text)
	if err != nil {
		return nil, err
	}
	items := make([]TokenDependency, len(doc.Tokens))
	for i, token := range doc.Tokens {
		items[i] = newTokenDependency(token)
	}
	return items, nil
}

// SentenceDetection splits text into trimmed sentences. Case is preserved.
func (ta *TextAnalysis) SentenceDetection(ctx context.Context, text string) ([]string, error) {
	doc, err := ta.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	sentences := make([]string, len(doc.Sentences))
	for i, sent := range doc.Sentences {
		sentences[i] = strings.TrimSpace(sent.String())
	}
	return sentences, nil
}

// Chunks returns the noun chunk texts. Case is preserved.
func (ta *TextAnalysis) Chunks(ctx context.Context, text string) ([]string, error) {
	doc, err := ta.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	return ChunkTexts(doc), nil
}

// SyntaxPatterns parses text, which is expected to be cleaned already, and extracts its
// patterns for the given scope.
func (ta *TextAnalysis) SyntaxPatterns(ctx context.Context, text string, scope string) (*patterns.Patterns, error) {
	doc, err := ta.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	return patterns.Extract(doc, scope), nil
}

func (ta *TextAnalysis) CleanText(text string, opts types.CleanOptions) (string, error) {
	return ta.cleaner.Clean(text, opts)
}

// Stopwords drops the stopwords of the analysis language from text.
func (ta *TextAnalysis) Stopwords(text string) (string, error) {
	return ta.cleaner.RemoveStopwords(text)
}

// ProperEncoding strips accents and any other non-ASCII rune.
func ProperEncoding(text string) (string, error) {
	return cleaner.ProperEncoding(text)
}
