// Package cleaner normalizes tweet text before it is parsed or fed to a classifier.
//
// The cleanup runs in a fixed order: lowercase, placeholder substitution for emails,
// emoji, urls, mentions and hashtags, digit removal, special character removal,
// optional stopword removal, single character removal and whitespace collapsing.
package cleaner

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"caoba.org/botcheck/stopwords"
	"caoba.org/botcheck/types"
	"github.com/jdkato/prose/v2"
)

// Options enumerates the switches of Clean. All default to false.
type Options = types.CleanOptions

// ErrEmptyResult is returned when nothing is left of the text after cleaning.
var ErrEmptyResult = errors.New("cleaner: empty result")

const (
	LabelEmail   = "EMAIL"
	LabelEmoji   = "EMOJI"
	LabelMention = "MENTION"
	LabelHashtag = "HASHTAG"
	LabelURL     = "URL"
)

var (
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	emojiRe   = regexp.MustCompile(`[\x{1F000}-\x{E007F}]`)
	urlRe     = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]{1,40})`)
	hashtagRe = regexp.MustCompile(`#([A-Za-z0-9_]{1,40})`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	labelRe   = regexp.MustCompile(`\[(?:` + strings.Join(Labels(), "|") + `)\]`)
)

// Labels lists the placeholder names in the order they are stripped.
func Labels() []string {
	return []string{LabelEmail, LabelEmoji, LabelMention, LabelHashtag, LabelURL}
}

func placeholder(label string) string {
	return "[" + label + "]"
}

// Cleaner is bound to one language for the stopword step. Safe for concurrent use.
type Cleaner struct {
	stopwords *stopwords.Set
}

func New(lang string) (*Cleaner, error) {
	set, err := stopwords.ForLanguage(lang)
	if err != nil {
		return nil, err
	}
	return &Cleaner{stopwords: set}, nil
}

func (c *Cleaner) Lang() string {
	return c.stopwords.Lang()
}

// Clean returns the normalized text or ErrEmptyResult.
func (c *Cleaner) Clean(text string, opts Options) (string, error) {
	out := strings.ToLower(text)
	if emailRe.MatchString(strings.TrimSpace(out)) {
		out = placeholder(LabelEmail)
	}
	if opts.Emoji {
		out = emojiRe.ReplaceAllLiteralString(out, placeholder(LabelEmoji))
	}
	if opts.URL {
		out = urlRe.ReplaceAllLiteralString(out, placeholder(LabelURL))
	}
	if opts.Mention {
		out = mentionRe.ReplaceAllLiteralString(out, placeholder(LabelMention))
	}
	if opts.Hashtag {
		out = hashtagRe.ReplaceAllLiteralString(out, placeholder(LabelHashtag))
	}
	out = digitRe.ReplaceAllLiteralString(out, "")

	// Placeholders are only dropped when mentions are on; see DESIGN.md.
	if !opts.Relabel && opts.Mention {
		out = labelRe.ReplaceAllLiteralString(out, " ")
	}

	out = DeleteSpecialPatterns(out)
	if opts.Stopwords {
		var err error
		if out, err = c.RemoveStopwords(out); err != nil {
			return "", err
		}
	}
	out = dropSingleCharacters(out)
	out = strings.Join(strings.Fields(out), " ")
	if out == "" || out == " " {
		return "", ErrEmptyResult
	}
	return out, nil
}

// RemoveStopwords tokenizes text and joins back every token that is not a stopword.
func (c *Cleaner) RemoveStopwords(text string) (string, error) {
	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return "", err
	}
	words := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		if c.stopwords.Contains(tok.Text) {
			continue
		}
		words = append(words, tok.Text)
	}
	return strings.Join(words, " "), nil
}

// dropSingleCharacters blanks every token of exactly one rune delimited by a plain space
// or the string boundaries. Newlines are never treated as a token.
func dropSingleCharacters(text string) string {
	parts := strings.Split(text, " ")
	for i, part := range parts {
		if part != "\n" && utf8.RuneCountInString(part) == 1 {
			parts[i] = ""
		}
	}
	return strings.Join(parts, " ")
}
