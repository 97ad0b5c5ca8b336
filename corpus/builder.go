package corpus

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"caoba.org/botcheck/cleaner"
	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/types"
)

var bcLogger = logger.NewLogger("Corpus Builder")

// Builder writes one row per user file of a directory. When Cleaner is set every tweet is
// normalized with CleanOptions and tweets left empty are dropped.
type Builder struct {
	Truth        Truth
	Sink         Sink
	Cleaner      *cleaner.Cleaner
	CleanOptions types.CleanOptions
}

// Build returns the number of rows written. Any unreadable file or malformed document
// stops the run.
func (b *Builder) Build(dir string) (int, error) {
	start := time.Now()
	names, err := ListUserFiles(dir)
	if err != nil {
		return 0, err
	}
	bcLogger.Info().Str("dir", dir).Int("files", len(names)).Int("truth_records", len(b.Truth)).Msg("Building corpus")

	unlabeled := 0
	for i, name := range names {
		row, err := b.Row(filepath.Join(dir, name))
		if err != nil {
			return i, err
		}
		if !row.Label.Known() {
			unlabeled++
		}
		if err := b.Sink.Write(row); err != nil {
			return i, fmt.Errorf("writing %s: %w", row.UserID, err)
		}
	}

	logEvent := bcLogger.Info()
	if unlabeled > 0 {
		logEvent = bcLogger.Warn()
	}
	logEvent.Int("rows", len(names)).
		Int("unlabeled", unlabeled).
		Dur("elapsed", time.Since(start)).
		Msg("Corpus built")
	return len(names), nil
}

// Row reads one user file into a corpus row.
func (b *Builder) Row(filePath string) (types.CorpusRow, error) {
	userID := UserID(filepath.Base(filePath))
	tweets, err := ReadDocuments(filePath)
	if err != nil {
		return types.CorpusRow{}, err
	}
	if b.Cleaner != nil {
		if tweets, err = b.clean(tweets); err != nil {
			return types.CorpusRow{}, fmt.Errorf("cleaning %s: %w", userID, err)
		}
	}
	label, ok := b.Truth.Lookup(userID)
	if !ok {
		bcLogger.Debug().Str("user_id", userID).Msg("User is not in the truth file")
	}
	return types.CorpusRow{UserID: userID, Tweets: tweets, Label: label}, nil
}

func (b *Builder) clean(tweets []string) ([]string, error) {
	cleaned := make([]string, 0, len(tweets))
	for _, tweet := range tweets {
		out, err := b.Cleaner.Clean(tweet, b.CleanOptions)
		if errors.Is(err, cleaner.ErrEmptyResult) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cleaned = append(cleaned, out)
	}
	return cleaned, nil
}

// CleanRows normalizes the tweets of rows already loaded, as the clean command does.
func CleanRows(rows []types.CorpusRow, cl *cleaner.Cleaner, opts types.CleanOptions) ([]types.CorpusRow, error) {
	b := Builder{Cleaner: cl, CleanOptions: opts}
	out := make([]types.CorpusRow, len(rows))
	for i, row := range rows {
		tweets, err := b.clean(row.Tweets)
		if err != nil {
			return nil, fmt.Errorf("cleaning %s: %w", row.UserID, err)
		}
		out[i] = types.CorpusRow{UserID: row.UserID, Tweets: tweets, Label: row.Label}
	}
	return out, nil
}
