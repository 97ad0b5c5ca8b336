package pipeline

import (
	"context"
	"errors"
	"sync"

	"caoba.org/botcheck/cleaner"
	"caoba.org/botcheck/nlp"
	"caoba.org/botcheck/patterns"
	"caoba.org/botcheck/types"
	"github.com/rs/zerolog"
)

// job carries one profile's view of a request through the stages.
type job struct {
	cfg    types.Configuration
	ta     *nlp.TextAnalysis
	text   string
	doc    *types.Doc
	result ProfileResult
	done   bool
}

type Stage func(in <-chan *job) <-chan *job

// fanOut runs fn on every job in its own goroutine and closes out when all are done.
// Jobs already marked done pass through untouched.
func fanOut(in <-chan *job, fn func(j *job)) <-chan *job {
	out := make(chan *job)
	go func() {
		defer close(out)
		var wg sync.WaitGroup
		for j := range in {
			wg.Add(1)
			go func(j *job) {
				defer wg.Done()
				if !j.done {
					fn(j)
				}
				out <- j
			}(j)
		}
		wg.Wait()
	}()
	return out
}

func NewCleanerStage(bcLogger zerolog.Logger) Stage {
	return func(in <-chan *job) <-chan *job {
		return fanOut(in, func(j *job) {
			out, err := j.ta.CleanText(j.text, j.cfg.Clean)
			if errors.Is(err, cleaner.ErrEmptyResult) {
				j.result.Empty = true
				j.done = true
				return
			}
			if err != nil {
				bcLogger.Err(err).Str("config_name", j.cfg.Name).Msg("Cleaning failed")
				j.result.Error = err.Error()
				j.done = true
				return
			}
			j.text = out
			j.result.CleanText = out
		})
	}
}

func NewParserStage(ctx context.Context, bcLogger zerolog.Logger) Stage {
	return func(in <-chan *job) <-chan *job {
		return fanOut(in, func(j *job) {
			doc, err := j.ta.Analyze(ctx, j.text)
			if err != nil {
				bcLogger.Err(err).Str("config_name", j.cfg.Name).Msg("Parsing failed")
				j.result.Error = err.Error()
				j.done = true
				return
			}
			j.doc = doc
		})
	}
}

func NewFeaturesStage() Stage {
	return func(in <-chan *job) <-chan *job {
		return fanOut(in, func(j *job) {
			if j.cfg.CheckFeature(types.PatternsFeature) {
				j.result.Patterns = patterns.Extract(j.doc, j.cfg.Patterns.Scope)
			}
			if j.cfg.CheckFeature(types.ChunksFeature) {
				j.result.Chunks = nlp.ChunkTexts(j.doc)
			}
			if j.cfg.CheckFeature(types.LanguageFeature) {
				j.result.Language = nlp.DocLanguage(j.doc)
			}
			if j.cfg.CheckFeature(types.TaggerFeature) {
				j.result.Tagger = nlp.TaggerItems(j.doc)
			}
		})
	}
}
