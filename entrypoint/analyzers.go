package main

import (
	"context"

	"caoba.org/botcheck/conllu"
	"caoba.org/botcheck/nlp"
	"caoba.org/botcheck/parsecache"
	"caoba.org/botcheck/redis"
	"caoba.org/botcheck/types"
	"caoba.org/botcheck/udpipe"
)

// newAnalyzers builds one UDPipe backed analyzer per language, behind the Redis parse
// cache when it is enabled. The returned func closes the cache connection.
func newAnalyzers(langs []string) (map[string]nlp.Analyzer, func(), error) {
	udpipeConfig, err := udpipe.ReadConfig()
	if err != nil {
		return nil, nil, err
	}

	release := func() {}
	var store parsecache.Store
	if config.ParseCache {
		client, err := redis.NewClient(parsecache.ParseDB)
		if err != nil {
			return nil, nil, err
		}
		store = &client
		release = func() { _ = client.Close() }
	}

	analyzers := make(map[string]nlp.Analyzer, len(langs))
	for _, lang := range langs {
		if _, ok := analyzers[lang]; ok {
			continue
		}
		client, err := udpipe.New(udpipeConfig, lang)
		if err != nil {
			release()
			return nil, nil, err
		}
		var source conllu.Source = client
		if store != nil {
			source = parsecache.New(client, store, client.Model(), config.ParseCacheTTL)
		}
		analyzers[lang] = conllu.NewAnalyzer(source)
	}
	return analyzers, release, nil
}

func profileLangs(cfgs []types.Configuration) []string {
	langs := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		langs = append(langs, cfg.Lang)
	}
	return langs
}

// docAnalyzer serves an already parsed document, for CoNLL-U files analyzed offline.
type docAnalyzer struct {
	doc *types.Doc
}

func (a docAnalyzer) Analyze(ctx context.Context, text string) (*types.Doc, error) {
	return a.doc, nil
}
