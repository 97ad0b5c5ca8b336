package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/nlp"
	"caoba.org/botcheck/types"
)

type AnalysisParams struct {
	Configurations []types.Configuration `json:"configurations"`
	// Analyzers holds the parser of each profile language.
	Analyzers map[string]nlp.Analyzer `json:"-"`
	Timeout   time.Duration           `json:"timeout"`
}

func NewAnalysisPipeline(params AnalysisParams) (Pipeline, error) {
	bcLogger := logger.NewLogger("Analysis pipeline")
	errLogger := bcLogger.With().Caller().Logger()
	bcLogger.Info().
		Interface("params", params).
		Msg("Starting analysis pipeline (see parameters in 'params' field)")

	if len(params.Configurations) == 0 {
		err := fmt.Errorf("no analysis profiles")
		errLogger.Err(err).Msg("Nothing to run")
		return nil, err
	}

	analyses := make(map[string]*nlp.TextAnalysis)
	for _, cfg := range params.Configurations {
		if _, ok := analyses[cfg.Lang]; ok {
			continue
		}
		analyzer, ok := params.Analyzers[cfg.Lang]
		if !ok {
			err := fmt.Errorf("no analyzer for language %q", cfg.Lang)
			errLogger.Err(err).Str("config_name", cfg.Name).Msg("Failed to create text analysis")
			return nil, err
		}
		ta, err := nlp.NewTextAnalysis(cfg.Lang, analyzer)
		if err != nil {
			errLogger.Err(err).Str("config_name", cfg.Name).Msg("Failed to create text analysis")
			return nil, err
		}
		analyses[cfg.Lang] = ta
	}

	cleanerStage := NewCleanerStage(errLogger)
	featuresStage := NewFeaturesStage()

	return func(request Request) <-chan string {
		responseChan := make(chan string, 1)
		pplnLog := bcLogger.With().Str("tid", request.Tid).Logger()
		pplnLog.Info().Msg("Started analysis pipeline")

		go func() {
			ctx := context.Background()
			if params.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, params.Timeout)
				defer cancel()
			}

			in := make(chan *job)
			out := featuresStage(NewParserStage(ctx, errLogger)(cleanerStage(in)))

			go func() {
				defer close(in)
				for _, cfg := range params.Configurations {
					in <- &job{
						cfg:    cfg,
						ta:     analyses[cfg.Lang],
						text:   request.Text,
						result: ProfileResult{Lang: cfg.Lang},
					}
				}
			}()

			response := make(map[string]ProfileResult, len(params.Configurations))
			for j := range out {
				res := Result{ConfigName: j.cfg.Name, Data: j.result}
				pplnLog.Info().
					Str("config_name", res.ConfigName).
					Msg("Finished pipeline for configuration")
				response[res.ConfigName] = res.Data
			}

			buf, err := json.Marshal(response)
			if err != nil {
				pplnLog.Err(err).Msg("Failed to marshall response")
			}
			pplnLog.Info().Msg("Finished analysis pipeline")
			responseChan <- string(buf)
		}()

		return responseChan
	}, nil
}
