package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"caoba.org/botcheck/conllu"
	"caoba.org/botcheck/nlp"
	"caoba.org/botcheck/types"
	"github.com/spf13/cobra"
)

func newPatternsCmd() *cobra.Command {
	var (
		lang      string
		scope     string
		conlluDoc string
	)
	cmd := &cobra.Command{
		Use:   "patterns [text]",
		Short: "Print the NOUN/VERB/ADV/ADJ syntactic patterns of a text as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope != types.ScopeTokens && scope != types.ScopeNounChunks {
				return errors.New("--scope must be tokens or noun_chunks")
			}
			text := strings.Join(args, " ")

			var analyzer nlp.Analyzer
			switch {
			case conlluDoc != "":
				doc, err := conllu.ParseFile(conlluDoc)
				if err != nil {
					return err
				}
				analyzer = docAnalyzer{doc: doc}
			case text != "":
				analyzers, release, err := newAnalyzers([]string{lang})
				if err != nil {
					return err
				}
				defer release()
				analyzer = analyzers[lang]
			default:
				return errors.New("either a text or --conllu is required")
			}

			ta, err := nlp.NewTextAnalysis(lang, analyzer)
			if err != nil {
				return err
			}
			result, err := ta.SyntaxPatterns(context.Background(), text, scope)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", types.LangSpanish, "Language of the text")
	cmd.Flags().StringVar(&scope, "scope", types.ScopeTokens, "Pattern scope: tokens or noun_chunks")
	cmd.Flags().StringVar(&conlluDoc, "conllu", "", "Analyze an already parsed CoNLL-U file instead of calling UDPipe")
	return cmd
}
