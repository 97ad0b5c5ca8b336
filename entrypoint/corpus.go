package main

import (
	"errors"
	"strings"

	"caoba.org/botcheck/cleaner"
	"caoba.org/botcheck/corpus"
	"caoba.org/botcheck/s3client"
	"caoba.org/botcheck/types"
	"github.com/spf13/cobra"
)

type sinkFlags struct {
	out    string
	sqlite string
	s3Key  string
}

func (f *sinkFlags) register(cmd *cobra.Command, defaultOut string) {
	cmd.Flags().StringVar(&f.out, "out", defaultOut, "CSV file to write")
	cmd.Flags().StringVar(&f.sqlite, "sqlite", "", "SQLite database to write the corpus table to")
	cmd.Flags().StringVar(&f.s3Key, "s3-key", "", "S3 object key to upload the CSV table to")
}

// open returns the sink chosen by the flags and a func releasing whatever it holds.
func (f *sinkFlags) open(cmd *cobra.Command) (corpus.Sink, func(), error) {
	chosen := 0
	for _, name := range []string{"out", "sqlite", "s3-key"} {
		if cmd.Flags().Changed(name) {
			chosen++
		}
	}
	if chosen > 1 {
		return nil, nil, errors.New("only one of --out, --sqlite and --s3-key can be set")
	}

	switch {
	case f.sqlite != "":
		sink, err := corpus.NewSQLiteSink(f.sqlite)
		return sink, func() {}, err
	case f.s3Key != "":
		client, err := s3client.New()
		if err != nil {
			return nil, nil, err
		}
		sink, err := corpus.NewS3Sink(client, f.s3Key)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return sink, client.Close, nil
	default:
		sink, err := corpus.CreateCSVSink(f.out)
		return sink, func() {}, err
	}
}

type cleanFlags struct {
	profile string
	lang    string
	opts    types.CleanOptions
}

func (f *cleanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "Analysis profile whose clean options are used")
	cmd.Flags().StringVar(&f.lang, "lang", types.LangSpanish, "Language of the stopword list")
	cmd.Flags().BoolVar(&f.opts.URL, "url", false, "Replace or drop URLs")
	cmd.Flags().BoolVar(&f.opts.Mention, "mention", false, "Replace or drop @mentions")
	cmd.Flags().BoolVar(&f.opts.Hashtag, "hashtag", false, "Replace or drop #hashtags")
	cmd.Flags().BoolVar(&f.opts.Emoji, "emoji", false, "Replace or drop emoji")
	cmd.Flags().BoolVar(&f.opts.Relabel, "relabel", false, "Use placeholders instead of dropping")
	cmd.Flags().BoolVar(&f.opts.Stopwords, "stopwords", false, "Drop stopwords")
}

func (f *cleanFlags) enabled() bool {
	return f.profile != "" || f.opts != types.CleanOptions{}
}

func (f *cleanFlags) cleaner() (*cleaner.Cleaner, types.CleanOptions, error) {
	lang, opts := f.lang, f.opts
	if f.profile != "" {
		cfg, err := loadProfile(f.profile)
		if err != nil {
			return nil, opts, err
		}
		lang, opts = cfg.Lang, cfg.Clean
	}
	cl, err := cleaner.New(lang)
	return cl, opts, err
}

func newBuildCorpusCmd() *cobra.Command {
	var sinks sinkFlags
	var cleaning cleanFlags
	cmd := &cobra.Command{
		Use:   "build-corpus <truth-file> <xml-dir>",
		Short: "Build the labeled corpus table from a truth file and a directory of user XML files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			truth, err := corpus.LoadTruth(args[0])
			if err != nil {
				return err
			}
			builder := corpus.Builder{Truth: truth}
			if cleaning.enabled() {
				if builder.Cleaner, builder.CleanOptions, err = cleaning.cleaner(); err != nil {
					return err
				}
			}
			sink, release, err := sinks.open(cmd)
			if err != nil {
				return err
			}
			defer release()
			builder.Sink = sink

			n, err := builder.Build(args[1])
			if err != nil {
				if abortErr := sink.Abort(); abortErr != nil {
					bcLogger.Err(abortErr).Msg("Failed to discard partial corpus")
				}
				return err
			}
			if err = sink.Close(); err != nil {
				return err
			}
			bcLogger.Info().Int("rows", n).Msg("Corpus written")
			return nil
		},
	}
	sinks.register(cmd, "corpus.csv")
	cleaning.register(cmd)
	return cmd
}

func newCleanCmd() *cobra.Command {
	var sinks sinkFlags
	var cleaning cleanFlags
	cmd := &cobra.Command{
		Use:   "clean <corpus>",
		Short: "Normalize the tweets of an existing corpus (CSV, or SQLite for *.db and *.sqlite)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadRows(args[0])
			if err != nil {
				return err
			}
			cl, opts, err := cleaning.cleaner()
			if err != nil {
				return err
			}
			if rows, err = corpus.CleanRows(rows, cl, opts); err != nil {
				return err
			}
			sink, release, err := sinks.open(cmd)
			if err != nil {
				return err
			}
			defer release()
			for _, row := range rows {
				if err = sink.Write(row); err != nil {
					if abortErr := sink.Abort(); abortErr != nil {
						bcLogger.Err(abortErr).Msg("Failed to discard partial corpus")
					}
					return err
				}
			}
			if err = sink.Close(); err != nil {
				return err
			}
			bcLogger.Info().Int("rows", len(rows)).Msg("Cleaned corpus written")
			return nil
		},
	}
	sinks.register(cmd, "corpus.clean.csv")
	cleaning.register(cmd)
	return cmd
}

func loadRows(filePath string) ([]types.CorpusRow, error) {
	if strings.HasSuffix(filePath, ".db") || strings.HasSuffix(filePath, ".sqlite") {
		return corpus.LoadSQLite(filePath)
	}
	return corpus.LoadCSV(filePath)
}
