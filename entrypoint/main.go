package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/types"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

type Config struct {
	ProfilesPath    string        `envconfig:"BOTCHECK_PROFILES_PATH" default:"profiles"`
	RestAPIPort     string        `envconfig:"BOTCHECK_REST_API_PORT" default:"10000"`
	ParseCache      bool          `envconfig:"BOTCHECK_PARSE_CACHE" default:"false"`
	ParseCacheTTL   time.Duration `envconfig:"BOTCHECK_PARSE_CACHE_TTL" default:"168h"`
	PipelineTimeout time.Duration `envconfig:"BOTCHECK_PIPELINE_TIMEOUT" default:"2m"`
}

var (
	config   Config
	bcLogger = logger.NewLogger("Main")
)

func newRootCmd() *cobra.Command {
	var console bool
	rootCmd := &cobra.Command{
		Use:           "botcheck",
		Short:         "Build bot-vs-human tweet corpora and extract syntactic patterns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupLogging()
			if console {
				logger.UseConsole()
			}
			bcLogger = logger.NewLogger("Main")
			if err := envconfig.Process("", &config); err != nil {
				bcLogger.Err(err).Msg("Failed to read environment")
				return err
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "Human readable logs instead of JSON")

	rootCmd.AddCommand(newBuildCorpusCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newPatternsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newSuperviseCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		bcLogger.Error().Caller().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadProfile reads a single analysis profile, named after its file.
func loadProfile(filePath string) (types.Configuration, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return types.Configuration{}, err
	}
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	cfg, err := types.ParseConfiguration(name, buf)
	if err != nil {
		return cfg, err
	}
	cfg.FilePath = filePath
	return cfg, nil
}

func loadProfiles() ([]types.Configuration, error) {
	cfgs, err := types.LoadConfigurations(config.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("loading profiles from %s: %w", config.ProfilesPath, err)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no profiles in %s", config.ProfilesPath)
	}
	bcLogger.Info().Msgf("Loaded %d profiles", len(cfgs))
	return cfgs, nil
}
