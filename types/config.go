package types

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"caoba.org/botcheck/logger"
	"gopkg.in/yaml.v3"
)

const (
	LangSpanish = "es"
	LangEnglish = "en"

	// pattern scopes
	ScopeTokens     = "tokens"
	ScopeNounChunks = "noun_chunks"

	// features
	PatternsFeature = "patterns"
	ChunksFeature   = "chunks"
	LanguageFeature = "language"
	TaggerFeature   = "tagger"
)

// CleanOptions are the six switches of the text normalizer.
type CleanOptions struct {
	URL       bool `yaml:"url" json:"url"`
	Mention   bool `yaml:"mention" json:"mention"`
	Hashtag   bool `yaml:"hashtag" json:"hashtag"`
	Emoji     bool `yaml:"emoji" json:"emoji"`
	Relabel   bool `yaml:"relabel" json:"relabel"`
	Stopwords bool `yaml:"stopwords" json:"stopwords"`
}

type PatternsConfig struct {
	Scope string `yaml:"scope" json:"scope"`
}

// Configuration is one analysis profile, loaded from <name>.yaml.
type Configuration struct {
	Name     string         `yaml:"-" json:"name"`
	FilePath string         `yaml:"-" json:"file_path"`
	Lang     string         `yaml:"lang" json:"lang"`
	Clean    CleanOptions   `yaml:"clean" json:"clean"`
	Patterns PatternsConfig `yaml:"patterns" json:"patterns"`
	Features []string       `yaml:"features" json:"features"`
}

func (cfg Configuration) CheckFeature(featureName string) bool {
	for _, feat := range cfg.Features {
		if feat == featureName {
			return true
		}
	}

	return false
}

// Validate fills defaults and rejects unknown languages and scopes.
func (cfg *Configuration) Validate() error {
	if cfg.Lang != LangSpanish && cfg.Lang != LangEnglish {
		return fmt.Errorf("profile %q: unsupported language %q", cfg.Name, cfg.Lang)
	}
	switch cfg.Patterns.Scope {
	case "":
		cfg.Patterns.Scope = ScopeTokens
	case ScopeTokens, ScopeNounChunks:
	default:
		return fmt.Errorf("profile %q: unknown pattern scope %q", cfg.Name, cfg.Patterns.Scope)
	}
	if len(cfg.Features) == 0 {
		cfg.Features = []string{PatternsFeature}
	}
	return nil
}

func ParseConfiguration(name string, buf []byte) (Configuration, error) {
	cfg := Configuration{Name: name}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("profile %q: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigurations reads every *.yaml profile in dirPath. Broken profiles are logged and skipped.
func LoadConfigurations(dirPath string) ([]Configuration, error) {
	bcLogger := logger.NewLogger("LoadConfigurations")

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	configChan := make(chan Configuration, len(files))
	for _, f := range files {
		// Skip dirs and non-yaml files
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}

		wg.Add(1)
		go func(file os.DirEntry) {
			defer wg.Done()
			filePath := path.Join(dirPath, file.Name())
			buf, err := os.ReadFile(filePath)
			if err != nil {
				bcLogger.Err(err).Str("file", filePath).Msg("Failed to read profile")
				return
			}
			cfg, err := ParseConfiguration(strings.TrimSuffix(file.Name(), ".yaml"), buf)
			if err != nil {
				bcLogger.Err(err).Str("file", filePath).Msg("Skipping profile")
				return
			}
			cfg.FilePath = filePath

			configChan <- cfg
		}(f)
	}

	go func() {
		wg.Wait()
		close(configChan)
	}()

	configs := make([]Configuration, 0, len(files))
	for cfg := range configChan {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Name < configs[j].Name
	})
	return configs, nil
}
