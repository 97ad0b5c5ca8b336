// Package udpipe talks to a UDPipe REST service, the pretrained tokenizer, tagger,
// lemmatizer and dependency parser behind text analysis.
package udpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/types"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

type Config struct {
	URL            string `envconfig:"BOTCHECK_UDPIPE_URL" default:"https://lindat.mff.cuni.cz/services/udpipe/api"`
	SpanishModel   string `envconfig:"BOTCHECK_UDPIPE_MODEL_ES" default:"spanish"`
	EnglishModel   string `envconfig:"BOTCHECK_UDPIPE_MODEL_EN" default:"english"`
	TimeoutSeconds int    `envconfig:"BOTCHECK_UDPIPE_TIMEOUT" default:"30"`
}

func ReadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

type response struct {
	Model  string `json:"model"`
	Result string `json:"result"`
}

// Client implements conllu.Source for one language model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	bcLogger   zerolog.Logger
}

func New(cfg Config, lang string) (*Client, error) {
	var model string
	switch lang {
	case types.LangSpanish:
		model = cfg.SpanishModel
	case types.LangEnglish:
		model = cfg.EnglishModel
	default:
		return nil, fmt.Errorf("udpipe: unsupported language %q", lang)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		bcLogger:   logger.NewLogger("UDPipe").With().Str("model", model).Logger(),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Process sends text through the tokenizer, tagger and parser and returns CoNLL-U.
func (c *Client) Process(ctx context.Context, text string) (string, error) {
	form := url.Values{
		"model":     {c.model},
		"tokenizer": {""},
		"tagger":    {""},
		"parser":    {""},
		"data":      {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.bcLogger.Debug().Int("text_length", len(text)).Msg("Sending text to UDPipe")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("udpipe: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("udpipe: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.bcLogger.Error().Int("status", resp.StatusCode).Msg("UDPipe returned an error")
		return "", fmt.Errorf("udpipe: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("udpipe: decode response: %w", err)
	}
	return out.Result, nil
}
