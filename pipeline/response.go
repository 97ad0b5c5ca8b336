package pipeline

import (
	"caoba.org/botcheck/nlp"
	"caoba.org/botcheck/patterns"
)

// ProfileResult is what one profile produced for a text. Empty is set when nothing was left
// after cleaning.
type ProfileResult struct {
	Lang      string             `json:"lang"`
	CleanText string             `json:"clean_text"`
	Empty     bool               `json:"empty,omitempty"`
	Patterns  *patterns.Patterns `json:"patterns,omitempty"`
	Chunks    []string           `json:"chunks,omitempty"`
	Language  string             `json:"language,omitempty"`
	Tagger    []nlp.TaggerItem   `json:"tagger,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type Result struct {
	ConfigName string
	Data       ProfileResult
}
