// Package corpus builds the labeled tweet table: one row per user file, tweets in document
// order and the label found in the truth file.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"caoba.org/botcheck/types"
)

const truthSeparator = ":::"

// Truth is the parsed truth file, in file order.
type Truth []types.TruthRecord

func ParseTruth(r io.Reader) (Truth, error) {
	var truth Truth
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		truth = append(truth, strings.Split(scanner.Text(), truthSeparator))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading truth: %w", err)
	}
	return truth, nil
}

func LoadTruth(filePath string) (Truth, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening truth file: %w", err)
	}
	defer f.Close()
	return ParseTruth(f)
}

// Lookup scans the records in order and labels userID with the first record holding it.
func (truth Truth) Lookup(userID string) (types.Label, bool) {
	for _, record := range truth {
		if record.Contains(userID) {
			return record.Label(), true
		}
	}
	return types.LabelUnknown, false
}
