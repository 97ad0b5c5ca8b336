package utils

import (
	"bufio"
	"io"
	"strings"

	"github.com/twmb/murmur3"
)

func HashString(s string) uint64 {
	hash := murmur3.New64()
	_, err := hash.Write([]byte(s))
	if err != nil {
		panic(err)
	}
	return hash.Sum64()
}

// ReadSet collects the non-empty, non-comment lines of r, lowercased.
func ReadSet(r io.Reader) (map[string]struct{}, error) {
	scanner := bufio.NewScanner(r)

	result := make(map[string]struct{})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		result[strings.ToLower(line)] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
