package corpus

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

const (
	documentElement = "document"
	userFileExt     = ".xml"
)

// ListUserFiles returns the names of the regular files in dir, in directory listing order.
func ListUserFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		if info.Mode().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// UserID strips every ".xml" from a user file name.
func UserID(fileName string) string {
	return strings.ReplaceAll(fileName, userFileExt, "")
}

func ReadDocuments(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()
	docs, err := ParseDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	return docs, nil
}

type frame struct {
	index      int
	collecting bool
}

// ParseDocuments returns the text of every <document> element, the root included, in
// document order. The text of an element is the character data before its first child;
// an element without any yields "".
func ParseDocuments(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var stack []*frame
	var texts []*strings.Builder
	seenRoot := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			seenRoot = true
			if n := len(stack); n > 0 {
				stack[n-1].collecting = false
			}
			f := &frame{}
			if t.Name.Local == documentElement {
				f.collecting = true
				f.index = len(texts)
				texts = append(texts, &strings.Builder{})
			}
			stack = append(stack, f)
		case xml.CharData:
			if n := len(stack); n > 0 && stack[n-1].collecting {
				texts[stack[n-1].index].Write(t)
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	if !seenRoot {
		return nil, errors.New("no root element")
	}
	docs := make([]string, len(texts))
	for i, sb := range texts {
		docs[i] = sb.String()
	}
	return docs, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
