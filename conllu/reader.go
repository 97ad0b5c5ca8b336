// Package conllu reads dependency parses in the CoNLL-U format into types.Doc.
package conllu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"caoba.org/botcheck/types"
)

const (
	fieldID = iota
	fieldForm
	fieldLemma
	fieldUPos
	fieldXPos
	fieldFeats
	fieldHead
	fieldDepRel
	fieldDeps
	fieldMisc
	fieldCount
)

const textComment = "# text = "

type pendingToken struct {
	token *types.Token
	head  int
}

// Parse reads every sentence of r. Multiword ranges (1-2) and empty nodes (1.1) are skipped,
// roots get themselves as head and the ROOT label.
func Parse(r io.Reader) (*types.Doc, error) {
	doc := &types.Doc{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sent *types.Sentence
	var pending []pendingToken
	lineNo := 0

	flush := func() error {
		if sent == nil {
			return nil
		}
		if err := link(sent, pending); err != nil {
			return err
		}
		if len(sent.Tokens) > 0 {
			doc.Sentences = append(doc.Sentences, sent)
		}
		sent, pending = nil, nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if sent == nil {
			sent = &types.Sentence{}
		}
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, textComment) {
				sent.Text = strings.TrimPrefix(line, textComment)
			}
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != fieldCount {
			return nil, fmt.Errorf("conllu: line %d: expected %d fields, got %d", lineNo, fieldCount, len(fields))
		}
		if strings.ContainsAny(fields[fieldID], "-.") {
			continue
		}
		id, err := strconv.Atoi(fields[fieldID])
		if err != nil {
			return nil, fmt.Errorf("conllu: line %d: bad id %q: %w", lineNo, fields[fieldID], err)
		}
		if id != len(pending)+1 {
			return nil, fmt.Errorf("conllu: line %d: id %d out of sequence", lineNo, id)
		}
		head, err := strconv.Atoi(fields[fieldHead])
		if err != nil {
			return nil, fmt.Errorf("conllu: line %d: bad head %q: %w", lineNo, fields[fieldHead], err)
		}

		token := &types.Token{
			Index:    len(doc.Tokens),
			Text:     fields[fieldForm],
			Lemma:    value(fields[fieldLemma]),
			Pos:      value(fields[fieldUPos]),
			Tag:      value(fields[fieldXPos]),
			Dep:      value(fields[fieldDepRel]),
			Sentence: sent,
		}
		token.IsPunct = token.Pos == types.PosPunct
		doc.Tokens = append(doc.Tokens, token)
		sent.Tokens = append(sent.Tokens, token)
		pending = append(pending, pendingToken{token: token, head: head})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	texts := make([]string, len(doc.Sentences))
	for i, s := range doc.Sentences {
		texts[i] = s.String()
	}
	doc.Text = strings.Join(texts, " ")
	return doc, nil
}

func ParseString(s string) (*types.Doc, error) {
	return Parse(strings.NewReader(s))
}

func ParseFile(filePath string) (*types.Doc, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func link(sent *types.Sentence, pending []pendingToken) error {
	for _, p := range pending {
		if p.head < 0 || p.head > len(pending) {
			return fmt.Errorf("conllu: token %q points at missing head %d", p.token.Text, p.head)
		}
		if p.head == 0 {
			p.token.Head = p.token
			p.token.Dep = types.DepRoot
			continue
		}
		head := pending[p.head-1].token
		p.token.Head = head
		head.Children = append(head.Children, p.token)
	}
	return nil
}

func value(field string) string {
	if field == "_" {
		return ""
	}
	return field
}
