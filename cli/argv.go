// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cli

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Mode selects how input tokens are joined into one line
type Mode int

const (
	// ModeProgram joins program arguments, re-quoting values whose
	// quotes the shell removed
	ModeProgram Mode = iota
	// ModeCommand joins tokens as they are
	ModeCommand
)

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// CopyArgv joins tokens into one line
//
// In ModeProgram a token holding whitespace lost its quotes in the shell;
// its value part is quoted again:
//
//	--descr=a b c   becomes   --descr="a b c"
func CopyArgv(tokens []string, mode Mode) string {
	if mode == ModeCommand {
		return strings.Join(tokens, " ")
	}
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = requote(tok)
	}
	return strings.Join(parts, " ")
}

func requote(tok string) string {
	if strings.IndexFunc(tok, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) }) < 0 {
		return tok
	}
	if tok == "" || isSpace(tok[0]) {
		return tok
	}

	i := 0
	for i < len(tok) && !isSpace(tok[i]) && tok[i] != '=' {
		i++
	}
	if tok[i] == '=' {
		i++
	} else {
		j := i
		for j < len(tok) && isSpace(tok[j]) {
			j++
		}
		if j < len(tok) && tok[j] == '=' {
			i = j + 1
		} else {
			i = j
		}
	}
	if i < len(tok) && (tok[i] == '"' || tok[i] == '\'') {
		return tok
	}
	return tok[:i] + `"` + tok[i:] + `"`
}

// Suggest returns the candidates closest to name, best first
//
// Candidates containing the letters of name in order rank first; otherwise
// names within a small edit distance are returned.
func Suggest(name string, candidates []string) []string {
	if name == "" || len(candidates) == 0 {
		return nil
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		out := make([]string, 0, len(ranks))
		for _, r := range ranks {
			out = append(out, r.Target)
		}
		return out
	}

	limit := max(1, len(name)/3)
	type near struct {
		name string
		dist int
	}
	var nearby []near
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d <= limit {
			nearby = append(nearby, near{c, d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].dist < nearby[j].dist })
	out := make([]string, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, n.name)
	}
	return out
}
