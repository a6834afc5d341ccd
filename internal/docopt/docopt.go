// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package docopt parses the usage grammar embedded in a script's leading
// comment block (§3) into a Vars context, following the same
// expand-then-match approach as a docopt implementation: alternation,
// optional groups, and repeatable groups are expanded into a flat list of
// candidate usage strings, then the first candidate whose arity matches the
// supplied arguments is bound.
package docopt

import (
	"regexp"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/vars"
)

const wordsPattern = `[-a-zA-Z]+(?:[_\-][a-zA-Z]+)*`

var (
	reComment          = regexp.MustCompile(`#(.*)`)
	reUsageMultiline   = regexp.MustCompile(`(?mi)Usage:\n((?:.|\n)*?(?:^[a-z\n]|\z))`)
	reUsageOneLine     = regexp.MustCompile(`(?i)Usage:\s+(.*)\n`)
	reIndent           = regexp.MustCompile(`\s+(.*)`)
	reInnerParenthesis = regexp.MustCompile(`\(([^(]+?)\)(\.\.\.)?`)
	reInnerBrackets    = regexp.MustCompile(`\[([^\[]+?)\](\.\.\.)?`)
	rePositionalRepeat = regexp.MustCompile(`(<` + wordsPattern + `>)(\.\.\.)`)
	reKeywordArg       = regexp.MustCompile(`^` + wordsPattern + `$`)
	rePositionalArg    = regexp.MustCompile(`^<` + wordsPattern + `>\+?$`)
)

// argKind classifies one word of an expanded usage line.
type argKind int

const (
	kindInvalid argKind = iota
	kindKeyword
	kindPositional
)

// Parse extracts the Usage: grammar from file's leading comment block and
// binds args against it, returning the resulting variable context. Matching
// the "help" subcommand (or any usage the docopt grammar resolves to
// help=true) returns an anverr GracefulExit error carrying the help text,
// mirroring docopt's own --help short-circuit.
func Parse(file string, args []string) (vars.Vars, error) {
	helpMsg := ParseHelp(file)

	usages, ok := parseUsage(helpMsg)
	if !ok {
		return vars.New(), nil
	}

	expanded := expandUsages(usages, len(args))

	argsDefs := make([][]string, len(expanded))
	for i, usage := range expanded {
		words := strings.Fields(usage)
		if len(words) > 0 {
			words = words[1:] // drop the script name
		}
		argsDefs[i] = words
	}

	argsKinds := make([][]argKind, len(argsDefs))
	for i, def := range argsDefs {
		kinds := make([]argKind, len(def))
		for j, word := range def {
			kinds[j] = classify(word)
			if kinds[j] == kindInvalid {
				return nil, anverr.New(anverr.InvalidData, "Invalid usage: "+helpMsg)
			}
		}
		argsKinds[i] = kinds
	}

	defaults := vars.New()
	for i, def := range argsDefs {
		for j, word := range def {
			if argsKinds[i][j] == kindKeyword {
				defaults[word] = false
			}
		}
	}

	var matched map[string]any
	for i, def := range argsDefs {
		if len(args) != len(argsKinds[i]) {
			continue
		}
		acc := map[string]any{}
		ok := true
		for j, arg := range args {
			switch argsKinds[i][j] {
			case kindKeyword:
				bound, found := parseRequired(arg, def[j])
				if !found {
					ok = false
				} else {
					mergeAccumulate(acc, bound)
				}
			case kindPositional:
				mergeAccumulate(acc, parsePositional(arg, def[j]))
			}
			if !ok {
				break
			}
		}
		if ok {
			matched = acc
			break
		}
	}
	if matched == nil {
		return nil, anverr.New(anverr.InvalidData, helpMsg)
	}

	result := map[string]any(defaults)
	mergeAccumulate(result, matched)

	if help, isBool := result["help"].(bool); isBool && help {
		return nil, anverr.New(anverr.GracefulExit, helpMsg)
	}
	return vars.Vars(result), nil
}

// ParseHelp extracts the help text from a script's leading `#`-prefixed
// comment block: the file's first line is skipped whatever it holds, the
// scan stops at the first line that is not a comment, every comment line
// has its first space stripped, and shebang lines (`#!...`) are dropped from
// the output without ending the scan.
func ParseHelp(file string) string {
	lines := strings.Split(file, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	var out []string
	for _, line := range lines {
		m := reComment.FindStringSubmatch(line)
		if m == nil {
			break
		}
		content := m[1]
		if strings.HasPrefix(content, "!") {
			continue
		}
		out = append(out, strings.Replace(content, " ", "", 1))
	}
	return strings.Join(out, "\n")
}

func parseUsage(doc string) ([]string, bool) {
	if usage, ok := parseUsageMultiline(doc); ok {
		return usage, true
	}
	return parseUsageOneLine(doc)
}

func parseUsageMultiline(doc string) ([]string, bool) {
	m := reUsageMultiline.FindStringSubmatch(doc)
	if m == nil {
		return nil, false
	}
	var lines []string
	for _, line := range strings.Split(m[1], "\n") {
		indentMatch := reIndent.FindStringSubmatch(line)
		if indentMatch == nil {
			break
		}
		lines = append(lines, indentMatch[1])
	}
	return lines, true
}

func parseUsageOneLine(doc string) ([]string, bool) {
	m := reUsageOneLine.FindStringSubmatch(doc)
	if m == nil {
		return nil, false
	}
	return []string{m[1]}, true
}

// repeatUntilFill replaces the single occurrence of replace in usage with
// enough "+"-suffixed repetitions of pattern's words to bring the usage's
// total word count up to argsLen, truncating to a whole number of
// repetitions (§3's Open Question: the extra unfillable words are dropped,
// not an error).
func repeatUntilFill(usage, replace, pattern string, argsLen int) string {
	withoutReplace := strings.Fields(strings.Replace(usage, replace, "", 1))
	currentArgs := 0
	if len(withoutReplace) > 0 {
		currentArgs = len(withoutReplace) - 1
	}
	argsInPattern := len(strings.Fields(pattern))
	if argsInPattern == 0 {
		return usage
	}
	repetitions := (argsLen - currentArgs) / argsInPattern
	if repetitions < 0 {
		repetitions = 0
	}

	words := strings.Fields(pattern)
	repeatable := strings.Join(words, "+ ") + "+ "
	expanded := strings.TrimSpace(strings.Repeat(repeatable, repetitions))

	return strings.Replace(usage, replace, expanded, 1)
}

// expandUsages recursively expands parenthesised alternation/repetition
// groups, optional bracket groups, and repeatable positionals into the flat
// set of concrete usage strings that can be matched word-for-word against
// args.
func expandUsages(usages []string, argsLen int) []string {
	var out []string
	for _, usage := range usages {
		if full, inner, hasEllipsis, found := findInnermost(reInnerParenthesis, usage); found {
			if hasEllipsis {
				next := repeatUntilFill(usage, full, inner, argsLen)
				out = append(out, expandUsages([]string{next}, argsLen)...)
			} else {
				for _, alt := range strings.Split(inner, "|") {
					next := strings.Replace(usage, full, strings.TrimSpace(alt), 1)
					out = append(out, expandUsages([]string{next}, argsLen)...)
				}
			}
			continue
		}
		if full, inner, _, found := findInnermost(reInnerBrackets, usage); found {
			withGroup := strings.Replace(usage, full, inner, 1)
			out = append(out, expandUsages([]string{withGroup}, argsLen)...)

			withoutGroup := strings.Join(strings.Fields(strings.Replace(usage, full, "", 1)), " ")
			out = append(out, expandUsages([]string{withoutGroup}, argsLen)...)
			continue
		}
		if m := rePositionalRepeat.FindStringSubmatch(usage); m != nil {
			out = append(out, repeatUntilFill(usage, m[0], m[1], argsLen))
			continue
		}
		out = append(out, usage)
	}
	return out
}

// findInnermost returns the leftmost match of re (expected to have an
// optional second "..."-style capture group), reporting whether the second
// group participated in the match.
func findInnermost(re *regexp.Regexp, s string) (full, group1 string, group2Present, found bool) {
	idx := re.FindStringSubmatchIndex(s)
	if idx == nil {
		return "", "", false, false
	}
	full = s[idx[0]:idx[1]]
	group1 = s[idx[2]:idx[3]]
	group2Present = idx[4] != -1
	return full, group1, group2Present, true
}

func classify(word string) argKind {
	switch {
	case rePositionalArg.MatchString(word):
		return kindPositional
	case reKeywordArg.MatchString(word):
		return kindKeyword
	default:
		return kindInvalid
	}
}

func parseRequired(arg, def string) (map[string]any, bool) {
	if arg != def {
		return nil, false
	}
	return map[string]any{arg: true}, true
}

func parsePositional(arg, def string) map[string]any {
	key := def[1:strings.Index(def, ">")]
	if strings.HasSuffix(def, "+") {
		return map[string]any{key: []any{arg}}
	}
	return map[string]any{key: arg}
}

// mergeAccumulate folds src into dst: when both the existing and incoming
// value at a key are slices (repeatable positionals collected across
// multiple usage words), they are concatenated rather than overwritten;
// anything else overwrites, matching docopt's own merge behaviour for
// repeated bindings.
func mergeAccumulate(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if existing, ok := dst[k]; ok {
			if existingSlice, ok := existing.([]any); ok {
				if newSlice, ok := v.([]any); ok {
					dst[k] = append(existingSlice, newSlice...)
					continue
				}
			}
		}
		dst[k] = v
	}
}
