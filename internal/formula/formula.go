// Package formula recovers image URLs embedded in raw spreadsheet cell
// formulas. The source spreadsheet attaches icons to rows through =IMAGE(...)
// formulas whose URL is either a quoted literal or assembled from other cells
// of the same row.
//
// Three formula shapes are recognized, in priority order:
//
//	=image(concatenate("http://a/", B2, "/c.png"))
//	=image("http://a/" & B2 & "/c.png")
//	=image("http://a/c.png")
//
// All three reduce to one token stream of quoted literals and column
// references, so a single tokenizer serves every shape.
package formula

import (
	"strings"

	"github.com/ianyh/castle/pkg/core"
)

const imagePrefix = "=image"

// ImageURL parses a raw cell value and resolves the embedded image URL, using
// rawRow to resolve column references against sibling cells. The second
// return is false when the cell holds no recognizable image formula.
//
// The function is pure: it never fails, it only declines.
func ImageURL(raw string, rawRow []core.RawValue) (string, bool) {
	if len(raw) < len(imagePrefix) || !strings.EqualFold(raw[:len(imagePrefix)], imagePrefix) {
		return "", false
	}

	inner, ok := parenContents(raw[len(imagePrefix):])
	if !ok {
		return "", false
	}
	inner = strings.TrimSpace(inner)

	// Concatenation form: the argument list of concatenate(...) is the
	// token stream.
	if rest, ok := foldPrefix(inner, "concatenate"); ok {
		args, ok := parenContents(rest)
		if !ok {
			return "", false
		}
		return resolve(tokenize(args), rawRow), true
	}

	toks := tokenize(inner)
	if len(toks) == 0 {
		return "", false
	}

	// Embedded concatenation: quoted spans and bare column refs joined
	// with & outside of quotes.
	if strings.ContainsRune(unquoted(inner), '&') {
		return resolve(toks, rawRow), true
	}

	// Simple form: a single quoted literal, taken verbatim.
	if len(toks) == 1 && toks[0].kind == tokenLiteral {
		return toks[0].text, true
	}

	return "", false
}

// ColumnIndex converts an alphabetic column reference such as "B" or "AA"
// (optionally followed by a row number, which is ignored) into a zero-based
// column index. References longer than two letters are not produced by the
// source spreadsheet and are rejected.
func ColumnIndex(ref string) (int, bool) {
	letters := strings.ToLower(leadingLetters(ref))
	switch len(letters) {
	case 1:
		return int(letters[0] - 'a'), true
	case 2:
		return 26*int(letters[0]-'a'+1) + int(letters[1]-'a'), true
	default:
		return 0, false
	}
}

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenRef
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a formula argument string into quoted literals and bare
// column references. Commas, ampersands, parentheses, and whitespace are
// separators; empty arguments simply produce no token.
func tokenize(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				// Unterminated quote, take the rest as literal.
				toks = append(toks, token{tokenLiteral, s[i+1:]})
				return toks
			}
			toks = append(toks, token{tokenLiteral, s[i+1 : i+1+end]})
			i += end + 2
		case isSeparator(c):
			i++
		default:
			j := i
			for j < len(s) && !isSeparator(s[j]) && s[j] != '"' {
				j++
			}
			toks = append(toks, token{tokenRef, s[i:j]})
			i = j
		}
	}
	return toks
}

// resolve concatenates the token stream: literals contribute their text,
// column references contribute the raw value at the referenced index when it
// is present, and nothing otherwise.
func resolve(toks []token, rawRow []core.RawValue) string {
	var b strings.Builder
	for _, t := range toks {
		if t.kind == tokenLiteral {
			b.WriteString(t.text)
			continue
		}
		idx, ok := ColumnIndex(t.text)
		if !ok || idx < 0 || idx >= len(rawRow) || !rawRow[idx].Valid {
			continue
		}
		b.WriteString(rawRow[idx].Value)
	}
	return b.String()
}

// parenContents returns the text between the first opening and last closing
// parenthesis of s.
func parenContents(s string) (string, bool) {
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return "", false
	}
	return s[open+1 : closing], true
}

// foldPrefix strips prefix from s case-insensitively.
func foldPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// unquoted returns s with all quoted spans removed.
func unquoted(s string) string {
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isSeparator(c byte) bool {
	switch c {
	case ',', '&', '(', ')', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func leadingLetters(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return s[:i]
		}
	}
	return s
}
