package token

import (
	"fmt"
	"unicode"
)

type Type int

const (
	Ident Type = iota
	Punct
	String
	Number
	EOF
)

func (t Type) String() string {
	switch t {
	case Ident:
		return "identifier"
	case Punct:
		return "punctuation"
	case String:
		return "string"
	case Number:
		return "number"
	case EOF:
		return "end of input"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Col   int
}

func (t Token) Is(typ Type, value string) bool {
	return t.Type == typ && t.Value == value
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Value)
}

// two-rune punctuation recognized as a single token
var pairs = map[string]bool{
	"::": true,
	"->": true,
}

// Tokenize splits annotation source into tokens. The result always ends
// with an EOF token. Col is 1-based.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			continue
		}

		// String literal
		if r == '"' {
			start := i + 1
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("col %d: unterminated string", start)
			}
			tokens = append(tokens, Token{string(runes[start:i]), String, start})
			continue
		}

		if unicode.IsDigit(r) {
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, start + 1})
			i--
			continue
		}

		if unicode.IsLetter(r) || r == '_' {
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, start + 1})
			i--
			continue
		}

		if i+1 < len(runes) && pairs[string(runes[i:i+2])] {
			tokens = append(tokens, Token{string(runes[i : i+2]), Punct, i + 1})
			i++
			continue
		}

		switch r {
		case '#', '[', ']', '(', ')', '<', '>', ',', '=', '!', ':', '.', '&', '?', '{', '}', ';', '*', '+', '-', '/', '\'':
			tokens = append(tokens, Token{string(r), Punct, i + 1})
		default:
			return nil, fmt.Errorf("col %d: unexpected character %q", i+1, r)
		}
	}

	tokens = append(tokens, Token{Type: EOF, Col: len(runes) + 1})
	return tokens, nil
}
