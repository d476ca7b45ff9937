package luql

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

// The closed set of token kinds produced by the lexer.
const (
	TokenEOF TokenKind = iota
	TokenTerm
	TokenQuotedString
	TokenRegex
	TokenWhitespace
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenPlus
	TokenMinus
	TokenTilde
	TokenCaret
	TokenAnd
	TokenOr
	TokenNot
	TokenTo
	TokenPrefix   // term ending with a single trailing '*'
	TokenWildcard // term containing '*' or '?' other than a single trailing '*'
	TokenGreaterThan
	TokenGreaterThanOrEqual
	TokenLessThan
	TokenLessThanOrEqual
	TokenInvalid
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:                "EOF",
	TokenTerm:               "Term",
	TokenQuotedString:       "QuotedString",
	TokenRegex:              "Regex",
	TokenWhitespace:         "Whitespace",
	TokenColon:              ":",
	TokenLeftParen:          "(",
	TokenRightParen:         ")",
	TokenLeftBracket:        "[",
	TokenRightBracket:       "]",
	TokenLeftBrace:          "{",
	TokenRightBrace:         "}",
	TokenPlus:               "+",
	TokenMinus:              "-",
	TokenTilde:              "~",
	TokenCaret:              "^",
	TokenAnd:                "AND",
	TokenOr:                 "OR",
	TokenNot:                "NOT",
	TokenTo:                 "TO",
	TokenPrefix:             "Prefix",
	TokenWildcard:           "Wildcard",
	TokenGreaterThan:        ">",
	TokenGreaterThanOrEqual: ">=",
	TokenLessThan:           "<",
	TokenLessThanOrEqual:    "<=",
	TokenInvalid:            "Invalid",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("token%d", int(k))
}

// tokenType maps a TokenKind to participle's token type space.
// Negative values per participle convention; EOF maps to lexer.EOF.
func (k TokenKind) tokenType() lexer.TokenType {
	if k == TokenEOF {
		return lexer.EOF
	}

	return lexer.TokenType(-(int(k) + 2))
}

// Token is a single lexical unit. Value slices the source buffer directly;
// nothing is copied unless the token contained backslash escapes, in which
// case Decoded holds the materialized unescaped form.
type Token struct {
	Kind TokenKind

	// Value is a slice of the source. QuotedString and Regex values have
	// their delimiters stripped.
	Value string

	// Decoded is the unescaped value, set only when HasEscapes is true.
	Decoded string

	// HasEscapes reports whether Value contained at least one backslash
	// escape sequence.
	HasEscapes bool

	// Unterminated marks quoted strings and regexes that reached end of
	// input before their closing delimiter. The lexer tolerates these;
	// deciding acceptability is the parser's job.
	Unterminated bool

	// Pos is the position of the token's first byte.
	Pos lexer.Position

	// EndPos is the position one past the token's last byte. The span
	// [Pos.Offset, EndPos.Offset) covers the token's full source text,
	// including any stripped delimiters.
	EndPos lexer.Position
}

// Text returns the decoded value when escapes were present, the raw slice
// otherwise.
func (t Token) Text() string {
	if t.HasEscapes {
		return t.Decoded
	}

	return t.Value
}

// EOF reports whether this is the end-of-input token.
func (t Token) EOF() bool {
	return t.Kind == TokenEOF
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEOF:
		return "EOF"
	case TokenTerm, TokenPrefix, TokenWildcard, TokenQuotedString, TokenRegex, TokenInvalid:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
	default:
		return t.Kind.String()
	}
}
