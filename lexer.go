package luql

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Tokenize scans input into its complete token sequence, terminated by an
// EOF token. Whitespace is emitted as its own token so that the
// concatenation of all token spans covers the input exactly. Lexical errors
// surface as Invalid tokens; use Parse to collect them as ParseErrors.
func Tokenize(input string) []Token {
	toks, _ := tokenize(input)

	return toks
}

// tokenize runs the lexer over input and returns the token sequence plus
// any recoverable lexical errors.
func tokenize(input string) ([]Token, []*ParseError) {
	l := &lexState{input: input, line: 1, col: 1}

	var toks []Token

	for {
		tok := l.next()
		toks = append(toks, tok)

		if tok.Kind == TokenEOF {
			return toks, l.errs
		}
	}
}

// lexState holds the scanner state. The lexer is single-pass and
// forward-only; token values slice the input directly.
type lexState struct {
	input  string
	offset int
	line   int
	col    int
	errs   []*ParseError
}

func (l *lexState) pos() lexer.Position {
	return lexer.Position{
		Offset: l.offset,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *lexState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *lexState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

// byteAt returns the byte n positions ahead of the cursor, or 0 past the
// end. Only used to look at ASCII specials.
func (l *lexState) byteAt(n int) byte {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	return l.input[off]
}

func (l *lexState) advance() rune {
	if l.eof() {
		return 0
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return r
}

func (l *lexState) token(kind TokenKind, start lexer.Position) Token {
	return Token{
		Kind:   kind,
		Value:  l.input[start.Offset:l.offset],
		Pos:    start,
		EndPos: l.pos(),
	}
}

func (l *lexState) errorf(start lexer.Position, length int, msg string) {
	l.errs = append(l.errs, &ParseError{
		Message: msg,
		Offset:  start.Offset,
		Length:  length,
		Line:    start.Line,
		Column:  start.Column,
	})
}

// next returns the next token.
func (l *lexState) next() Token {
	if l.eof() {
		p := l.pos()

		return Token{Kind: TokenEOF, Pos: p, EndPos: p}
	}

	start := l.pos()
	r := l.peek()

	if isSpace(r) {
		for !l.eof() && isSpace(l.peek()) {
			l.advance()
		}

		return l.token(TokenWhitespace, start)
	}

	switch r {
	case '"':
		return l.scanQuoted(start)
	case '/':
		return l.scanRegex(start)
	case ':':
		l.advance()

		return l.token(TokenColon, start)
	case '(':
		l.advance()

		return l.token(TokenLeftParen, start)
	case ')':
		l.advance()

		return l.token(TokenRightParen, start)
	case '[':
		l.advance()

		return l.token(TokenLeftBracket, start)
	case ']':
		l.advance()

		return l.token(TokenRightBracket, start)
	case '{':
		l.advance()

		return l.token(TokenLeftBrace, start)
	case '}':
		l.advance()

		return l.token(TokenRightBrace, start)
	case '+':
		l.advance()

		return l.token(TokenPlus, start)
	case '-':
		l.advance()

		return l.token(TokenMinus, start)
	case '~':
		l.advance()

		return l.token(TokenTilde, start)
	case '^':
		l.advance()

		return l.token(TokenCaret, start)
	case '!':
		l.advance()

		return l.token(TokenNot, start)
	case '<':
		l.advance()

		if l.peek() == '=' {
			l.advance()

			return l.token(TokenLessThanOrEqual, start)
		}

		return l.token(TokenLessThan, start)
	case '>':
		l.advance()

		if l.peek() == '=' {
			l.advance()

			return l.token(TokenGreaterThanOrEqual, start)
		}

		return l.token(TokenGreaterThan, start)
	case '&':
		if l.byteAt(1) == '&' {
			l.advance()
			l.advance()

			return l.token(TokenAnd, start)
		}
	case '|':
		if l.byteAt(1) == '|' {
			l.advance()
			l.advance()

			return l.token(TokenOr, start)
		}
	case '\\':
		if l.offset+1 >= len(l.input) {
			l.advance()
			l.errorf(start, 1, "unexpected character '\\'")

			return l.token(TokenInvalid, start)
		}
	}

	// Everything else starts a term. Leading '@' is valid so that
	// @include:NAME lexes as a single term.
	return l.scanTerm(start)
}

// scanTerm scans a maximal run of term characters, handling \X escapes and
// the time-of-day colon rule (a ':' flanked by digits stays in the term).
// In an @-prefixed term the colon always stays, so @include:NAME is one
// token.
func (l *lexState) scanTerm(start lexer.Position) Token {
	var (
		hasEscapes bool
		stars      int
		questions  int
		endsStar   bool
		prev       rune
	)

	atPrefixed := l.input[start.Offset] == '@'

	for !l.eof() {
		r := l.peek()

		if r == '\\' {
			if l.offset+1 >= len(l.input) {
				// Lone trailing backslash: terminate the term and let the
				// main loop report it.
				break
			}

			hasEscapes = true

			l.advance()
			prev = l.advance()
			endsStar = false

			continue
		}

		if r == ':' {
			if atPrefixed || (isDigitRune(prev) && isDigitByte(l.byteAt(1))) {
				l.advance()

				prev = r
				endsStar = false

				continue
			}

			break
		}

		if (r == '&' && l.byteAt(1) == '&') || (r == '|' && l.byteAt(1) == '|') {
			break
		}

		if isTermDelim(r) {
			break
		}

		switch r {
		case '*':
			stars++
			endsStar = true
		case '?':
			questions++
			endsStar = false
		default:
			endsStar = false
		}

		l.advance()

		prev = r
	}

	tok := l.token(TokenTerm, start)

	if hasEscapes {
		tok.HasEscapes = true
		tok.Decoded = decodeEscapes(tok.Value)
	}

	switch {
	case !hasEscapes && tok.Value == "AND":
		tok.Kind = TokenAnd
	case !hasEscapes && tok.Value == "OR":
		tok.Kind = TokenOr
	case !hasEscapes && tok.Value == "NOT":
		tok.Kind = TokenNot
	case !hasEscapes && tok.Value == "TO":
		tok.Kind = TokenTo
	case stars == 1 && questions == 0 && endsStar && len(tok.Value) > 1:
		tok.Kind = TokenPrefix
	case stars > 0 || questions > 0:
		tok.Kind = TokenWildcard
	}

	return tok
}

// scanQuoted scans a quoted string. The value has the outer quotes
// stripped; escapes are decoded into Decoded only when present. An
// unterminated string spans to end of input and is flagged, not errored.
func (l *lexState) scanQuoted(start lexer.Position) Token {
	l.advance() // opening quote

	innerStart := l.offset
	hasEscapes := false

	for !l.eof() {
		r := l.peek()

		if r == '\\' && l.offset+1 < len(l.input) {
			hasEscapes = true

			l.advance()
			l.advance()

			continue
		}

		if r == '"' {
			value := l.input[innerStart:l.offset]
			l.advance() // closing quote

			return l.delimited(TokenQuotedString, start, value, hasEscapes, false)
		}

		l.advance()
	}

	return l.delimited(TokenQuotedString, start, l.input[innerStart:l.offset], hasEscapes, true)
}

// scanRegex scans a /…/ literal. The pattern keeps its escapes verbatim
// (they belong to the regex engine); only the delimiters are stripped.
func (l *lexState) scanRegex(start lexer.Position) Token {
	l.advance() // opening slash

	innerStart := l.offset

	for !l.eof() {
		r := l.peek()

		if r == '\\' && l.offset+1 < len(l.input) {
			l.advance()
			l.advance()

			continue
		}

		if r == '/' {
			value := l.input[innerStart:l.offset]
			l.advance() // closing slash

			return l.delimited(TokenRegex, start, value, false, false)
		}

		l.advance()
	}

	return l.delimited(TokenRegex, start, l.input[innerStart:l.offset], false, true)
}

func (l *lexState) delimited(kind TokenKind, start lexer.Position, value string, hasEscapes, unterminated bool) Token {
	tok := Token{
		Kind:         kind,
		Value:        value,
		HasEscapes:   hasEscapes,
		Unterminated: unterminated,
		Pos:          start,
		EndPos:       l.pos(),
	}

	if hasEscapes {
		tok.Decoded = decodeEscapes(value)
	}

	return tok
}

// decodeEscapes materializes the unescaped form of s: every \X pair yields
// the literal X. A trailing lone backslash is kept as-is.
func decodeEscapes(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}

		b.WriteByte(s[i])
	}

	return b.String()
}

// Character helpers.

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigitRune(r rune) bool {
	return r >= '0' && r <= '9'
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

// isTermDelim reports whether r terminates a term. '+' and '-' are
// operators only at token start, so mid-term they stay term characters
// (date math like now-7d depends on this); '/' only opens a regex at token
// start for the same reason (now/d).
func isTermDelim(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r',
		'(', ')', '[', ']', '{', '}',
		'~', '^', '"', '<', '>', '!', ':':
		return true
	default:
		return false
	}
}

// definition adapts the lexer to participle's lexer.Definition so the
// token stream can be consumed by participle-based tooling.
type definition struct {
	symbols map[string]lexer.TokenType
}

// Definition returns a participle lexer.Definition backed by this lexer.
//
//nolint:ireturn // Definition is participle's interface currency.
func Definition() lexer.Definition {
	symbols := make(map[string]lexer.TokenType, len(tokenKindNames))
	for kind, name := range tokenKindNames {
		symbols[name] = kind.tokenType()
	}

	return &definition{symbols: symbols}
}

// Symbols returns the mapping of symbol names to token types.
func (d *definition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *definition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return d.LexString(filename, string(data))
}

// LexString implements lexer.StringDefinition for efficiency.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *definition) LexString(filename string, input string) (lexer.Lexer, error) {
	toks, _ := tokenize(input)

	return &tokenIter{filename: filename, toks: toks}, nil
}

type tokenIter struct {
	filename string
	toks     []Token
	i        int
}

// Next returns the next token in participle's representation.
func (it *tokenIter) Next() (lexer.Token, error) {
	tok := it.toks[it.i]
	if it.i < len(it.toks)-1 {
		it.i++
	}

	pos := tok.Pos
	pos.Filename = it.filename

	if tok.Kind == TokenEOF {
		return lexer.EOFToken(pos), nil
	}

	return lexer.Token{
		Type:  tok.Kind.tokenType(),
		Value: tok.Value,
		Pos:   pos,
	}, nil
}
