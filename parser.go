package luql

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Option configures the parser.
type Option func(*config)

type config struct {
	defaultOperator   Operator
	splitOnWhitespace bool
}

func newConfig(opts []Option) config {
	cfg := config{
		defaultOperator:   OperatorOr,
		splitOnWhitespace: true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// WithDefaultOperator sets the operator assumed between adjacent clauses
// that have no explicit AND/OR. Only OperatorOr and OperatorAnd are
// meaningful; the default is OperatorOr.
func WithDefaultOperator(op Operator) Option {
	return func(c *config) {
		c.defaultOperator = op
	}
}

// WithSplitOnWhitespace controls whitespace splitting. When false, runs of
// bare adjacent terms at the root or inside groups are kept together as a
// single MultiTerm node. The default is true.
func WithSplitOnWhitespace(split bool) Option {
	return func(c *config) {
		c.splitOnWhitespace = split
	}
}

// parser consumes the whitespace-free token stream and builds the AST.
// Recoverable syntax errors are recorded on errs, never thrown; the parser
// always yields a best-effort document.
type parser struct {
	src  string
	toks []Token // EOF-terminated, whitespace filtered out
	i    int
	errs []*ParseError
	cfg  config
}

func newParser(src string, cfg config) *parser {
	toks, lexErrs := tokenize(src)

	filtered := make([]Token, 0, len(toks))

	for _, tok := range toks {
		if tok.Kind != TokenWhitespace {
			filtered = append(filtered, tok)
		}
	}

	return &parser{
		src:  src,
		toks: filtered,
		errs: lexErrs,
		cfg:  cfg,
	}
}

func (p *parser) peek() Token {
	return p.toks[p.i]
}

// peekAt looks n tokens ahead, clamped to the trailing EOF token.
func (p *parser) peekAt(n int) Token {
	off := p.i + n
	if off >= len(p.toks) {
		off = len(p.toks) - 1
	}

	return p.toks[off]
}

func (p *parser) next() Token {
	tok := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}

	return tok
}

func (p *parser) errorAt(tok Token, msg string) {
	length := tok.EndPos.Offset - tok.Pos.Offset
	if length == 0 {
		length = 1
	}

	p.errs = append(p.errs, &ParseError{
		Message: msg,
		Offset:  tok.Pos.Offset,
		Length:  length,
		Line:    tok.Pos.Line,
		Column:  tok.Pos.Column,
	})
}

// adjacent reports whether b starts exactly where a ended, with no
// whitespace between. Postfix '~' and '^' only bind when adjacent.
func adjacent(a, b Token) bool {
	return a.EndPos.Offset == b.Pos.Offset
}

// parseDocument parses the whole token stream into a Document.
func (p *parser) parseDocument() *Document {
	doc := &Document{
		Pos:    lexer.Position{Offset: 0, Line: 1, Column: 1},
		EndPos: p.toks[len(p.toks)-1].EndPos,
	}

	doc.Query = p.parseQuery(TokenEOF)

	// A bare '*' standing alone is the match-all query.
	if t, ok := doc.Query.(*Term); ok && t.Raw == "*" && t.Boost == nil && t.Fuzzy == nil {
		doc.Query = &MatchAll{Pos: t.Pos, EndPos: t.EndPos}
	}

	return doc
}

// parseQuery parses an OR-level clause sequence until stop or EOF. Tokens
// that cannot start a clause are reported and skipped so parsing continues
// past errors.
func (p *parser) parseQuery(stop TokenKind) Node {
	if !p.cfg.splitOnWhitespace {
		if mt := p.tryMultiTerm(stop); mt != nil {
			return mt
		}
	}

	var clauses []*Clause

	for {
		tok := p.peek()
		if tok.Kind == stop || tok.EOF() {
			break
		}

		before := p.i
		op := OperatorImplicit

		if len(clauses) > 0 && tok.Kind == TokenOr {
			p.next()

			op = OperatorOr
		}

		if !p.startsClause(p.peek()) {
			junk := p.peek()
			if junk.Kind == stop || junk.EOF() {
				if op == OperatorOr {
					p.errorAt(tok, "expected query after OR")
				}

				break
			}

			// Invalid tokens already carry a lexical error.
			if junk.Kind != TokenInvalid {
				p.errorAt(junk, "unexpected "+junk.String())
			}

			p.next()

			continue
		}

		c := p.parseAndGroup(stop, op, len(clauses) > 0)
		if c == nil {
			if p.i == before {
				p.next()
			}

			continue
		}

		clauses = append(clauses, c)

		if p.i == before {
			// Defensive: a clause must consume input.
			break
		}
	}

	if len(clauses) == 0 {
		return nil
	}

	return p.collapse(clauses)
}

// collapse folds a clause list into its node form. A single plain Should
// clause collapses to its child; a single clause with a +/- occur keeps a
// one-clause BooleanQuery so the occur survives.
func (p *parser) collapse(clauses []*Clause) Node {
	if len(clauses) == 1 && clauses[0].Occur == OccurShould {
		return clauses[0].Query
	}

	return &BooleanQuery{
		Pos:     clauses[0].Pos,
		EndPos:  clauses[len(clauses)-1].EndPos,
		Clauses: clauses,
	}
}

// parseAndGroup parses a clause plus any explicit-AND (or, when the
// default operator is AND, implicit) continuations, folding a multi-clause
// chain into a nested BooleanQuery so AND binds tighter than OR.
func (p *parser) parseAndGroup(stop TokenKind, op Operator, joined bool) *Clause {
	first := p.parseClause(stop, op, joined)
	if first == nil {
		return nil
	}

	chain := []*Clause{first}

	for {
		tok := p.peek()
		if tok.Kind == stop || tok.EOF() {
			break
		}

		before := p.i

		switch {
		case tok.Kind == TokenAnd:
			p.next()

			c := p.parseClause(stop, OperatorAnd, true)
			if c == nil {
				p.errorAt(tok, "expected query after AND")
			} else {
				chain = append(chain, c)
			}
		case p.cfg.defaultOperator == OperatorAnd && p.startsClause(tok):
			c := p.parseClause(stop, OperatorImplicit, true)
			if c == nil {
				break
			}

			chain = append(chain, c)
		default:
			before = -1 // signal: stop the chain
		}

		if before < 0 || p.i == before {
			break
		}
	}

	if len(chain) == 1 {
		return first
	}

	chain[0].Operator = OperatorImplicit

	bq := &BooleanQuery{
		Pos:     chain[0].Pos,
		EndPos:  chain[len(chain)-1].EndPos,
		Clauses: chain,
	}

	return &Clause{
		Pos:      bq.Pos,
		EndPos:   bq.EndPos,
		Occur:    OccurShould,
		Operator: op,
		Query:    bq,
	}
}

// parseClause parses an optional +/- modifier, an optional NOT, and a
// primary. op is the operator joining the clause to its predecessor;
// joined is false for the first clause of a query.
func (p *parser) parseClause(stop TokenKind, op Operator, joined bool) *Clause {
	start := p.peek()
	occur := OccurShould
	explicit := false

	switch start.Kind {
	case TokenPlus:
		p.next()

		occur = OccurMust
		explicit = true
	case TokenMinus:
		p.next()

		occur = OccurMustNot
		explicit = true
	}

	node := p.parseNotOrPrimary(stop)
	if node == nil {
		if explicit {
			p.errorAt(start, "expected query after '"+start.Value+"'")
		}

		return nil
	}

	// Implicit adjacency takes its occur from the default operator.
	if !explicit && joined && op == OperatorImplicit && p.cfg.defaultOperator == OperatorAnd {
		occur = OccurMust
	}

	return &Clause{
		Pos:      start.Pos,
		EndPos:   node.Span().End,
		Occur:    occur,
		Operator: op,
		Query:    node,
	}
}

func (p *parser) parseNotOrPrimary(stop TokenKind) Node {
	if p.peek().Kind == TokenNot {
		notTok := p.next()

		inner := p.parseNotOrPrimary(stop)
		if inner == nil {
			p.errorAt(notTok, "expected query after NOT")

			return nil
		}

		return &Not{Pos: notTok.Pos, EndPos: inner.Span().End, Query: inner}
	}

	return p.parsePrimary(stop)
}

// startsClause reports whether tok can begin a clause.
func (p *parser) startsClause(tok Token) bool {
	switch tok.Kind {
	case TokenPlus, TokenMinus, TokenNot,
		TokenLeftParen, TokenLeftBracket, TokenLeftBrace,
		TokenGreaterThan, TokenGreaterThanOrEqual, TokenLessThan, TokenLessThanOrEqual,
		TokenTerm, TokenPrefix, TokenWildcard, TokenQuotedString, TokenRegex:
		return true
	default:
		return false
	}
}

func (p *parser) parsePrimary(stop TokenKind) Node {
	tok := p.peek()

	switch tok.Kind {
	case TokenLeftParen:
		return p.parseGroup()
	case TokenLeftBracket, TokenLeftBrace:
		return p.parseRange()
	case TokenGreaterThan, TokenGreaterThanOrEqual, TokenLessThan, TokenLessThanOrEqual:
		return p.parseShortRange()
	case TokenQuotedString:
		return p.parsePhrase()
	case TokenRegex:
		return p.parseRegexp()
	case TokenTerm, TokenPrefix, TokenWildcard:
		if p.peekAt(1).Kind == TokenColon {
			return p.parseField(stop)
		}

		return p.parseTermLike()
	default:
		return nil
	}
}

// parseField parses name ':' value, including the _exists_/_missing_
// pseudo-fields, *:*, and the f:* exists shorthand.
func (p *parser) parseField(stop TokenKind) Node {
	nameTok := p.next()
	colon := p.next()
	name := nameTok.Text()

	if strings.EqualFold(name, "_exists_") || strings.EqualFold(name, "_missing_") {
		valTok := p.peek()
		if valTok.Kind != TokenTerm && valTok.Kind != TokenPrefix && valTok.Kind != TokenWildcard {
			p.errorAt(colon, "expected field name after '"+nameTok.Value+":'")

			return nil
		}

		p.next()

		if strings.EqualFold(name, "_missing_") {
			return &Missing{Pos: nameTok.Pos, EndPos: valTok.EndPos, Field: valTok.Text()}
		}

		return &Exists{
			Pos:          nameTok.Pos,
			EndPos:       valTok.EndPos,
			Field:        valTok.Text(),
			ExistsSyntax: true,
		}
	}

	// *:* is the match-all query.
	if nameTok.Value == "*" {
		valTok := p.peek()
		if valTok.Value == "*" && isTermKind(valTok.Kind) {
			p.next()

			return &MatchAll{Pos: nameTok.Pos, EndPos: valTok.EndPos}
		}
	}

	// f:* is the exists shorthand, unless the '*' carries a postfix.
	valTok := p.peek()
	if isTermKind(valTok.Kind) && valTok.Value == "*" && nameTok.Value != "*" {
		after := p.peekAt(1)
		if after.Kind != TokenCaret && after.Kind != TokenTilde {
			p.next()

			return &Exists{
				Pos:          nameTok.Pos,
				EndPos:       valTok.EndPos,
				Field:        name,
				ExistsSyntax: false,
			}
		}
	}

	inner := p.parseFieldValue(stop)
	if inner == nil {
		p.errorAt(colon, "expected value after ':'")
	}

	f := &Field{
		Pos:    nameTok.Pos,
		EndPos: colon.EndPos,
		Name:   name,
		Inner:  inner,
	}

	if inner != nil {
		f.EndPos = inner.Span().End
	}

	return f
}

// parseFieldValue parses the value side of a field query.
func (p *parser) parseFieldValue(stop TokenKind) Node {
	tok := p.peek()

	switch tok.Kind {
	case TokenLeftParen:
		return p.parseGroup()
	case TokenLeftBracket, TokenLeftBrace:
		return p.parseRange()
	case TokenGreaterThan, TokenGreaterThanOrEqual, TokenLessThan, TokenLessThanOrEqual:
		return p.parseShortRange()
	case TokenQuotedString:
		return p.parsePhrase()
	case TokenRegex:
		return p.parseRegexp()
	case TokenTerm, TokenPrefix, TokenWildcard:
		return p.parseTermLike()
	default:
		return nil
	}
}

func isTermKind(k TokenKind) bool {
	return k == TokenTerm || k == TokenPrefix || k == TokenWildcard
}

func (p *parser) parseGroup() Node {
	open := p.next()

	g := &Group{Pos: open.Pos, EndPos: open.EndPos}
	g.Query = p.parseQuery(TokenRightParen)

	if p.peek().Kind == TokenRightParen {
		closeTok := p.next()
		g.EndPos = closeTok.EndPos
	} else {
		p.errorAt(open, "missing ')'")

		g.EndPos = p.peek().Pos
	}

	g.Boost = p.parseBoost(&g.EndPos)

	return g
}

func (p *parser) parseRange() Node {
	open := p.next()

	r := &Range{
		Pos:          open.Pos,
		EndPos:       open.EndPos,
		MinInclusive: open.Kind == TokenLeftBracket,
	}

	r.Min = p.parseRangeBound()

	if p.peek().Kind == TokenTo {
		p.next()
	} else {
		p.errorAt(open, "expected TO in range")
	}

	r.Max = p.parseRangeBound()

	switch p.peek().Kind {
	case TokenRightBracket:
		closeTok := p.next()
		r.MaxInclusive = true
		r.EndPos = closeTok.EndPos
	case TokenRightBrace:
		closeTok := p.next()
		r.MaxInclusive = false
		r.EndPos = closeTok.EndPos
	default:
		p.errorAt(open, "missing ']' or '}'")

		r.EndPos = p.peek().Pos
	}

	r.Boost = p.parseBoost(&r.EndPos)

	return r
}

func (p *parser) parseShortRange() Node {
	opTok := p.next()

	r := &Range{Pos: opTok.Pos, EndPos: opTok.EndPos}

	switch opTok.Kind {
	case TokenGreaterThan:
		r.Op = RangeOpGreaterThan
	case TokenGreaterThanOrEqual:
		r.Op = RangeOpGreaterThanOrEqual
	case TokenLessThan:
		r.Op = RangeOpLessThan
	case TokenLessThanOrEqual:
		r.Op = RangeOpLessThanOrEqual
	}

	bound := p.parseRangeBound()
	if bound == nil {
		p.errorAt(opTok, "expected value after '"+opTok.Value+"'")
	} else {
		r.EndPos = bound.EndPos
	}

	switch r.Op {
	case RangeOpGreaterThan:
		r.Min = bound
	case RangeOpGreaterThanOrEqual:
		r.Min = bound
		r.MinInclusive = true
	case RangeOpLessThan:
		r.Max = bound
	case RangeOpLessThanOrEqual:
		r.Max = bound
		r.MaxInclusive = true
	}

	r.Boost = p.parseBoost(&r.EndPos)

	return r
}

// parseRangeBound parses one range endpoint: a term (optionally with a
// merged leading sign, e.g. -5), a quoted string, or the '*' unbounded
// sentinel which yields nil.
func (p *parser) parseRangeBound() *RangeBound {
	tok := p.peek()

	if tok.Kind == TokenMinus || tok.Kind == TokenPlus {
		val := p.peekAt(1)
		if isTermKind(val.Kind) && adjacent(tok, val) {
			p.next()
			p.next()

			return &RangeBound{
				Pos:    tok.Pos,
				EndPos: val.EndPos,
				Raw:    p.src[tok.Pos.Offset:val.EndPos.Offset],
			}
		}

		return nil
	}

	if tok.Kind == TokenQuotedString {
		p.next()

		return &RangeBound{
			Pos:     tok.Pos,
			EndPos:  tok.EndPos,
			Raw:     tok.Value,
			Decoded: tok.Decoded,
			Quoted:  true,
		}
	}

	if !isTermKind(tok.Kind) {
		return nil
	}

	p.next()

	if !tok.HasEscapes && tok.Value == "*" {
		return nil // unbounded
	}

	return &RangeBound{
		Pos:     tok.Pos,
		EndPos:  tok.EndPos,
		Raw:     tok.Value,
		Decoded: tok.Decoded,
	}
}

func (p *parser) parsePhrase() Node {
	tok := p.next()

	ph := &Phrase{
		Pos:     tok.Pos,
		EndPos:  tok.EndPos,
		Raw:     tok.Value,
		Decoded: tok.Decoded,
	}

	if tok.Unterminated {
		p.errorAt(tok, "unterminated quoted string")
	}

	if p.peek().Kind == TokenTilde && adjacent(tok, p.peek()) {
		tilde := p.next()
		ph.EndPos = tilde.EndPos

		num := p.peek()
		if num.Kind == TokenTerm && adjacent(tilde, num) {
			if n, err := strconv.Atoi(num.Value); err == nil {
				p.next()

				ph.Slop = &n
				ph.EndPos = num.EndPos
			} else {
				p.errorAt(num, "unrecognized slop value '"+num.Value+"'")
			}
		} else {
			p.errorAt(tilde, "expected slop value after '~'")
		}
	}

	ph.Boost = p.parseBoost(&ph.EndPos)

	return ph
}

func (p *parser) parseRegexp() Node {
	tok := p.next()

	re := &Regexp{
		Pos:     tok.Pos,
		EndPos:  tok.EndPos,
		Pattern: tok.Value,
	}

	if tok.Unterminated {
		p.errorAt(tok, "unterminated regex")
	}

	re.Boost = p.parseBoost(&re.EndPos)

	return re
}

func (p *parser) parseTermLike() Node {
	tok := p.next()

	t := &Term{
		Pos:        tok.Pos,
		EndPos:     tok.EndPos,
		Raw:        tok.Value,
		Decoded:    tok.Decoded,
		IsPrefix:   tok.Kind == TokenPrefix,
		IsWildcard: tok.Kind == TokenWildcard,
	}

	if p.peek().Kind == TokenTilde && adjacent(tok, p.peek()) {
		tilde := p.next()
		t.EndPos = tilde.EndPos

		fuzzy := FuzzyDefault

		num := p.peek()
		if num.Kind == TokenTerm && adjacent(tilde, num) {
			if n, err := strconv.Atoi(num.Value); err == nil {
				p.next()

				fuzzy = n
				t.EndPos = num.EndPos
			}
		}

		t.Fuzzy = &fuzzy
	}

	t.Boost = p.parseBoost(&t.EndPos)

	return t
}

// parseBoost parses an adjacent '^' and its decimal value. A caret with no
// usable number records an error and defaults the boost to 1.
func (p *parser) parseBoost(end *lexer.Position) *float64 {
	caret := p.peek()
	if caret.Kind != TokenCaret {
		return nil
	}

	// Only bind a caret that directly follows what it boosts.
	prevEnd := *end
	if caret.Pos.Offset != prevEnd.Offset {
		return nil
	}

	p.next()

	*end = caret.EndPos

	num := p.peek()
	if num.Kind == TokenTerm && adjacent(caret, num) {
		if f, err := strconv.ParseFloat(num.Value, 64); err == nil {
			p.next()

			*end = num.EndPos

			return &f
		}
	}

	p.errorAt(caret, "expected boost value after '^'")

	boost := 1.0

	return &boost
}

// tryMultiTerm attempts to combine a run of bare adjacent terms into a
// single MultiTerm. It backs off (consuming nothing) unless at least two
// plain terms run unbroken to the stop token.
func (p *parser) tryMultiTerm(stop TokenKind) *MultiTerm {
	j := p.i
	for p.toks[j].Kind == TokenTerm {
		j++
	}

	if j-p.i < 2 {
		return nil
	}

	if p.toks[j].Kind != stop && p.toks[j].Kind != TokenEOF {
		return nil
	}

	toks := p.toks[p.i:j]
	p.i = j

	terms := make([]string, len(toks))
	for k, tok := range toks {
		terms[k] = tok.Text()
	}

	return &MultiTerm{
		Pos:    toks[0].Pos,
		EndPos: toks[len(toks)-1].EndPos,
		Terms:  terms,
		Joined: strings.Join(terms, " "),
	}
}
