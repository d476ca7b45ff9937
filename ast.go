// Package luql parses Lucene-style query strings (with Elasticsearch
// extensions) into a typed AST, and renders the AST back to its canonical
// query-string form. Transformation passes over the AST live in the
// analysis package.
package luql

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Span is a half-open source range covering a node or token.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
}

// Occur indicates how a clause combines into its parent boolean query.
type Occur int

// Occur values.
const (
	OccurShould Occur = iota
	OccurMust
	OccurMustNot
)

func (o Occur) String() string {
	switch o {
	case OccurMust:
		return "MUST"
	case OccurMustNot:
		return "MUST_NOT"
	default:
		return "SHOULD"
	}
}

// Operator is the boolean operator joining a clause to the clause before it.
type Operator int

// Operator values. OperatorImplicit marks adjacency with no explicit
// AND/OR between the clauses.
const (
	OperatorImplicit Operator = iota
	OperatorAnd
	OperatorOr
)

func (op Operator) String() string {
	switch op {
	case OperatorAnd:
		return "AND"
	case OperatorOr:
		return "OR"
	default:
		return ""
	}
}

// RangeOperator records the short-form comparison operator a Range was
// written with, so rendering can restore it.
type RangeOperator int

// RangeOperator values. RangeOpNone means bracket syntax.
const (
	RangeOpNone RangeOperator = iota
	RangeOpGreaterThan
	RangeOpGreaterThanOrEqual
	RangeOpLessThan
	RangeOpLessThanOrEqual
)

func (op RangeOperator) String() string {
	switch op {
	case RangeOpGreaterThan:
		return ">"
	case RangeOpGreaterThanOrEqual:
		return ">="
	case RangeOpLessThan:
		return "<"
	case RangeOpLessThanOrEqual:
		return "<="
	default:
		return ""
	}
}

// FuzzyDefault is the fuzzy distance recorded for a bare '~' with no
// number. It is distinct from an explicit ~2 so both render back to their
// original form; the effective edit distance of both is 2.
const FuzzyDefault = -1

// Document is the root node. Query is nil for empty (or whitespace-only)
// input; it is the only node whose child may be absent.
type Document struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Query  Node
}

// Span returns the source span of this node.
func (d *Document) Span() Span { return Span{Start: d.Pos, End: d.EndPos} }

// Term is a single bare term, optionally a prefix or wildcard match, with
// optional boost and fuzzy distance.
type Term struct {
	Pos    lexer.Position
	EndPos lexer.Position

	// Raw is the term's source slice with escapes intact.
	Raw string

	// Decoded is the unescaped form, materialized only when Raw contained
	// at least one backslash escape.
	Decoded string

	IsPrefix   bool
	IsWildcard bool
	Boost      *float64

	// Fuzzy is nil when no '~' was present, FuzzyDefault for a bare '~',
	// or the explicit distance.
	Fuzzy *int
}

// Span returns the source span of this node.
func (t *Term) Span() Span { return Span{Start: t.Pos, End: t.EndPos} }

// Value returns the unescaped term text.
func (t *Term) Value() string {
	if t.Decoded != "" {
		return t.Decoded
	}

	return t.Raw
}

// FuzzyDistance returns the effective edit distance and whether fuzzy
// matching applies. A bare '~' and an explicit ~2 both report 2.
func (t *Term) FuzzyDistance() (int, bool) {
	if t.Fuzzy == nil {
		return 0, false
	}

	if *t.Fuzzy == FuzzyDefault {
		return 2, true
	}

	return *t.Fuzzy, true
}

// Phrase is a quoted string with optional slop and boost.
type Phrase struct {
	Pos    lexer.Position
	EndPos lexer.Position

	// Raw is the phrase content without the outer quotes, escapes intact.
	Raw string

	// Decoded is the unescaped content, set only when escapes occurred.
	Decoded string

	Slop  *int
	Boost *float64
}

// Span returns the source span of this node.
func (p *Phrase) Span() Span { return Span{Start: p.Pos, End: p.EndPos} }

// Value returns the unescaped phrase content.
func (p *Phrase) Value() string {
	if p.Decoded != "" {
		return p.Decoded
	}

	return p.Raw
}

// Regexp is a /…/ literal with optional boost. The pattern keeps its
// escapes verbatim.
type Regexp struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Pattern string
	Boost   *float64
}

// Span returns the source span of this node.
func (r *Regexp) Span() Span { return Span{Start: r.Pos, End: r.EndPos} }

// Field qualifies its inner query with a field name, e.g. title:hello or
// price:[10 TO 20].
type Field struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string

	// Original is the pre-resolution field name, recorded by the field
	// resolver pass so later passes can recover it. Empty until a resolver
	// rewrites Name.
	Original string

	Inner Node
}

// Span returns the source span of this node.
func (f *Field) Span() Span { return Span{Start: f.Pos, End: f.EndPos} }

// RangeBound is one endpoint of a Range. A nil *RangeBound means
// unbounded ('*').
type RangeBound struct {
	Pos    lexer.Position
	EndPos lexer.Position

	// Raw is the bound's source text, escapes intact, quotes stripped.
	Raw string

	// Decoded is the unescaped form, set only when escapes occurred.
	Decoded string

	// Quoted records whether the bound was written as a quoted string.
	Quoted bool
}

// Span returns the source span of this node.
func (b *RangeBound) Span() Span { return Span{Start: b.Pos, End: b.EndPos} }

// Value returns the unescaped bound text.
func (b *RangeBound) Value() string {
	if b.Decoded != "" {
		return b.Decoded
	}

	return b.Raw
}

// Range is a bracketed range query or a short-form comparison. Min and Max
// are nil when unbounded. Op is set for the short forms so rendering can
// restore them.
type Range struct {
	Pos          lexer.Position
	EndPos       lexer.Position
	Min          *RangeBound
	Max          *RangeBound
	MinInclusive bool
	MaxInclusive bool
	Op           RangeOperator
	Boost        *float64
}

// Span returns the source span of this node.
func (r *Range) Span() Span { return Span{Start: r.Pos, End: r.EndPos} }

// Clause is one member of a BooleanQuery. Operator joins the clause to the
// previous clause in the sequence (Implicit for the first).
type Clause struct {
	Pos      lexer.Position
	EndPos   lexer.Position
	Occur    Occur
	Operator Operator
	Query    Node
}

// Span returns the source span of this node.
func (c *Clause) Span() Span { return Span{Start: c.Pos, End: c.EndPos} }

// BooleanQuery is an ordered sequence of clauses. It always holds at least
// one clause; the parser collapses a would-be single-Should-clause query to
// the child node instead.
type BooleanQuery struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Clauses []*Clause
}

// Span returns the source span of this node.
func (b *BooleanQuery) Span() Span { return Span{Start: b.Pos, End: b.EndPos} }

// Group is a parenthesized query with optional boost.
type Group struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Query  Node
	Boost  *float64
}

// Span returns the source span of this node.
func (g *Group) Span() Span { return Span{Start: g.Pos, End: g.EndPos} }

// Not negates its child. Distinct from a MustNot clause so that NOT x and
// -x round-trip differently.
type Not struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Query  Node
}

// Span returns the source span of this node.
func (n *Not) Span() Span { return Span{Start: n.Pos, End: n.EndPos} }

// Exists matches documents that have a value for Field. ExistsSyntax
// distinguishes _exists_:f from the f:* shorthand for faithful round-trip.
type Exists struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Field  string

	// Original is the pre-resolution field name; see Field.Original.
	Original string

	ExistsSyntax bool
}

// Span returns the source span of this node.
func (e *Exists) Span() Span { return Span{Start: e.Pos, End: e.EndPos} }

// Missing matches documents that have no value for Field (_missing_:f).
type Missing struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Field  string

	// Original is the pre-resolution field name; see Field.Original.
	Original string
}

// Span returns the source span of this node.
func (m *Missing) Span() Span { return Span{Start: m.Pos, End: m.EndPos} }

// MatchAll is the *:* (or bare *) query.
type MatchAll struct {
	Pos    lexer.Position
	EndPos lexer.Position
}

// Span returns the source span of this node.
func (m *MatchAll) Span() Span { return Span{Start: m.Pos, End: m.EndPos} }

// MultiTerm is a run of bare adjacent terms kept as a unit. Produced only
// in non-split-on-whitespace mode.
type MultiTerm struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Terms  []string
	Joined string
}

// Span returns the source span of this node.
func (m *MultiTerm) Span() Span { return Span{Start: m.Pos, End: m.EndPos} }

// Convenience constructors for programmatic AST assembly, e.g. by backend
// rewrite passes.

// NewTerm creates a Term node with the given value.
func NewTerm(value string) *Term {
	return &Term{Raw: value}
}

// NewPhrase creates a Phrase node with the given content.
func NewPhrase(value string) *Phrase {
	return &Phrase{Raw: value}
}

// NewField creates a Field node wrapping inner.
func NewField(name string, inner Node) *Field {
	return &Field{Name: name, Inner: inner}
}

// NewGroup creates a Group node wrapping query.
func NewGroup(query Node) *Group {
	return &Group{Query: query}
}

// NewClause creates a Clause with the given occur and joining operator.
func NewClause(occur Occur, op Operator, query Node) *Clause {
	return &Clause{Occur: occur, Operator: op, Query: query}
}

// NewBooleanQuery creates a BooleanQuery from clauses.
func NewBooleanQuery(clauses ...*Clause) *BooleanQuery {
	return &BooleanQuery{Clauses: clauses}
}

// Boost returns a *float64 for use in node literals.
func Boost(v float64) *float64 {
	return &v
}

// Fuzzy returns a *int fuzzy distance for use in node literals. Pass
// FuzzyDefault for a bare '~'.
func Fuzzy(n int) *int {
	return &n
}

// Slop returns a *int slop for use in node literals.
func Slop(n int) *int {
	return &n
}
