package luql_test

import (
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/rlch/luql"
)

// ignorePos drops positions from AST comparisons.
var ignorePos = cmp.Options{
	cmpopts.IgnoreTypes(lexer.Position{}),
}

func mustParse(t *testing.T, input string, opts ...luql.Option) *luql.Document {
	t.Helper()

	res := luql.Parse(input, opts...)
	if !res.IsSuccess() {
		t.Fatalf("Parse(%q) errors: %v", input, res.Errors)
	}

	return res.Document
}

func term(v string) *luql.Term {
	return &luql.Term{Raw: v}
}

func clause(occur luql.Occur, op luql.Operator, q luql.Node) *luql.Clause {
	return &luql.Clause{Occur: occur, Operator: op, Query: q}
}

func TestParse_Basics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected luql.Node
		opts     []luql.Option
	}{
		{
			input:    "hello",
			expected: term("hello"),
		},
		{
			input:    "title:hello",
			expected: &luql.Field{Name: "title", Inner: term("hello")},
		},
		{
			input: "title:hello AND status:active",
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurShould, luql.OperatorImplicit, &luql.Field{Name: "title", Inner: term("hello")}),
				clause(luql.OccurShould, luql.OperatorAnd, &luql.Field{Name: "status", Inner: term("active")}),
			}},
		},
		{
			input: `"hello world"~5^2`,
			expected: &luql.Phrase{
				Raw:   "hello world",
				Slop:  luql.Slop(5),
				Boost: luql.Boost(2),
			},
		},
		{
			input: "price:[100 TO *}",
			expected: &luql.Field{Name: "price", Inner: &luql.Range{
				Min:          &luql.RangeBound{Raw: "100"},
				MinInclusive: true,
			}},
		},
		{
			input: "+foo -bar baz",
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurMust, luql.OperatorImplicit, term("foo")),
				clause(luql.OccurMustNot, luql.OperatorImplicit, term("bar")),
				clause(luql.OccurShould, luql.OperatorImplicit, term("baz")),
			}},
		},
		{
			input:    "NOT x",
			expected: &luql.Not{Query: term("x")},
		},
		{
			input: "-x",
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurMustNot, luql.OperatorImplicit, term("x")),
			}},
		},
		{
			input: "(a OR b) AND c",
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurShould, luql.OperatorImplicit, &luql.Group{
					Query: &luql.BooleanQuery{Clauses: []*luql.Clause{
						clause(luql.OccurShould, luql.OperatorImplicit, term("a")),
						clause(luql.OccurShould, luql.OperatorOr, term("b")),
					}},
				}),
				clause(luql.OccurShould, luql.OperatorAnd, term("c")),
			}},
		},
		{
			// AND binds tighter than OR.
			input: "a OR b AND c",
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurShould, luql.OperatorImplicit, term("a")),
				clause(luql.OccurShould, luql.OperatorOr, &luql.BooleanQuery{Clauses: []*luql.Clause{
					clause(luql.OccurShould, luql.OperatorImplicit, term("b")),
					clause(luql.OccurShould, luql.OperatorAnd, term("c")),
				}}),
			}},
		},
		{
			input:    "*",
			expected: &luql.MatchAll{},
		},
		{
			input:    "*:*",
			expected: &luql.MatchAll{},
		},
		{
			input:    "_exists_:title",
			expected: &luql.Exists{Field: "title", ExistsSyntax: true},
		},
		{
			input:    "title:*",
			expected: &luql.Exists{Field: "title", ExistsSyntax: false},
		},
		{
			input:    "_missing_:title",
			expected: &luql.Missing{Field: "title"},
		},
		{
			input: "x:(a OR b)",
			expected: &luql.Field{Name: "x", Inner: &luql.Group{
				Query: &luql.BooleanQuery{Clauses: []*luql.Clause{
					clause(luql.OccurShould, luql.OperatorImplicit, term("a")),
					clause(luql.OccurShould, luql.OperatorOr, term("b")),
				}},
			}},
		},
		{
			input:    "/ab.c/",
			expected: &luql.Regexp{Pattern: "ab.c"},
		},
		{
			input:    "name:fo*",
			expected: &luql.Field{Name: "name", Inner: &luql.Term{Raw: "fo*", IsPrefix: true}},
		},
		{
			input:    "name:f?o",
			expected: &luql.Field{Name: "name", Inner: &luql.Term{Raw: "f?o", IsWildcard: true}},
		},
		{
			input: "a b",
			opts:  []luql.Option{luql.WithDefaultOperator(luql.OperatorAnd)},
			expected: &luql.BooleanQuery{Clauses: []*luql.Clause{
				clause(luql.OccurShould, luql.OperatorImplicit, term("a")),
				clause(luql.OccurMust, luql.OperatorImplicit, term("b")),
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			doc := mustParse(t, tt.input, tt.opts...)
			if diff := cmp.Diff(tt.expected, doc.Query, ignorePos); diff != "" {
				t.Errorf("AST mismatch (-expected +got):\n%s\ngot: %s", diff, luql.Dump(doc.Query))
			}
		})
	}
}

func TestParse_Ranges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected luql.Node
	}{
		{
			input: ">100",
			expected: &luql.Range{
				Op:  luql.RangeOpGreaterThan,
				Min: &luql.RangeBound{Raw: "100"},
			},
		},
		{
			input: "price:>=10.5",
			expected: &luql.Field{Name: "price", Inner: &luql.Range{
				Op:           luql.RangeOpGreaterThanOrEqual,
				Min:          &luql.RangeBound{Raw: "10.5"},
				MinInclusive: true,
			}},
		},
		{
			input: "<5",
			expected: &luql.Range{
				Op:  luql.RangeOpLessThan,
				Max: &luql.RangeBound{Raw: "5"},
			},
		},
		{
			input: "[* TO 10]",
			expected: &luql.Range{
				MinInclusive: true,
				Max:          &luql.RangeBound{Raw: "10"},
				MaxInclusive: true,
			},
		},
		{
			input: "[-5 TO 5]",
			expected: &luql.Range{
				Min:          &luql.RangeBound{Raw: "-5"},
				MinInclusive: true,
				Max:          &luql.RangeBound{Raw: "5"},
				MaxInclusive: true,
			},
		},
		{
			input: "{1 TO 5}",
			expected: &luql.Range{
				Min: &luql.RangeBound{Raw: "1"},
				Max: &luql.RangeBound{Raw: "5"},
			},
		},
		{
			input: `date:["2024-01-01" TO "2024-12-31"]`,
			expected: &luql.Field{Name: "date", Inner: &luql.Range{
				Min:          &luql.RangeBound{Raw: "2024-01-01", Quoted: true},
				MinInclusive: true,
				Max:          &luql.RangeBound{Raw: "2024-12-31", Quoted: true},
				MaxInclusive: true,
			}},
		},
		{
			input: "created:[now-7d TO now]",
			expected: &luql.Field{Name: "created", Inner: &luql.Range{
				Min:          &luql.RangeBound{Raw: "now-7d"},
				MinInclusive: true,
				Max:          &luql.RangeBound{Raw: "now"},
				MaxInclusive: true,
			}},
		},
		{
			input: "price:[100 TO 200]^2",
			expected: &luql.Field{Name: "price", Inner: &luql.Range{
				Min:          &luql.RangeBound{Raw: "100"},
				MinInclusive: true,
				Max:          &luql.RangeBound{Raw: "200"},
				MaxInclusive: true,
				Boost:        luql.Boost(2),
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			doc := mustParse(t, tt.input)
			if diff := cmp.Diff(tt.expected, doc.Query, ignorePos); diff != "" {
				t.Errorf("AST mismatch (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Fuzzy(t *testing.T) {
	t.Parallel()

	// The bare '~' sentinel and an explicit ~2 are distinct in the AST but
	// report the same effective distance.
	bare := mustParse(t, "x~").Query.(*luql.Term)
	explicit := mustParse(t, "x~2").Query.(*luql.Term)

	if *bare.Fuzzy != luql.FuzzyDefault {
		t.Errorf("expected sentinel, got %d", *bare.Fuzzy)
	}

	if *explicit.Fuzzy != 2 {
		t.Errorf("expected 2, got %d", *explicit.Fuzzy)
	}

	if d, ok := bare.FuzzyDistance(); !ok || d != 2 {
		t.Errorf("bare distance = %d, %v", d, ok)
	}

	if d, ok := explicit.FuzzyDistance(); !ok || d != 2 {
		t.Errorf("explicit distance = %d, %v", d, ok)
	}
}

func TestParse_MultiTerm(t *testing.T) {
	t.Parallel()

	noSplit := []luql.Option{luql.WithSplitOnWhitespace(false)}

	t.Run("combines bare terms", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, "quick brown fox", noSplit...)

		expected := &luql.MultiTerm{
			Terms:  []string{"quick", "brown", "fox"},
			Joined: "quick brown fox",
		}

		if diff := cmp.Diff(expected, doc.Query, ignorePos); diff != "" {
			t.Errorf("AST mismatch (-expected +got):\n%s", diff)
		}
	})

	t.Run("inside group", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, "(quick brown)", noSplit...)

		group, ok := doc.Query.(*luql.Group)
		if !ok {
			t.Fatalf("expected Group, got %T", doc.Query)
		}

		if _, ok := group.Query.(*luql.MultiTerm); !ok {
			t.Errorf("expected MultiTerm inside group, got %T", group.Query)
		}
	})

	t.Run("backs off on non-simple token", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, "quick brown:fox", noSplit...)

		expected := &luql.BooleanQuery{Clauses: []*luql.Clause{
			clause(luql.OccurShould, luql.OperatorImplicit, term("quick")),
			clause(luql.OccurShould, luql.OperatorImplicit, &luql.Field{Name: "brown", Inner: term("fox")}),
		}}

		if diff := cmp.Diff(expected, doc.Query, ignorePos); diff != "" {
			t.Errorf("AST mismatch (-expected +got):\n%s", diff)
		}
	})

	t.Run("single term stays a term", func(t *testing.T) {
		t.Parallel()

		doc := mustParse(t, "quick", noSplit...)
		if _, ok := doc.Query.(*luql.Term); !ok {
			t.Errorf("expected Term, got %T", doc.Query)
		}
	})
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "\n\t"} {
		res := luql.Parse(input)
		if !res.IsSuccess() {
			t.Errorf("Parse(%q) errors: %v", input, res.Errors)
		}

		if res.Document.Query != nil {
			t.Errorf("Parse(%q) expected empty document, got %T", input, res.Document.Query)
		}
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	t.Parallel()

	t.Run("missing close paren", func(t *testing.T) {
		t.Parallel()

		res := luql.Parse("(a OR b")
		if len(res.Errors) != 1 {
			t.Fatalf("expected 1 error, got %v", res.Errors)
		}

		group, ok := res.Document.Query.(*luql.Group)
		if !ok {
			t.Fatalf("expected Group, got %T", res.Document.Query)
		}

		bq, ok := group.Query.(*luql.BooleanQuery)
		if !ok || len(bq.Clauses) != 2 {
			t.Errorf("expected two clauses inside group")
		}
	})

	t.Run("unterminated phrase", func(t *testing.T) {
		t.Parallel()

		res := luql.Parse(`"abc`)
		if len(res.Errors) != 1 {
			t.Fatalf("expected 1 error, got %v", res.Errors)
		}

		if res.Errors[0].Offset != 0 || res.Errors[0].Column != 1 {
			t.Errorf("error should point at the opening quote, got %+v", res.Errors[0])
		}

		ph, ok := res.Document.Query.(*luql.Phrase)
		if !ok || ph.Raw != "abc" {
			t.Errorf("expected Phrase(abc), got %s", luql.Dump(res.Document.Query))
		}
	})

	t.Run("missing field value", func(t *testing.T) {
		t.Parallel()

		res := luql.Parse("name:")
		if len(res.Errors) != 1 {
			t.Fatalf("expected 1 error, got %v", res.Errors)
		}

		f, ok := res.Document.Query.(*luql.Field)
		if !ok || f.Inner != nil {
			t.Errorf("expected Field with absent value, got %s", luql.Dump(res.Document.Query))
		}
	})

	t.Run("boost without value", func(t *testing.T) {
		t.Parallel()

		res := luql.Parse("foo^")
		if len(res.Errors) != 1 {
			t.Fatalf("expected 1 error, got %v", res.Errors)
		}

		trm, ok := res.Document.Query.(*luql.Term)
		if !ok || trm.Boost == nil || *trm.Boost != 1.0 {
			t.Errorf("expected boost defaulted to 1.0, got %s", luql.Dump(res.Document.Query))
		}
	})

	t.Run("missing TO", func(t *testing.T) {
		t.Parallel()

		res := luql.Parse("[1 5]")
		if len(res.Errors) == 0 {
			t.Fatal("expected an error")
		}

		if _, ok := res.Document.Query.(*luql.Range); !ok {
			t.Errorf("expected Range, got %T", res.Document.Query)
		}
	})

	t.Run("stray tokens do not spin", func(t *testing.T) {
		t.Parallel()

		// Junk-heavy input must terminate and keep whatever parses.
		res := luql.Parse(") ] } TO a")
		if res.Document == nil {
			t.Fatal("expected a document")
		}

		if _, ok := res.Document.Query.(*luql.Term); !ok {
			t.Errorf("expected the trailing term to survive, got %s", luql.Dump(res.Document.Query))
		}
	})
}

func TestParse_Escapes(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `foo\ bar`)

	trm, ok := doc.Query.(*luql.Term)
	if !ok {
		t.Fatalf("expected Term, got %T", doc.Query)
	}

	if trm.Raw != `foo\ bar` {
		t.Errorf("raw should keep the escape, got %q", trm.Raw)
	}

	if trm.Value() != "foo bar" {
		t.Errorf("value should decode the escape, got %q", trm.Value())
	}
}

func TestParse_PositionSoundness(t *testing.T) {
	t.Parallel()

	src := "title:hello AND status:active"
	doc := mustParse(t, src)

	bq := doc.Query.(*luql.BooleanQuery)

	f := bq.Clauses[0].Query.(*luql.Field)
	if span := f.Span(); src[span.Start.Offset:span.End.Offset] != "title:hello" {
		t.Errorf("field span covers %q", src[span.Start.Offset:span.End.Offset])
	}

	trm := f.Inner.(*luql.Term)
	if span := trm.Span(); src[span.Start.Offset:span.End.Offset] != "hello" {
		t.Errorf("term span covers %q", src[span.Start.Offset:span.End.Offset])
	}

	if span := doc.Span(); span.End.Offset != len(src) {
		t.Errorf("document end offset = %d", span.End.Offset)
	}
}

func TestTryParse(t *testing.T) {
	t.Parallel()

	res := luql.TryParse("title:hello")
	if !res.IsSuccess() {
		t.Errorf("TryParse errors: %v", res.Errors)
	}

	if res.Document == nil {
		t.Error("expected a document")
	}
}
