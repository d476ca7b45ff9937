package luql_test

import (
	"testing"

	"github.com/rlch/luql"
)

// TestFormat_Identity parses and re-renders inputs that are already in
// canonical form; the output must equal the input.
func TestFormat_Identity(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"hello",
		"title:hello",
		"title:hello AND status:active",
		`"hello world"~5^2`,
		"price:[100 TO *}",
		"(a OR b) AND c",
		"+foo -bar baz",
		"NOT x",
		"-x",
		"x~",
		"x~2",
		"x~3^2",
		"_exists_:title",
		"title:*",
		"_missing_:author",
		"*:*",
		"a OR b AND c",
		"a AND b AND c",
		"price:>100",
		">=10",
		"<5",
		"a:(b OR c)",
		"/ab.c/",
		`author:"gibson"`,
		"term^2",
		"term^0.5",
		"(a)^2",
		"[2024-01-01 TO 2024-12-31]",
		"{1 TO 5}",
		"[* TO 10]",
		"[-5 TO 5]",
		"created:[now-7d TO now]",
		`date:["2024-01-01" TO "2024-12-31"]`,
		"fo* AND f?o",
		`foo\ bar`,
		"a 12:30",
	}

	for _, input := range inputs {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			res := luql.Parse(input)
			if !res.IsSuccess() {
				t.Fatalf("Parse(%q) errors: %v", input, res.Errors)
			}

			if got := res.String(); got != input {
				t.Errorf("render mismatch:\n  input: %q\n  got:   %q", input, got)
			}
		})
	}
}

// TestFormat_RoundTripStability checks the fixed-point property for inputs
// whose first render differs from the input: rendering the re-parsed
// render must be stable.
func TestFormat_RoundTripStability(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"a && b",
		"a || b",
		"!x",
		"*",
		`"abc`,
		"(a OR b",
		"foo^",
		"a   b",
		"[1 5]",
		"+a AND +b",
		"name:",
		"@include:recent AND x",
	}

	for _, input := range inputs {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			first := luql.Format(luql.Parse(input).Document)
			second := luql.Format(luql.Parse(first).Document)

			if first != second {
				t.Errorf("round-trip unstable:\n  input:  %q\n  first:  %q\n  second: %q", input, first, second)
			}
		})
	}
}

// TestFormat_RoundTripStability_NoSplit covers the multi-term mode.
func TestFormat_RoundTripStability_NoSplit(t *testing.T) {
	t.Parallel()

	opts := []luql.Option{luql.WithSplitOnWhitespace(false)}

	input := "quick brown fox"

	first := luql.Format(luql.Parse(input, opts...).Document)
	if first != input {
		t.Errorf("multi-term render mismatch: %q", first)
	}

	second := luql.Format(luql.Parse(first, opts...).Document)
	if first != second {
		t.Errorf("round-trip unstable: %q vs %q", first, second)
	}
}

func TestFormat_Normalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"a && b", "a AND b"},
		{"a || b", "a OR b"},
		{"!x", "NOT x"},
		{"*", "*:*"},
		{`"abc`, `"abc"`},
		{"(a OR b", "(a OR b)"},
		{"foo^", "foo^1"},
		{"a   b", "a b"},
		{"[1 5]", "[1 TO 5]"},
		// '+' is redundant inside an explicit AND chain.
		{"+a AND +b", "a AND b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := luql.Format(luql.Parse(tt.input).Document)
			if got != tt.expected {
				t.Errorf("Format(parse(%q)) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormat_BoostValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		boost    float64
		expected string
	}{
		{2, "term^2"},
		{99, "term^99"},
		{100, "term^100"},
		{1.5, "term^1.5"},
		{0.25, "term^0.25"},
		{2.567, "term^2.57"},
	}

	for _, tt := range tests {
		tt := tt
		trm := luql.NewTerm("term")
		trm.Boost = luql.Boost(tt.boost)

		if got := luql.Format(trm); got != tt.expected {
			t.Errorf("boost %v rendered %q, expected %q", tt.boost, got, tt.expected)
		}
	}
}

func TestFormat_EmptyDocument(t *testing.T) {
	t.Parallel()

	if got := luql.Format(luql.Parse("").Document); got != "" {
		t.Errorf("empty document rendered %q", got)
	}

	if got := luql.Format(nil); got != "" {
		t.Errorf("nil node rendered %q", got)
	}
}
