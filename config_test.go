package luql_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rlch/luql"
)

const sampleConfig = `
default_operator: and
split_on_whitespace: false
hierarchical_aliases: true
aliases:
  author: user.name
  created: created_at
allowed_fields: [title, user.name, created_at]
denied_fields: [password]
allow_leading_wildcards: false
max_depth: 8
date_fields: [created_at]
timezone: UTC
include_required: true
`

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := luql.ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}

	if cfg.DefaultOperator != "and" {
		t.Errorf("DefaultOperator = %q", cfg.DefaultOperator)
	}

	if cfg.SplitOnWhitespace == nil || *cfg.SplitOnWhitespace {
		t.Error("SplitOnWhitespace should be false")
	}

	if cfg.Aliases["author"] != "user.name" {
		t.Errorf("Aliases = %v", cfg.Aliases)
	}

	if !cfg.HierarchicalAliases {
		t.Error("HierarchicalAliases should be true")
	}

	if cfg.AllowsLeadingWildcards() {
		t.Error("leading wildcards should be disallowed")
	}

	// Unset policies default to allowed.
	if !cfg.AllowsWildcardOnlyQueries() {
		t.Error("wildcard-only queries should default to allowed")
	}

	if cfg.MaxDepth != 8 {
		t.Errorf("MaxDepth = %d", cfg.MaxDepth)
	}

	if !cfg.IsDateField("created_at") || !cfg.IsDateField("CREATED_AT") {
		t.Error("IsDateField should match case-insensitively")
	}

	if cfg.IsDateField("title") {
		t.Error("title is not a date field")
	}

	if !cfg.IncludeRequired {
		t.Error("IncludeRequired should be true")
	}
}

func TestConfig_ParserOptions(t *testing.T) {
	t.Parallel()

	cfg, err := luql.ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}

	// default_operator: and  →  implicit adjacency is a Must clause.
	res := luql.Parse("a:1 b:2", cfg.ParserOptions()...)
	if !res.IsSuccess() {
		t.Fatalf("parse errors: %v", res.Errors)
	}

	bq, ok := res.Document.Query.(*luql.BooleanQuery)
	if !ok || len(bq.Clauses) != 2 {
		t.Fatalf("expected two clauses, got %s", luql.Dump(res.Document.Query))
	}

	if bq.Clauses[1].Occur != luql.OccurMust {
		t.Errorf("second clause occur = %v", bq.Clauses[1].Occur)
	}
}

func TestFindConfig_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, ".luql.yaml"), []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}

	path, err := luql.FindConfig(nested)
	if err != nil {
		t.Fatalf("FindConfig() error: %v", err)
	}

	if path != filepath.Join(root, ".luql.yaml") {
		t.Errorf("FindConfig() = %q", path)
	}

	cfg, err := luql.LoadConfig(nested)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.DefaultOperator != "and" {
		t.Errorf("DefaultOperator = %q", cfg.DefaultOperator)
	}
}

func TestFindConfig_NotFound(t *testing.T) {
	t.Parallel()

	_, err := luql.FindConfig(t.TempDir())
	if err != luql.ErrConfigNotFound {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}
