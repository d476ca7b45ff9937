package luql

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the .luql.yaml configuration file: parser settings,
// field aliases, validation policy, and date math defaults.
type Config struct {
	// Default operator between adjacent clauses: "or" (default) or "and".
	DefaultOperator string `yaml:"default_operator,omitempty"`

	// Whitespace splitting; nil means true.
	SplitOnWhitespace *bool `yaml:"split_on_whitespace,omitempty"`

	// Aliases maps user-visible field names to internal ones.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// HierarchicalAliases enables dotted-prefix alias matching.
	HierarchicalAliases bool `yaml:"hierarchical_aliases,omitempty"`

	// AllowedFields, when set, is the closed set of queryable fields.
	AllowedFields []string `yaml:"allowed_fields,omitempty"`

	// DeniedFields are rejected even when allowed.
	DeniedFields []string `yaml:"denied_fields,omitempty"`

	// Wildcard policy; nil means allowed.
	AllowLeadingWildcards    *bool `yaml:"allow_leading_wildcards,omitempty"`
	AllowWildcardOnlyQueries *bool `yaml:"allow_wildcard_only_queries,omitempty"`

	// Size limits; 0 means unlimited.
	MaxDepth       int `yaml:"max_depth,omitempty"`
	MaxClauseCount int `yaml:"max_clause_count,omitempty"`

	// DateFields are the fields whose values go through date math
	// evaluation.
	DateFields []string `yaml:"date_fields,omitempty"`

	// Timezone is the default zone for date math, e.g. "Europe/Oslo".
	// Empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// IncludeRequired treats an unknown @include name as an error instead
	// of silently dropping the include.
	IncludeRequired bool `yaml:"include_required,omitempty"`
}

// ErrConfigNotFound is returned when no config file exists in the
// directory tree.
var ErrConfigNotFound = errors.New("no luql config file found")

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".luql.yaml", ".luql.yml", "luql.yaml", "luql.yml"}

// LoadConfig finds and loads the nearest config file walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig loads a config from raw YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config

	err := yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParserOptions returns the parse options this config implies.
func (c *Config) ParserOptions() []Option {
	var opts []Option

	if strings.EqualFold(c.DefaultOperator, "and") {
		opts = append(opts, WithDefaultOperator(OperatorAnd))
	}

	if c.SplitOnWhitespace != nil {
		opts = append(opts, WithSplitOnWhitespace(*c.SplitOnWhitespace))
	}

	return opts
}

// AllowsLeadingWildcards reports the leading-wildcard policy; unset means
// allowed.
func (c *Config) AllowsLeadingWildcards() bool {
	return c.AllowLeadingWildcards == nil || *c.AllowLeadingWildcards
}

// AllowsWildcardOnlyQueries reports the wildcard-only policy; unset means
// allowed.
func (c *Config) AllowsWildcardOnlyQueries() bool {
	return c.AllowWildcardOnlyQueries == nil || *c.AllowWildcardOnlyQueries
}

// IsDateField reports whether name is configured as a date field,
// case-insensitively.
func (c *Config) IsDateField(name string) bool {
	for _, f := range c.DateFields {
		if strings.EqualFold(f, name) {
			return true
		}
	}

	return false
}
