package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/rlch/luql"
)

// FieldResolver maps a user-visible field name to an internal one. ok is
// false when the resolver has no mapping. Implementations may perform I/O;
// they must honor ctx cancellation.
type FieldResolver func(ctx context.Context, field string, vc *Context) (resolved string, ok bool, err error)

// IncludeResolver returns the saved query fragment for an @include name.
// ok is false when the name is unknown.
type IncludeResolver func(ctx context.Context, name string) (fragment string, ok bool, err error)

// Context is threaded through every visit call of a single pipeline run.
// It is owned exclusively by that pipeline and is not safe for sharing
// across concurrent runs.
type Context struct {
	// Validation accumulates semantic findings across all passes.
	Validation *ValidationResult

	// FieldResolver and IncludeResolver are the caller-supplied lookups
	// used by the resolution and include passes.
	FieldResolver   FieldResolver
	IncludeResolver IncludeResolver

	// DefaultOperator records the parser setting the document was built
	// with. The built-in passes do not read it; the include pass parses
	// fragments with its own ParseOptions.
	DefaultOperator luql.Operator

	// Log receives pass-level debug output. Defaults to a nop logger.
	Log *zap.Logger

	values     map[string]any
	fieldStack []string
}

// NewContext creates a Context with an empty validation result and a nop
// logger.
func NewContext() *Context {
	return &Context{
		Validation:      NewValidationResult(),
		DefaultOperator: luql.OperatorOr,
		Log:             zap.NewNop(),
		values:          make(map[string]any),
	}
}

// Get returns a value from the context's key/value bag.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]

	return v, ok
}

// Set stores a value in the context's key/value bag.
func (c *Context) Set(key string, v any) {
	c.values[key] = v
}

// CurrentField returns the name of the innermost Field node being
// descended through, or "" outside any field.
func (c *Context) CurrentField() string {
	if len(c.fieldStack) == 0 {
		return ""
	}

	return c.fieldStack[len(c.fieldStack)-1]
}

// FieldPath returns a copy of the full field nesting stack, outermost
// first.
func (c *Context) FieldPath() []string {
	path := make([]string, len(c.fieldStack))
	copy(path, c.fieldStack)

	return path
}

func (c *Context) pushField(name string) {
	c.fieldStack = append(c.fieldStack, name)
}

func (c *Context) popField() {
	c.fieldStack = c.fieldStack[:len(c.fieldStack)-1]
}
