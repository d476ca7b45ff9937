package analysis

import (
	"context"
	"strconv"
	"strings"

	"github.com/rlch/luql"
)

// ValidationOptions configure the validation pass.
type ValidationOptions struct {
	// AllowedFields, when non-empty, is the closed set of queryable field
	// names. Lookups are case-insensitive.
	AllowedFields []string

	// DeniedFields are rejected even when present in AllowedFields.
	DeniedFields []string

	AllowLeadingWildcards    bool
	AllowWildcardOnlyQueries bool

	// MaxDepth bounds query nesting; 0 means unlimited.
	MaxDepth int

	// MaxClauseCount bounds the total clause count; 0 means unlimited.
	MaxClauseCount int
}

// ValidationVisitor checks field names against allow/deny lists and
// enforces the wildcard and size policies. All findings accumulate on the
// context's validation result; the pass never fails and never mutates the
// AST.
type ValidationVisitor struct {
	Base

	opts    ValidationOptions
	allowed map[string]struct{}
	denied  map[string]struct{}
}

// NewValidator creates the pass.
func NewValidator(opts ValidationOptions) *ValidationVisitor {
	v := &ValidationVisitor{
		opts:    opts,
		allowed: loweredSet(opts.AllowedFields),
		denied:  loweredSet(opts.DeniedFields),
	}

	return v
}

func loweredSet(fields []string) map[string]struct{} {
	if len(fields) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}

	return set
}

// Validate runs the validation pass synchronously over doc and returns
// the result.
func Validate(doc *luql.Document, opts ValidationOptions) *ValidationResult {
	vc := NewContext()
	_ = Apply(context.Background(), doc, vc, NewValidator(opts))

	return vc.Validation
}

// VisitDocument implements Visitor.
func (v *ValidationVisitor) VisitDocument(_ context.Context, n *luql.Document, vc *Context) (Action, error) {
	if !v.opts.AllowWildcardOnlyQueries && isWildcardOnly(n.Query) {
		vc.Validation.AddError(ValidationError{
			Code:    CodeWildcardOnly,
			Message: "wildcard-only queries are not allowed",
		})
	}

	if v.opts.MaxDepth > 0 {
		if d := nodeDepth(n.Query); d > v.opts.MaxDepth {
			vc.Validation.AddError(ValidationError{
				Code:    CodeMaxDepth,
				Message: "query depth " + strconv.Itoa(d) + " exceeds limit " + strconv.Itoa(v.opts.MaxDepth),
			})
		}
	}

	if v.opts.MaxClauseCount > 0 {
		if c := clauseCount(n.Query); c > v.opts.MaxClauseCount {
			vc.Validation.AddError(ValidationError{
				Code:    CodeMaxClauseCount,
				Message: "clause count " + strconv.Itoa(c) + " exceeds limit " + strconv.Itoa(v.opts.MaxClauseCount),
			})
		}
	}

	return Keep(), nil
}

// VisitField implements Visitor.
func (v *ValidationVisitor) VisitField(_ context.Context, n *luql.Field, vc *Context) (Action, error) {
	v.checkField(n.Name, vc)

	return Keep(), nil
}

// VisitExists implements Visitor.
func (v *ValidationVisitor) VisitExists(_ context.Context, n *luql.Exists, vc *Context) (Action, error) {
	v.checkField(n.Field, vc)

	return Keep(), nil
}

// VisitMissing implements Visitor.
func (v *ValidationVisitor) VisitMissing(_ context.Context, n *luql.Missing, vc *Context) (Action, error) {
	v.checkField(n.Field, vc)

	return Keep(), nil
}

// VisitTerm implements Visitor.
func (v *ValidationVisitor) VisitTerm(_ context.Context, n *luql.Term, vc *Context) (Action, error) {
	if v.opts.AllowLeadingWildcards {
		return Keep(), nil
	}

	value := n.Value()
	if value != "*" && (strings.HasPrefix(value, "*") || strings.HasPrefix(value, "?")) {
		vc.Validation.AddError(ValidationError{
			Code:    CodeLeadingWildcard,
			Message: "leading wildcards are not allowed",
			Field:   vc.CurrentField(),
			Value:   value,
		})
	}

	return Keep(), nil
}

func (v *ValidationVisitor) checkField(name string, vc *Context) {
	lowered := strings.ToLower(name)

	if _, ok := v.denied[lowered]; ok {
		vc.Validation.AddError(ValidationError{
			Code:    CodeDeniedField,
			Message: "field " + name + " is not allowed",
			Field:   name,
		})

		return
	}

	if v.allowed == nil {
		return
	}

	if _, ok := v.allowed[lowered]; !ok {
		vc.Validation.AddError(ValidationError{
			Code:    CodeUnknownField,
			Message: "field " + name + " is not in the allowed field list",
			Field:   name,
		})
	}
}

func isWildcardOnly(n luql.Node) bool {
	switch node := n.(type) {
	case *luql.MatchAll:
		return true
	case *luql.Term:
		return node.Value() == "*"
	default:
		return false
	}
}

func nodeDepth(n luql.Node) int {
	switch node := n.(type) {
	case nil:
		return 0
	case *luql.BooleanQuery:
		deepest := 0

		for _, c := range node.Clauses {
			if d := nodeDepth(c.Query); d > deepest {
				deepest = d
			}
		}

		return 1 + deepest
	case *luql.Group:
		return 1 + nodeDepth(node.Query)
	case *luql.Not:
		return 1 + nodeDepth(node.Query)
	case *luql.Field:
		return 1 + nodeDepth(node.Inner)
	default:
		return 1
	}
}

func clauseCount(n luql.Node) int {
	switch node := n.(type) {
	case nil:
		return 0
	case *luql.BooleanQuery:
		total := len(node.Clauses)
		for _, c := range node.Clauses {
			total += clauseCount(c.Query)
		}

		return total
	case *luql.Group:
		return clauseCount(node.Query)
	case *luql.Not:
		return clauseCount(node.Query)
	case *luql.Field:
		return clauseCount(node.Inner)
	default:
		return 0
	}
}
