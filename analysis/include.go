package analysis

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/rlch/luql"
)

// IncludePrefix marks a term as a saved-query reference.
const IncludePrefix = "@include:"

// IncludeVisitor expands @include:NAME terms by resolving the name to a
// query fragment, parsing it with the same parser settings, and splicing
// the parsed sub-tree in as a Group. Nested includes are expanded
// recursively; a cycle is reported and left unexpanded.
type IncludeVisitor struct {
	Base

	// Resolver looks up fragments. When nil the context's IncludeResolver
	// is used; with neither set, includes are reported as errors.
	Resolver IncludeResolver

	// MissingIsError reports an unknown include name as a validation
	// error. Otherwise the include is removed from the query.
	MissingIsError bool

	// ParseOptions are applied when parsing resolved fragments. They
	// should match the options the outer document was parsed with.
	ParseOptions []luql.Option

	stack []string
}

// NewIncludeExpander creates the pass for the given resolver.
func NewIncludeExpander(r IncludeResolver, opts ...luql.Option) *IncludeVisitor {
	return &IncludeVisitor{Resolver: r, ParseOptions: opts}
}

// VisitTerm implements Visitor.
func (v *IncludeVisitor) VisitTerm(ctx context.Context, n *luql.Term, vc *Context) (Action, error) {
	value := n.Value()
	if !strings.HasPrefix(value, IncludePrefix) {
		return Keep(), nil
	}

	name := value[len(IncludePrefix):]

	if err := ctx.Err(); err != nil {
		return Keep(), err
	}

	if slices.Contains(v.stack, name) {
		vc.Validation.AddError(ValidationError{
			Code:    CodeCyclicInclude,
			Message: "include " + name + " references itself",
			Value:   name,
		})

		return Skip(), nil
	}

	resolver := v.Resolver
	if resolver == nil {
		resolver = vc.IncludeResolver
	}

	if resolver == nil {
		vc.Validation.AddError(ValidationError{
			Code:    CodeMissingResolver,
			Message: "no include resolver configured for " + name,
			Value:   name,
		})

		return Skip(), nil
	}

	fragment, ok, err := resolver(ctx, name)
	if err != nil {
		vc.Validation.AddError(ValidationError{
			Code:    CodeResolverFailed,
			Message: "include resolver failed for " + name + ": " + err.Error(),
			Value:   name,
		})

		return Skip(), nil
	}

	if !ok {
		if v.MissingIsError {
			vc.Validation.AddError(ValidationError{
				Code:    CodeUnknownInclude,
				Message: "unknown include " + name,
				Value:   name,
			})

			return Skip(), nil
		}

		return Remove(), nil
	}

	res := luql.Parse(fragment, v.ParseOptions...)
	if !res.IsSuccess() {
		vc.Validation.AddError(ValidationError{
			Code:    CodeInvalidInclude,
			Message: "include " + name + " did not parse: " + res.Errors[0].Error(),
			Value:   name,
		})
	}

	if res.Document.Query == nil {
		return Remove(), nil
	}

	// Expand nested includes inside the fragment before splicing it in,
	// with this name on the in-flight stack for cycle detection.
	sub := &luql.Document{Query: res.Document.Query}

	v.stack = append(v.stack, name)
	err = Apply(ctx, sub, vc, v)
	v.stack = v.stack[:len(v.stack)-1]

	if err != nil {
		return Keep(), err
	}

	if sub.Query == nil {
		return Remove(), nil
	}

	vc.Log.Debug("expanded include", zap.String("name", name))

	group := &luql.Group{Query: sub.Query}

	return ReplaceSkip(group), nil
}
