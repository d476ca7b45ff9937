package analysis

import (
	"context"
	"strings"

	"github.com/rlch/luql"
)

// AliasMap maps user-visible field names to internal names. Lookups are
// case-insensitive.
type AliasMap map[string]string

// Resolver returns an exact-match resolver over the map.
func (m AliasMap) Resolver() FieldResolver {
	lowered := m.lowered()

	return func(_ context.Context, field string, _ *Context) (string, bool, error) {
		target, ok := lowered[strings.ToLower(field)]

		return target, ok, nil
	}
}

// HierarchicalResolver returns a resolver that matches dotted-path
// prefixes: for a.b.c it tries a.b.c, then a.b, then a, replacing the
// matched prefix with the alias target and keeping the suffix. An exact
// match is the longest prefix, so it always wins over shorter ones.
func (m AliasMap) HierarchicalResolver() FieldResolver {
	lowered := m.lowered()

	return func(_ context.Context, field string, _ *Context) (string, bool, error) {
		parts := strings.Split(field, ".")

		for i := len(parts); i >= 1; i-- {
			prefix := strings.Join(parts[:i], ".")

			target, ok := lowered[strings.ToLower(prefix)]
			if !ok {
				continue
			}

			if i < len(parts) {
				target += "." + strings.Join(parts[i:], ".")
			}

			return target, true, nil
		}

		return "", false, nil
	}
}

func (m AliasMap) lowered() map[string]string {
	lowered := make(map[string]string, len(m))
	for alias, target := range m {
		lowered[strings.ToLower(alias)] = target
	}

	return lowered
}

// FieldResolverVisitor rewrites the field names of Field, Exists, and
// Missing nodes through a FieldResolver. The pre-resolution name is
// recorded on the node; names the resolver has no entry for are collected
// on the context's validation result.
type FieldResolverVisitor struct {
	Base

	Resolver FieldResolver
}

// NewFieldResolver creates the pass for the given resolver. When r is nil
// the context's FieldResolver is used.
func NewFieldResolver(r FieldResolver) *FieldResolverVisitor {
	return &FieldResolverVisitor{Resolver: r}
}

// VisitField implements Visitor.
func (v *FieldResolverVisitor) VisitField(ctx context.Context, n *luql.Field, vc *Context) (Action, error) {
	resolved, original, err := v.resolve(ctx, n.Name, vc)
	if err != nil {
		return Keep(), err
	}

	if resolved != "" {
		n.Original = original
		n.Name = resolved
	}

	return Keep(), nil
}

// VisitExists implements Visitor.
func (v *FieldResolverVisitor) VisitExists(ctx context.Context, n *luql.Exists, vc *Context) (Action, error) {
	resolved, original, err := v.resolve(ctx, n.Field, vc)
	if err != nil {
		return Keep(), err
	}

	if resolved != "" {
		n.Original = original
		n.Field = resolved
	}

	return Keep(), nil
}

// VisitMissing implements Visitor.
func (v *FieldResolverVisitor) VisitMissing(ctx context.Context, n *luql.Missing, vc *Context) (Action, error) {
	resolved, original, err := v.resolve(ctx, n.Field, vc)
	if err != nil {
		return Keep(), err
	}

	if resolved != "" {
		n.Original = original
		n.Field = resolved
	}

	return Keep(), nil
}

// resolve runs the resolver for one field name. A resolver failure becomes
// a validation error and traversal continues; only ctx cancellation stops
// the pass.
func (v *FieldResolverVisitor) resolve(ctx context.Context, name string, vc *Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	resolver := v.Resolver
	if resolver == nil {
		resolver = vc.FieldResolver
	}

	if resolver == nil {
		return "", "", nil
	}

	resolved, ok, err := resolver(ctx, name, vc)
	if err != nil {
		vc.Validation.AddError(ValidationError{
			Code:    CodeResolverFailed,
			Message: "field resolver failed for " + name + ": " + err.Error(),
			Field:   name,
		})

		return "", "", nil
	}

	if !ok {
		vc.Validation.AddUnresolved(name)

		return "", "", nil
	}

	return resolved, name, nil
}
