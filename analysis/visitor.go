package analysis

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/rlch/luql"
)

// Action is the result of a visit call: keep the node (possibly mutated in
// place), replace it, or remove it from the parent's child collection.
type Action struct {
	replacement luql.Node
	remove      bool
	skip        bool
}

// Keep leaves the node in place and descends into its children.
func Keep() Action {
	return Action{}
}

// Skip leaves the node in place and does not descend into its children.
func Skip() Action {
	return Action{skip: true}
}

// Replace swaps the node for n in its parent and descends into n's
// children.
func Replace(n luql.Node) Action {
	return Action{replacement: n}
}

// ReplaceSkip swaps the node for n without descending into n. Used by
// passes that have already transformed the subtree they return.
func ReplaceSkip(n luql.Node) Action {
	return Action{replacement: n, skip: true}
}

// Remove deletes the node from its parent. A parent left without children
// is removed in turn; removal at the root yields an empty Document.
func Remove() Action {
	return Action{remove: true}
}

// Visitor has one entry per AST variant. Embed Base and override only the
// variants a pass handles. Visits receive a context.Context because a pass
// may suspend on caller-supplied I/O (include and field resolvers); every
// such await-point honors cancellation.
type Visitor interface {
	VisitDocument(ctx context.Context, n *luql.Document, vc *Context) (Action, error)
	VisitBooleanQuery(ctx context.Context, n *luql.BooleanQuery, vc *Context) (Action, error)
	VisitGroup(ctx context.Context, n *luql.Group, vc *Context) (Action, error)
	VisitNot(ctx context.Context, n *luql.Not, vc *Context) (Action, error)
	VisitField(ctx context.Context, n *luql.Field, vc *Context) (Action, error)
	VisitTerm(ctx context.Context, n *luql.Term, vc *Context) (Action, error)
	VisitPhrase(ctx context.Context, n *luql.Phrase, vc *Context) (Action, error)
	VisitRegexp(ctx context.Context, n *luql.Regexp, vc *Context) (Action, error)
	VisitRange(ctx context.Context, n *luql.Range, vc *Context) (Action, error)
	VisitExists(ctx context.Context, n *luql.Exists, vc *Context) (Action, error)
	VisitMissing(ctx context.Context, n *luql.Missing, vc *Context) (Action, error)
	VisitMatchAll(ctx context.Context, n *luql.MatchAll, vc *Context) (Action, error)
	VisitMultiTerm(ctx context.Context, n *luql.MultiTerm, vc *Context) (Action, error)
}

// Base keeps every node and recurses. Embed it to implement Visitor.
type Base struct{}

// VisitDocument implements Visitor.
func (Base) VisitDocument(context.Context, *luql.Document, *Context) (Action, error) {
	return Keep(), nil
}

// VisitBooleanQuery implements Visitor.
func (Base) VisitBooleanQuery(context.Context, *luql.BooleanQuery, *Context) (Action, error) {
	return Keep(), nil
}

// VisitGroup implements Visitor.
func (Base) VisitGroup(context.Context, *luql.Group, *Context) (Action, error) {
	return Keep(), nil
}

// VisitNot implements Visitor.
func (Base) VisitNot(context.Context, *luql.Not, *Context) (Action, error) {
	return Keep(), nil
}

// VisitField implements Visitor.
func (Base) VisitField(context.Context, *luql.Field, *Context) (Action, error) {
	return Keep(), nil
}

// VisitTerm implements Visitor.
func (Base) VisitTerm(context.Context, *luql.Term, *Context) (Action, error) {
	return Keep(), nil
}

// VisitPhrase implements Visitor.
func (Base) VisitPhrase(context.Context, *luql.Phrase, *Context) (Action, error) {
	return Keep(), nil
}

// VisitRegexp implements Visitor.
func (Base) VisitRegexp(context.Context, *luql.Regexp, *Context) (Action, error) {
	return Keep(), nil
}

// VisitRange implements Visitor.
func (Base) VisitRange(context.Context, *luql.Range, *Context) (Action, error) {
	return Keep(), nil
}

// VisitExists implements Visitor.
func (Base) VisitExists(context.Context, *luql.Exists, *Context) (Action, error) {
	return Keep(), nil
}

// VisitMissing implements Visitor.
func (Base) VisitMissing(context.Context, *luql.Missing, *Context) (Action, error) {
	return Keep(), nil
}

// VisitMatchAll implements Visitor.
func (Base) VisitMatchAll(context.Context, *luql.MatchAll, *Context) (Action, error) {
	return Keep(), nil
}

// VisitMultiTerm implements Visitor.
func (Base) VisitMultiTerm(context.Context, *luql.MultiTerm, *Context) (Action, error) {
	return Keep(), nil
}

// Apply runs a single visitor over the document in pre-order: a parent is
// visited before its children, nodes in document order. The document is
// mutated in place; a removal bubbling up to the root empties it.
func Apply(ctx context.Context, doc *luql.Document, vc *Context, v Visitor) error {
	act, err := v.VisitDocument(ctx, doc, vc)
	if err != nil {
		return err
	}

	if act.remove {
		doc.Query = nil

		return nil
	}

	if d, ok := act.replacement.(*luql.Document); ok && d != nil {
		*doc = *d
	}

	if act.skip {
		return nil
	}

	q, removed, err := applyNode(ctx, doc.Query, vc, v)
	if err != nil {
		return err
	}

	if removed {
		doc.Query = nil
	} else {
		doc.Query = q
	}

	return nil
}

//nolint:gocyclo // one arm per node variant
func applyNode(ctx context.Context, n luql.Node, vc *Context, v Visitor) (luql.Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}

	if err := ctx.Err(); err != nil {
		return n, false, err
	}

	var (
		act Action
		err error
	)

	switch node := n.(type) {
	case *luql.Document:
		act, err = v.VisitDocument(ctx, node, vc)
	case *luql.BooleanQuery:
		act, err = v.VisitBooleanQuery(ctx, node, vc)
	case *luql.Group:
		act, err = v.VisitGroup(ctx, node, vc)
	case *luql.Not:
		act, err = v.VisitNot(ctx, node, vc)
	case *luql.Field:
		act, err = v.VisitField(ctx, node, vc)
	case *luql.Term:
		act, err = v.VisitTerm(ctx, node, vc)
	case *luql.Phrase:
		act, err = v.VisitPhrase(ctx, node, vc)
	case *luql.Regexp:
		act, err = v.VisitRegexp(ctx, node, vc)
	case *luql.Range:
		act, err = v.VisitRange(ctx, node, vc)
	case *luql.Exists:
		act, err = v.VisitExists(ctx, node, vc)
	case *luql.Missing:
		act, err = v.VisitMissing(ctx, node, vc)
	case *luql.MatchAll:
		act, err = v.VisitMatchAll(ctx, node, vc)
	case *luql.MultiTerm:
		act, err = v.VisitMultiTerm(ctx, node, vc)
	default:
		return n, false, fmt.Errorf("analysis: unknown node type %T", n)
	}

	if err != nil {
		return n, false, err
	}

	if act.remove {
		return nil, true, nil
	}

	out := n
	if act.replacement != nil {
		out = act.replacement
	}

	if act.skip {
		return out, false, nil
	}

	removed, err := applyChildren(ctx, out, vc, v)
	if err != nil {
		return out, false, err
	}

	if removed {
		return nil, true, nil
	}

	return out, false, nil
}

// applyChildren recurses into out's children. It reports removal when the
// node is left without the children it needs to be meaningful.
func applyChildren(ctx context.Context, out luql.Node, vc *Context, v Visitor) (bool, error) {
	switch node := out.(type) {
	case *luql.BooleanQuery:
		kept := node.Clauses[:0]

		for _, c := range node.Clauses {
			q, removed, err := applyNode(ctx, c.Query, vc, v)
			if err != nil {
				return false, err
			}

			if removed {
				continue
			}

			c.Query = q
			kept = append(kept, c)
		}

		node.Clauses = kept

		if len(node.Clauses) == 0 {
			return true, nil
		}
	case *luql.Group:
		q, removed, err := applyNode(ctx, node.Query, vc, v)
		if err != nil {
			return false, err
		}

		if removed {
			return true, nil
		}

		node.Query = q
	case *luql.Not:
		q, removed, err := applyNode(ctx, node.Query, vc, v)
		if err != nil {
			return false, err
		}

		if removed {
			return true, nil
		}

		node.Query = q
	case *luql.Field:
		vc.pushField(node.Name)
		q, removed, err := applyNode(ctx, node.Inner, vc, v)
		vc.popField()

		if err != nil {
			return false, err
		}

		if removed {
			return true, nil
		}

		node.Inner = q
	}

	return false, nil
}

// Chain composes visitors ordered by integer priority; lower runs first.
// Each pass runs to completion over the whole document before the next
// begins.
type Chain struct {
	passes []chainPass
}

type chainPass struct {
	priority int
	visitor  Visitor
}

// Default priorities for the built-in passes. Callers re-order by
// supplying their own values, e.g. to validate before alias resolution.
const (
	PriorityExpandIncludes = 10
	PriorityResolveFields  = 20
	PriorityDateMath       = 30
	PriorityValidate       = 40
)

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add registers a visitor at the given priority and returns the chain for
// chaining.
func (c *Chain) Add(priority int, v Visitor) *Chain {
	c.passes = append(c.passes, chainPass{priority: priority, visitor: v})

	return c
}

// Run executes all passes in priority order over doc.
func (c *Chain) Run(ctx context.Context, doc *luql.Document, vc *Context) error {
	passes := make([]chainPass, len(c.passes))
	copy(passes, c.passes)

	sort.SliceStable(passes, func(i, j int) bool {
		return passes[i].priority < passes[j].priority
	})

	for _, p := range passes {
		vc.Log.Debug("running pass",
			zap.String("pass", fmt.Sprintf("%T", p.visitor)),
			zap.Int("priority", p.priority))

		if err := Apply(ctx, doc, vc, p.visitor); err != nil {
			return err
		}
	}

	return nil
}
