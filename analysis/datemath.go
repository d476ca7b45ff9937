package analysis

import (
	"context"
	"time"

	"github.com/rlch/luql"
	"github.com/rlch/luql/datemath"
)

// DateMathConfig configures the date math pass.
type DateMathConfig struct {
	// IsDateField reports whether a field holds dates. Only terms and
	// range bounds under such fields are rewritten.
	IsDateField func(field string) bool

	// Now is the reference instant; the zero value means system time.
	Now time.Time

	// Location is the default timezone; nil means UTC.
	Location *time.Location
}

// DateMathVisitor rewrites date math expressions (now-7d, 2024-01-01||/M)
// under date fields into concrete ISO timestamps. Upper range bounds round
// up so that [2024-01-01 TO 2024-01-01/M] covers all of January. Values
// that do not parse as date math are left untouched.
type DateMathVisitor struct {
	Base

	Config DateMathConfig
}

// NewDateMathEvaluator creates the pass.
func NewDateMathEvaluator(cfg DateMathConfig) *DateMathVisitor {
	return &DateMathVisitor{Config: cfg}
}

func (v *DateMathVisitor) isDateField(field string) bool {
	return field != "" && v.Config.IsDateField != nil && v.Config.IsDateField(field)
}

// VisitTerm implements Visitor.
func (v *DateMathVisitor) VisitTerm(_ context.Context, n *luql.Term, vc *Context) (Action, error) {
	if !v.isDateField(vc.CurrentField()) || n.IsPrefix || n.IsWildcard {
		return Keep(), nil
	}

	t, err := datemath.Eval(n.Value(), datemath.Options{
		Now:      v.Config.Now,
		Location: v.Config.Location,
	})
	if err != nil {
		return Keep(), nil
	}

	n.Raw = datemath.Format(t)
	n.Decoded = ""

	return Keep(), nil
}

// VisitRange implements Visitor.
func (v *DateMathVisitor) VisitRange(_ context.Context, n *luql.Range, vc *Context) (Action, error) {
	if !v.isDateField(vc.CurrentField()) {
		return Keep(), nil
	}

	v.evalBound(n.Min, false)
	v.evalBound(n.Max, true)

	return Keep(), nil
}

func (v *DateMathVisitor) evalBound(b *luql.RangeBound, roundUp bool) {
	if b == nil {
		return
	}

	t, err := datemath.Eval(b.Value(), datemath.Options{
		Now:      v.Config.Now,
		Location: v.Config.Location,
		RoundUp:  roundUp,
	})
	if err != nil {
		return
	}

	b.Raw = datemath.Format(t)
	b.Decoded = ""
}
