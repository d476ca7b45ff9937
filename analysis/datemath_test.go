package analysis_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rlch/luql"
	"github.com/rlch/luql/analysis"
)

func dateVisitor(now time.Time) *analysis.DateMathVisitor {
	return analysis.NewDateMathEvaluator(analysis.DateMathConfig{
		IsDateField: func(field string) bool { return field == "created" },
		Now:         now,
	})
}

func TestDateMath_RangeBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	doc, _ := apply(t, "created:[now-7d TO now]", dateVisitor(now))

	assert.Equal(t, "created:[2024-06-08T12:30:00Z TO 2024-06-15T12:30:00Z]", luql.Format(doc))
}

func TestDateMath_UpperBoundRoundsUp(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	doc, _ := apply(t, "created:[2024-01-01 TO 2024-01-01/M]", dateVisitor(now))

	// The upper bound uses ceiling semantics so the range covers all of
	// January.
	assert.Equal(t,
		"created:[2024-01-01T00:00:00Z TO 2024-01-31T23:59:59.999Z]",
		luql.Format(doc))
}

func TestDateMath_TermValue(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	doc, _ := apply(t, "created:now/d", dateVisitor(now))

	assert.Equal(t, "created:2024-06-15T00:00:00Z", luql.Format(doc))
}

func TestDateMath_NonDateValuesUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	t.Run("unparseable term", func(t *testing.T) {
		t.Parallel()

		doc, _ := apply(t, "created:hello", dateVisitor(now))
		assert.Equal(t, "created:hello", luql.Format(doc))
	})

	t.Run("non-date field", func(t *testing.T) {
		t.Parallel()

		doc, _ := apply(t, "title:now-7d", dateVisitor(now))
		assert.Equal(t, "title:now-7d", luql.Format(doc))
	})

	t.Run("wildcard term", func(t *testing.T) {
		t.Parallel()

		doc, _ := apply(t, "created:now*", dateVisitor(now))
		assert.Equal(t, "created:now*", luql.Format(doc))
	})
}

func TestDateMath_Timezone(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	v := analysis.NewDateMathEvaluator(analysis.DateMathConfig{
		IsDateField: func(field string) bool { return field == "created" },
		Now:         now,
		Location:    time.FixedZone("CET", 3600),
	})

	doc, _ := apply(t, "created:now/d", v)

	// now in CET is 13:30, so start of day renders with the +01:00 offset.
	assert.Equal(t, "created:2024-06-15T00:00:00+01:00", luql.Format(doc))
}
