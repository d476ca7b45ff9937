package analysis

import (
	"time"

	"github.com/rlch/luql"
)

// FromConfig builds the standard pass chain for cfg: include expansion,
// alias resolution, date math evaluation, validation. Callers needing a
// different order (e.g. validating before alias resolution) assemble the
// chain by hand with their own priorities.
func FromConfig(cfg *luql.Config, include IncludeResolver) (*Chain, error) {
	chain := NewChain()

	if include != nil {
		expander := NewIncludeExpander(include, cfg.ParserOptions()...)
		expander.MissingIsError = cfg.IncludeRequired
		chain.Add(PriorityExpandIncludes, expander)
	}

	if len(cfg.Aliases) > 0 {
		aliases := AliasMap(cfg.Aliases)

		var resolver FieldResolver
		if cfg.HierarchicalAliases {
			resolver = aliases.HierarchicalResolver()
		} else {
			resolver = aliases.Resolver()
		}

		chain.Add(PriorityResolveFields, NewFieldResolver(resolver))
	}

	if len(cfg.DateFields) > 0 {
		loc := time.UTC

		if cfg.Timezone != "" {
			parsed, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return nil, err
			}

			loc = parsed
		}

		chain.Add(PriorityDateMath, NewDateMathEvaluator(DateMathConfig{
			IsDateField: cfg.IsDateField,
			Location:    loc,
		}))
	}

	chain.Add(PriorityValidate, NewValidator(ValidationOptions{
		AllowedFields:            cfg.AllowedFields,
		DeniedFields:             cfg.DeniedFields,
		AllowLeadingWildcards:    cfg.AllowsLeadingWildcards(),
		AllowWildcardOnlyQueries: cfg.AllowsWildcardOnlyQueries(),
		MaxDepth:                 cfg.MaxDepth,
		MaxClauseCount:           cfg.MaxClauseCount,
	}))

	return chain, nil
}
