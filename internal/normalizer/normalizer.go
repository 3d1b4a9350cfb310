// Package normalizer implements the Query Normalizer (C10): coerces query
// literals to per-attribute canonical forms before they reach the adapter.
package normalizer

import (
	"github.com/kailas-cloud/docbase/internal/domain"
	"github.com/kailas-cloud/docbase/internal/domain/query"
)

// Normalizer rewrites datetime query values through clock so backend
// comparisons see a consistent zone representation.
type Normalizer struct {
	clock domain.Clock
}

// New builds a Normalizer against clock.
func New(clock domain.Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Normalize rewrites every query value targeting a datetime attribute of
// collection through the datetime normalizer.
func (n *Normalizer) Normalize(collection domain.Collection, queries []query.Query) []query.Query {
	out := make([]query.Query, len(queries))
	for i, q := range queries {
		attr, ok := collection.AttributeByID(q.GetAttribute())
		if !ok || attr.Type != domain.TypeDatetime {
			out[i] = q
			continue
		}
		values := q.GetValues()
		rewritten := make([]any, len(values))
		for j, v := range values {
			if s, ok := v.(string); ok {
				rewritten[j] = n.clock.Canonicalize(s)
			} else {
				rewritten[j] = v
			}
		}
		out[i] = q.SetValues(rewritten)
	}
	return out
}
