package engine

import (
	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// sensitiveCategories always require explicit consent before a fact
// can leave the store.
var sensitiveCategories = map[string]bool{
	"health":    true,
	"financial": true,
	"biometric": true,
	"special":   true,
}

// FilterOptions narrows which facts a privacy filter pass lets
// through.
type FilterOptions struct {
	IncludeCategory string
	ExcludeCategory string
	UserConsentOnly bool
}

// FilterFacts applies the privacy rules in order: confidential facts
// are dropped unconditionally, sensitive categories require granted
// consent, then include/exclude category filters, then the
// consent-only gate. Every path that exposes fact content outside the
// store must pass through here.
func FilterFacts(facts []*types.MemoryFact, opts FilterOptions) []*types.MemoryFact {
	filtered := make([]*types.MemoryFact, 0, len(facts))
	for _, fact := range facts {
		if fact.Privacy.Level == types.PrivacyConfidential {
			continue
		}
		if sensitiveCategories[fact.Privacy.DataCategory] && !fact.Privacy.UserConsent.Granted {
			continue
		}
		if opts.IncludeCategory != "" && fact.Privacy.DataCategory != opts.IncludeCategory {
			continue
		}
		if opts.ExcludeCategory != "" && fact.Privacy.DataCategory == opts.ExcludeCategory {
			continue
		}
		if opts.UserConsentOnly && !fact.Privacy.UserConsent.Granted {
			continue
		}
		filtered = append(filtered, fact)
	}
	return filtered
}

// FilterScored is FilterFacts over scored retrieval results.
func FilterScored(scored []ScoredFact, opts FilterOptions) []ScoredFact {
	filtered := make([]ScoredFact, 0, len(scored))
	for _, sf := range scored {
		if len(FilterFacts([]*types.MemoryFact{sf.Fact}, opts)) == 1 {
			filtered = append(filtered, sf)
		}
	}
	return filtered
}
