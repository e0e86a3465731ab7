package engine

import (
	"testing"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

func privacyFact(id string, level types.PrivacyLevel, category string, consent bool) *types.MemoryFact {
	fact := activeFact(id, "u1", "content of "+id, time.Now())
	fact.Privacy = types.Privacy{
		Level:        level,
		DataCategory: category,
		UserConsent:  types.Consent{Granted: consent},
	}
	return fact
}

func TestFilterDropsConfidentialUnconditionally(t *testing.T) {
	facts := []*types.MemoryFact{
		privacyFact("secret", types.PrivacyConfidential, "", true),
		privacyFact("open", types.PrivacyPublic, "", false),
	}

	options := []FilterOptions{
		{},
		{UserConsentOnly: true},
		{IncludeCategory: ""},
		{ExcludeCategory: "other"},
	}
	for _, opts := range options {
		for _, fact := range FilterFacts(facts, opts) {
			if fact.Privacy.Level == types.PrivacyConfidential {
				t.Errorf("confidential fact %s passed filter with opts %+v", fact.ID, opts)
			}
		}
	}
}

func TestFilterSensitiveCategoriesRequireConsent(t *testing.T) {
	cases := []struct {
		category string
		consent  bool
		want     bool
	}{
		{"health", false, false},
		{"health", true, true},
		{"financial", false, false},
		{"biometric", false, false},
		{"special", false, false},
		{"learning", false, true},
	}

	for _, tc := range cases {
		fact := privacyFact("f", types.PrivacyRestricted, tc.category, tc.consent)
		got := len(FilterFacts([]*types.MemoryFact{fact}, FilterOptions{})) == 1
		if got != tc.want {
			t.Errorf("category=%s consent=%v: passed=%v, want %v", tc.category, tc.consent, got, tc.want)
		}
	}
}

func TestFilterIncludeExcludeCategories(t *testing.T) {
	facts := []*types.MemoryFact{
		privacyFact("a", types.PrivacyPublic, "learning", false),
		privacyFact("b", types.PrivacyPublic, "work", false),
	}

	included := FilterFacts(facts, FilterOptions{IncludeCategory: "learning"})
	if len(included) != 1 || included[0].ID != "a" {
		t.Errorf("include filter returned %d facts", len(included))
	}

	excluded := FilterFacts(facts, FilterOptions{ExcludeCategory: "learning"})
	if len(excluded) != 1 || excluded[0].ID != "b" {
		t.Errorf("exclude filter returned %d facts", len(excluded))
	}
}

func TestFilterUserConsentOnly(t *testing.T) {
	facts := []*types.MemoryFact{
		privacyFact("consented", types.PrivacyPublic, "learning", true),
		privacyFact("unconsented", types.PrivacyPublic, "learning", false),
	}

	got := FilterFacts(facts, FilterOptions{UserConsentOnly: true})
	if len(got) != 1 || got[0].ID != "consented" {
		t.Errorf("consent-only filter returned %d facts", len(got))
	}
}
