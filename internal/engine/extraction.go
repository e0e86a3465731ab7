package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// extractionConfidence is the fixed confidence for pattern-extracted
// facts. Low-precision extraction is bounded by deduplication and
// decay, not by per-rule tuning.
const extractionConfidence = 0.8

// Candidate is a fact extracted from a single user turn, before
// deduplication and persistence.
type Candidate struct {
	Content      string
	Type         types.FactType
	Namespace    types.Namespace
	Valence      float64
	MessageID    string
	applyProfile func(p *types.UserProfile, at time.Time)
}

// ApplyToProfile folds the candidate's signal into the profile, when
// the rule that produced it carries a profile mapping.
func (c Candidate) ApplyToProfile(p *types.UserProfile, at time.Time) {
	if c.applyProfile != nil {
		c.applyProfile(p, at)
	}
}

type extractionRule struct {
	pattern *regexp.Regexp
	build   func(value string) Candidate
}

// The name rule keeps the capture case-sensitive so "I'm working on"
// does not read "working" as a name.
var extractionRules = []extractionRule{
	{
		pattern: regexp.MustCompile(`\b(?:I'm|I am|[Mm]y name is|[Cc]all me)\s+([A-Z][a-z]+)\b`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User's name is " + value,
				Type:      types.TypeFact,
				Namespace: types.Namespace{Category: "personal", Topic: "identity"},
				applyProfile: func(p *types.UserProfile, at time.Time) {
					p.Personal.Name.Set(value, extractionConfidence, "conversation", at)
				},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bI work as (?:a |an )?([^,.!?\n]+)`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User works as a " + value,
				Type:      types.TypeFact,
				Namespace: types.Namespace{Category: "work", Topic: "occupation"},
				applyProfile: func(p *types.UserProfile, at time.Time) {
					p.Personal.Role.Set(value, extractionConfidence, "conversation", at)
				},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bI (?:want|would like|am trying|aim) to learn ([^,.!?\n]+)`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User wants to learn " + value,
				Type:      types.TypeGoal,
				Namespace: types.Namespace{Category: "learning", Topic: "goal"},
				applyProfile: func(p *types.UserProfile, at time.Time) {
					p.AddGoal("learn "+value, "learning", at)
					p.AddInterest(value, at)
				},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bI (?:prefer|like|love|enjoy) ([^,.!?\n]+)`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User likes " + value,
				Type:      types.TypePreference,
				Namespace: types.Namespace{Category: "preferences", Topic: "general"},
				Valence:   0.4,
				applyProfile: func(p *types.UserProfile, at time.Time) {
					p.AddInterest(value, at)
				},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bI(?:'m| am) (?:currently )?working on ([^,.!?\n]+)`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User is working on " + value,
				Type:      types.TypeExperience,
				Namespace: types.Namespace{Category: "work", Topic: "current_activity"},
			}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)\bI(?:'m| am) interested in ([^,.!?\n]+)`),
		build: func(value string) Candidate {
			return Candidate{
				Content:   "User is interested in " + value,
				Type:      types.TypePreference,
				Namespace: types.Namespace{Category: "learning", Topic: "interest"},
				applyProfile: func(p *types.UserProfile, at time.Time) {
					p.AddInterest(value, at)
				},
			}
		},
	},
}

// ExtractCandidates runs the pattern rules over the user-authored
// turns of a conversation. Assistant turns are never a source of facts
// about the user.
func ExtractCandidates(turns []*types.ConversationTurn) []Candidate {
	var candidates []Candidate
	for _, turn := range turns {
		if turn.Role != types.RoleUser {
			continue
		}
		for _, rule := range extractionRules {
			for _, match := range rule.pattern.FindAllStringSubmatch(turn.Content, -1) {
				value := strings.TrimSpace(match[1])
				if value == "" {
					continue
				}
				candidate := rule.build(value)
				candidate.MessageID = turn.ID
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}
