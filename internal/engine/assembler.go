package engine

import (
	"fmt"
	"strings"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/pkg/types"
)

// DefaultContextTokenBudget is the total token allowance for one
// assembled context block.
const DefaultContextTokenBudget = 2000

// Budget shares per section. The profile section occupies the budget
// slice reserved for the system prompt; a caller that prepends its own
// system prompt instead should pass a budget reduced by that prompt's
// size. The buffer share is left unallocated as headroom against
// estimation error.
const (
	shareProfile   = 0.25
	shareShortTerm = 0.20
	shareWorking   = 0.20
	shareLongTerm  = 0.20
	shareCurrent   = 0.10
)

// EstimateTokens approximates the token count of a text as
// ceil(len/4). Good enough for budgeting, cheap enough for the
// request path.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// AssemblyInput is everything the assembler merges into one block.
type AssemblyInput struct {
	Profile        *types.UserProfile
	LongTerm       []ScoredFact
	WorkingSummary string
	ShortTerm      []*types.ConversationTurn
	CurrentMessage string
	TokenBudget    int
}

// AssembledContext is the final prompt block plus its token
// accounting.
type AssembledContext struct {
	Text          string         `json:"text"`
	TokensUsed    int            `json:"tokens_used"`
	TokenBudget   int            `json:"token_budget"`
	SectionTokens map[string]int `json:"section_tokens"`
	FactIDs       []string       `json:"fact_ids"`
}

// ContextAssembler merges the memory tiers into one token-budgeted
// text block. Each section gets a fixed share of the budget; content
// that does not fit its share is dropped whole, never truncated
// mid-fact.
type ContextAssembler struct {
	budget int
}

func NewContextAssembler(budget int) *ContextAssembler {
	if budget <= 0 {
		budget = DefaultContextTokenBudget
	}
	return &ContextAssembler{budget: budget}
}

// Assemble builds the context block in tier order: profile, long-term
// facts by relevance, the working-memory summary, then the verbatim
// short-term turns and current message. The result never exceeds the
// budget.
func (a *ContextAssembler) Assemble(in AssemblyInput) AssembledContext {
	budget := in.TokenBudget
	if budget <= 0 {
		budget = a.budget
	}

	out := AssembledContext{
		TokenBudget:   budget,
		SectionTokens: make(map[string]int),
	}

	var sections []string
	remaining := budget

	appendSection := func(name, text string, share float64) {
		if text == "" {
			return
		}
		limit := int(float64(budget) * share)
		if limit > remaining {
			limit = remaining
		}
		tokens := EstimateTokens(text)
		if tokens > limit {
			return
		}
		sections = append(sections, text)
		out.SectionTokens[name] = tokens
		remaining -= tokens
	}

	appendSection("profile", formatProfile(in.Profile), shareProfile)

	longTerm, factIDs := formatLongTerm(in.LongTerm, int(float64(budget)*shareLongTerm))
	if longTerm != "" && EstimateTokens(longTerm) <= remaining {
		sections = append(sections, longTerm)
		out.SectionTokens["long_term"] = EstimateTokens(longTerm)
		out.FactIDs = factIDs
		remaining -= EstimateTokens(longTerm)
	}

	if in.WorkingSummary != "" {
		appendSection("working", "## Earlier in this conversation\n"+in.WorkingSummary, shareWorking)
	}
	appendSection("short_term", formatShortTerm(in.ShortTerm), shareShortTerm)
	if in.CurrentMessage != "" {
		appendSection("current", "## Current message\n"+in.CurrentMessage, shareCurrent)
	}

	out.Text = strings.Join(sections, "\n\n")
	out.TokensUsed = EstimateTokens(out.Text)
	return out
}

func formatProfile(profile *types.UserProfile) string {
	if profile == nil {
		return ""
	}

	var lines []string
	if profile.Personal.Name.Value != "" {
		lines = append(lines, "Name: "+profile.Personal.Name.Value)
	}
	if profile.Personal.Role.Value != "" {
		lines = append(lines, "Role: "+profile.Personal.Role.Value)
	}
	if len(profile.Professional.Skills) > 0 {
		lines = append(lines, "Skills: "+strings.Join(profile.Professional.Skills, ", "))
	}
	if len(profile.Learning.Interests) > 0 {
		topics := make([]string, 0, len(profile.Learning.Interests))
		for _, i := range profile.Learning.Interests {
			topics = append(topics, i.Topic)
		}
		lines = append(lines, "Interests: "+strings.Join(topics, ", "))
	}
	if len(profile.Learning.Goals) > 0 {
		goals := make([]string, 0, len(profile.Learning.Goals))
		for _, g := range profile.Learning.Goals {
			goals = append(goals, g.Goal)
		}
		lines = append(lines, "Goals: "+strings.Join(goals, ", "))
	}
	if profile.Preferences.Communication != "" {
		lines = append(lines, "Communication style: "+profile.Preferences.Communication)
	}

	if len(lines) == 0 {
		return ""
	}
	return "## About the student\n" + strings.Join(lines, "\n")
}

// formatLongTerm packs facts in relevance order and stops at the first
// fact that would overflow the section limit. Facts are dropped whole,
// never truncated mid-fact.
func formatLongTerm(scored []ScoredFact, limit int) (string, []string) {
	if len(scored) == 0 {
		return "", nil
	}

	header := "## Relevant memories\n"
	used := EstimateTokens(header)
	var (
		lines   []string
		factIDs []string
	)
	for _, sf := range scored {
		line := fmt.Sprintf("- %s", sf.Fact.Content)
		cost := EstimateTokens(line + "\n")
		if used+cost > limit {
			break
		}
		lines = append(lines, line)
		factIDs = append(factIDs, sf.Fact.ID)
		used += cost
	}
	if len(lines) == 0 {
		return "", nil
	}
	return header + strings.Join(lines, "\n"), factIDs
}

func formatShortTerm(turns []*types.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Recent turns\n")
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", turn.Role, turn.Content)
	}
	return b.String()
}
