package types

import "time"

// ProfileField is a single consolidated profile value with provenance.
type ProfileField struct {
	Value       string    `json:"value"`
	Confidence  float64   `json:"confidence"`
	LastUpdated time.Time `json:"last_updated"`
	Source      string    `json:"source,omitempty"`
}

// Set updates the field only when the new observation is at least as
// confident and does not move LastUpdated backwards.
func (p *ProfileField) Set(value string, confidence float64, source string, at time.Time) {
	if value == "" {
		return
	}
	if at.Before(p.LastUpdated) {
		return
	}
	if p.Value != "" && confidence < p.Confidence {
		return
	}
	p.Value = value
	p.Confidence = confidence
	p.Source = source
	p.LastUpdated = at
}

// Interest is a learning topic the user has shown interest in.
type Interest struct {
	Topic         string    `json:"topic"`
	Strength      float64   `json:"strength"`
	Expertise     string    `json:"expertise,omitempty"`
	LastDiscussed time.Time `json:"last_discussed"`
}

// LearningGoal is a stated learning objective.
type LearningGoal struct {
	Goal      string    `json:"goal"`
	Category  string    `json:"category,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PersonalInfo holds identity fields consolidated from conversation.
type PersonalInfo struct {
	Name ProfileField `json:"name"`
	Role ProfileField `json:"role"`
}

// ProfessionalInfo holds work-related profile data.
type ProfessionalInfo struct {
	Skills []string `json:"skills,omitempty"`
}

// LearningInfo holds the user's learning interests and goals.
type LearningInfo struct {
	Interests []Interest     `json:"interests,omitempty"`
	Goals     []LearningGoal `json:"goals,omitempty"`
}

// PreferenceInfo holds consolidated user preferences.
type PreferenceInfo struct {
	Communication string `json:"communication,omitempty"`
}

// ProfileMeta carries derived bookkeeping about the profile itself.
type ProfileMeta struct {
	TotalMemories        int       `json:"total_memories"`
	ProfileCompleteness  float64   `json:"profile_completeness"`
	LastUpdated          time.Time `json:"last_updated"`
}

// UserProfile is the per-user consolidated summary derived from facts.
// Fields are monotonically refreshed: LastUpdated only moves forward.
type UserProfile struct {
	UserID       string           `json:"user_id"`
	Personal     PersonalInfo     `json:"personal"`
	Professional ProfessionalInfo `json:"professional"`
	Learning     LearningInfo     `json:"learning"`
	Preferences  PreferenceInfo   `json:"preferences"`
	Meta         ProfileMeta      `json:"meta"`
}

// NewUserProfile returns an empty profile for the given user.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{UserID: userID}
}

// Touch moves Meta.LastUpdated forward to at. Earlier timestamps are
// ignored so the field stays monotonic.
func (p *UserProfile) Touch(at time.Time) {
	if at.After(p.Meta.LastUpdated) {
		p.Meta.LastUpdated = at
	}
}

// Completeness recomputes the deterministic profile completeness score:
// the fraction of structured profile sections that are populated.
func (p *UserProfile) Completeness() float64 {
	sections := []bool{
		p.Personal.Name.Value != "",
		p.Personal.Role.Value != "",
		len(p.Professional.Skills) > 0,
		len(p.Learning.Interests) > 0,
		len(p.Learning.Goals) > 0,
		p.Preferences.Communication != "",
	}
	populated := 0
	for _, ok := range sections {
		if ok {
			populated++
		}
	}
	return float64(populated) / float64(len(sections))
}

// AddInterest records or refreshes a learning interest. Repeated mentions
// strengthen the interest instead of duplicating it.
func (p *UserProfile) AddInterest(topic string, at time.Time) {
	for i := range p.Learning.Interests {
		if p.Learning.Interests[i].Topic == topic {
			p.Learning.Interests[i].Strength = minFloat(1.0, p.Learning.Interests[i].Strength+0.1)
			if at.After(p.Learning.Interests[i].LastDiscussed) {
				p.Learning.Interests[i].LastDiscussed = at
			}
			return
		}
	}
	p.Learning.Interests = append(p.Learning.Interests, Interest{
		Topic:         topic,
		Strength:      0.5,
		LastDiscussed: at,
	})
}

// AddGoal records a learning goal once; repeated statements are ignored.
func (p *UserProfile) AddGoal(goal, category string, at time.Time) {
	for _, g := range p.Learning.Goals {
		if g.Goal == goal {
			return
		}
	}
	p.Learning.Goals = append(p.Learning.Goals, LearningGoal{
		Goal:      goal,
		Category:  category,
		Status:    "active",
		CreatedAt: at,
	})
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
