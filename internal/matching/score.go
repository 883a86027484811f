package matching

import (
	"strings"

	"github.com/uniportal/internship-portal/internal/profile"
)

// Scoring weights. A common skill counts for SkillsWeight, a common interest
// for InterestsWeight, and a major/expertise alignment adds a flat
// MajorMatchWeight.
const (
	SkillsWeight     = 50.0
	InterestsWeight  = 30.0
	MajorMatchWeight = 20.0

	// SuggestionThreshold is the minimum score (inclusive) for a pair to be
	// suggested.
	SuggestionThreshold = 30.0

	maxScore = 100.0
)

// Breakdown explains how a score was derived.
type Breakdown struct {
	CommonSkills    []string `json:"common_skills"`
	CommonInterests []string `json:"common_interests,omitempty"`
	MajorMatch      bool     `json:"major_match"`
	Raw             float64  `json:"raw"`
	Denominator     float64  `json:"denominator"`
	Score           float64  `json:"score"`
}

// MentorScore returns the student–mentor compatibility score in [0, 100].
func MentorScore(s profile.Student, m profile.Mentor) float64 {
	return ExplainMentorScore(s, m).Score
}

// ExplainMentorScore computes the student–mentor score with its breakdown.
//
// The raw score sums weighted skill and interest overlaps plus the major
// bonus; it is normalized by the best overlap the smaller side could reach,
// min(|a|,|b|) per attribute, plus the always-present major term.
func ExplainMentorScore(s profile.Student, m profile.Mentor) Breakdown {
	commonSkills := s.Skills.Intersect(m.Skills)
	commonInterests := s.Interests.Intersect(m.Interests)

	raw := float64(commonSkills.Len())*SkillsWeight +
		float64(commonInterests.Len())*InterestsWeight

	major := majorInExpertise(s.Major, m.ExpertiseAreas)
	if major {
		raw += MajorMatchWeight
	}

	denominator := float64(min(s.Skills.Len(), m.Skills.Len()))*SkillsWeight +
		float64(min(s.Interests.Len(), m.Interests.Len()))*InterestsWeight +
		MajorMatchWeight

	return Breakdown{
		CommonSkills:    commonSkills.Sorted(),
		CommonInterests: commonInterests.Sorted(),
		MajorMatch:      major,
		Raw:             raw,
		Denominator:     denominator,
		Score:           normalize(raw, denominator),
	}
}

// InternshipScore returns the student–internship compatibility score in
// [0, 100].
func InternshipScore(s profile.Student, in profile.Internship) float64 {
	return ExplainInternshipScore(s, in).Score
}

// ExplainInternshipScore computes the student–internship score with its
// breakdown. The major bonus applies when the student's major appears
// anywhere in the description or requirements text.
func ExplainInternshipScore(s profile.Student, in profile.Internship) Breakdown {
	commonSkills := s.Skills.Intersect(in.SkillsRequired)
	raw := float64(commonSkills.Len()) * SkillsWeight

	major := majorInText(s.Major, in.Description, in.Requirements)
	if major {
		raw += MajorMatchWeight
	}

	denominator := float64(min(s.Skills.Len(), in.SkillsRequired.Len()))*SkillsWeight +
		MajorMatchWeight

	return Breakdown{
		CommonSkills: commonSkills.Sorted(),
		MajorMatch:   major,
		Raw:          raw,
		Denominator:  denominator,
		Score:        normalize(raw, denominator),
	}
}

func majorInExpertise(major string, expertise profile.Tokens) bool {
	m := profile.NormalizeToken(major)
	return m != "" && expertise.Contains(m)
}

func majorInText(major string, texts ...string) bool {
	m := profile.NormalizeToken(major)
	if m == "" {
		return false
	}
	for _, text := range texts {
		if strings.Contains(profile.NormalizeToken(text), m) {
			return true
		}
	}
	return false
}

// normalize scales raw to a percentage of denominator and clamps the result
// to [0, 100]. A zero denominator scores 0.
func normalize(raw, denominator float64) float64 {
	if denominator <= 0 {
		return 0
	}
	return clamp(raw / denominator * maxScore)
}

func clamp(score float64) float64 {
	return max(0, min(maxScore, score))
}
