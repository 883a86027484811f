package matching

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/internship-portal/internal/profile"
)

func student(skills, interests, major string) profile.Student {
	return profile.Student{
		ID:        1,
		Major:     major,
		Skills:    profile.Tokenize(skills),
		Interests: profile.Tokenize(interests),
	}
}

func mentor(skills, interests, expertise string) profile.Mentor {
	return profile.Mentor{
		ID:             1,
		Skills:         profile.Tokenize(skills),
		Interests:      profile.Tokenize(interests),
		ExpertiseAreas: profile.Tokenize(expertise),
	}
}

func TestMentorScore_WorkedExample(t *testing.T) {
	s := student("python, sql", "ai", "Computer Science")
	m := mentor("python, java", "ai, hiking", "Computer Science")

	b := ExplainMentorScore(s, m)

	assert.Equal(t, []string{"python"}, b.CommonSkills)
	assert.Equal(t, []string{"ai"}, b.CommonInterests)
	assert.True(t, b.MajorMatch)
	assert.Equal(t, 100.0, b.Raw)
	assert.Equal(t, 150.0, b.Denominator)
	assert.InDelta(t, 66.67, b.Score, 0.01)
	assert.GreaterOrEqual(t, b.Score, SuggestionThreshold)
}

func TestMentorScore_EmptyProfiles(t *testing.T) {
	assert.Equal(t, 0.0, MentorScore(profile.Student{}, profile.Mentor{}))
	assert.Equal(t, 0.0, MentorScore(student("", "", ""), mentor("go", "chess", "physics")))
}

func TestMentorScore_MinNormalization(t *testing.T) {
	ten := "python, java, go, rust, c, sql, bash, haskell, lua, ruby"

	narrow := MentorScore(student("python", "", ""), mentor(ten, "", ""))
	wide := MentorScore(student(ten, "", ""), mentor("python", "", ""))

	// One common skill out of a possible one: 50 / (1*50 + 20).
	assert.InDelta(t, 50.0/70.0*100, narrow, 1e-9)
	assert.InDelta(t, 50.0/70.0*100, wide, 1e-9)

	// A union-based denominator would have put this far below the bar.
	union := 50.0 / (10*SkillsWeight + MajorMatchWeight) * 100
	assert.Less(t, union, SuggestionThreshold)
	assert.Greater(t, narrow, SuggestionThreshold)

	// Swapping the skill lists only changes the score through the major bonus.
	withMajor := MentorScore(student("python", "", "Physics"), mentor(ten, "", "physics"))
	withoutMajor := MentorScore(student(ten, "", "Chemistry"), mentor("python", "", "physics"))
	assert.InDelta(t, 100.0, withMajor, 1e-9)
	assert.InDelta(t, 50.0/70.0*100, withoutMajor, 1e-9)
	assert.NotEqual(t, withMajor, withoutMajor)
}

func TestMentorScore_MajorOnly(t *testing.T) {
	s := student("", "", "  Mathematics ")
	m := mentor("", "", "mathematics, statistics")

	assert.Equal(t, 100.0, MentorScore(s, m))
}

func TestMentorScore_BlankMajorNeverMatches(t *testing.T) {
	b := ExplainMentorScore(student("go", "", ""), mentor("rust", "", ""))
	assert.False(t, b.MajorMatch)
	assert.Equal(t, 0.0, b.Score)
}

func TestMentorScore_AlwaysInRange(t *testing.T) {
	pool := []string{"go", "python", "sql", "ai", "ml", "web", "cloud", "math"}
	for i := 0; i < 64; i++ {
		var sk, in, mk, mi []string
		for j, tok := range pool {
			if i&(1<<(j%6)) != 0 {
				sk = append(sk, tok)
				mi = append(mi, tok)
			} else {
				mk = append(mk, tok)
				in = append(in, tok)
			}
		}
		s := profile.Student{Major: "math", Skills: profile.FromList(sk), Interests: profile.FromList(in)}
		m := profile.Mentor{ExpertiseAreas: profile.FromList([]string{"math"}), Skills: profile.FromList(append(mk, sk...)), Interests: profile.FromList(mi)}

		score := MentorScore(s, m)
		require.GreaterOrEqual(t, score, 0.0, fmt.Sprintf("case %d", i))
		require.LessOrEqual(t, score, 100.0, fmt.Sprintf("case %d", i))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw, den float64
		want     float64
	}{
		{"zero denominator", 50, 0, 0},
		{"half", 35, 70, 50},
		{"clamped high", 300, 100, 100},
		{"clamped low", -10, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.raw, tt.den))
		})
	}
}

func TestInternshipScore(t *testing.T) {
	s := student("go, sql", "", "Computer Science")

	tests := []struct {
		name string
		in   profile.Internship
		want float64
	}{
		{
			name: "major in requirements",
			in: profile.Internship{
				SkillsRequired: profile.Tokenize("go"),
				Requirements:   "Enrolled in a COMPUTER SCIENCE degree",
			},
			want: 100,
		},
		{
			name: "major in description",
			in: profile.Internship{
				SkillsRequired: profile.Tokenize("java, go"),
				Description:    "For computer science students",
			},
			// (50 + 20) / (2*50 + 20)
			want: 70.0 / 120.0 * 100,
		},
		{
			name: "no overlap",
			in:   profile.Internship{SkillsRequired: profile.Tokenize("java")},
			want: 0,
		},
		{
			name: "no skills required",
			in:   profile.Internship{Description: "anyone"},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InternshipScore(s, tt.in), 1e-9)
		})
	}
}

func TestRankInternships(t *testing.T) {
	s := student("go, sql", "", "physics")
	internships := []profile.Internship{
		{ID: 3, SkillsRequired: profile.Tokenize("go"), Status: profile.InternshipActive},
		{ID: 1, SkillsRequired: profile.Tokenize("go"), Status: profile.InternshipActive},
		{ID: 2, SkillsRequired: profile.Tokenize("go"), Status: profile.InternshipClosed},
		{ID: 4, SkillsRequired: profile.Tokenize("java"), Status: profile.InternshipActive},
		{ID: 5, SkillsRequired: profile.Tokenize("go, sql"), Description: "physics lab", Status: profile.InternshipActive},
	}

	ranked := RankInternships(s, internships)

	ids := make([]int64, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.Internship.ID)
		assert.GreaterOrEqual(t, r.Score, SuggestionThreshold)
	}
	assert.Equal(t, []int64{5, 1, 3}, ids)
}
