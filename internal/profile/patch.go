package profile

import "strings"

// StudentPatch is a sparse update: only non-nil fields are applied.
type StudentPatch struct {
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Major     *string   `json:"major,omitempty"`
	Skills    *[]string `json:"skills,omitempty"`
	Interests *[]string `json:"interests,omitempty"`
}

// Apply writes the provided fields onto s.
func (p StudentPatch) Apply(s *Student) {
	setString(&s.FirstName, p.FirstName)
	setString(&s.LastName, p.LastName)
	setString(&s.Major, p.Major)
	setTokens(&s.Skills, p.Skills)
	setTokens(&s.Interests, p.Interests)
}

// Empty reports whether the patch carries no fields.
func (p StudentPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Major == nil &&
		p.Skills == nil && p.Interests == nil
}

// MentorPatch is the mentor counterpart of StudentPatch.
type MentorPatch struct {
	FirstName      *string   `json:"first_name,omitempty"`
	LastName       *string   `json:"last_name,omitempty"`
	JobTitle       *string   `json:"job_title,omitempty"`
	Company        *string   `json:"company,omitempty"`
	ExpertiseAreas *[]string `json:"expertise_areas,omitempty"`
	Skills         *[]string `json:"skills,omitempty"`
	Interests      *[]string `json:"interests,omitempty"`
}

// Apply writes the provided fields onto m.
func (p MentorPatch) Apply(m *Mentor) {
	setString(&m.FirstName, p.FirstName)
	setString(&m.LastName, p.LastName)
	setString(&m.JobTitle, p.JobTitle)
	setString(&m.Company, p.Company)
	setTokens(&m.ExpertiseAreas, p.ExpertiseAreas)
	setTokens(&m.Skills, p.Skills)
	setTokens(&m.Interests, p.Interests)
}

// Empty reports whether the patch carries no fields.
func (p MentorPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.JobTitle == nil &&
		p.Company == nil && p.ExpertiseAreas == nil && p.Skills == nil && p.Interests == nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setTokens(dst *Tokens, v *[]string) {
	if v != nil {
		*dst = FromList(*v)
	}
}
