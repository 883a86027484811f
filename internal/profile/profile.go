package profile

import "time"

// Student is a student profile as seen by the matching engine.
type Student struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Major     string    `json:"major"`
	Skills    Tokens    `json:"skills"`
	Interests Tokens    `json:"interests"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mentor is a mentor profile. ExpertiseAreas plays the role the major plays
// for students.
type Mentor struct {
	ID             int64     `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	JobTitle       string    `json:"job_title"`
	Company        string    `json:"company"`
	ExpertiseAreas Tokens    `json:"expertise_areas"`
	Skills         Tokens    `json:"skills"`
	Interests      Tokens    `json:"interests"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InternshipStatus is the lifecycle state of an internship posting.
type InternshipStatus string

const (
	InternshipPending InternshipStatus = "pending"
	InternshipActive  InternshipStatus = "active"
	InternshipClosed  InternshipStatus = "closed"
	InternshipFilled  InternshipStatus = "filled"
)

// Internship is a posted internship. Only active internships take part in
// matching.
type Internship struct {
	ID             int64            `json:"id"`
	Title          string           `json:"title"`
	CompanyName    string           `json:"company_name"`
	Description    string           `json:"description"`
	Requirements   string           `json:"requirements"`
	SkillsRequired Tokens           `json:"skills_required"`
	Status         InternshipStatus `json:"status"`
}

// IsActive reports whether the internship participates in matching.
func (i Internship) IsActive() bool {
	return i.Status == InternshipActive
}
