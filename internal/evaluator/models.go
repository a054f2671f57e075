package evaluator

import "strings"

// FitThreshold is the lowest fit score that counts as a fit.
const FitThreshold = 70

const missingSummary = "No professional summary could be derived from the resume."

type Education struct {
	Institution    string   `json:"institution"`
	Degree         string   `json:"degree"`
	FieldOfStudy   *string  `json:"field_of_study"`
	GraduationYear *int     `json:"graduation_year"`
	GPA            *float64 `json:"gpa"`
}

type Role struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	Location     *string  `json:"location"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          *string  `json:"url"`
	Role         *string  `json:"role"`
}

// CandidateProfile is the structured form of a resume.
type CandidateProfile struct {
	Name            *string     `json:"name"`
	Email           *string     `json:"email"`
	Phone           *string     `json:"phone"`
	Location        *string     `json:"location"`
	YearsExperience *float64    `json:"years_experience"`
	Summary         string      `json:"summary"`
	SkillsPrimary   []string    `json:"skills_primary"`
	SkillsSecondary []string    `json:"skills_secondary"`
	Certifications  []string    `json:"certifications"`
	Education       []Education `json:"education"`
	WorkExperience  []Role      `json:"work_experience"`
	Projects        []Project   `json:"projects"`
	Keywords        []string    `json:"keywords"`
}

// JobDescription is the structured form of a job posting.
type JobDescription struct {
	Title            string   `json:"title"`
	Company          *string  `json:"company"`
	Location         *string  `json:"location"`
	Summary          string   `json:"summary"`
	Responsibilities []string `json:"responsibilities"`
	RequiredSkills   []string `json:"required_skills"`
	PreferredSkills  []string `json:"preferred_skills"`
	Qualifications   []string `json:"qualifications"`
	Seniority        *string  `json:"seniority"`
	Keywords         []string `json:"keywords"`
}

// FitEvaluation scores a candidate against a job. IsFit always equals FitScore >= FitThreshold
// once the fit stage has returned it.
type FitEvaluation struct {
	FitScore        int      `json:"fit_score"`
	IsFit           bool     `json:"is_fit"`
	FitSummary      string   `json:"fit_summary"`
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
	MissingKeywords []string `json:"missing_keywords"`
	RiskFlags       []string `json:"risk_flags"`
}

// EvaluationResult is the only output of a pipeline run.
type EvaluationResult struct {
	CandidateProfile *CandidateProfile `json:"candidate_profile"`
	JobDescription   *JobDescription   `json:"job_description"`
	Evaluation       *FitEvaluation    `json:"evaluation"`
}

func (p *CandidateProfile) normalize() {
	if strings.TrimSpace(p.Summary) == "" {
		p.Summary = missingSummary
	}
	p.SkillsPrimary = nonNil(p.SkillsPrimary)
	p.SkillsSecondary = nonNil(p.SkillsSecondary)
	p.Certifications = nonNil(p.Certifications)
	p.Keywords = nonNil(p.Keywords)
	p.Education = nonNil(p.Education)
	p.WorkExperience = nonNil(p.WorkExperience)
	p.Projects = nonNil(p.Projects)

	for i := range p.WorkExperience {
		p.WorkExperience[i].Achievements = nonNil(p.WorkExperience[i].Achievements)
	}
	for i := range p.Projects {
		p.Projects[i].Technologies = nonNil(p.Projects[i].Technologies)
	}
}

func (j *JobDescription) normalize() {
	j.Responsibilities = nonNil(j.Responsibilities)
	j.RequiredSkills = nonNil(j.RequiredSkills)
	j.PreferredSkills = nonNil(j.PreferredSkills)
	j.Qualifications = nonNil(j.Qualifications)
	j.Keywords = nonNil(j.Keywords)
}

func (f *FitEvaluation) normalize() {
	f.Strengths = nonNil(f.Strengths)
	f.Gaps = nonNil(f.Gaps)
	f.Recommendations = nonNil(f.Recommendations)
	f.MissingKeywords = nonNil(f.MissingKeywords)
	f.RiskFlags = nonNil(f.RiskFlags)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
