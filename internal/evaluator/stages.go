package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/resume-evaluator/internal/ai"
)

//go:embed prompts/candidate_profile.md
var profilePrompt string

//go:embed prompts/job_description.md
var jobPrompt string

//go:embed prompts/fit_evaluation.md
var fitPrompt string

const (
	profileUserTemplate = "Extract the candidate profile from the following resume text:\n\n{{RESUME_TEXT}}"
	jobUserTemplate     = "Extract the job description details from the following text:\n\n{{JOB_TEXT}}"
	fitUserTemplate     = `Evaluate the candidate's fit for this job:

CANDIDATE PROFILE:
{{PROFILE_JSON}}

JOB DESCRIPTION:
{{JOB_JSON}}

Provide a detailed evaluation including:
- Fit score (0-100)
- Whether they are a fit (score >= 70)
- Summary of fit
- Key strengths
- Gaps or missing qualifications
- Recommendations for improvement
- Missing keywords from the job description
- Any risk flags or concerns`
)

// ExtractProfile turns resume text into a CandidateProfile with one generation call.
func ExtractProfile(ctx context.Context, gen ai.Generator, resumeText string) (*CandidateProfile, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, invalidInput("resume text is required for profile extraction")
	}

	var profile CandidateProfile
	user := strings.ReplaceAll(profileUserTemplate, "{{RESUME_TEXT}}", resumeText)
	if err := gen.Generate(ctx, CandidateProfileSchema, profilePrompt, user, &profile); err != nil {
		return nil, fmt.Errorf("extract candidate profile: %w", err)
	}

	profile.normalize()
	return &profile, nil
}

// ExtractJobDescription turns job posting text into a JobDescription with one generation call.
func ExtractJobDescription(ctx context.Context, gen ai.Generator, jobText string) (*JobDescription, error) {
	if strings.TrimSpace(jobText) == "" {
		return nil, invalidInput("job description text is required")
	}

	var job JobDescription
	user := strings.ReplaceAll(jobUserTemplate, "{{JOB_TEXT}}", jobText)
	if err := gen.Generate(ctx, JobDescriptionSchema, jobPrompt, user, &job); err != nil {
		return nil, fmt.Errorf("extract job description: %w", err)
	}

	job.normalize()
	return &job, nil
}

// EvaluateFit scores the profile against the job. The returned IsFit is recomputed from the
// score and never taken from the model.
func EvaluateFit(ctx context.Context, gen ai.Generator, profile *CandidateProfile, job *JobDescription) (*FitEvaluation, error) {
	if profile == nil || job == nil {
		return nil, invalidInput("candidate profile and job description are required for evaluation")
	}

	user, err := fitUserContent(profile, job)
	if err != nil {
		return nil, err
	}

	var evaluation FitEvaluation
	if err := gen.Generate(ctx, FitEvaluationSchema, fitPrompt, user, &evaluation); err != nil {
		return nil, fmt.Errorf("evaluate fit: %w", err)
	}

	evaluation.normalize()
	return ApplyFitThreshold(evaluation), nil
}

// ApplyFitThreshold returns a copy of e with IsFit set to FitScore >= FitThreshold.
func ApplyFitThreshold(e FitEvaluation) *FitEvaluation {
	e.IsFit = e.FitScore >= FitThreshold
	return &e
}

func fitUserContent(profile *CandidateProfile, job *JobDescription) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate profile: %w", err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job description: %w", err)
	}

	replacer := strings.NewReplacer("{{PROFILE_JSON}}", string(profileJSON), "{{JOB_JSON}}", string(jobJSON))
	return replacer.Replace(fitUserTemplate), nil
}
