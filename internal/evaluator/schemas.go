package evaluator

import (
	"sort"
	"strings"

	_ "embed"

	"github.com/spigell/resume-evaluator/internal/schema"
)

//go:embed schemas/candidate_profile.json
var candidateProfileSchema []byte

//go:embed schemas/job_description.json
var jobDescriptionSchema []byte

//go:embed schemas/fit_evaluation.json
var fitEvaluationSchema []byte

var (
	CandidateProfileSchema = schema.MustNew("candidate_profile", candidateProfileSchema)
	JobDescriptionSchema   = schema.MustNew("job_description", jobDescriptionSchema)
	FitEvaluationSchema    = schema.MustNew("fit_evaluation", fitEvaluationSchema)
)

var schemasByStage = map[string]*schema.Schema{
	"candidate": CandidateProfileSchema,
	"job":       JobDescriptionSchema,
	"fit":       FitEvaluationSchema,
}

// SchemaFor looks a schema up by stage alias (candidate, job, fit) or by its full name.
func SchemaFor(name string) (*schema.Schema, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if s, ok := schemasByStage[name]; ok {
		return s, true
	}
	for _, s := range schemasByStage {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// SchemaAliases returns the stage aliases accepted by SchemaFor, sorted.
func SchemaAliases() []string {
	aliases := make([]string, 0, len(schemasByStage))
	for alias := range schemasByStage {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}
