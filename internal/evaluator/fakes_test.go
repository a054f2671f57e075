package evaluator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/spigell/resume-evaluator/internal/schema"
)

type generateCall struct {
	schema string
	system string
	user   string
}

// fakeGenerator answers by schema name with a prepared record or error.
type fakeGenerator struct {
	mu      sync.Mutex
	records map[string]any
	errs    map[string]error
	calls   []generateCall
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{records: map[string]any{}, errs: map[string]error{}}
}

func (f *fakeGenerator) with(schemaName string, record any) *fakeGenerator {
	f.records[schemaName] = record
	return f
}

func (f *fakeGenerator) failing(schemaName string, err error) *fakeGenerator {
	f.errs[schemaName] = err
	return f
}

func (f *fakeGenerator) Generate(_ context.Context, s *schema.Schema, systemPrompt, userContent string, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, generateCall{schema: s.Name(), system: systemPrompt, user: userContent})
	record, ok := f.records[s.Name()]
	err := f.errs[s.Name()]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no record prepared for %s", s.Name())
	}

	target := reflect.ValueOf(out)
	value := reflect.ValueOf(record)
	if target.Kind() != reflect.Pointer || !value.Type().AssignableTo(target.Elem().Type()) {
		return errors.New("prepared record does not match output type")
	}
	target.Elem().Set(value)
	return nil
}

func (f *fakeGenerator) schemas() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		names = append(names, call.schema)
	}
	return names
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func strPtr(s string) *string { return &s }

func sampleProfile() CandidateProfile {
	return CandidateProfile{
		Name:            strPtr("John Doe"),
		Email:           strPtr("john.doe@example.com"),
		Summary:         "Experienced software engineer",
		SkillsPrimary:   []string{"Go", "PostgreSQL", "Docker"},
		SkillsSecondary: []string{"Communication"},
		Education: []Education{{
			Institution: "University of Example",
			Degree:      "BS Computer Science",
		}},
		WorkExperience: []Role{{
			Title:       "Software Engineer",
			Company:     "Tech Corp",
			Description: "Built backend services",
			StartDate:   strPtr("2020-01"),
			EndDate:     strPtr("Present"),
		}},
		Keywords: []string{"Go", "Docker"},
	}
}

func sampleJob() JobDescription {
	return JobDescription{
		Title:          "Senior Go Engineer",
		Company:        strPtr("Tech Corp"),
		Summary:        "Looking for an experienced Go engineer",
		RequiredSkills: []string{"Go", "Docker"},
		Seniority:      strPtr("Senior"),
	}
}

func sampleFit(score int, isFit bool) FitEvaluation {
	return FitEvaluation{
		FitScore:   score,
		IsFit:      isFit,
		FitSummary: "assessment",
		Strengths:  []string{"Go"},
	}
}
