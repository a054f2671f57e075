package evaluator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-evaluator/internal/ai"
	"github.com/spigell/resume-evaluator/internal/retry"
)

func fullGenerator(score int, reported bool) *fakeGenerator {
	return newFakeGenerator().
		with("candidate_profile", sampleProfile()).
		with("job_description", sampleJob()).
		with("fit_evaluation", sampleFit(score, reported))
}

func TestEvaluateFitFlagFollowsScore(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		reported bool
		want     bool
	}{
		{name: "matching skills", score: 75, reported: false, want: true},
		{name: "major gaps", score: 40, reported: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(fullGenerator(tt.score, tt.reported), nil, zap.NewNop(), Config{})

			result, err := p.Evaluate(context.Background(), Input{
				ResumeText:         "resume",
				JobDescriptionText: "job",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.score, result.Evaluation.FitScore)
			assert.Equal(t, tt.want, result.Evaluation.IsFit)
			assert.Equal(t, "John Doe", *result.CandidateProfile.Name)
			assert.Equal(t, "Senior Go Engineer", result.JobDescription.Title)
		})
	}
}

func TestEvaluateRunsStagesInOrder(t *testing.T) {
	gen := fullGenerator(80, true)
	p := New(gen, nil, nil, Config{})

	_, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.NoError(t, err)

	assert.Equal(t, []string{"candidate_profile", "job_description", "fit_evaluation"}, gen.schemas())
}

func TestEvaluatePassesResumeTextThrough(t *testing.T) {
	gen := fullGenerator(80, true)
	extractor := &fakeExtractor{text: "from pdf"}
	p := New(gen, extractor, nil, Config{})

	text := "  Jane Roe\nGo developer  "
	_, err := p.Evaluate(context.Background(), Input{
		ResumeText:         text,
		ResumePDF:          []byte("%PDF-1.4"),
		JobDescriptionText: "job",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, extractor.calls)
	assert.True(t, strings.HasSuffix(gen.calls[0].user, text), "resume text must reach the profile stage unchanged")
}

func TestEvaluateExtractsTextFromPDF(t *testing.T) {
	gen := fullGenerator(80, true)
	extractor := &fakeExtractor{text: "page one\n\npage two"}
	p := New(gen, extractor, nil, Config{})

	_, err := p.Evaluate(context.Background(), Input{
		ResumePDF:          []byte("%PDF-1.4"),
		JobDescriptionText: "job",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls)
	assert.Contains(t, gen.calls[0].user, "page one\n\npage two")
}

func TestEvaluateFailsOnUnreadablePDFBeforeGeneration(t *testing.T) {
	tests := []struct {
		name      string
		extractor *fakeExtractor
	}{
		{name: "no text", extractor: &fakeExtractor{text: "  \n"}},
		{name: "extractor error", extractor: &fakeExtractor{err: errors.New("no text could be extracted")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := fullGenerator(80, true)
			p := New(gen, tt.extractor, nil, Config{})

			_, err := p.Evaluate(context.Background(), Input{ResumePDF: []byte("%PDF"), JobDescriptionText: "job"})
			require.ErrorIs(t, err, ErrUnreadableResume)
			assert.Equal(t, KindInput, Classify(err))
			assert.Empty(t, gen.calls)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageResolveText, se.Stage)
		})
	}
}

func TestEvaluateRejectsMissingInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{name: "empty job text", in: Input{ResumeText: "resume"}},
		{name: "blank job text", in: Input{ResumeText: "resume", JobDescriptionText: " \t\n"}},
		{name: "no resume", in: Input{JobDescriptionText: "job"}},
		{name: "blank resume text", in: Input{ResumeText: "   ", JobDescriptionText: "job"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := fullGenerator(80, true)
			extractor := &fakeExtractor{text: "pdf"}
			p := New(gen, extractor, nil, Config{})

			_, err := p.Evaluate(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, KindInput, Classify(err))
			assert.Empty(t, gen.calls)
			assert.Zero(t, extractor.calls)
		})
	}
}

func TestEvaluateStopsAfterFailedStage(t *testing.T) {
	transportErr := errors.New("connection refused")
	gen := fullGenerator(80, true).failing("candidate_profile", transportErr)
	p := New(gen, nil, nil, Config{})

	_, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.ErrorIs(t, err, transportErr)
	assert.Equal(t, KindTransport, Classify(err))
	assert.Equal(t, []string{"candidate_profile"}, gen.schemas())

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageExtractProfile, se.Stage)
}

func TestEvaluateParallelExtraction(t *testing.T) {
	gen := fullGenerator(90, false)
	p := New(gen, nil, nil, Config{ParallelExtraction: true})

	result, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.NoError(t, err)

	assert.True(t, result.Evaluation.IsFit)
	calls := gen.schemas()
	require.Len(t, calls, 3)
	assert.ElementsMatch(t, []string{"candidate_profile", "job_description"}, calls[:2])
	assert.Equal(t, "fit_evaluation", calls[2])
}

func TestEvaluateParallelExtractionFailure(t *testing.T) {
	boom := errors.New("boom")
	gen := fullGenerator(90, true).failing("job_description", boom)
	p := New(gen, nil, nil, Config{ParallelExtraction: true})

	_, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, gen.schemas(), "fit_evaluation")
}

func TestEvaluateConcurrentRuns(t *testing.T) {
	p := New(fullGenerator(75, false), nil, nil, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !result.Evaluation.IsFit {
				t.Errorf("expected fit")
			}
		}()
	}
	wg.Wait()
}

func TestEvaluateLogsRunID(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	p := New(fullGenerator(75, false), nil, zap.New(core), Config{})
	p.newRunID = func() string { return "run-1" }

	_, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.NoError(t, err)

	entries := observed.All()
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Equal(t, "run-1", entry.ContextMap()["run_id"], entry.Message)
	}

	finished := observed.FilterMessage("evaluation finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(75), finished[0].ContextMap()["fit_score"])
	assert.Equal(t, true, finished[0].ContextMap()["is_fit"])

	stages := observed.FilterMessage("stage finished").All()
	require.Len(t, stages, 4)
	assert.Equal(t, StageResolveText, stages[0].ContextMap()["stage"])
}

func TestStateResultRequiresEveryOutput(t *testing.T) {
	profile, job := sampleProfile(), sampleJob()
	state := &State{CandidateProfile: &profile, JobDescription: &job}

	_, err := state.Result()
	require.ErrorIs(t, err, ErrIncompleteEvaluation)
	assert.Contains(t, err.Error(), "evaluation")
	assert.Equal(t, KindInternal, Classify(err))

	state.Evaluation = ApplyFitThreshold(sampleFit(10, true))
	result, err := state.Result()
	require.NoError(t, err)
	assert.False(t, result.Evaluation.IsFit)
}

// scriptedTransport replays raw completions in call order.
type scriptedTransport struct {
	mu      sync.Mutex
	replies []string
	systems []string
}

func (s *scriptedTransport) Complete(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systems = append(s.systems, req.Messages[0].Content)
	if len(s.replies) == 0 {
		return "", errors.New("unexpected call")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *scriptedTransport) Provider() string { return "scripted" }

func quickRetry() retry.Policy {
	p := retry.DefaultPolicy
	p.MinWait = 0
	p.MaxWait = time.Nanosecond
	p.Multiplier = 1e-9
	return p
}

func TestEvaluateWithStructuredClient(t *testing.T) {
	transport := &scriptedTransport{replies: []string{
		`{"name": "John Doe", "summary": "", "skills_primary": ["Go"], "education": null}`,
		"```json\n{\"title\": \"Go Engineer\", \"summary\": \"Backend\", \"required_skills\": [\"Go\"]}\n```",
		`{"fit_score": 120, "is_fit": true, "fit_summary": "too good"}`,
		`{"fit_score": 75, "is_fit": false, "fit_summary": "Strong Go background"}`,
	}}
	client := ai.NewClient(transport, ai.ClientConfig{Retry: quickRetry()}, nil)
	p := New(client, nil, nil, Config{})

	result, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.NoError(t, err)

	assert.Len(t, transport.systems, 4)
	assert.Equal(t, missingSummary, result.CandidateProfile.Summary)
	assert.Equal(t, []Education{}, result.CandidateProfile.Education)
	assert.Equal(t, []string{"Go"}, result.JobDescription.RequiredSkills)
	assert.Equal(t, 75, result.Evaluation.FitScore)
	assert.True(t, result.Evaluation.IsFit)
	assert.Contains(t, transport.systems[0], "matches this exact schema")
	assert.Contains(t, transport.systems[0], `"skills_primary"`)
}

func TestEvaluateMalformedOutputStopsPipeline(t *testing.T) {
	transport := &scriptedTransport{replies: []string{"not json", "{broken", "still not json", `{"title": "x", "summary": "y"}`}}
	client := ai.NewClient(transport, ai.ClientConfig{Retry: quickRetry()}, nil)
	p := New(client, nil, nil, Config{})

	_, err := p.Evaluate(context.Background(), Input{ResumeText: "resume", JobDescriptionText: "job"})
	require.Error(t, err)

	assert.Len(t, transport.systems, 3, "profile extraction gets exactly three attempts and nothing runs after it")
	assert.Equal(t, KindGeneration, Classify(err))

	var exhausted *retry.ExhaustedError
	require.True(t, errors.As(err, &exhausted))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageExtractProfile, se.Stage)
}
