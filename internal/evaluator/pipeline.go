// Package evaluator extracts a candidate profile and a job description with a
// generation model and scores how well the candidate fits the job.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-evaluator/internal/ai"
	"github.com/spigell/resume-evaluator/internal/logger"
)

// TextExtractor pulls plain text out of resume PDF bytes.
type TextExtractor interface {
	ExtractText(pdf []byte) (string, error)
}

// Input is what a caller hands to a run. ResumeText wins over ResumePDF when both are set.
type Input struct {
	ResumeText         string
	ResumePDF          []byte
	JobDescriptionText string
}

// State is owned by a single run and carries its inputs and stage outputs.
type State struct {
	RunID              string
	ResumePDF          []byte
	ResumeText         string
	JobDescriptionText string
	CandidateProfile   *CandidateProfile
	JobDescription     *JobDescription
	Evaluation         *FitEvaluation
}

// Result assembles the aggregate, failing when any stage output is missing.
func (s *State) Result() (*EvaluationResult, error) {
	var missing []string
	if s.CandidateProfile == nil {
		missing = append(missing, "candidate_profile")
	}
	if s.JobDescription == nil {
		missing = append(missing, "job_description")
	}
	if s.Evaluation == nil {
		missing = append(missing, "evaluation")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteEvaluation, strings.Join(missing, ", "))
	}

	return &EvaluationResult{
		CandidateProfile: s.CandidateProfile,
		JobDescription:   s.JobDescription,
		Evaluation:       s.Evaluation,
	}, nil
}

type Config struct {
	// ParallelExtraction runs profile and job extraction concurrently.
	ParallelExtraction bool
}

// Pipeline runs evaluations. It keeps no per-run state and may be shared by concurrent callers.
type Pipeline struct {
	generator ai.Generator
	pdf       TextExtractor
	logger    *zap.Logger
	parallel  bool
	newRunID  func() string
}

func New(generator ai.Generator, pdf TextExtractor, log *zap.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		generator: generator,
		pdf:       pdf,
		logger:    logger.WithFields(log),
		parallel:  cfg.ParallelExtraction,
		newRunID:  uuid.NewString,
	}
}

// Evaluate validates the input, then resolves resume text, extracts both records and scores the fit.
func (p *Pipeline) Evaluate(ctx context.Context, in Input) (*EvaluationResult, error) {
	if strings.TrimSpace(in.JobDescriptionText) == "" {
		return nil, invalidInput("job description text is required")
	}
	if strings.TrimSpace(in.ResumeText) == "" && len(in.ResumePDF) == 0 {
		return nil, invalidInput("either resume text or resume pdf bytes must be provided")
	}

	state := &State{
		RunID:              p.newRunID(),
		ResumePDF:          in.ResumePDF,
		ResumeText:         in.ResumeText,
		JobDescriptionText: in.JobDescriptionText,
	}
	log := logger.ForRun(p.logger, state.RunID)
	started := time.Now()

	log.Info("evaluation started",
		zap.Bool("resume_text", strings.TrimSpace(in.ResumeText) != ""),
		zap.Int("resume_pdf_bytes", len(in.ResumePDF)),
		zap.Bool("parallel_extraction", p.parallel),
	)

	if err := p.run(ctx, log, state); err != nil {
		log.Error("evaluation failed",
			zap.String("kind", string(Classify(err))),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := state.Result()
	if err != nil {
		log.Error("evaluation incomplete", zap.Error(err))
		return nil, err
	}

	log.Info("evaluation finished",
		zap.Int("fit_score", result.Evaluation.FitScore),
		zap.Bool("is_fit", result.Evaluation.IsFit),
		zap.Duration("elapsed", time.Since(started)),
	)

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, state *State) error {
	err := p.step(log, StageResolveText, func() error {
		text, err := p.resolveText(state.ResumeText, state.ResumePDF)
		if err != nil {
			return err
		}
		state.ResumeText = text
		return nil
	})
	if err != nil {
		return err
	}

	if p.parallel {
		err = p.extractParallel(ctx, log, state)
	} else {
		err = p.extractSequential(ctx, log, state)
	}
	if err != nil {
		return err
	}

	if state.CandidateProfile == nil || state.JobDescription == nil {
		return fmt.Errorf("%w: fit evaluation reached without both extracted records", ErrIncompleteEvaluation)
	}

	return p.step(log, StageEvaluateFit, func() error {
		evaluation, err := EvaluateFit(ctx, p.generator, state.CandidateProfile, state.JobDescription)
		if err != nil {
			return err
		}
		state.Evaluation = evaluation
		return nil
	})
}

func (p *Pipeline) extractSequential(ctx context.Context, log *zap.Logger, state *State) error {
	if err := p.step(log, StageExtractProfile, func() error {
		profile, err := ExtractProfile(ctx, p.generator, state.ResumeText)
		if err != nil {
			return err
		}
		state.CandidateProfile = profile
		return nil
	}); err != nil {
		return err
	}

	return p.step(log, StageExtractJob, func() error {
		job, err := ExtractJobDescription(ctx, p.generator, state.JobDescriptionText)
		if err != nil {
			return err
		}
		state.JobDescription = job
		return nil
	})
}

// extractParallel writes disjoint fields of state from two goroutines. The first failure
// cancels the other extraction.
func (p *Pipeline) extractParallel(ctx context.Context, log *zap.Logger, state *State) error {
	var (
		profile *CandidateProfile
		job     *JobDescription
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.step(log, StageExtractProfile, func() error {
			var err error
			profile, err = ExtractProfile(gctx, p.generator, state.ResumeText)
			return err
		})
	})
	g.Go(func() error {
		return p.step(log, StageExtractJob, func() error {
			var err error
			job, err = ExtractJobDescription(gctx, p.generator, state.JobDescriptionText)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	state.CandidateProfile = profile
	state.JobDescription = job
	return nil
}

func (p *Pipeline) step(log *zap.Logger, stage string, fn func() error) error {
	log = log.With(zap.String(logger.FieldStage, stage))
	started := time.Now()

	log.Debug("stage started")
	if err := fn(); err != nil {
		return stageError(stage, err)
	}
	log.Debug("stage finished", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (p *Pipeline) resolveText(text string, pdf []byte) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if len(pdf) == 0 {
		return "", invalidInput("either resume text or resume pdf bytes must be provided")
	}
	if p.pdf == nil {
		return "", errors.New("resume pdf given but no pdf text extractor is configured")
	}

	extracted, err := p.pdf.ExtractText(pdf)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableResume, err)
	}
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("%w: no text could be extracted from the pdf", ErrUnreadableResume)
	}

	return extracted, nil
}
