package evaluator

import (
	"errors"
	"fmt"

	"github.com/spigell/resume-evaluator/internal/ai"
)

var (
	// ErrInvalidInput marks inputs the caller has to fix: missing resume, blank job text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnreadableResume means the resume PDF yielded no text. Retrying will not help.
	ErrUnreadableResume = errors.New("unreadable resume")
	// ErrIncompleteEvaluation means a run finished without every stage output.
	ErrIncompleteEvaluation = errors.New("pipeline did not produce a complete evaluation")
)

// Kind is the coarse class of a pipeline failure used by adapters to pick a response.
type Kind string

const (
	KindNone       Kind = ""
	KindInput      Kind = "input"
	KindGeneration Kind = "generation"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// StageError records which stage a failure happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

const (
	StageResolveText    = "resolve_text"
	StageExtractProfile = "extract_profile"
	StageExtractJob     = "extract_job"
	StageEvaluateFit    = "evaluate_fit"
)

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// Classify maps an error returned by the pipeline to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnreadableResume):
		return KindInput
	case errors.Is(err, ErrIncompleteEvaluation):
		return KindInternal
	case ai.IsRecoverable(err):
		return KindGeneration
	}

	var se *StageError
	if errors.As(err, &se) && se.Stage != StageResolveText {
		// Anything else escaping a generation stage came from the transport.
		return KindTransport
	}

	return KindInternal
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
