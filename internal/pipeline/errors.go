package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/loadchain/internal/emit"
	"git.home.luguber.info/inful/loadchain/internal/foundation/errors"
	"git.home.luguber.info/inful/loadchain/internal/loader"
	"git.home.luguber.info/inful/loadchain/internal/metrics"
	"git.home.luguber.info/inful/loadchain/internal/rules"
	"git.home.luguber.info/inful/loadchain/internal/schema"
)

// Kind classifies a failed run.
type Kind string

const (
	KindNoMatch    Kind = "no_match"
	KindValidation Kind = "validation"
	KindTransform  Kind = "transform"
	KindEmission   Kind = "emission"
	KindCanceled   Kind = "canceled"
)

// Error is returned by Run for every failed module.
type Error struct {
	Kind     Kind
	ModuleID string
	RunID    string
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("module %s: %s at %s: %v", e.ModuleID, e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("module %s: %s: %v", e.ModuleID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classified converts e into a foundation error for CLI reporting.
func (e *Error) Classified() *errors.ClassifiedError {
	msg := fmt.Sprintf("module %s failed", e.ModuleID)
	var b *errors.ErrorBuilder
	switch e.Kind {
	case KindNoMatch:
		b = errors.NoMatchError(msg)
	case KindValidation:
		b = errors.ValidationError(msg)
	case KindEmission:
		b = errors.EmissionError(msg)
	case KindCanceled:
		b = errors.CanceledError(msg)
	default:
		b = errors.TransformError(msg)
	}
	b = b.WithCause(e.Err).
		WithContext("module", e.ModuleID).
		WithContext("run_id", e.RunID)
	if e.Stage != "" {
		b = b.WithContext("stage", e.Stage)
	}
	return b.Build()
}

func (k Kind) outcome() metrics.OutcomeLabel {
	switch k {
	case KindNoMatch:
		return metrics.OutcomeNoMatch
	case KindValidation:
		return metrics.OutcomeValidation
	case KindEmission:
		return metrics.OutcomeEmission
	case KindCanceled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeTransform
	}
}

// classify derives the kind and failing stage of err.
func classify(ctx context.Context, err error) (Kind, string) {
	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(err, ctxErr) {
		return KindCanceled, stageOf(err)
	}
	var nm *rules.NoMatchError
	if stderrors.As(err, &nm) {
		return KindNoMatch, ""
	}
	var ve *schema.ValidationError
	if stderrors.As(err, &ve) {
		return KindValidation, ve.Stage
	}
	var ee *emit.EmissionError
	if stderrors.As(err, &ee) {
		return KindEmission, ee.Stage
	}
	return KindTransform, stageOf(err)
}

func stageOf(err error) string {
	var te *loader.TransformError
	if stderrors.As(err, &te) {
		return te.Stage
	}
	var ee *emit.EmissionError
	if stderrors.As(err, &ee) {
		return ee.Stage
	}
	return ""
}
