package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/coupler/pkg/domain"
)

// LogHooks writes one structured line per coupling event.
func LogHooks(logger *slog.Logger) domain.Hooks {
	control := func(msg string) func(context.Context, *domain.ControlEvent) {
		return func(ctx context.Context, e *domain.ControlEvent) {
			attrs := []any{"type", e.Type}
			if e.Flag != "" {
				attrs = append(attrs, "flag", e.Flag)
			}
			if e.Path != "" {
				attrs = append(attrs, "path", e.Path, "kind", e.Kind)
			}
			if e.Attempts > 0 {
				attrs = append(attrs, "attempts", e.Attempts)
			}
			if e.Duration > 0 {
				attrs = append(attrs, "duration", e.Duration)
			}
			if e.Err != nil {
				logger.WarnContext(ctx, msg, append(attrs, "err", e.Err)...)
				return
			}
			logger.DebugContext(ctx, msg, attrs...)
		}
	}
	return domain.Hooks{
		OnStart:    control("solver_start"),
		OnWait:     control("solver_wait"),
		OnContinue: control("solver_continue"),
		OnSet:      control("controllable_set"),
		OnStop:     control("solver_stop"),
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "step_failed", "source_rate", e.SourceRate, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "step_done",
				"source_rate", e.SourceRate,
				"k", e.K.String(),
				"short_circuit", e.ShortCircuit,
				"duration", e.Duration,
				"statepoint", e.StatepointRef,
			)
		},
	}
}
