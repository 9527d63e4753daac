package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/internal/tracing"
	"github.com/harun/switchboard/pkg/strategy"
)

type runFunc func(ctx context.Context, ledger *strategy.Ledger, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error)

// execute wraps an engine body with the ledger lifecycle, tracing and metrics
func (b *base) execute(ctx context.Context, ec strategy.ExecutionContext, run runFunc) (*strategy.ExecutionResult, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "engine.execute",
		attribute.String("strategy.kind", string(b.kind)),
		attribute.String("task.type", taskType(ec, b.kind)),
	)
	logger := tracing.LoggerFromContext(ctx, b.logger)
	start := time.Now()

	ledger := strategy.NewLedger(taskType(ec, b.kind), ec.Query, ec.Callbacks)
	_ = ledger.Start()

	var (
		result *strategy.ExecutionResult
		err    error
	)
	if strings.TrimSpace(ec.Query) == "" {
		result = &strategy.ExecutionResult{Success: false, Error: "query cannot be empty"}
	} else {
		result, err = run(ctx, ledger, ec)
	}

	if err != nil {
		_ = ledger.Fail(err)
		observability.RecordEngineRun(string(b.kind), time.Since(start), false)
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Engine execution failed")
		tracing.End(span, err)
		return nil, err
	}

	if result.Success {
		_ = ledger.Complete()
	} else {
		_ = ledger.Fail(errors.New(result.Error))
	}
	result.Query = ec.Query
	result.Steps = ledger.Steps()
	result.Duration = ledger.Duration()
	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{"strategy": string(b.kind)}
	}
	result.Metadata["task_id"] = ledger.Task().ID

	observability.RecordEngineRun(string(b.kind), result.Duration, result.Success)
	logger.Debug().
		Bool("success", result.Success).
		Int("steps", len(result.Steps)).
		Dur("duration", result.Duration).
		Msg("Engine execution completed")
	tracing.End(span, nil)
	return result, nil
}

// chat runs body through execute and returns the synthesis text
func (b *base) chat(ctx context.Context, message string, onStep strategy.StepFunc, run runFunc) (string, error) {
	res, err := b.execute(ctx, strategy.ExecutionContext{
		Query:     message,
		TaskType:  "chat",
		Callbacks: strategy.Callbacks{OnStep: onStep},
	}, run)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return res.Synthesis, nil
}
