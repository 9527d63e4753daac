package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/internal/tracing"
	"github.com/harun/switchboard/pkg/strategy"
)

// SynthesisSeparator joins the syntheses of collaborating agents
const SynthesisSeparator = "\n\n---\n\n"

// CollaborateAgents runs query on each named agent in turn and merges the
// successful results. A failing or unknown agent is logged and skipped; when
// every agent fails the result has Success=false and per-agent Errors.
func (o *Orchestrator) CollaborateAgents(ctx context.Context, query string, agentIDs []string, opts RouteOptions) (*CollaborationResult, error) {
	if len(agentIDs) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}

	queryID := tracing.NewQueryID()
	ctx = tracing.NewQueryContext(ctx, queryID)
	ctx, span := tracing.Start(ctx, "orchestrator.collaborate",
		attribute.String("query_id", queryID),
		attribute.Int("agents", len(agentIDs)))
	defer tracing.End(span, nil)

	logger := tracing.LoggerFromContext(ctx, o.logger)
	start := o.now()

	out := &CollaborationResult{
		QueryID:      queryID,
		Query:        query,
		Findings:     []string{},
		Sources:      []strategy.Source{},
		Contributors: []string{},
		Results:      make(map[string]*strategy.ExecutionResult),
		Errors:       make(map[string]string),
	}

	var syntheses []string
	var confidenceSum float64
	var confidenceCount int

	for i, id := range agentIDs {
		opts.Callbacks.Report(i+1, len(agentIDs), fmt.Sprintf("collaborating with %s", id))

		res, err := o.collaborateOne(ctx, queryID, id, query, opts)
		if err == nil && !res.Success {
			err = fmt.Errorf("agent %s reported failure: %s", id, res.Error)
		}
		if err != nil {
			logger.Warn().Err(err).Str("agent_id", id).Msg("Collaborating agent failed, skipping")
			out.Errors[id] = err.Error()
			observability.RecordCollaboration(id, false)
			continue
		}
		observability.RecordCollaboration(id, true)

		out.Results[id] = res
		out.Contributors = append(out.Contributors, id)
		out.Findings = append(out.Findings, res.Findings...)
		out.Sources = append(out.Sources, res.Sources...)
		if s := strings.TrimSpace(res.Synthesis); s != "" {
			syntheses = append(syntheses, s)
		}
		if res.Confidence != nil {
			confidenceSum += *res.Confidence
			confidenceCount++
		}
	}

	out.Success = len(out.Contributors) > 0
	out.Synthesis = strings.Join(syntheses, SynthesisSeparator)
	if confidenceCount > 0 {
		out.Confidence = strategy.Confidence(confidenceSum / float64(confidenceCount))
	}
	out.Duration = o.now().Sub(start)

	logger.Info().
		Int("contributors", len(out.Contributors)).
		Int("failed", len(out.Errors)).
		Dur("duration", out.Duration).
		Msg("Collaboration finished")
	return out, nil
}

func (o *Orchestrator) collaborateOne(ctx context.Context, queryID, agentID, query string, opts RouteOptions) (*strategy.ExecutionResult, error) {
	o.mu.RLock()
	rec, err := o.registry.get(agentID)
	active := err == nil && rec.active
	o.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("agent %s is inactive", agentID)
	}

	// each participant gets its own active-query entry
	subID := queryID + ":" + agentID
	handle, err := o.track(subID, agentID, query)
	if err != nil {
		return nil, err
	}
	defer o.release(subID, agentID)

	return o.run(ctx, handle, agentID, query, opts)
}
