package agent

import (
	"context"
	"errors"
	"time"

	"github.com/harun/switchboard/internal/tracing"
)

// Start launches the background health probe when HealthInterval is set
func (h *Handle) Start() {
	if h.cfg.HealthInterval <= 0 {
		return
	}
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.probeLoop()

		h.logger.Debug().Dur("interval", h.cfg.HealthInterval).Msg("Health probe started")
	})
}

// Close stops the probe and cleans up the active strategy
func (h *Handle) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		h.probeCancel()
		h.wg.Wait()

		h.swapMu.Lock()
		defer h.swapMu.Unlock()

		h.mu.Lock()
		h.closed = true
		active := h.active
		h.mu.Unlock()

		err = active.Cleanup(ctx)
		h.logger.Debug().Msg("Agent handle closed")
	})
	return err
}

func (h *Handle) probeLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.probeCtx.Done():
			return
		case <-ticker.C:
			h.Probe(h.probeCtx)
		}
	}
}

// Probe checks the active strategy once. An unhealthy report degrades the
// handle and triggers a fallback attempt.
func (h *Handle) Probe(ctx context.Context) bool {
	ctx = tracing.PropagateToAgent(ctx, h.cfg.AgentID)
	s, _ := h.current()
	report := s.Health(ctx)

	h.mu.Lock()
	h.lastCheck = time.Now()
	h.mu.Unlock()

	if report.Healthy() {
		h.markHealthy()
		return true
	}

	reason := report.Error
	if reason == "" {
		reason = "strategy reported " + string(report.Status)
	}
	h.markDegraded(errors.New(reason))

	logger := tracing.LoggerFromContext(ctx, h.logger)
	logger.Warn().
		Str("strategy", string(s.Kind())).
		Str("status", string(report.Status)).
		Str("error", report.Error).
		Msg("Health probe failed")

	if h.cfg.DisableFallback {
		return false
	}
	kind, err := h.fallback(ctx, s)
	if err != nil {
		logger.Error().Err(err).Msg("No healthy fallback; agent stays degraded")
		return false
	}
	logger.Info().Str("strategy", string(kind)).Msg("Recovered via fallback")
	return true
}
