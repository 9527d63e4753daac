package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/harun/switchboard/internal/config"
	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/pkg/agent"
	"github.com/harun/switchboard/pkg/orchestrator"
	"github.com/harun/switchboard/pkg/strategy"
)

const serveHelp = `Commands:
  <query>                          route a query
  :switch <agent> <kind>           swap an agent's strategy, keeping memory
  :enable <agent> | :disable <agent>
  :weights <success> <latency> <load>
  :agents                          list agents
  :metrics                         aggregate metrics
  :quit
`

type serveOptions struct {
	noWatch bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Route queries read line by line from stdin",
		Long: `Long-running mode. Reads one query per line from stdin and routes it.
Lines starting with ':' are control commands (see :help). While running, the
Prometheus /metrics endpoint is served, agent health is probed in the
background, routing weights follow config file edits and performance stats
are snapshotted on the configured schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload routing weights on config changes")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, root, runtimeOptions{probes: true, logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			rt.logger.Warn().Err(cerr).Msg("Shutdown incomplete")
		}
	}()

	if rt.cfg.Metrics.Enabled {
		srv := startMetricsServer(rt)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !opts.noWatch {
		if w := startConfigWatcher(ctx, rt, root); w != nil {
			defer w.Stop()
		}
	}

	if c := startSnapshots(rt); c != nil {
		defer func() { <-c.Stop().Done() }()
	}

	s := &session{rt: rt, out: cmd.OutOrStdout()}
	return s.run(ctx, cmd.InOrStdin())
}

func startMetricsServer(rt *runtime) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              rt.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error().Err(err).Str("addr", srv.Addr).Msg("Metrics server stopped")
		}
	}()

	rt.logger.Info().Str("addr", srv.Addr).Msg("Metrics endpoint listening")
	return srv
}

// startConfigWatcher pushes reloaded routing weights into the orchestrator
func startConfigWatcher(ctx context.Context, rt *runtime, root *rootOptions) *config.Watcher {
	path := config.NewLoader(root.cfgFile).GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		rt.logger.Debug().Str("path", path).Msg("No config file to watch")
		return nil
	}

	w, err := config.NewWatcher(config.WatcherConfig{
		Path: path,
		OnReload: func(cfg *config.Config) {
			applyWeights(ctx, rt, cfg.Routing.Weights, "config-watcher")
		},
	})
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		rt.logger.Warn().Err(err).Msg("Config hot reload disabled")
		return nil
	}
	return w
}

func applyWeights(ctx context.Context, rt *runtime, w orchestrator.Weights, actor string) error {
	if w == rt.orch.Weights() {
		return nil
	}
	if err := rt.orch.SetWeights(w); err != nil {
		rt.logger.Warn().Err(err).Msg("Rejected routing weights")
		return err
	}
	observability.RecordConfigAudit(ctx, "set_weights", actor, map[string]interface{}{
		"success": w.Success,
		"latency": w.Latency,
		"load":    w.Load,
	})
	return nil
}

// startSnapshots persists performance stats on the configured cron schedule
func startSnapshots(rt *runtime) *cron.Cron {
	if rt.store == nil || rt.cfg.Stats.Schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(rt.cfg.Stats.Schedule, func() {
		if err := rt.orch.PersistStats(); err != nil {
			rt.logger.Warn().Err(err).Msg("Stats snapshot failed")
			return
		}
		rt.logger.Debug().Msg("Stats snapshot written")
	})
	if err != nil {
		rt.logger.Warn().Err(err).Str("schedule", rt.cfg.Stats.Schedule).Msg("Stats snapshots disabled")
		return nil
	}

	c.Start()
	rt.logger.Info().Str("schedule", rt.cfg.Stats.Schedule).Msg("Stats snapshots scheduled")
	return c
}

// session is one stdin-driven serve loop
type session struct {
	rt  *runtime
	out io.Writer
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether the loop should end
func (s *session) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		s.route(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":exit":
		return true
	case ":help":
		fmt.Fprint(s.out, serveHelp)
	case ":metrics":
		printMetrics(s.out, s.rt.orch.PerformanceMetrics())
	case ":agents":
		printAgents(s.out, s.rt.orch.Agents())
	case ":switch":
		s.switchStrategy(ctx, fields[1:])
	case ":enable", ":disable":
		if len(fields) != 2 {
			fmt.Fprintf(s.out, "usage: %s <agent>\n", fields[0])
			return false
		}
		if err := s.rt.orch.SetAgentActive(ctx, fields[1], fields[0] == ":enable"); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(s.out, "%s: active=%t\n", fields[1], fields[0] == ":enable")
	case ":weights":
		s.setWeights(ctx, fields[1:])
	default:
		fmt.Fprintf(s.out, "unknown command %s (try :help)\n", fields[0])
	}
	return false
}

func (s *session) route(ctx context.Context, query string) {
	res, err := s.rt.orch.RouteQuery(ctx, query, orchestrator.RouteOptions{
		Callbacks: stepPrinter(s.out),
	})
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	printRouteResult(s.out, res)
}

func (s *session) switchStrategy(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: :switch <agent> <kind>")
		return
	}

	kind, err := strategy.ParseKind(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	h, ok := s.rt.orch.Handle(args[0])
	if !ok {
		fmt.Fprintf(s.out, "error: %v: %s\n", orchestrator.ErrAgentNotFound, args[0])
		return
	}
	handle, ok := h.(*agent.Handle)
	if !ok {
		fmt.Fprintf(s.out, "error: agent %s does not support strategy switching\n", args[0])
		return
	}

	report, err := handle.SwitchStrategy(ctx, kind, true)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	printTransferReport(s.out, args[0], report)
}

func (s *session) setWeights(ctx context.Context, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(s.out, "usage: :weights <success> <latency> <load>")
		return
	}

	var values [3]float64
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			fmt.Fprintf(s.out, "error: invalid weight %q\n", arg)
			return
		}
		values[i] = v
	}

	w := orchestrator.Weights{Success: values[0], Latency: values[1], Load: values[2]}
	if err := applyWeights(ctx, s.rt, w, "serve"); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "weights: success=%.2f latency=%.2f load=%.2f\n", w.Success, w.Latency, w.Load)
}
