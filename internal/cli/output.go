package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harun/switchboard/pkg/agent"
	"github.com/harun/switchboard/pkg/orchestrator"
	"github.com/harun/switchboard/pkg/strategy"
)

// stepPrinter streams ledger steps as they are recorded
func stepPrinter(w io.Writer) strategy.Callbacks {
	return strategy.Callbacks{
		OnStep: func(step strategy.Step) {
			fmt.Fprintf(w, "  [%s] %s", step.Status, step.Name)
			if step.Description != "" {
				fmt.Fprintf(w, ": %s", step.Description)
			}
			fmt.Fprintln(w)
		},
	}
}

func printRouteResult(w io.Writer, res *orchestrator.RouteResult) {
	agentLine := res.AgentID
	if res.Fallback {
		agentLine += " (fallback)"
	}
	fmt.Fprintf(w, "Agent: %s\n", agentLine)
	if len(res.Profile.Domains) > 0 {
		fmt.Fprintf(w, "Profile: %s [%s]\n", res.Profile.Complexity, strings.Join(res.Profile.Domains, ", "))
	} else {
		fmt.Fprintf(w, "Profile: %s\n", res.Profile.Complexity)
	}
	if res.ExecutionResult == nil {
		return
	}
	if !res.Success {
		fmt.Fprintf(w, "Status: failed: %s\n", res.Error)
	}
	if res.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %.2f\n", *res.Confidence)
	}
	fmt.Fprintf(w, "Duration: %s\n\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, res.Synthesis)
}

func printCollaboration(w io.Writer, res *orchestrator.CollaborationResult) {
	fmt.Fprintf(w, "Contributors: %s\n", strings.Join(res.Contributors, ", "))
	for _, id := range sortedKeys(res.Errors) {
		fmt.Fprintf(w, "Failed: %s: %s\n", id, res.Errors[id])
	}
	if res.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %.2f\n", *res.Confidence)
	}
	fmt.Fprintf(w, "Duration: %s\n\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, res.Synthesis)
}

func printAgents(w io.Writer, agents []orchestrator.AgentInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tACTIVE\tHEALTHY\tLOAD\tSUCCESS\tAVG MS\tCAPABILITIES")
	for _, a := range agents {
		caps := make([]string, 0, len(a.Capabilities))
		for _, c := range a.Capabilities {
			caps = append(caps, fmt.Sprintf("%s(%s)", c.Name, c.Complexity))
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%d\t%.2f\t%.0f\t%s\n",
			a.ID, a.Kind, a.Active, a.Healthy, a.Load,
			a.Stats.SuccessRate, a.Stats.AverageResponseTimeMs, strings.Join(caps, ", "))
	}
	tw.Flush()
}

func printMetrics(w io.Writer, m orchestrator.Metrics) {
	fmt.Fprintf(w, "Total queries: %d\n", m.TotalQueries)
	fmt.Fprintf(w, "Success rate: %.2f\n", m.SuccessRate)
	fmt.Fprintf(w, "Average response: %.0fms\n", m.AverageResponseTimeMs)
	fmt.Fprintf(w, "Active queries: %d\n", m.ActiveQueries)
	for _, id := range sortedKeys(m.AgentUsage) {
		fmt.Fprintf(w, "  %s: %d\n", id, m.AgentUsage[id])
	}
}

func printStoredStats(w io.Writer, stats map[string]orchestrator.PerformanceStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tQUERIES\tERRORS\tSUCCESS\tAVG MS\tLAST USED")
	for _, id := range sortedKeys(stats) {
		s := stats[id]
		lastUsed := "-"
		if !s.LastUsed.IsZero() {
			lastUsed = s.LastUsed.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.0f\t%s\n",
			id, s.TotalQueries, s.ErrorCount, s.SuccessRate, s.AverageResponseTimeMs, lastUsed)
	}
	tw.Flush()
}

func printTransferReport(w io.Writer, agentID string, r *agent.TransferReport) {
	if r.Skipped {
		fmt.Fprintf(w, "%s: already running %s\n", agentID, r.To)
		return
	}
	fmt.Fprintf(w, "%s: %s -> %s, memory %d/%d transferred (%d failed) in %s\n",
		agentID, r.From, r.To, r.Loaded, r.Total, r.Failed, r.Duration.Round(time.Millisecond))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
