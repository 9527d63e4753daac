package orchestrator

import (
	"fmt"
	"math"
	"strings"
)

const (
	domainMatchFactor    = 10.0
	complexityMatchBonus = 5.0
	flagMatchBonus       = 15.0
	performanceScale     = 20.0

	latencyCeilingMs = 10000.0
	loadCeiling      = 10.0
)

// Weights balance the performance term of an agent's score
type Weights struct {
	Success float64 `json:"success" yaml:"success" mapstructure:"success"`
	Latency float64 `json:"latency" yaml:"latency" mapstructure:"latency"`
	Load    float64 `json:"load" yaml:"load" mapstructure:"load"`
}

// DefaultWeights returns (0.4, 0.3, 0.3)
func DefaultWeights() Weights {
	return Weights{Success: 0.4, Latency: 0.3, Load: 0.3}
}

// Validate rejects negative or all-zero weights
func (w Weights) Validate() error {
	if w.Success < 0 || w.Latency < 0 || w.Load < 0 {
		return fmt.Errorf("weights cannot be negative: %+v", w)
	}
	if w.Success == 0 && w.Latency == 0 && w.Load == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// AgentScore is the score of one agent for one query profile
type AgentScore struct {
	AgentID     string  `json:"agent_id"`
	Capability  float64 `json:"capability"`
	Performance float64 `json:"performance"`
	Total       float64 `json:"total"`
}

// CapabilityScore sums the profile matches of every capability
func CapabilityScore(p QueryProfile, caps []Capability) float64 {
	score := 0.0
	for _, c := range caps {
		if intersects(c.Domains, p.Domains) {
			score += c.Priority * domainMatchFactor
		}
		if c.Complexity == p.Complexity {
			score += complexityMatchBonus
		}
		name := strings.ToLower(c.Name)
		for _, f := range profileFlags(p) {
			if strings.Contains(name, f) {
				score += flagMatchBonus
			}
		}
	}
	return score
}

// PerformanceScore scores success rate, latency and load, scaled to [0, 20]
// for weights summing to one.
func PerformanceScore(stats PerformanceStats, load int, w Weights) float64 {
	latency := 1 - math.Min(stats.AverageResponseTimeMs/latencyCeilingMs, 1)
	busy := 1 - math.Min(float64(load)/loadCeiling, 1)
	return (stats.SuccessRate*w.Success + latency*w.Latency + busy*w.Load) * performanceScale
}

// profileFlags returns the keywords of the set flags
func profileFlags(p QueryProfile) []string {
	flags := make([]string, 0, 4)
	if p.RequiresResearch {
		flags = append(flags, "research")
	}
	if p.RequiresAnalysis {
		flags = append(flags, "analysis")
	}
	if p.RequiresCreativity {
		flags = append(flags, "creative")
	}
	if p.RequiresTechnical {
		flags = append(flags, "technical")
	}
	return flags
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
