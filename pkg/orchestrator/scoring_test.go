package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityScore(t *testing.T) {
	research := KeywordProfiler{}.Profile(caffeineQuery)
	greeting := KeywordProfiler{}.Profile("hi")

	tests := []struct {
		name    string
		profile QueryProfile
		caps    []Capability
		want    float64
	}{
		{"domain, complexity and flag match", research, researchCaps, 10 + 5 + 15},
		{"no match", research, conversationalCaps, 0},
		{"complexity only", greeting, conversationalCaps, 5},
		{
			name:    "both flags in capability name",
			profile: research,
			caps:    []Capability{{Name: "Research-Analysis", Complexity: ComplexityMedium, Priority: 2}},
			want:    30,
		},
		{
			name:    "capabilities add up",
			profile: research,
			caps:    append(append([]Capability{}, researchCaps...), Capability{Name: "analysis", Domains: []string{"analysis"}, Complexity: ComplexityComplex, Priority: 0.5}),
			want:    30 + 5 + 5 + 15,
		},
		{"no capabilities", research, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CapabilityScore(tt.profile, tt.caps), 1e-9)
		})
	}
}

func TestPerformanceScore(t *testing.T) {
	w := DefaultWeights()

	assert.InDelta(t, 20.0, PerformanceScore(NewPerformanceStats(), 0, w), 1e-9)

	half := PerformanceStats{SuccessRate: 0.5, AverageResponseTimeMs: 5000}
	assert.InDelta(t, 10.0, PerformanceScore(half, 5, w), 1e-9)

	// latency and load saturate
	slow := PerformanceStats{SuccessRate: 1, AverageResponseTimeMs: 60000}
	assert.InDelta(t, 8.0, PerformanceScore(slow, 50, w), 1e-9)

	successOnly := Weights{Success: 1}
	assert.InDelta(t, 10.0, PerformanceScore(half, 0, successOnly), 1e-9)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Load: 1}.Validate())
	assert.Error(t, Weights{}.Validate())
	assert.Error(t, Weights{Success: 1, Latency: -0.1}.Validate())
}
