package orchestrator

import (
	"fmt"
)

// agentRecord is the registry entry of one agent
type agentRecord struct {
	id           string
	name         string
	handle       AgentHandle
	capabilities []Capability
	stats        PerformanceStats
	active       bool
	load         int
}

func (r *agentRecord) info() AgentInfo {
	caps := make([]Capability, len(r.capabilities))
	copy(caps, r.capabilities)
	return AgentInfo{
		ID:           r.id,
		Name:         r.name,
		Capabilities: caps,
		Stats:        r.stats,
		Active:       r.active,
		Load:         r.load,
	}
}

// registry keeps agents in registration order. It is not synchronized; the
// orchestrator's lock guards it.
type registry struct {
	agents map[string]*agentRecord
	order  []string
}

func newRegistry() *registry {
	return &registry{
		agents: make(map[string]*agentRecord),
	}
}

func (r *registry) add(rec *agentRecord) error {
	if _, exists := r.agents[rec.id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, rec.id)
	}
	r.agents[rec.id] = rec
	r.order = append(r.order, rec.id)
	return nil
}

func (r *registry) remove(id string) (*agentRecord, error) {
	rec, exists := r.agents[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	delete(r.agents, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return rec, nil
}

func (r *registry) get(id string) (*agentRecord, error) {
	rec, exists := r.agents[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return rec, nil
}

// list returns records in registration order
func (r *registry) list() []*agentRecord {
	out := make([]*agentRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

func (r *registry) count() int {
	return len(r.order)
}
