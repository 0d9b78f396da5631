package mirror

import "sync"

// Population is the authoritative set of live entities. Mutation happens
// only inside the Reconciler, under the write lock for a whole
// reconciliation pass, so readers never observe a half-applied snapshot.
type Population struct {
	mu   sync.RWMutex
	ents map[string]*Entity
}

func NewPopulation() *Population {
	return &Population{ents: make(map[string]*Entity)}
}

func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ents)
}

// Get looks up one entity by identity.
func (p *Population) Get(id string) (EntityView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.ents[id]
	if !ok {
		return EntityView{}, false
	}
	return e.view(), true
}

// Entities returns a consistent copy of every live entity. No iteration
// order is guaranteed.
func (p *Population) Entities() []EntityView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]EntityView, 0, len(p.ents))
	for _, e := range p.ents {
		out = append(out, e.view())
	}
	return out
}

// CountsByCategory aggregates live entities per category for diagnostics.
func (p *Population) CountsByCategory() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range p.ents {
		out[e.category]++
	}
	return out
}

// CountsByState aggregates live entities per visual-state tag.
func (p *Population) CountsByState() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range p.ents {
		out[e.state]++
	}
	return out
}
