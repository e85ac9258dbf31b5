package hub

import "github.com/zulandar/agenthud/internal/models"

// registry holds the live agents in registration order.
type registry struct {
	agents map[string]*models.Agent
	order  []string
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*models.Agent)}
}

func (r *registry) add(a *models.Agent) {
	if _, ok := r.agents[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.agents[a.ID] = a
}

func (r *registry) get(id string) (*models.Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

func (r *registry) remove(id string) (*models.Agent, bool) {
	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	delete(r.agents, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return a, true
}

// list returns copies of all agents in registration order.
func (r *registry) list() []models.Agent {
	out := make([]models.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

func (r *registry) len() int { return len(r.order) }
