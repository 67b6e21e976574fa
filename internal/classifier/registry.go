package classifier

// Registry holds the learned strategies in preference order. It is built
// once at startup and never modified, so it can be shared freely.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	list := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			list = append(list, s)
		}
	}
	return &Registry{strategies: list}
}

// Strategies returns a copy of the preference-ordered list.
func (r *Registry) Strategies() []Strategy {
	if r == nil {
		return nil
	}
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.strategies)
}

// Lookup finds a strategy by name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	if r == nil {
		return nil, false
	}
	for _, s := range r.strategies {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// StrategyStatus describes one registered strategy.
type StrategyStatus struct {
	Name    string         `json:"name"`
	Loaded  bool           `json:"loaded"`
	Labels  []Label        `json:"labels"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Status is the operator view of which strategies can answer.
type Status struct {
	Strategies     []StrategyStatus `json:"strategies"`
	Active         string           `json:"active"`
	Fallback       string           `json:"fallback"`
	FallbackLabels []Label          `json:"fallback_labels"`
}

func statusOf(s Strategy) StrategyStatus {
	st := StrategyStatus{
		Name:   s.Name(),
		Loaded: true,
		Labels: s.Labels(),
	}
	if u, ok := s.(*unavailable); ok {
		st.Loaded = false
		if u.err != nil {
			st.Error = u.err.Error()
		}
	}
	if d, ok := s.(Describer); ok {
		st.Details = d.Describe()
	}
	return st
}
