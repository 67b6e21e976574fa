package classifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the minimum trimmed text length, in characters.
const DefaultMinLength = 5

// Resolver tries each registered strategy in order and falls back to the
// lexicon. Only validation failures reach the caller.
type Resolver struct {
	registry  *Registry
	fallback  Strategy
	minLength int
	logf      func(format string, args ...any)
}

type Option func(*Resolver)

// WithMinLength overrides DefaultMinLength.
func WithMinLength(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// WithLogger replaces log.Printf for fall-through events.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(r *Resolver) {
		if logf != nil {
			r.logf = logf
		}
	}
}

// NewResolver builds a resolver. A nil fallback uses the exclusive lexicon.
func NewResolver(registry *Registry, fallback Strategy, opts ...Option) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	if fallback == nil {
		fallback = NewExclusiveLexicon()
	}

	r := &Resolver{
		registry:  registry,
		fallback:  fallback,
		minLength: DefaultMinLength,
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Validate checks text against the minimum length after trimming.
func (r *Resolver) Validate(text string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < r.minLength {
		return &ErrValidation{Length: n, Min: r.minLength}
	}
	return nil
}

// Resolve labels text with the first strategy that succeeds.
func (r *Resolver) Resolve(ctx context.Context, text string) (*Result, error) {
	if err := r.Validate(text); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	for _, s := range r.registry.strategies {
		dist, err := r.try(ctx, s, text)
		if err == nil {
			return newResult(s.Name(), dist), nil
		}

		var unavail *ErrModelUnavailable
		if errors.As(err, &unavail) {
			r.logf("[SKIP] %s: %v", s.Name(), err)
			continue
		}
		r.logf("[FALLTHROUGH] %s: %v", s.Name(), err)
	}

	dist, err := r.try(ctx, r.fallback, text)
	if err != nil {
		return nil, &ErrInternal{Err: err}
	}

	return newResult(r.fallback.Name(), dist), nil
}

func (r *Resolver) try(ctx context.Context, s Strategy, text string) (dist Distribution, err error) {
	defer func() {
		if p := recover(); p != nil {
			dist = nil
			err = &ErrInference{Strategy: s.Name(), Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	dist, err = s.Predict(ctx, text)
	if err != nil {
		var unavail *ErrModelUnavailable
		var inf *ErrInference
		if errors.As(err, &unavail) || errors.As(err, &inf) {
			return nil, err
		}
		return nil, &ErrInference{Strategy: s.Name(), Err: err}
	}

	if verr := dist.Validate(); verr != nil {
		return nil, &ErrInference{Strategy: s.Name(), Err: fmt.Errorf("invalid distribution: %w", verr)}
	}

	return dist, nil
}

// Status reports which strategies are loaded and which one answers first.
func (r *Resolver) Status() Status {
	st := Status{
		Fallback:       r.fallback.Name(),
		FallbackLabels: r.fallback.Labels(),
	}

	for _, s := range r.registry.strategies {
		ss := statusOf(s)
		st.Strategies = append(st.Strategies, ss)
		if st.Active == "" && ss.Loaded {
			st.Active = ss.Name
		}
	}
	if st.Active == "" {
		st.Active = st.Fallback
	}

	return st
}

// Labels returns the label set of the active strategy.
func (r *Resolver) Labels() []Label {
	for _, s := range r.registry.strategies {
		if _, ok := s.(*unavailable); !ok {
			return s.Labels()
		}
	}
	return r.fallback.Labels()
}
