// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for constructing them by name from validated
// parameters.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"backtestlab/internal/domain"
)

// PositionPolicy selects how a strategy's output becomes a held position
// before the one-bar execution delay is applied.
type PositionPolicy int

const (
	// PolicyForwardFill holds the last non-zero signal until the next
	// non-zero signal. Zero signals do not flatten.
	PolicyForwardFill PositionPolicy = iota

	// PolicyPrecomputed passes the strategy's raw position through
	// unchanged.
	PolicyPrecomputed
)

// String implements fmt.Stringer.
func (p PositionPolicy) String() string {
	switch p {
	case PolicyForwardFill:
		return "forward_fill"
	case PolicyPrecomputed:
		return "precomputed_raw"
	default:
		return fmt.Sprintf("PositionPolicy(%d)", int(p))
	}
}

// SignalSet is the per-bar output of a strategy. RawPositions is nil for
// strategies using PolicyForwardFill.
type SignalSet struct {
	Signals      []domain.Signal
	RawPositions []float64
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the registry identifier for this strategy.
	Name() string

	// Lookback is the minimum number of bars GenerateSignals accepts.
	Lookback() int

	// PositionPolicy reports how signals translate into positions.
	PositionPolicy() PositionPolicy

	// Params returns the validated parameter values the strategy was built
	// with, defaults included.
	Params() Params

	// GenerateSignals turns a bar sequence into a signal sequence aligned
	// 1:1 with the bars. It is deterministic and fails with
	// domain.ErrInsufficientData when len(bars) < Lookback().
	GenerateSignals(bars []domain.Bar) (SignalSet, error)
}

// Params is a closed set of numeric strategy parameters keyed by name.
type Params map[string]float64

// ParamType is the declared type of a parameter.
type ParamType string

const (
	ParamInteger ParamType = "integer"
	ParamFloat   ParamType = "float"
)

// ParamSpec describes one tunable parameter for configuration tooling. Min
// and Max are the recommended range offered to users; the hard domain of a
// parameter is enforced by the strategy's constructor.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Default     float64   `json:"default"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Step        float64   `json:"step,omitempty"`
	Description string    `json:"description"`
}

// Info is the self-describing metadata a strategy publishes.
type Info struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
	TypicalUse  string      `json:"typical_use"`
	Strengths   string      `json:"strengths"`
	Weaknesses  string      `json:"weaknesses"`
}

// Factory builds a Strategy from caller-supplied parameters. Missing
// parameters take their defaults.
type Factory func(params Params) (Strategy, error)

type entry struct {
	info    Info
	factory Factory
}

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a strategy factory to the registry, keyed by info.ID.
func (r *Registry) Register(info Info, factory Factory) {
	r.entries[info.ID] = entry{info: info, factory: factory}
}

// New constructs the strategy registered under id. It fails with
// domain.ErrUnknownStrategy for an unregistered id and
// domain.ErrInvalidParameter for out-of-domain parameters.
func (r *Registry) New(id string, params Params) (Strategy, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", id, domain.ErrUnknownStrategy)
	}
	return e.factory(params)
}

// Info retrieves the metadata of a registered strategy. The second return
// value indicates whether the strategy was found.
func (r *Registry) Info(id string) (Info, bool) {
	e, ok := r.entries[id]
	return e.info, ok
}

// List returns a sorted slice of all registered strategy ids.
func (r *Registry) List() []string {
	names := lo.Keys(r.entries)
	sort.Strings(names)
	return names
}

// Describe returns the metadata for every registered strategy, sorted by id.
func (r *Registry) Describe() []Info {
	return lo.Map(r.List(), func(id string, _ int) Info {
		return r.entries[id].info
	})
}

// Resolve merges params over the defaults declared in specs. Unknown names,
// non-finite values, and non-integral values for integer parameters fail
// with domain.ErrInvalidParameter.
func Resolve(specs []ParamSpec, params Params) (Params, error) {
	known := make(map[string]ParamSpec, len(specs))
	out := make(Params, len(specs))
	for _, s := range specs {
		known[s.Name] = s
		out[s.Name] = s.Default
	}
	for name, v := range params {
		s, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q: %w", name, domain.ErrInvalidParameter)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s must be finite, got %v: %w", name, v, domain.ErrInvalidParameter)
		}
		if s.Type == ParamInteger && v != math.Trunc(v) {
			return nil, fmt.Errorf("%s must be an integer, got %v: %w", name, v, domain.ErrInvalidParameter)
		}
		out[name] = v
	}
	return out, nil
}

// Positive fails with domain.ErrInvalidParameter unless v > 0.
func Positive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v: %w", name, v, domain.ErrInvalidParameter)
	}
	return nil
}

// RequireBars fails with domain.ErrInsufficientData when fewer than lookback
// bars are supplied.
func RequireBars(bars []domain.Bar, lookback int) error {
	if len(bars) < lookback {
		return fmt.Errorf("need at least %d bars, got %d: %w", lookback, len(bars), domain.ErrInsufficientData)
	}
	return nil
}

// Closes extracts the close price of every bar.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
