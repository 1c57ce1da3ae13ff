package debug

import (
	"sort"

	"github.com/dshills/auxlab/internal/engine"
)

// VariableSummary is one entry of a scope's variable listing.
type VariableSummary struct {
	Name    string
	Kind    engine.Kind
	Size    int
	Preview string
	Value   engine.Value
}

func summarize(v engine.Variable, opts engine.PreviewOptions) VariableSummary {
	s := VariableSummary{Name: v.Name, Kind: engine.KindNull, Value: v.Value}
	if v.Value != nil {
		s.Kind = v.Value.Kind()
		s.Size = v.Value.Len()
	}
	s.Preview = engine.Preview(v.Value, opts)
	return s
}

func summarizeAll(vars []engine.Variable, opts engine.PreviewOptions) []VariableSummary {
	out := make([]VariableSummary, 0, len(vars))
	for _, v := range vars {
		out = append(out, summarize(v, opts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// VariableSet is the set of variable names present in a scope.
type VariableSet map[string]struct{}

// NewVariableSet creates a set holding names.
func NewVariableSet(names ...string) VariableSet {
	s := make(VariableSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s VariableSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// VariableNames returns the set of names in a listing.
func VariableNames(vars []VariableSummary) VariableSet {
	s := make(VariableSet, len(vars))
	for _, v := range vars {
		s[v.Name] = struct{}{}
	}
	return s
}
