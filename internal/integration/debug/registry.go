package debug

import (
	"fmt"
	"strings"
	"sync"
)

// ResourceKind is the kind of an inspector.
type ResourceKind int

const (
	// KindSignal is a signal graph.
	KindSignal ResourceKind = iota
	// KindTable is a tabular data view.
	KindTable
	// KindText is a text view.
	KindText
	// KindBinary is a hex dump.
	KindBinary
)

// String returns the kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindTable:
		return "table"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseResourceKind parses a kind name.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.ToLower(s) {
	case "signal", "graph":
		return KindSignal, nil
	case "table":
		return KindTable, nil
	case "text":
		return KindText, nil
	case "binary", "hex":
		return KindBinary, nil
	default:
		return 0, fmt.Errorf("unknown inspector kind %q", s)
	}
}

// Resource is a UI-owned inspector. The registry only asks it to close or
// to switch between active and dormant.
type Resource interface {
	Close()
	SetActive(active bool)
}

// closer is implemented by resources that can be closed by the UI on its
// own, for example when the user dismisses a window.
type closer interface {
	Closed() bool
}

// Record ties an inspector to the variable and scope it was opened for.
type Record struct {
	Ref      string
	Variable string
	Scope    Scope
	Kind     ResourceKind
	Resource Resource
}

// ReconcileReport lists what a reconciliation pass did.
type ReconcileReport struct {
	Closed  []Record
	Active  []Record
	Dormant []Record
}

// Registry tracks open inspectors and closes those whose scope or variable
// no longer exists.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register records an opened inspector. The scope is fixed for the life of
// the record.
func (r *Registry) Register(variable string, scope Scope, ref string, kind ResourceKind, res Resource) error {
	if ref == "" || res == nil || variable == "" {
		return ErrInvalidResource
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[ref]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, ref)
	}
	r.records[ref] = &Record{
		Ref:      ref,
		Variable: variable,
		Scope:    scope,
		Kind:     kind,
		Resource: res,
	}
	r.order = append(r.order, ref)
	return nil
}

// UnregisterExternally drops a record the UI already closed. No callback is
// made on the resource.
func (r *Registry) UnregisterExternally(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drop(ref)
}

func (r *Registry) drop(ref string) bool {
	if _, ok := r.records[ref]; !ok {
		return false
	}
	delete(r.records, ref)
	for i, o := range r.order {
		if o == ref {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Reconcile applies the closing rules against the current state:
//
//  1. a record in the current scope whose variable is not in live closes;
//  2. a record outside the current scope closes when the session is idle;
//  3. everything else stays, active in the current scope, dormant elsewhere.
//
// A nil live set skips rule 1. Calling Reconcile twice with the same inputs
// closes nothing the second time.
func (r *Registry) Reconcile(current Scope, paused bool, live VariableSet) ReconcileReport {
	return r.ReconcileWith(current, paused, live, nil)
}

// ReconcileWith is Reconcile with an extra rule: records whose scope alive
// reports dead are closed as well.
func (r *Registry) ReconcileWith(current Scope, paused bool, live VariableSet, alive func(Scope) bool) ReconcileReport {
	var report ReconcileReport

	r.mu.Lock()
	for _, ref := range append([]string(nil), r.order...) {
		rec := r.records[ref]
		if c, ok := rec.Resource.(closer); ok && c.Closed() {
			r.drop(ref)
			continue
		}

		inCurrent := rec.Scope == current
		switch {
		case alive != nil && !alive(rec.Scope),
			inCurrent && live != nil && !live.Has(rec.Variable),
			!inCurrent && !paused:
			r.drop(ref)
			report.Closed = append(report.Closed, *rec)
		case inCurrent:
			report.Active = append(report.Active, *rec)
		default:
			report.Dormant = append(report.Dormant, *rec)
		}
	}
	r.mu.Unlock()

	// Resources may call back into the registry.
	for _, rec := range report.Closed {
		rec.Resource.Close()
	}
	for _, rec := range report.Active {
		rec.Resource.SetActive(true)
	}
	for _, rec := range report.Dormant {
		rec.Resource.SetActive(false)
	}
	return report
}

// Get returns the record for ref.
func (r *Registry) Get(ref string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[ref]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Find returns the inspector of kind open on variable in scope.
func (r *Registry) Find(variable string, scope Scope, kind ResourceKind) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.order {
		rec := r.records[ref]
		if rec.Variable == variable && rec.Scope == scope && rec.Kind == kind {
			return *rec, true
		}
	}
	return Record{}, false
}

// InScope returns the records bound to scope in registration order.
func (r *Registry) InScope(scope Scope) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, ref := range r.order {
		if rec := r.records[ref]; rec.Scope == scope {
			out = append(out, *rec)
		}
	}
	return out
}

// CloseAllInScope closes and drops every record bound to scope.
func (r *Registry) CloseAllInScope(scope Scope) []Record {
	r.mu.Lock()
	var closed []Record
	for _, ref := range append([]string(nil), r.order...) {
		if rec := r.records[ref]; rec.Scope == scope {
			r.drop(ref)
			closed = append(closed, *rec)
		}
	}
	r.mu.Unlock()

	for _, rec := range closed {
		rec.Resource.Close()
	}
	return closed
}

// Close closes and drops the record for ref.
func (r *Registry) Close(ref string) bool {
	r.mu.Lock()
	rec, ok := r.records[ref]
	if ok {
		r.drop(ref)
	}
	r.mu.Unlock()

	if ok {
		rec.Resource.Close()
	}
	return ok
}

// Records returns every record in registration order.
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.order))
	for _, ref := range r.order {
		out = append(out, *r.records[ref])
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
