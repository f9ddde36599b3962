package site

import "github.com/veloform/activity-enhancer-go/internal/dom"

// Registry holds the ordered adapter list. First match wins, so more specific
// adapters must be registered first.
type Registry struct {
	adapters []Adapter
}

// NewRegistry returns a registry preloaded with all supported sites.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewStravaAdapter(),
			NewGarminAdapter(),
		},
	}
}

// Register appends an adapter. Adding a site is a pure extension; no calling
// code changes.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.adapters = append(r.adapters, a)
}

// Resolve returns the first adapter matching the location, or nil. Unmatched
// locations are not an error; callers no-op.
func (r *Registry) Resolve(loc dom.Location) Adapter {
	for _, a := range r.adapters {
		if a.Match(loc) {
			return a
		}
	}
	return nil
}

// Supported reports whether any adapter matches the location.
func (r *Registry) Supported(loc dom.Location) bool {
	return r.Resolve(loc) != nil
}

// Adapters returns the registration order; used by tests and diagnostics.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// ClassifyPage resolves the page type for a location, tolerating a nil
// adapter.
func ClassifyPage(a Adapter, loc dom.Location) PageType {
	if a == nil {
		return PageUnknown
	}
	return a.DetectPageType(loc)
}
