package hooks

import (
	"github.com/vadiminshakov/ledgerpool/core/dto"
)

// Hook defines the interface for submission hooks.
type Hook interface {
	OnDispatch(req *dto.DispatchedRequest) bool
	OnOutcome(res *dto.SettledRequest)
}

// Registry manages a collection of hooks.
type Registry struct {
	hooks []Hook
}

// NewRegistry creates a new hook registry.
func NewRegistry(hooks ...Hook) *Registry {
	r := &Registry{
		hooks: make([]Hook, 0, len(hooks)),
	}
	for _, h := range hooks {
		r.Register(h)
	}
	return r
}

// Register adds a new hook to the registry.
func (r *Registry) Register(hook Hook) {
	r.hooks = append(r.hooks, hook)
}

// ExecuteDispatch runs all registered dispatch hooks.
// Returns false if any hook returns false; later hooks are not run then.
func (r *Registry) ExecuteDispatch(req *dto.DispatchedRequest) bool {
	for _, hook := range r.hooks {
		if !hook.OnDispatch(req) {
			return false
		}
	}
	return true
}

// ExecuteOutcome runs all registered outcome hooks.
func (r *Registry) ExecuteOutcome(res *dto.SettledRequest) {
	for _, hook := range r.hooks {
		hook.OnOutcome(res)
	}
}

// Count returns the number of registered hooks
func (r *Registry) Count() int {
	return len(r.hooks)
}
