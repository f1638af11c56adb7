package conduit

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// overrides maps opaque scope ids to bindings. It has its own lock, so a
// type-level lookup never waits on it.
type overrides struct {
	mu     sync.RWMutex
	byID   map[any]map[reflect.Type]Strategy
	active atomic.Bool
}

func (o *overrides) lookup(id any, t reflect.Type) (Strategy, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.byID[id][t]
	return s, ok
}

// Override associates b with scope id. Endpoints carrying id resolve T to b;
// all other endpoints keep the type-level binding.
func Override[T any](r *Registry, id any, b *Binding[T]) {
	r.SetOverride(id, reflect.TypeFor[T](), b)
}

// SetOverride associates s, a strategy for t, with scope id. id must be comparable.
func (r *Registry) SetOverride(id any, t reflect.Type, s Strategy) {
	r.overrides.mu.Lock()
	if r.overrides.byID == nil {
		r.overrides.byID = make(map[any]map[reflect.Type]Strategy)
	}
	if r.overrides.byID[id] == nil {
		r.overrides.byID[id] = make(map[reflect.Type]Strategy)
	}
	r.overrides.byID[id][t] = s
	r.overrides.active.Store(true)
	r.overrides.mu.Unlock()

	r.log.Debug("override set", zap.Any("scope", id), zap.Stringer("type", t))
	emitOverrideSet(r.ctx, id, t.String())
}

// RemoveOverride drops every binding associated with scope id.
func (r *Registry) RemoveOverride(id any) {
	r.overrides.mu.Lock()
	delete(r.overrides.byID, id)
	r.overrides.active.Store(len(r.overrides.byID) > 0)
	r.overrides.mu.Unlock()

	r.log.Debug("override removed", zap.Any("scope", id))
	emitOverrideRemoved(r.ctx, id)
}
