package conduit

import "reflect"

// Mapper produces a Strategy for types that have no explicit binding.
// Map returns nil to decline. Mappers run once per type, on first use; they
// must not resolve the type they are mapping through the registry, but may
// look up other types lazily from inside the returned strategy.
type Mapper interface {
	Map(r *Registry, t reflect.Type) Strategy
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(r *Registry, t reflect.Type) Strategy

func (f MapperFunc) Map(r *Registry, t reflect.Type) Strategy { return f(r, t) }

// AddMapper registers m ahead of every previously registered mapper. Types
// that are already resolved keep their binding.
func (r *Registry) AddMapper(m Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.mapperList()
	next := make([]Mapper, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, m)
	r.mappers.Store(&next)
	r.log.Debug("mapper added")
	emitMapperAdded(r.ctx, len(next))
}

// mapperList returns mappers in registration order; resolution walks it backwards.
func (r *Registry) mapperList() []Mapper {
	if p := r.mappers.Load(); p != nil {
		return *p
	}
	return nil
}
