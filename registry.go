package conduit

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/sentinel"
	"go.uber.org/zap"
)

// Binding sources reported by resolution signals.
const (
	SourceExplicit    = "explicit"
	SourceMapper      = "mapper"
	SourceBuiltin     = "builtin"
	SourceUnsupported = "unsupported"
)

// Registry resolves and caches the Strategy for each type.
//
// Type-level lookups are lock-free. First resolution of a type is race-safe:
// concurrent callers all observe the same binding. Mappers and scoped
// overrides are mutated under their own locks.
type Registry struct {
	ctx context.Context
	cfg config
	log *zap.Logger

	slots       sync.Map // reflect.Type -> *slot
	names       sync.Map // type name -> reflect.Type
	members     sync.Map // reflect.Type -> []*Member
	transcoders sync.Map // transcoderKey -> *Transcoder[T]

	mu        sync.Mutex
	mappers   atomic.Pointer[[]Mapper]
	overrides overrides
}

type slot struct {
	once sync.Once
	cur  atomic.Pointer[entry]
}

type entry struct {
	strategy  Strategy
	source    string
	typedOnce sync.Once
	typed     any
}

// New creates a Registry with the built-in bindings and mappers installed.
func New(opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tagName != "conduit" {
		sentinel.Tag(cfg.tagName)
	}
	r := &Registry{
		ctx: context.Background(),
		cfg: cfg,
		log: cfg.logger.Named("conduit"),
	}
	registerBuiltins(r)
	builtinMappers := []Mapper{
		MapperFunc(mapDictionary),
		MapperFunc(mapCollection),
		MapperFunc(mapSeq),
	}
	all := append(builtinMappers, cfg.mappers...)
	r.mappers.Store(&all)
	return r
}

// Lookup returns the active Binding for T, resolving it on first use. Two
// calls without an intervening Set return the same *Binding.
func Lookup[T any](r *Registry) *Binding[T] {
	t := reflect.TypeFor[T]()
	e := r.entry(t)
	e.typedOnce.Do(func() {
		if b, ok := e.strategy.(*Binding[T]); ok {
			e.typed = b
			return
		}
		if t.Kind() == reflect.Struct {
			sentinel.Scan[T]()
		}
		e.typed = bindingOf[T](e.strategy)
	})
	return e.typed.(*Binding[T])
}

// Set replaces the type-level binding for T. Scoped overrides still win for
// endpoints that carry their id.
func Set[T any](r *Registry, b *Binding[T]) {
	r.SetStrategy(reflect.TypeFor[T](), b)
}

// Read pulls a T from rd, honoring any scoped override carried by rd.
func Read[T any](r *Registry, rd Reader) (T, error) {
	t := reflect.TypeFor[T]()
	if s, ok := r.override(t, rd); ok {
		var x T
		err := s.ReadValue(rd, reflect.ValueOf(&x).Elem())
		return x, err
	}
	return Lookup[T](r).Read(rd)
}

// Write pushes v to w, honoring any scoped override carried by w.
func Write[T any](r *Registry, w Writer, v T) error {
	t := reflect.TypeFor[T]()
	if s, ok := r.override(t, w); ok {
		return s.WriteValue(w, reflect.ValueOf(&v).Elem())
	}
	return Lookup[T](r).Write(w, v)
}

// Strategy returns the active strategy for t. It is the type-erased form of
// Lookup for call sites that only hold a reflect.Type.
func (r *Registry) Strategy(t reflect.Type) Strategy {
	return r.entry(t).strategy
}

// StrategyOf returns the active strategy for v's dynamic type.
func (r *Registry) StrategyOf(v any) Strategy {
	if v == nil {
		return unsupported{detail: "nil value has no type"}
	}
	return r.Strategy(reflect.TypeOf(v))
}

// SetStrategy replaces the type-level strategy for t.
func (r *Registry) SetStrategy(t reflect.Type, s Strategy) {
	r.store(t, s, SourceExplicit)
	r.log.Debug("binding replaced", zap.Stringer("type", t))
	emitBindingReplaced(r.ctx, t.String())
}

// ReadValue reads into the value ptr points to.
func (r *Registry) ReadValue(rd Reader, ptr any) error {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() {
		return newTypeError(ErrUnsupportedType, reflect.TypeOf(ptr), "read", "destination must be a non-nil pointer")
	}
	return r.readReflect(rd, pv.Elem())
}

// WriteValue writes v using the strategy of its dynamic type.
func (r *Registry) WriteValue(w Writer, v any) error {
	if v == nil {
		return w.WriteNull()
	}
	return r.writeReflect(w, reflect.ValueOf(v))
}

// RegisterType makes t resolvable by name for reflect.Type values.
func (r *Registry) RegisterType(t reflect.Type) {
	r.names.Store(t.String(), t)
}

// Source reports how t's current binding was produced.
func (r *Registry) Source(t reflect.Type) string {
	return r.entry(t).source
}

func (r *Registry) readReflect(rd Reader, v reflect.Value) error {
	return r.strategyFor(v.Type(), rd).ReadValue(rd, v)
}

func (r *Registry) writeReflect(w Writer, v reflect.Value) error {
	return r.strategyFor(v.Type(), w).WriteValue(w, v)
}

func (r *Registry) strategyFor(t reflect.Type, endpoint any) Strategy {
	if s, ok := r.override(t, endpoint); ok {
		return s
	}
	return r.entry(t).strategy
}

func (r *Registry) override(t reflect.Type, endpoint any) (Strategy, bool) {
	if !r.overrides.active.Load() {
		return nil, false
	}
	id, ok := ScopeOf(endpoint)
	if !ok {
		return nil, false
	}
	return r.overrides.lookup(id, t)
}

func (r *Registry) slot(t reflect.Type) *slot {
	if s, ok := r.slots.Load(t); ok {
		return s.(*slot)
	}
	s, _ := r.slots.LoadOrStore(t, &slot{})
	return s.(*slot)
}

func (r *Registry) entry(t reflect.Type) *entry {
	s := r.slot(t)
	if e := s.cur.Load(); e != nil {
		return e
	}
	s.once.Do(func() {
		if s.cur.Load() != nil {
			return
		}
		e := r.resolve(t)
		if s.cur.CompareAndSwap(nil, e) {
			r.names.Store(t.String(), t)
			r.log.Debug("binding resolved", zap.Stringer("type", t), zap.String("source", e.source))
			emitBindingResolved(r.ctx, t.String(), e.source)
		}
	})
	return s.cur.Load()
}

func (r *Registry) store(t reflect.Type, s Strategy, source string) {
	r.slot(t).cur.Store(&entry{strategy: s, source: source})
	r.names.Store(t.String(), t)
}

// resolve walks mappers newest first, then the built-in rules.
func (r *Registry) resolve(t reflect.Type) *entry {
	mappers := r.mapperList()
	for i := len(mappers) - 1; i >= 0; i-- {
		if s := mappers[i].Map(r, t); s != nil {
			return &entry{strategy: s, source: SourceMapper}
		}
	}
	if s := r.builtin(t); s != nil {
		return &entry{strategy: s, source: SourceBuiltin}
	}
	return &entry{strategy: unsupported{t: t, detail: "no binding"}, source: SourceUnsupported}
}

// Reset clears the transcoder cache. This is primarily useful for test isolation.
func (r *Registry) Reset() {
	r.transcoders.Range(func(k, _ any) bool {
		r.transcoders.Delete(k)
		return true
	})
}
