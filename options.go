package conduit

import "go.uber.org/zap"

// Option configures a Registry.
type Option func(*config)

type config struct {
	logger          *zap.Logger
	mappers         []Mapper
	tagName         string
	rejectUnknown   bool
	omitDefaults    bool
	typedColumns    bool
	defaultCapacity int
}

func defaultConfig() config {
	return config{
		logger:          zap.NewNop(),
		tagName:         "conduit",
		defaultCapacity: DefaultCapacity,
	}
}

// WithLogger sets the registry's logger. Resolution and override changes are
// logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMapper registers a mapper at construction, after the built-in mappers.
func WithMapper(m Mapper) Option {
	return func(c *config) {
		c.mappers = append(c.mappers, m)
	}
}

// WithTagName sets the struct tag read by the object adapter.
func WithTagName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.tagName = name
		}
	}
}

// WithRejectUnknown makes object writes fail with ErrMissingMember on keys
// the destination does not recognize. By default such keys are drained and
// dropped.
func WithRejectUnknown(reject bool) Option {
	return func(c *config) {
		c.rejectUnknown = reject
	}
}

// WithOmitDefaults skips zero-valued members when writing objects.
func WithOmitDefaults(omit bool) Option {
	return func(c *config) {
		c.omitDefaults = omit
	}
}

// WithTypedColumns makes table columns discovered from the first row take
// the type of that row's values. Otherwise discovered columns are untyped.
func WithTypedColumns(typed bool) Option {
	return func(c *config) {
		c.typedColumns = typed
	}
}

// WithDefaultCapacity sets the capacity used to initialize destinations whose
// source size is unknown.
func WithDefaultCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.defaultCapacity = n
		}
	}
}
