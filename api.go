// Package conduit binds Go types to a format-neutral value channel.
//
// A Registry resolves a Binding for every type once and caches it. Bindings
// read from a Reader (the pull side of the channel) and write to a Writer
// (the push side). Codecs such as the json, yaml, msgpack and bson submodules
// only implement Reader and Writer; they never see Go types.
//
// # Resolution
//
// The first Lookup of a type walks, in order:
//
//   - explicit bindings installed with Set,
//   - mappers, newest first (WithMapper, AddMapper),
//   - the built-in rules: reflect.Type, RowReader, enums, byte slices,
//     slices and arrays, pointers, interfaces and text-formattable types,
//     named primitives, structs.
//
// Maps with comparable keys, sets (map[K]struct{}), iter.Seq enumerators and
// types with the Collection method set are handled by built-in mappers, so a
// user mapper registered for the same type wins.
//
// # Basic Usage
//
//	type User struct {
//	    ID    string   `conduit:"id"`
//	    Email string   `conduit:"email,omitempty"`
//	    Tags  []string `conduit:"tags"`
//	}
//
//	reg := conduit.New(conduit.WithLogger(logger))
//	tc := conduit.Use[User](reg, json.New())
//
//	data, _ := tc.Encode(ctx, &user)
//	var out User
//	_ = tc.Decode(ctx, data, &out)
//
// # Struct Tags
//
//	conduit:"name,omitempty,readonly,writeonly,order=N"
//	conduit:"-"
//
// Embedded structs without a name are flattened into their owner.
//
// # Scoped Overrides
//
// Override installs a binding that only applies to endpoints tagged with an
// id, either directly (Tag, TagWriter) or through the context (WithScope).
// Endpoints without the id keep using the type-level binding.
//
// # Pausing
//
// Bulk aggregate transfers accept a *Cursor. A stoppable cursor may pause
// the transfer; calling ReadAll again with the same cursor resumes it. The
// resumed output is identical to an uninterrupted transfer.
//
// # Observability
//
// Resolution, override changes and transcoding emit capitan signals (see
// signals.go) and debug entries on the registry's zap logger.
package conduit
