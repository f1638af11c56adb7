package conduit

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag("conduit")
}

// Member is the accessor for one struct field exposed as an object member.
type Member struct {
	Name      string
	Owner     reflect.Type // struct type declaring the member
	Type      reflect.Type // declared field type
	Order     int
	CanRead   bool // member can be read out of a value (written to a channel)
	CanWrite  bool // member can be assigned from a channel
	OmitEmpty bool

	index  []int
	tagged bool // name came from a tag
	r      *Registry
}

// ReadTo pushes the member's value in obj to w.
func (m *Member) ReadTo(obj reflect.Value, w Writer) error {
	if !m.CanRead {
		return newMemberError(ErrAccessDenied, m.Owner, m.Name)
	}
	return m.r.writeReflect(w, obj.FieldByIndex(m.index))
}

// WriteFrom assigns the value at rd to the member in obj, which must be
// settable. Null clears the member.
func (m *Member) WriteFrom(obj reflect.Value, rd Reader) error {
	if !m.CanWrite {
		return newMemberError(ErrAccessDenied, m.Owner, m.Name)
	}
	fv := obj.FieldByIndex(m.index)
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		fv.SetZero()
		return nil
	}
	return m.r.readReflect(rd, fv)
}

// isDefault reports whether the member holds its zero value in obj.
func (m *Member) isDefault(obj reflect.Value) bool {
	return obj.FieldByIndex(m.index).IsZero()
}

// Members returns t's object members in write order.
func (r *Registry) Members(t reflect.Type) []*Member {
	if cached, ok := r.members.Load(t); ok {
		return cached.([]*Member)
	}
	ms := dominantMembers(r.buildMembers(t, nil, t))
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Order < ms[j].Order })
	cached, _ := r.members.LoadOrStore(t, ms)
	return cached.([]*Member)
}

// ReadMembers pushes every readable member of obj to sink, skipping
// default-valued members when omitDefaults is set or the member is omitempty.
func ReadMembers(members []*Member, obj reflect.Value, sink AggregateWriter[string], omitDefaults bool) error {
	selected := selectMembers(members, obj, omitDefaults)
	if err := sink.Init(len(selected)); err != nil {
		return err
	}
	for _, m := range selected {
		if err := m.ReadTo(obj, sink.At(m.Name)); err != nil {
			return err
		}
	}
	return nil
}

// WriteMembers assigns members of obj from src, key by key.
func WriteMembers(members []*Member, obj reflect.Value, src AggregateReader[string]) error {
	byName := make(map[string]*Member, len(members))
	for _, m := range members {
		byName[m.Name] = m
	}
	for _, k := range src.Keys() {
		m, ok := byName[k]
		if !ok {
			return newMemberError(ErrMissingMember, obj.Type(), k)
		}
		if err := m.WriteFrom(obj, src.At(k)); err != nil {
			return err
		}
	}
	return nil
}

func selectMembers(members []*Member, obj reflect.Value, omitDefaults bool) []*Member {
	out := make([]*Member, 0, len(members))
	for _, m := range members {
		if !m.CanRead {
			continue
		}
		if (m.OmitEmpty || omitDefaults) && m.isDefault(obj) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// structMetadata returns sentinel's metadata for t, scanning with reflection
// when t was never registered through sentinel.Scan.
func structMetadata(t reflect.Type, tagName string) sentinel.Metadata {
	if meta, ok := sentinel.Lookup(t.String()); ok && metadataMatches(meta, t) {
		return meta
	}
	meta := sentinel.Metadata{
		TypeName:    t.Name(),
		PackageName: t.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, t.NumField()),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        map[string]string{},
		}
		if tag, ok := sf.Tag.Lookup(tagName); ok {
			fm.Tags[tagName] = tag
		}
		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}
		meta.Fields = append(meta.Fields, fm)
	}
	return meta
}

// metadataMatches guards against a cached entry for a different type that
// shares t's printed name, such as two function-local types.
func metadataMatches(meta sentinel.Metadata, t reflect.Type) bool {
	if len(meta.Fields) == 0 || meta.TypeName != t.Name() || meta.PackageName != t.PkgPath() {
		return false
	}
	seen := make(map[int]bool, len(meta.Fields))
	for _, f := range meta.Fields {
		if len(f.Index) == 0 || f.Index[0] >= t.NumField() {
			return false
		}
		if sf := t.Field(f.Index[0]); len(f.Index) == 1 && (sf.Name != f.Name || sf.Type != f.ReflectType) {
			return false
		}
		seen[f.Index[0]] = true
	}
	for i := 0; i < t.NumField(); i++ {
		if sf := t.Field(i); (sf.IsExported() || sf.Anonymous) && !seen[i] {
			return false
		}
	}
	return true
}

// dominantMembers resolves name collisions between flattened members the
// way Go promotes embedded fields: the shallowest member wins, a tagged
// member breaks a tie at that depth, and a name still ambiguous after that
// is dropped.
func dominantMembers(ms []*Member) []*Member {
	byName := make(map[string][]*Member, len(ms))
	for _, m := range ms {
		byName[m.Name] = append(byName[m.Name], m)
	}
	out := make([]*Member, 0, len(ms))
	for _, m := range ms {
		if dominant(byName[m.Name]) == m {
			out = append(out, m)
		}
	}
	return out
}

// dominant returns the member that owns a name, or nil when none does.
func dominant(ms []*Member) *Member {
	if len(ms) == 1 {
		return ms[0]
	}
	depth := len(ms[0].index)
	for _, m := range ms[1:] {
		depth = min(depth, len(m.index))
	}
	var shallow, tagged []*Member
	for _, m := range ms {
		if len(m.index) != depth {
			continue
		}
		shallow = append(shallow, m)
		if m.tagged {
			tagged = append(tagged, m)
		}
	}
	switch {
	case len(shallow) == 1:
		return shallow[0]
	case len(tagged) == 1:
		return tagged[0]
	}
	return nil
}

// buildMembers flattens embedded structs without a name tag into owner.
func (r *Registry) buildMembers(t reflect.Type, prefix []int, owner reflect.Type) []*Member {
	meta := structMetadata(t, r.cfg.tagName)
	var out []*Member
	for _, f := range meta.Fields {
		sf := t.FieldByIndex(f.Index)
		tag, hasTag := f.Tags[r.cfg.tagName]
		if !hasTag {
			tag, hasTag = sf.Tag.Lookup(r.cfg.tagName)
		}
		if tag == "-" {
			continue
		}
		index := append(append([]int{}, prefix...), f.Index...)
		name, opts, _ := strings.Cut(tag, ",")
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			out = append(out, r.buildMembers(sf.Type, index, owner)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		tagged := name != ""
		if !tagged {
			name = sf.Name
		}
		m := &Member{
			Name:     name,
			Owner:    owner,
			Type:     sf.Type,
			CanRead:  true,
			CanWrite: true,
			index:    index,
			tagged:   tagged,
			r:        r,
		}
		for _, opt := range strings.Split(opts, ",") {
			switch {
			case opt == "omitempty":
				m.OmitEmpty = true
			case opt == "readonly":
				m.CanWrite = false
			case opt == "writeonly":
				m.CanRead = false
			case strings.HasPrefix(opt, "order="):
				m.Order, _ = strconv.Atoi(strings.TrimPrefix(opt, "order="))
			}
		}
		out = append(out, m)
	}
	return out
}

// objectStrategy is the default structural adapter: a struct travels as an
// object of its members. A struct with no accessible members is unsupported,
// which surfaces on first read or write.
type objectStrategy struct {
	r *Registry
	t reflect.Type
}

func (s objectStrategy) members() ([]*Member, error) {
	ms := s.r.Members(s.t)
	if len(ms) == 0 {
		return nil, newTypeError(ErrUnsupportedType, s.t, "", "no accessible members")
	}
	return ms, nil
}

func (s objectStrategy) ReadValue(rd Reader, v reflect.Value) error {
	ms, err := s.members()
	if err != nil {
		return err
	}
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	return rd.ReadObject(&objectWriter{r: s.r, v: v, members: ms, ctx: rd})
}

func (s objectStrategy) WriteValue(w Writer, v reflect.Value) error {
	ms, err := s.members()
	if err != nil {
		return err
	}
	return w.WriteObject(&objectReader{
		r:       s.r,
		v:       v,
		members: selectMembers(ms, v, s.r.cfg.omitDefaults),
		ctx:     w,
	})
}

type objectReader struct {
	r       *Registry
	v       reflect.Value
	members []*Member
	ctx     any
}

func (o *objectReader) Keys() []string {
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Name
	}
	return keys
}

func (o *objectReader) Count() int { return len(o.members) }

func (o *objectReader) At(k string) Reader {
	for _, m := range o.members {
		if m.Name == k {
			return pullReader(ContextOf(o.ctx), func(w Writer) error {
				return m.ReadTo(o.v, w)
			})
		}
	}
	return ErrReader(newMemberError(ErrMissingMember, o.v.Type(), k))
}

func (o *objectReader) ReadAll(sink AggregateWriter[string], cur *Cursor) error {
	if !cur.CanBeStopped() {
		return ReadMembers(o.members, o.v, sink, false)
	}
	return ReadAllKeys[string](o, sink, cur)
}

// objectWriter assigns incoming members. Unknown keys and read-only members
// are drained, unless the registry rejects unknown keys: then they fail with
// ErrMissingMember and ErrAccessDenied.
type objectWriter struct {
	r       *Registry
	v       reflect.Value
	members []*Member
	ctx     any
}

// Init keeps existing member values: decoding into a populated struct only
// touches the members present in the source.
func (o *objectWriter) Init(int) error { return nil }

func (o *objectWriter) Keys() []string {
	keys := make([]string, 0, len(o.members))
	for _, m := range o.members {
		if m.CanWrite {
			keys = append(keys, m.Name)
		}
	}
	return keys
}

func (o *objectWriter) Count() int { return len(o.members) }

func (o *objectWriter) At(k string) Writer {
	for _, m := range o.members {
		if m.Name != k {
			continue
		}
		if !m.CanWrite {
			if o.r.cfg.rejectUnknown {
				return ErrWriter(newMemberError(ErrAccessDenied, o.v.Type(), k))
			}
			return Discard(ContextOf(o.ctx))
		}
		return slotWriter(ContextOf(o.ctx), func(rd Reader) error {
			return m.WriteFrom(o.v, rd)
		})
	}
	if o.r.cfg.rejectUnknown {
		return ErrWriter(newMemberError(ErrMissingMember, o.v.Type(), k))
	}
	return Discard(ContextOf(o.ctx))
}

func (o *objectWriter) WriteAll(src AggregateReader[string], cur *Cursor) error {
	if src.Keys() != nil && !cur.CanBeStopped() && o.r.cfg.rejectUnknown {
		return WriteMembers(o.members, o.v, src)
	}
	return src.ReadAll(o, cur)
}
