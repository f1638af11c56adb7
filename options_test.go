package conduit

import (
	"testing"

	"go.uber.org/zap"
)

func TestOptions(t *testing.T) {
	c := defaultConfig()
	if c.tagName != "conduit" || c.defaultCapacity != DefaultCapacity || c.logger == nil {
		t.Fatalf("defaultConfig() = %+v", c)
	}

	l := zap.NewExample()
	for _, opt := range []Option{
		WithLogger(l),
		WithLogger(nil),
		WithTagName("wire"),
		WithTagName(""),
		WithRejectUnknown(true),
		WithOmitDefaults(true),
		WithTypedColumns(true),
		WithDefaultCapacity(64),
		WithDefaultCapacity(-1),
		WithMapper(MapperFunc(mapSeq)),
	} {
		opt(&c)
	}

	if c.logger != l {
		t.Error("WithLogger(nil) should keep the previous logger")
	}
	if c.tagName != "wire" {
		t.Errorf("tagName = %q, want wire", c.tagName)
	}
	if !c.rejectUnknown || !c.omitDefaults || !c.typedColumns {
		t.Error("boolean options not applied")
	}
	if c.defaultCapacity != 64 {
		t.Errorf("defaultCapacity = %d, want 64", c.defaultCapacity)
	}
	if len(c.mappers) != 1 {
		t.Errorf("got %d mappers, want 1", len(c.mappers))
	}
}
