package conduit

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for registry and transcoder events.
var (
	SignalBindingResolved   = capitan.NewSignal("conduit.binding.resolved", "Type binding resolved on first use")
	SignalBindingReplaced   = capitan.NewSignal("conduit.binding.replaced", "Type binding replaced explicitly")
	SignalMapperAdded       = capitan.NewSignal("conduit.mapper.added", "Fallback mapper registered")
	SignalOverrideSet       = capitan.NewSignal("conduit.override.set", "Scoped override registered")
	SignalOverrideRemoved   = capitan.NewSignal("conduit.override.removed", "Scoped override removed")
	SignalTranscoderCreated = capitan.NewSignal("conduit.transcoder.created", "Transcoder instantiated")
	SignalEncodeStart       = capitan.NewSignal("conduit.encode.start", "Encode operation beginning")
	SignalEncodeComplete    = capitan.NewSignal("conduit.encode.complete", "Encode operation finished")
	SignalDecodeStart       = capitan.NewSignal("conduit.decode.start", "Decode operation beginning")
	SignalDecodeComplete    = capitan.NewSignal("conduit.decode.complete", "Decode operation finished")
)

// Keys for typed event data.
var (
	KeyTypeName    = capitan.NewStringKey("type_name")
	KeySource      = capitan.NewStringKey("source")
	KeyScope       = capitan.NewStringKey("scope")
	KeyContentType = capitan.NewStringKey("content_type")
	KeySize        = capitan.NewIntKey("size")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
)

func emitBindingResolved(ctx context.Context, typeName, source string) {
	capitan.Emit(ctx, SignalBindingResolved,
		KeyTypeName.Field(typeName),
		KeySource.Field(source),
	)
}

func emitBindingReplaced(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalBindingReplaced,
		KeyTypeName.Field(typeName),
	)
}

func emitMapperAdded(ctx context.Context, count int) {
	capitan.Emit(ctx, SignalMapperAdded,
		KeySize.Field(count),
	)
}

func emitOverrideSet(ctx context.Context, id any, typeName string) {
	capitan.Emit(ctx, SignalOverrideSet,
		KeyScope.Field(fmt.Sprint(id)),
		KeyTypeName.Field(typeName),
	)
}

func emitOverrideRemoved(ctx context.Context, id any) {
	capitan.Emit(ctx, SignalOverrideRemoved,
		KeyScope.Field(fmt.Sprint(id)),
	)
}

// emitTranscoderCreated emits an event when a transcoder is created.
func emitTranscoderCreated(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalTranscoderCreated,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitEncodeStart emits an event when encode begins.
func emitEncodeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitEncodeComplete emits an event when encode finishes.
func emitEncodeComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

// emitDecodeStart emits an event when decode begins.
func emitDecodeStart(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalDecodeStart,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

// emitDecodeComplete emits an event when decode finishes.
func emitDecodeComplete(ctx context.Context, contentType, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}
