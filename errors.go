package conduit

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnsupportedType indicates no binding can handle a type, or a container
	// shape cannot perform the requested operation.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidRepresentation indicates a channel value cannot be coerced to
	// the requested scalar kind.
	ErrInvalidRepresentation = errors.New("invalid representation")

	// ErrMissingMember indicates an aggregate write targeted a key the
	// destination does not recognize while rejecting unknown keys.
	ErrMissingMember = errors.New("missing member")

	// ErrAccessDenied indicates a member exists but the requested read or
	// write capability is disabled.
	ErrAccessDenied = errors.New("access denied")

	// ErrDecode indicates a codec failed to parse its input.
	ErrDecode = errors.New("decode failed")

	// ErrEncode indicates a codec failed to produce its output.
	ErrEncode = errors.New("encode failed")
)

// TypeError reports a type that has no usable binding or a container
// operation the type's shape cannot perform.
type TypeError struct {
	Err    error        // Underlying sentinel error (ErrUnsupportedType, ErrAccessDenied)
	Type   reflect.Type // Type that failed
	Op     string       // Operation that failed (read, write, append, ...)
	Detail string
}

func (e *TypeError) Error() string {
	msg := e.Err.Error()
	if e.Type != nil {
		msg += " " + e.Type.String()
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// RepresentationError reports a failed scalar coercion at the point it happened.
type RepresentationError struct {
	Want   Kind
	Got    Kind
	Detail string
}

func (e *RepresentationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: cannot read %s as %s: %s", ErrInvalidRepresentation, e.Got, e.Want, e.Detail)
	}
	return fmt.Sprintf("%s: cannot read %s as %s", ErrInvalidRepresentation, e.Got, e.Want)
}

func (e *RepresentationError) Unwrap() error {
	return ErrInvalidRepresentation
}

// MemberError reports an aggregate key the destination rejected.
type MemberError struct {
	Err    error        // Underlying sentinel error (ErrMissingMember, ErrAccessDenied)
	Type   reflect.Type // Aggregate type, nil for untyped destinations
	Member string
}

func (e *MemberError) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("%s %q (type %s)", e.Err.Error(), e.Member, e.Type)
	}
	return fmt.Sprintf("%s %q", e.Err.Error(), e.Member)
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

// CodecError represents a format-level parse or emit failure.
type CodecError struct {
	Err         error // Underlying sentinel error (ErrDecode, ErrEncode)
	ContentType string
	Cause       error // Original error from the format library
}

func (e *CodecError) Error() string {
	msg := e.Err.Error()
	if e.ContentType != "" {
		msg += " (" + e.ContentType + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CodecError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewCodecError wraps a format library error. Codec submodules use it so
// callers can match ErrDecode/ErrEncode regardless of format.
func NewCodecError(sentinel error, contentType string, cause error) error {
	return &CodecError{
		Err:         sentinel,
		ContentType: contentType,
		Cause:       cause,
	}
}

func newTypeError(sentinel error, t reflect.Type, op, detail string) error {
	return &TypeError{
		Err:    sentinel,
		Type:   t,
		Op:     op,
		Detail: detail,
	}
}

func newMemberError(sentinel error, t reflect.Type, member string) error {
	return &MemberError{
		Err:    sentinel,
		Type:   t,
		Member: member,
	}
}

func newRepresentationError(want, got Kind, detail string) error {
	return &RepresentationError{
		Want:   want,
		Got:    got,
		Detail: detail,
	}
}
