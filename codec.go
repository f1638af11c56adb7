package conduit

import "context"

// Codec binds a wire format to the value channel.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// NewReader returns a Reader positioned on the root value of data.
	NewReader(ctx context.Context, data []byte) (Reader, error)

	// NewWriter returns an Encoder that collects exactly one root value.
	NewWriter(ctx context.Context) Encoder
}

// Encoder is a Writer that renders the value written to it.
type Encoder interface {
	Writer

	// Bytes returns the encoded root value. It fails when nothing was written.
	Bytes() ([]byte, error)
}

// Finisher is implemented by codec readers that can verify the input was
// fully consumed after the root value.
type Finisher interface {
	Finish() error
}
