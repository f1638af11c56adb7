package conduit

// Cursor carries pause/resume state for a bulk aggregate transfer.
//
// A driver passes the same Cursor to repeated ReadAll calls. When a stop is
// requested the adapter saves its position with SetState and returns; the
// next call pops that state and continues from it. Pausing never changes the
// eventual output. A nil *Cursor is valid and can never be stopped.
//
// Cursors are single-threaded: pausing returns control to the caller, it
// never blocks.
type Cursor struct {
	stop      func() bool
	stopAfter int
	seen      int
	requested bool
	state     any
	hasState  bool
}

// CursorOption configures a Cursor.
type CursorOption func(*Cursor)

// WithStopFunc consults fn after every element; returning true pauses the transfer.
func WithStopFunc(fn func() bool) CursorOption {
	return func(c *Cursor) {
		c.stop = fn
	}
}

// WithStopAfter pauses the transfer after n elements per run.
func WithStopAfter(n int) CursorOption {
	return func(c *Cursor) {
		c.stopAfter = n
	}
}

// NewCursor creates a stoppable cursor.
func NewCursor(opts ...CursorOption) *Cursor {
	c := &Cursor{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanBeStopped reports whether adapters must honor stop requests.
func (c *Cursor) CanBeStopped() bool {
	return c != nil
}

// RequestStop asks the running transfer to pause after the current element.
func (c *Cursor) RequestStop() {
	if c != nil {
		c.requested = true
	}
}

// StopRequested is called by adapters after each element.
func (c *Cursor) StopRequested() bool {
	if c == nil {
		return false
	}
	if c.requested {
		return true
	}
	if c.stopAfter > 0 {
		c.seen++
		if c.seen >= c.stopAfter {
			c.requested = true
		}
	}
	if !c.requested && c.stop != nil && c.stop() {
		c.requested = true
	}
	return c.requested
}

// PopState returns and clears the saved position. The first call on a fresh
// cursor reports false: start from the beginning.
func (c *Cursor) PopState() (any, bool) {
	if c == nil || !c.hasState {
		return nil, false
	}
	st := c.state
	c.state, c.hasState = nil, false
	return st, true
}

// SetState saves an adapter-defined position.
func (c *Cursor) SetState(st any) {
	if c == nil {
		return
	}
	c.state, c.hasState = st, true
}

// Paused reports whether a transfer returned with a saved position.
func (c *Cursor) Paused() bool {
	return c != nil && c.hasState
}

// Resume clears the stop request so the next ReadAll call continues.
func (c *Cursor) Resume() {
	if c == nil {
		return
	}
	c.requested = false
	c.seen = 0
}

// Abandon drops a saved position and releases whatever the adapter held
// open for it, such as a pulled iterator.
func (c *Cursor) Abandon() {
	if c == nil {
		return
	}
	if r, ok := c.state.(interface{ release() }); ok {
		r.release()
	}
	c.state, c.hasState = nil, false
	c.Resume()
}
