package conduit_test

import (
	"reflect"
	"testing"

	"github.com/zoobzio/conduit"
)

func TestCursor_Nil(t *testing.T) {
	var c *conduit.Cursor
	if c.CanBeStopped() {
		t.Error("nil cursor should not be stoppable")
	}
	c.RequestStop()
	if c.StopRequested() {
		t.Error("nil cursor should never report a stop")
	}
	if _, ok := c.PopState(); ok {
		t.Error("nil cursor should have no state")
	}
	c.SetState(1)
	c.Resume()
	c.Abandon()
	if c.Paused() {
		t.Error("nil cursor should never be paused")
	}
}

func TestCursor_State(t *testing.T) {
	c := conduit.NewCursor()
	if _, ok := c.PopState(); ok {
		t.Fatal("fresh cursor should report no saved state")
	}
	c.SetState("pos")
	if !c.Paused() {
		t.Error("cursor with saved state should be paused")
	}
	st, ok := c.PopState()
	if !ok || st != "pos" {
		t.Errorf("PopState() = %v, %v", st, ok)
	}
	if _, ok := c.PopState(); ok {
		t.Error("PopState() should clear the state")
	}

	c.RequestStop()
	if !c.StopRequested() {
		t.Error("StopRequested() should report an explicit request")
	}
	c.Resume()
	if c.StopRequested() {
		t.Error("Resume() should clear the request")
	}
}

func TestCursor_StopFunc(t *testing.T) {
	calls := 0
	c := conduit.NewCursor(conduit.WithStopFunc(func() bool {
		calls++
		return calls == 3
	}))
	for i := 0; i < 2; i++ {
		if c.StopRequested() {
			t.Fatalf("stopped after %d elements", i+1)
		}
	}
	if !c.StopRequested() {
		t.Error("stop func returning true should stop the transfer")
	}
}

func drive(t *testing.T, src conduit.AggregateReader[int], sink conduit.AggregateWriter[int], cur *conduit.Cursor) int {
	t.Helper()
	runs := 0
	for {
		runs++
		if err := src.ReadAll(sink, cur); err != nil {
			t.Fatalf("ReadAll() run %d error: %v", runs, err)
		}
		if !cur.Paused() {
			return runs
		}
		cur.Resume()
	}
}

func TestCursor_ResumeEquivalence(t *testing.T) {
	reg := conduit.New()
	const n = 10000

	in := make([]int, n)
	want := make([]int64, n)
	for i := range in {
		in[i] = i * 3
		want[i] = int64(i * 3)
	}

	t.Run("slice", func(t *testing.T) {
		sink := &intCollector{}
		runs := drive(t, captureArray(t, reg, in), sink, conduit.NewCursor(conduit.WithStopAfter(7)))
		if runs < n/7 {
			t.Errorf("runs = %d, want the transfer to pause", runs)
		}
		if sink.inits != 1 {
			t.Errorf("Init called %d times, want 1", sink.inits)
		}
		if !reflect.DeepEqual(sink.got, want) {
			t.Error("paused transfer produced different output")
		}
	})

	t.Run("enumerator", func(t *testing.T) {
		sink := &intCollector{}
		runs := drive(t, captureArray(t, reg, seqOf(in...)), sink, conduit.NewCursor(conduit.WithStopAfter(100)))
		if runs < n/100 {
			t.Errorf("runs = %d, want the transfer to pause", runs)
		}
		if !reflect.DeepEqual(sink.got, want) {
			t.Error("paused enumerator transfer produced different output")
		}
	})

	t.Run("uninterrupted", func(t *testing.T) {
		sink := &intCollector{}
		if runs := drive(t, captureArray(t, reg, in), sink, nil); runs != 1 {
			t.Errorf("runs = %d, want 1", runs)
		}
		if !reflect.DeepEqual(sink.got, want) {
			t.Error("uninterrupted transfer produced different output")
		}
	})

	t.Run("no pause on last element", func(t *testing.T) {
		sink := &intCollector{}
		cur := conduit.NewCursor(conduit.WithStopAfter(3))
		runs := drive(t, captureArray(t, reg, []int{1, 2, 3}), sink, cur)
		if runs != 1 {
			t.Errorf("runs = %d, want 1", runs)
		}
	})
}

func TestCursor_Abandon(t *testing.T) {
	reg := conduit.New()
	src := captureArray(t, reg, seqOf(1, 2, 3, 4))
	sink := &intCollector{}
	cur := conduit.NewCursor(conduit.WithStopAfter(1))

	if err := src.ReadAll(sink, cur); err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !cur.Paused() {
		t.Fatal("transfer should have paused")
	}
	cur.Abandon()
	if cur.Paused() {
		t.Error("Abandon() should drop the saved position")
	}
	if len(sink.got) != 1 {
		t.Errorf("got %d elements before pausing, want 1", len(sink.got))
	}
}
