package reactive

import "testing"

func TestBusReadSignal(t *testing.T) {
	owner := NewOwner()
	obj := owner.Object(map[string]any{"a": 1})

	var got []*Cell
	h := owner.Bus().On(SignalRead, func(c *Cell) { got = append(got, c) })
	defer h.Off()

	_ = obj.Get("a")
	_ = obj.Peek("a")

	if len(got) != 1 || got[0].Key() != "a" {
		t.Errorf("expected one read signal for a, got %d", len(got))
	}
}

func TestBusWriteSignal(t *testing.T) {
	owner := NewOwner()
	obj := owner.Object(map[string]any{"a": 1})

	writes := 0
	owner.Bus().On(SignalWrite, func(*Cell) { writes++ })

	obj.Set("a", 2)
	obj.Set("a", 2)
	obj.Set("b", 1)

	if writes != 2 {
		t.Errorf("expected 2 write signals, got %d", writes)
	}
}

func TestBusOnce(t *testing.T) {
	owner := NewOwner()
	obj := owner.Object(map[string]any{"a": 1, "b": 2})

	calls := 0
	h := owner.Bus().Once(SignalRead, func(*Cell) { calls++ })

	_ = obj.Get("a")
	_ = obj.Get("b")

	if calls != 1 {
		t.Errorf("once handler should fire exactly once, got %d", calls)
	}
	if h.Active() {
		t.Error("once handler should be inactive after firing")
	}
	if owner.Bus().Len(SignalRead) != 0 {
		t.Errorf("once handler should be removed, %d remain", owner.Bus().Len(SignalRead))
	}
}

func TestBusOffDuringEmit(t *testing.T) {
	bus := NewBus()
	owner := NewOwner(WithBus(bus))
	obj := owner.Object(map[string]any{"a": 1})

	var second *Handle
	secondCalls := 0
	bus.On(SignalRead, func(*Cell) { second.Off() })
	second = bus.On(SignalRead, func(*Cell) { secondCalls++ })

	_ = obj.Get("a")

	if secondCalls != 0 {
		t.Errorf("handler removed earlier in the same emit should not run, got %d", secondCalls)
	}
}

func TestBusCapture(t *testing.T) {
	owner := NewOwner()
	obj := owner.Object(map[string]any{"a": 1, "b": 2})

	cells := owner.Bus().Capture(SignalRead, func() {
		_ = obj.Get("a")
		_ = obj.Get("a")
		_ = obj.Get("b")
	})

	if len(cells) != 2 {
		t.Errorf("expected 2 distinct cells, got %d", len(cells))
	}
	if owner.Bus().Len(SignalRead) != 0 {
		t.Error("capture handler should be removed afterwards")
	}
}

func TestSignalKindString(t *testing.T) {
	tests := []struct {
		kind SignalKind
		want string
	}{
		{SignalRead, "read"},
		{SignalWrite, "write"},
		{SignalKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
