package events

import (
	"bytes"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/sweep"
)

type node struct {
	gone atomic.Bool
}

func (n *node) Alive() bool { return !n.gone.Load() }

func TestOnEmit(t *testing.T) {
	h := New(nil, nil)

	var got []string
	h.On("saved", func(e Event) { got = append(got, "first:"+e.Payload.(string)) })
	h.On("saved", func(e Event) { got = append(got, "second:"+e.Payload.(string)) })
	h.On("other", func(Event) { got = append(got, "other") })

	if n := h.Emit("saved", "doc", EmitOptions{}); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if strings.Join(got, ",") != "first:doc,second:doc" {
		t.Errorf("unexpected deliveries %v", got)
	}
}

func TestOnce(t *testing.T) {
	h := New(nil, nil)

	calls := 0
	s := h.On("ping", func(Event) { calls++ }, WithOnce())
	h.Emit("ping", nil, EmitOptions{})
	h.Emit("ping", nil, EmitOptions{})

	if calls != 1 || !s.Destroyed() || h.Len("ping") != 0 {
		t.Errorf("once listener: calls=%d destroyed=%v len=%d", calls, s.Destroyed(), h.Len("ping"))
	}
}

func TestEmitOnceRemovesReceivers(t *testing.T) {
	h := New(nil, nil)
	calls := 0
	h.On("loaded", func(Event) { calls++ })

	h.Emit("loaded", nil, EmitOptions{Once: true})
	h.Emit("loaded", nil, EmitOptions{})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestEmitTarget(t *testing.T) {
	h := New(nil, nil)
	a, b := &node{}, &node{}

	var got []string
	h.On("click", func(Event) { got = append(got, "a") }, WithTarget(a))
	h.On("click", func(Event) { got = append(got, "b") }, WithTarget(b))
	h.On("click", func(Event) { got = append(got, "any") })

	h.Emit("click", nil, EmitOptions{Target: b})
	if strings.Join(got, ",") != "b" {
		t.Errorf("targeted emit reached %v", got)
	}
}

func TestOff(t *testing.T) {
	h := New(nil, nil)
	a := &node{}
	h.On("x", func(Event) {}, WithTarget(a))
	h.On("x", func(Event) {})

	if n := h.Off("x", a); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if n := h.Off("x", nil); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if h.Len("x") != 0 || len(h.Names()) != 0 {
		t.Error("all listeners should be gone")
	}
}

func TestListenerPanicDoesNotStopDelivery(t *testing.T) {
	var buf bytes.Buffer
	h := New(nil, nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	reached := false
	h.On("boom", func(Event) { panic("listener") })
	h.On("boom", func(Event) { reached = true })
	h.Emit("boom", nil, EmitOptions{})

	if !reached {
		t.Error("second listener should still run")
	}
	if !strings.Contains(buf.String(), "R010") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestTargetedListenerIsSwept(t *testing.T) {
	sw := sweep.New(time.Hour)
	h := New(nil, sw)
	target := &node{}

	s := h.On("tick", func(Event) {}, WithTarget(target))
	h.On("tick", func(Event) {})
	if sw.Len() != 1 {
		t.Fatalf("only targeted listeners should be tracked, got %d", sw.Len())
	}

	target.gone.Store(true)
	sw.Sweep()

	if !s.Destroyed() || h.Len("tick") != 1 {
		t.Errorf("dead target's listener should be removed, len=%d", h.Len("tick"))
	}
}

func TestExpressionListener(t *testing.T) {
	ev := sandbox.New()
	h := New(ev, nil)
	data := reactive.NewOwner().Object(map[string]any{"count": 0, "last": ""})

	h.On("add", h.Expression("count += event.detail", data, nil))
	h.On("add", h.Expression("function(e) { last = e.name }", data, nil))

	h.Emit("add", 2, EmitOptions{})
	h.Emit("add", 3, EmitOptions{})

	if got := data.Get("count"); !reactive.Identical(got, 5) {
		t.Errorf("count = %v, want 5", got)
	}
	if got := data.Get("last"); got != "add" {
		t.Errorf("function result should be invoked with the event, last = %v", got)
	}
}
