package reactor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/binding"
	"github.com/vango-dev/reactor/pkg/events"
	"github.com/vango-dev/reactor/pkg/sandbox"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

func newRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = -1
	}
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(rt.Destroy)
	return rt
}

func TestNew_RejectsNegativeTimeout(t *testing.T) {
	_, err := New(Config{EvalTimeout: -time.Second})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected R006, got %v", err)
	}
}

func TestNew_StartsSweeper(t *testing.T) {
	rt, err := New(Config{SweepInterval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Destroy()

	if !rt.Sweeper().Running() {
		t.Error("expected a running sweeper")
	}
	if rt.Sweeper().Interval() != time.Hour {
		t.Errorf("interval = %s", rt.Sweeper().Interval())
	}

	manual := newRuntime(t, Config{})
	if manual.Sweeper().Running() {
		t.Error("a negative interval should leave the sweeper stopped")
	}
}

func TestEvaluate_ScopeLayers(t *testing.T) {
	rt := newRuntime(t, Config{
		Data:       map[string]any{"first": "Ada", "last": "Lovelace", "greeting": "hey"},
		GlobalData: map[string]any{"greeting": "hello", "site": "docs"},
	})

	tests := []struct {
		expr string
		want string
	}{
		{"first + ' ' + last", "Ada Lovelace"},
		{"site", "docs"},
		{"greeting", "hey"},
		{"$root.first", "Ada"},
	}
	for _, tt := range tests {
		got := rt.Evaluate(sandbox.Options{Expression: tt.expr})
		if fmt.Sprint(got) != tt.want {
			t.Errorf("%q = %v, want %q", tt.expr, got, tt.want)
		}
	}

	if _, err := rt.Exec(sandbox.Options{Expression: "missing.field"}); !errors.HasCode(err, errors.CodeEvaluation) {
		t.Errorf("expected R001, got %v", err)
	}
}

func TestRun(t *testing.T) {
	rt := newRuntime(t, Config{
		Data:       map[string]any{"n": 1},
		GlobalData: map[string]any{"site": "docs"},
	})

	if got := rt.Run("var a = 20; return a + 22"); fmt.Sprint(got) != "42" {
		t.Errorf("Run = %v", got)
	}
	if got := rt.Run("return [typeof n, typeof site, typeof $root].join()"); got != "undefined,undefined,undefined" {
		t.Errorf("Run should see no scope data, got %v", got)
	}
}

func TestBind_ArrayMethodUpdatesOnce(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"items": []any{"a", "b", "c"}}})

	var lengths []any
	rt.Bind(binding.Options{
		Expression: "items.length",
		Sink:       func(v any) { lengths = append(lengths, v) },
	})

	rt.Evaluate(sandbox.Options{Expression: "items.splice(0, 2, 'x', 'y', 'z')", Mode: sandbox.ModeRun})
	rt.Evaluate(sandbox.Options{Expression: "items.sort()", Mode: sandbox.ModeRun})

	if len(lengths) != 3 {
		t.Fatalf("expected one update per call, got %v", lengths)
	}
	if fmt.Sprint(lengths[1]) != "4" {
		t.Errorf("length after splice = %v", lengths[1])
	}
}

func TestBind_FollowsData(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"first": "Ada", "last": "Lovelace"}})

	var got []any
	b := rt.Bind(binding.Options{
		Expression: "first + ' ' + last",
		Sink:       func(v any) { got = append(got, v) },
	})
	if b.State() != binding.StateBound {
		t.Fatalf("state = %s, err = %v", b.State(), b.Err())
	}

	rt.Data().Set("first", "Augusta")

	if len(got) != 2 || got[1] != "Augusta Lovelace" {
		t.Errorf("sink values = %v", got)
	}
}

func TestBindTwoWay_WritesInput(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"name": "hi"}})

	var shown any
	b := rt.BindTwoWay(binding.TwoWayOptions{
		Options: binding.Options{
			Expression: "name",
			Sink:       func(v any) { shown = v },
		},
	})
	if err := b.Input("bye"); err != nil {
		t.Fatal(err)
	}
	if rt.Data().Get("name") != "bye" || shown != "bye" {
		t.Errorf("data = %v, shown = %v", rt.Data().Get("name"), shown)
	}
}

func TestSet_MovesWatches(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"user": "ada"}})

	var seen []any
	w := rt.Watch("user", func(v, _ any) { seen = append(seen, v) }, nil)
	if w == nil {
		t.Fatal("expected a watch")
	}

	target := rt.Set(map[string]any{"user": "grace", "role": "admin"}, nil)
	if target != rt.Data() {
		t.Error("nil target should be the instance data")
	}
	if rt.Data().Get("role") != "admin" {
		t.Error("new keys should be added")
	}
	if len(seen) == 0 || seen[len(seen)-1] != "grace" {
		t.Fatalf("watch should follow the transferred cell, saw %v", seen)
	}

	rt.Data().Set("user", "linus")
	if seen[len(seen)-1] != "linus" {
		t.Errorf("watch should observe later writes, saw %v", seen)
	}

	if rt.Watch("nope", func(any, any) {}, nil) != nil {
		t.Error("watching a missing property should return nil")
	}
}

func TestReact(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"a": 1, "b": 2}})

	var sums []int
	rt.React(func() {
		sums = append(sums, rt.Data().Get("a").(int)+rt.Data().Get("b").(int))
	}, nil)
	rt.Data().Set("b", 5)

	if len(sums) != 2 || sums[1] != 6 {
		t.Errorf("sums = %v", sums)
	}
}

func TestUnbindAndSweep(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"x": 1}})

	lf := &liveFlag{alive: true}
	calls := 0
	b := rt.Bind(binding.Options{
		Expression: "x",
		Liveness:   lf,
		Sink:       func(any) { calls++ },
	})

	if n := rt.Sweep(); n != 0 {
		t.Errorf("nothing should be collected yet, got %d", n)
	}
	lf.alive = false
	if n := rt.Sweep(); n == 0 {
		t.Error("expected the dead binding to be collected")
	}
	if !b.Destroyed() {
		t.Error("binding should be destroyed")
	}

	before := calls
	rt.Data().Set("x", 2)
	if calls != before {
		t.Error("destroyed binding should not receive values")
	}

	other := &liveFlag{alive: true}
	rt.Bind(binding.Options{Expression: "x", Liveness: other})
	if n := rt.Unbind(other); n != 1 {
		t.Errorf("Unbind = %d", n)
	}
}

type liveFlag struct{ alive bool }

func (l *liveFlag) Alive() bool { return l.alive }

func TestEvents(t *testing.T) {
	rt := newRuntime(t, Config{})

	var got []any
	rt.On("saved", func(e events.Event) { got = append(got, e.Payload) })
	if n := rt.Emit("saved", 1); n != 1 {
		t.Errorf("Emit = %d", n)
	}
	rt.Emit("saved", 2, events.EmitOptions{Once: true})
	rt.Emit("saved", 3)

	if len(got) != 2 || got[1] != 2 {
		t.Errorf("payloads = %v", got)
	}
	if rt.Off("saved", nil) != 0 {
		t.Error("once emit should have removed the listener")
	}
}

func TestLazy_Debounces(t *testing.T) {
	rt := newRuntime(t, Config{})

	var (
		mu    sync.Mutex
		calls [][]any
	)
	done := make(chan struct{}, 1)
	fn := rt.Lazy(func(args ...any) {
		mu.Lock()
		calls = append(calls, args)
		mu.Unlock()
		done <- struct{}{}
	}, 20*time.Millisecond)

	fn(1)
	fn(2)
	fn(3)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if len(calls[0]) != 1 || calls[0][0] != 3 {
		t.Errorf("expected the latest arguments, got %v", calls[0])
	}
}

func TestDo_Serializes(t *testing.T) {
	rt := newRuntime(t, Config{Data: map[string]any{"n": 0}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.Do(func() {
				rt.Data().Set("n", rt.Data().Peek("n").(int)+1)
			})
		}()
	}
	wg.Wait()

	if got := rt.Data().Peek("n"); got != 50 {
		t.Errorf("n = %v", got)
	}
}

func TestDestroy(t *testing.T) {
	rt, err := New(Config{SweepInterval: time.Hour, Data: map[string]any{"x": 1}})
	if err != nil {
		t.Fatal(err)
	}

	var order []string
	rt.On(EventBeforeDestroy, func(e events.Event) { order = append(order, e.Name) })
	rt.On(EventDestroyed, func(e events.Event) { order = append(order, e.Name) })
	b := rt.Bind(binding.Options{Expression: "x"})

	rt.Destroy()
	rt.Destroy()

	if len(order) != 2 || order[0] != EventBeforeDestroy || order[1] != EventDestroyed {
		t.Errorf("events = %v", order)
	}
	if !rt.IsDestroyed() || !b.Destroyed() {
		t.Error("runtime and bindings should be destroyed")
	}
	if rt.Sweeper().Running() {
		t.Error("sweeper should be stopped")
	}
	if rt.Events().Len(EventDestroyed) != 0 {
		t.Error("destroyed listeners should be removed")
	}
}

func TestMetrics_CountWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	rt := newRuntime(t, Config{Data: map[string]any{"x": 1}, Metrics: m})

	rt.Data().Set("x", 2)
	rt.Data().Set("x", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var writes float64
	for _, f := range families {
		if f.GetName() == "reactor_cell_writes_total" {
			writes = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if writes != 2 {
		t.Errorf("writes = %v", writes)
	}
}
