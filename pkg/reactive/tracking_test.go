package reactive

import "testing"

func TestTrackCollectsReadsInOrder(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"a": 1, "b": 2, "c": 3})

	deps := Track(func() {
		_ = obj.Get("b")
		_ = obj.Get("a")
		_ = obj.Get("b")
	})

	if len(deps) != 2 {
		t.Fatalf("expected 2 deps, got %d", len(deps))
	}
	if deps[0].Key() != "b" || deps[1].Key() != "a" {
		t.Errorf("expected [b a], got [%s %s]", deps[0].Key(), deps[1].Key())
	}
}

func TestTrackNested(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"outer": 1, "inner": 2})

	var inner []*Cell
	outer := Track(func() {
		_ = obj.Get("outer")
		inner = Track(func() {
			_ = obj.Get("inner")
		})
	})

	if len(outer) != 1 || outer[0].Key() != "outer" {
		t.Errorf("outer collector leaked inner reads: %d deps", len(outer))
	}
	if len(inner) != 1 || inner[0].Key() != "inner" {
		t.Errorf("inner collector missed its read: %d deps", len(inner))
	}
}

func TestUntracked(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"a": 1, "b": 2})

	deps := Track(func() {
		_ = obj.Get("a")
		Untracked(func() {
			if Tracking() {
				t.Error("Tracking should be false inside Untracked")
			}
			_ = obj.Get("b")
		})
	})

	if len(deps) != 1 || deps[0].Key() != "a" {
		t.Errorf("expected only a, got %d deps", len(deps))
	}
}

func TestTrackInsideUntracked(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"a": 1, "b": 2})

	var inner []*Cell
	outer := Track(func() {
		Untracked(func() {
			inner = Track(func() {
				_ = obj.Get("b")
			})
			_ = obj.Get("a")
		})
	})

	if len(outer) != 0 {
		t.Errorf("outer collector should see nothing, got %d deps", len(outer))
	}
	if len(inner) != 1 || inner[0].Key() != "b" {
		t.Errorf("Track inside Untracked should still collect, got %d deps", len(inner))
	}
}

func TestWatchCallbacksDoNotLeakReads(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"a": 1, "c": 3, "d": 4})
	cell, _ := obj.Cell("a")

	var inner []*Cell
	cell.Watch(func(_, _ any) {
		if Tracking() {
			t.Error("callbacks should run outside the writer's collector")
		}
		_ = obj.Get("d")
		inner = Track(func() {
			_ = obj.Get("c")
		})
	}, nil)

	deps := Track(func() {
		obj.Set("a", 5)
		_ = obj.Get("c")
	})

	for _, d := range deps {
		if d.Key() == "d" {
			t.Errorf("a read made by a watch callback leaked into the writer's deps")
		}
	}
	if len(deps) == 0 || deps[len(deps)-1].Key() != "c" {
		t.Errorf("the writer's own read of c is missing")
	}
	if len(inner) != 1 || inner[0].Key() != "c" {
		t.Errorf("a Track inside the callback should collect its own reads, got %d deps", len(inner))
	}
}

func TestTrackingOutsideTrack(t *testing.T) {
	if Tracking() {
		t.Error("Tracking should be false outside Track")
	}
	Track(func() {
		if !Tracking() {
			t.Error("Tracking should be true inside Track")
		}
	})
}

func TestTrackMissingKeyNotRecorded(t *testing.T) {
	obj := NewOwner().Object(map[string]any{})
	deps := Track(func() {
		_ = obj.Get("missing")
	})
	if len(deps) != 0 {
		t.Errorf("missing key should not be a dependency, got %d", len(deps))
	}
}
