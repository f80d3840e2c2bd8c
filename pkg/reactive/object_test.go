package reactive

import (
	"testing"

	"github.com/vango-dev/reactor/internal/errors"
)

func TestTransformIdempotent(t *testing.T) {
	owner := NewOwner()
	raw := map[string]any{"a": 1}

	first, err := owner.Transform(raw)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	second, _ := owner.Transform(raw)
	third, _ := owner.Transform(first)

	if first != second || first != third {
		t.Error("transforming the same data twice should return the same object")
	}
}

func TestTransformRejectsScalars(t *testing.T) {
	_, err := NewOwner().Transform(42)
	if !errors.HasCode(err, errors.CodeNotContainer) {
		t.Errorf("expected R005, got %v", err)
	}
}

func TestTransformNilMap(t *testing.T) {
	out, err := NewOwner().Transform(map[string]any(nil))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	obj, ok := out.(*Object)
	if !ok {
		t.Fatalf("a nil map should become an empty *Object, got %T", out)
	}
	if len(obj.Keys()) != 0 {
		t.Errorf("expected no keys, got %v", obj.Keys())
	}
	obj.Set("a", 1)
	if obj.Get("a") != 1 {
		t.Error("the object should accept writes")
	}
}

func TestTransformNested(t *testing.T) {
	obj := NewOwner().Object(map[string]any{
		"user": map[string]any{"name": "ada"},
		"tags": []any{"a", "b"},
	})

	user, ok := obj.Get("user").(*Object)
	if !ok {
		t.Fatalf("nested map should be an *Object, got %T", obj.Get("user"))
	}
	if user.Get("name") != "ada" {
		t.Errorf("expected ada, got %v", user.Get("name"))
	}
	if _, ok := obj.Get("tags").(*Array); !ok {
		t.Errorf("nested slice should be an *Array, got %T", obj.Get("tags"))
	}
}

func TestTransformTypedMap(t *testing.T) {
	out, err := NewOwner().Transform(map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	obj := out.(*Object)
	if obj.Get("x") != 1 {
		t.Errorf("expected 1, got %v", obj.Get("x"))
	}
}

func TestTransformCycle(t *testing.T) {
	raw := map[string]any{"name": "loop"}
	raw["self"] = raw

	obj := NewOwner().Object(raw)
	if obj.Get("self") != obj {
		t.Error("self reference should resolve to the same object")
	}
	snap := obj.Snapshot()
	if snap["self"] != nil {
		t.Error("snapshot should cut cycles")
	}
}

func TestObjectKeysKeepOrder(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"b": 1, "a": 2})
	obj.Set("c", 3)

	keys := obj.Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestObjectDelete(t *testing.T) {
	obj := NewOwner().Object(map[string]any{"a": 1})
	if !obj.Delete("a") {
		t.Fatal("expected delete to succeed")
	}
	if obj.Delete("a") {
		t.Error("second delete should report false")
	}
	if obj.Has("a") || obj.Len() != 0 {
		t.Error("deleted key should be gone")
	}
	if _, ok := obj.Raw()["a"]; ok {
		t.Error("raw map should lose the key")
	}
}

func TestObjectTransferMigratesWatches(t *testing.T) {
	owner := NewOwner()
	target := owner.Object(map[string]any{"msg": "old"})
	source := owner.Object(map[string]any{"msg": "new"})

	oldCell, _ := target.Cell("msg")
	calls, cb := recorder()
	w := oldCell.Watch(cb, nil)

	if !target.Transfer("msg", source) {
		t.Fatal("transfer should succeed")
	}

	if len(*calls) != 1 || (*calls)[0].newValue != "new" {
		t.Fatalf("expected watch to be told about the new value, got %v", *calls)
	}
	srcCell, _ := source.Cell("msg")
	if w.Cell() != srcCell {
		t.Error("watch should now be attached to the transferred cell")
	}

	source.Set("msg", "newer")
	if target.Get("msg") != "newer" {
		t.Errorf("target should share the cell, got %v", target.Get("msg"))
	}
	if target.Raw()["msg"] != "newer" {
		t.Errorf("target raw map should follow, got %v", target.Raw()["msg"])
	}
	if len(*calls) != 2 {
		t.Errorf("expected a second notification, got %d", len(*calls))
	}
}

func TestObjectTransferMissingKey(t *testing.T) {
	owner := NewOwner()
	if owner.Object(nil).Transfer("x", owner.Object(nil)) {
		t.Error("transfer of a missing key should report false")
	}
}

func TestDefaultOwner(t *testing.T) {
	if DefaultOwner() != DefaultOwner() {
		t.Error("DefaultOwner should be a singleton")
	}
	out, err := Transform(map[string]any{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.(*Object).Owner() != DefaultOwner() {
		t.Error("nil owner should fall back to the default")
	}
}
