package reactive

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/vango-dev/reactor/internal/errors"
)

// ErrNotContainer is reported when Transform receives a value that is neither
// a string-keyed map nor a slice.
var ErrNotContainer = errors.New(errors.CodeNotContainer)

// Owner is the owning context of transformed data. Cells created under an owner
// emit their access signals on the owner's bus.
type Owner struct {
	id     uint64
	bus    *Bus
	logger *slog.Logger

	// objects maps the identity of a raw map to the object built from it, so
	// transforming the same map twice yields the same object.
	mu      sync.Mutex
	objects map[uintptr]*Object
}

// OwnerOption configures an Owner.
type OwnerOption func(*Owner)

// WithLogger sets the logger used for recovered callback panics.
func WithLogger(logger *slog.Logger) OwnerOption {
	return func(o *Owner) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBus shares an existing bus instead of creating one.
func WithBus(bus *Bus) OwnerOption {
	return func(o *Owner) {
		if bus != nil {
			o.bus = bus
		}
	}
}

// NewOwner creates an owner with its own bus.
func NewOwner(opts ...OwnerOption) *Owner {
	o := &Owner{
		id:      nextID(),
		bus:     NewBus(),
		logger:  slog.Default(),
		objects: make(map[uintptr]*Object),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var (
	defaultOwner     *Owner
	defaultOwnerOnce sync.Once
)

// DefaultOwner returns the process-wide owner used when none is given.
func DefaultOwner() *Owner {
	defaultOwnerOnce.Do(func() {
		defaultOwner = NewOwner()
	})
	return defaultOwner
}

// ID returns the unique identifier for this owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Bus returns the access signal bus of the owner.
func (o *Owner) Bus() *Bus {
	return o.bus
}

// Logger returns the owner's logger.
func (o *Owner) Logger() *slog.Logger {
	return o.logger
}

// Transform makes v reactive in place and returns the reactive container:
// a map becomes an *Object, a slice an *Array. Containers that are already
// reactive are returned unchanged. Nested containers are transformed
// recursively.
func Transform(v any, owner *Owner) (any, error) {
	if owner == nil {
		owner = DefaultOwner()
	}
	return owner.Transform(v)
}

// Transform makes v reactive under o. See the package-level Transform.
// A nil map becomes an empty *Object.
func (o *Owner) Transform(v any) (any, error) {
	if !isContainer(v) {
		return nil, errors.New(errors.CodeNotContainer).
			Wrap(fmt.Errorf("cannot transform %T", v))
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return o.Object(nil), nil
	}
	return o.wrap(v), nil
}

// MustTransform is like Transform but panics when v is not a container.
func (o *Owner) MustTransform(v any) any {
	out, err := o.Transform(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Object transforms a map and returns its reactive object.
func (o *Owner) Object(m map[string]any) *Object {
	if m == nil {
		m = make(map[string]any)
	}
	return o.object(m)
}

// wrap transforms containers and returns every other value unchanged.
func (o *Owner) wrap(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *Object, *Array:
		return v
	case map[string]any:
		if x == nil {
			return v
		}
		return o.object(x)
	case []any:
		return newArray(o, x)
	case []byte, string:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		o.mu.Lock()
		existing, ok := o.objects[rv.Pointer()]
		o.mu.Unlock()
		if ok {
			return existing
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		obj := o.object(m)
		o.mu.Lock()
		o.objects[rv.Pointer()] = obj
		o.mu.Unlock()
		return obj
	case reflect.Slice:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return newArray(o, items)
	}
	return v
}

// object returns the object registered for m, building it on first sight.
// The object is registered before its cells are populated so self-referencing
// maps terminate.
func (o *Owner) object(m map[string]any) *Object {
	key := reflect.ValueOf(m).Pointer()

	o.mu.Lock()
	if existing, ok := o.objects[key]; ok {
		o.mu.Unlock()
		return existing
	}
	obj := newObject(o, m)
	o.objects[key] = obj
	o.mu.Unlock()

	obj.populate()
	return obj
}

// isContainer reports whether v can be transformed.
func isContainer(v any) bool {
	switch v.(type) {
	case nil, []byte:
		return false
	case *Object, *Array, map[string]any, []any:
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String && !rv.IsNil()
	case reflect.Slice:
		return true
	}
	return false
}
