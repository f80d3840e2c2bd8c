package sandbox

import (
	"log/slog"
	"sort"

	"github.com/dop251/goja"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

// rootName is the scope name under which the root data object is exposed.
const rootName = "$root"

// scope is the per-evaluation record behind the with-statement of the wrapper.
// It is built fresh for every evaluation and never shared.
type scope struct {
	s      *session
	extras map[string]any
	root   *reactive.Object
	local  *reactive.Object
	global *reactive.Object
}

// newScope composes the layers and reports names found in both local and
// global data. Local wins; the collision is only logged.
func newScope(s *session, opts *Options, root, global *reactive.Object, logger *slog.Logger, metrics *telemetry.Metrics) *scope {
	extras := make(map[string]any, len(opts.Extras))
	for k, v := range opts.Extras {
		extras[k] = v
	}
	sc := &scope{
		s:      s,
		extras: extras,
		root:   root,
		local:  opts.Data,
		global: global,
	}
	if sc.local != nil && sc.global != nil && sc.local != sc.global {
		for _, key := range sc.global.Keys() {
			if !sc.local.Has(key) {
				continue
			}
			metrics.IncScopeCollision()
			logger.Warn("name defined in both local and global data, local wins",
				"code", errors.CodeAmbiguousScope,
				"name", key,
				"expression", opts.Expression)
		}
	}
	return sc
}

func (sc *scope) Get(key string) goja.Value {
	if v, ok := sc.extras[key]; ok {
		return sc.s.toJS(v)
	}
	if key == rootName && sc.root != nil {
		return sc.s.toJS(sc.root)
	}
	if sc.local != nil && sc.local.Has(key) {
		return sc.s.toJS(sc.local.Get(key))
	}
	if sc.global != nil && sc.global.Has(key) {
		return sc.s.toJS(sc.global.Get(key))
	}
	return nil
}

func (sc *scope) Set(key string, val goja.Value) bool {
	if _, ok := sc.extras[key]; ok {
		sc.extras[key] = fromJS(val)
		return true
	}
	if key == rootName && sc.root != nil {
		return false
	}
	if sc.local != nil && sc.local.Has(key) {
		sc.local.Set(key, fromJS(val))
		return true
	}
	if sc.global != nil && sc.global.Has(key) {
		sc.global.Set(key, fromJS(val))
		return true
	}
	return false
}

func (sc *scope) Has(key string) bool {
	if _, ok := sc.extras[key]; ok {
		return true
	}
	if key == rootName && sc.root != nil {
		return true
	}
	if sc.local != nil && sc.local.Has(key) {
		return true
	}
	return sc.global != nil && sc.global.Has(key)
}

// Delete refuses: scope names are not removable from inside an expression.
func (sc *scope) Delete(string) bool {
	return false
}

func (sc *scope) Keys() []string {
	seen := make(map[string]struct{})
	add := func(keys ...string) {
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}
	for k := range sc.extras {
		add(k)
	}
	if sc.root != nil {
		add(rootName)
	}
	if sc.local != nil {
		add(sc.local.Keys()...)
	}
	if sc.global != nil {
		add(sc.global.Keys()...)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
