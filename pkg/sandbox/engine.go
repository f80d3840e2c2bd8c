package sandbox

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// engine is a pooled runtime plus the global bindings it started with.
type engine struct {
	vm       *goja.Runtime
	baseline map[string]goja.Value

	// arrays is the prototype given to proxied reactive arrays.
	arrays *goja.Object

	// names is Object.getOwnPropertyNames, captured after freezing.
	names goja.Callable

	// broken marks a runtime that panicked; it is dropped instead of reused.
	broken bool
}

// freezeIntrinsics freezes every global constructor, its prototype and the
// namespace objects, so an evaluation cannot patch built-ins for the next one
// to find. Extra objects passed as arguments are frozen too.
const freezeIntrinsics = `(function (global) {
	"use strict";
	var freeze = function (v) {
		if (v !== null && v !== global && (typeof v === "object" || typeof v === "function")) {
			Object.freeze(v);
		}
	};
	Object.getOwnPropertyNames(global).forEach(function (name) {
		var v = global[name];
		freeze(v);
		if (typeof v === "function") {
			freeze(v.prototype);
			freeze(Object.getPrototypeOf(v));
		}
	});
	for (var i = 1; i < arguments.length; i++) {
		freeze(arguments[i]);
	}
})`

func (e *Evaluator) newEngine() *engine {
	vm := goja.New()

	console := vm.NewObject()
	logger := e.logger.With("source", "console")
	_ = console.Set("log", consoleFunc(logger, slog.LevelInfo))
	_ = console.Set("info", consoleFunc(logger, slog.LevelInfo))
	_ = console.Set("debug", consoleFunc(logger, slog.LevelDebug))
	_ = console.Set("warn", consoleFunc(logger, slog.LevelWarn))
	_ = console.Set("error", consoleFunc(logger, slog.LevelError))
	_ = vm.Set("console", console)

	arrays := newArrayPrototype(vm)

	freeze, err := vm.RunString(freezeIntrinsics)
	if err == nil {
		if fn, ok := goja.AssertFunction(freeze); ok {
			_, err = fn(goja.Undefined(), vm.GlobalObject(), arrays)
		}
	}
	if err != nil {
		e.logger.Error("freezing engine intrinsics failed", "error", err)
	}

	names, _ := goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("getOwnPropertyNames"))
	eng := &engine{vm: vm, arrays: arrays, names: names}

	global := vm.GlobalObject()
	eng.baseline = make(map[string]goja.Value)
	for _, k := range eng.globalNames() {
		eng.baseline[k] = global.Get(k)
	}
	return eng
}

// globalNames lists the own property names of the global object, including
// the non-enumerable built-ins.
func (eng *engine) globalNames() []string {
	res, err := eng.names(goja.Undefined(), eng.vm.GlobalObject())
	if err != nil {
		return eng.vm.GlobalObject().Keys()
	}
	var names []string
	_ = eng.vm.ExportTo(res, &names)
	return names
}

// release removes globals created during the evaluation, restores reassigned
// ones and returns the runtime to the pool.
func (e *Evaluator) release(eng *engine) {
	if eng.broken {
		return
	}
	global := eng.vm.GlobalObject()
	for _, k := range eng.globalNames() {
		if _, ok := eng.baseline[k]; !ok {
			_ = global.Delete(k)
		}
	}
	for k, v := range eng.baseline {
		if cur := global.Get(k); cur == nil || !cur.SameAs(v) {
			_ = global.Set(k, v)
		}
	}
	e.engines.Put(eng)
}

func consoleFunc(logger *slog.Logger, level slog.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		logger.Log(context.Background(), level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}
