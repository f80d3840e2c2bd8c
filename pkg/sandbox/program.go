package sandbox

import (
	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

// wrapperPrefix and wrapperSuffix enclose the body in a scope-capturing closure.
// The outer function is sloppy so it may use with; the returned function is
// strict so assignments to unknown names fail instead of creating globals.
const (
	wrapperPrefix = "(function(__scope__){ with(__scope__){ return function(){ \"use strict\";\n"
	wrapperSuffix = "\n}; } })"
)

// DefaultCacheSize is the number of compiled programs kept per evaluator.
const DefaultCacheSize = 512

type programCache struct {
	programs *lru.Cache[string, *goja.Program]
}

func newProgramCache(size int) *programCache {
	if size <= 0 {
		return &programCache{}
	}
	programs, err := lru.New[string, *goja.Program](size)
	if err != nil {
		return &programCache{}
	}
	return &programCache{programs: programs}
}

// compile returns the program for expr in mode, compiling it on a cache miss.
func (c *programCache) compile(mode Mode, expr string) (*goja.Program, error) {
	key := mode.String() + "\x00" + expr
	if c.programs != nil {
		if p, ok := c.programs.Get(key); ok {
			return p, nil
		}
	}

	p, err := goja.Compile("expression", wrapperPrefix+mode.body(expr)+wrapperSuffix, false)
	if err != nil {
		return nil, err
	}
	if c.programs != nil {
		c.programs.Add(key, p)
	}
	return p, nil
}

// Len returns the number of cached programs.
func (c *programCache) Len() int {
	if c.programs == nil {
		return 0
	}
	return c.programs.Len()
}
