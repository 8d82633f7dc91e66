package vmengine

import "sync"

type cacheKey struct {
	soName         string
	functionOffset uint64
}

// Engine owns the cache of translated runtime functions and the per-
// library shared branch-address tables OP_BL resolves against (spec.md
// §4.7 "Cache API").
type Engine struct {
	mu          sync.RWMutex
	funcs       map[cacheKey]*Function
	branchAddrs map[string][]uint64
}

// New returns an empty, ready-to-use Engine.
func New() *Engine {
	return &Engine{
		funcs:       make(map[cacheKey]*Function),
		branchAddrs: make(map[string][]uint64),
	}
}

// CacheFunction inserts fn keyed by (fn.SoName, fn.Record.FunctionOffset),
// replacing any prior entry for that key.
func (e *Engine) CacheFunction(fn *Function) {
	key := cacheKey{fn.SoName, fn.Record.FunctionOffset}
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.funcs[key]; ok {
		old.release()
	}
	e.funcs[key] = fn
}

// lookup returns the cached function for (soName, functionOffset).
func (e *Engine) lookup(soName string, functionOffset uint64) (*Function, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.funcs[cacheKey{soName, functionOffset}]
	return fn, ok
}

// ClearCache drops every cached function, releasing each one's type
// arena.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, fn := range e.funcs {
		fn.release()
	}
	e.funcs = make(map[cacheKey]*Function)
}

// SetSharedBranchAddrs installs the shared branch-address table
// OP_BL resolves indices against for soName (bundle.Result.SharedBranchAddrs,
// already finalized offline — spec.md §4.3 "a finalization pass").
func (e *Engine) SetSharedBranchAddrs(soName string, addrs []uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]uint64, len(addrs))
	copy(cp, addrs)
	e.branchAddrs[soName] = cp
}

// ClearSharedBranchAddrs drops soName's branch-address table.
func (e *Engine) ClearSharedBranchAddrs(soName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.branchAddrs, soName)
}

func (e *Engine) branchAddr(soName string, index uint32) (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addrs, ok := e.branchAddrs[soName]
	if !ok || int(index) >= len(addrs) {
		return 0, false
	}
	return addrs[index], true
}
