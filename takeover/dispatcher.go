package takeover

import (
	"sync"
	"sync/atomic"

	"github.com/xyproto/vmarmcore/linker"
	"github.com/xyproto/vmarmcore/vmengine"
)

// InitState is the dispatcher's four-state init lifecycle (spec.md §4.8
// "State machine for the engine initialization"), readable as a fast-path
// atomic without taking the mutex.
type InitState int32

const (
	StateUninitialized InitState = iota
	StateInitializing
	StateReady
	StateFailed
)

// RecoverFunc supplies the (primary_so_name, slot table) pair for lazy
// init — typically RecoverSlotMap fed from the patched host SO's dynsym,
// plus whatever name the caller's linker.Linker loaded it under.
type RecoverFunc func() (primarySoName string, entries map[uint32]uint64, err error)

// Dispatcher is the process-singleton takeover table: slot_id ->
// function_offset, the active library name, and the init state machine
// (spec.md §4.8, §5 "process-singleton ... serialized by a process
// mutex ... fast-path read returns immediately on Ready or Failed").
type Dispatcher struct {
	engine *vmengine.Engine
	linker *linker.Linker
	lazy   RecoverFunc

	state atomic.Int32

	mu           sync.Mutex
	slots        map[uint32]uint64
	activeSoName string
}

// New returns a Dispatcher in state Uninitialized, bound to engine (for
// dispatch execution) and lk (to validate that Init's primary_so_name names
// a library the linker actually loaded). lazy may be nil if the caller only
// ever drives Init explicitly (e.g. from tests).
func New(engine *vmengine.Engine, lk *linker.Linker, lazy RecoverFunc) *Dispatcher {
	return &Dispatcher{engine: engine, linker: lk, lazy: lazy}
}

// GetInitState is vm_get_init_state's Go-native equivalent (spec.md §6).
func (d *Dispatcher) GetInitState() InitState {
	return InitState(d.state.Load())
}

// Init publishes entries keyed by primarySoName and marks the dispatcher
// Ready, or Failed on any invariant violation (spec.md §4.8 "init(...)
// requires entries non-empty, every function_offset != 0, slot ids unique,
// and primary_so_name corresponds to a linker-loaded library").
func (d *Dispatcher) Init(primarySoName string, entries map[uint32]uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Store(int32(StateInitializing))
	if err := d.validateAndPublishLocked(primarySoName, entries); err != nil {
		d.state.Store(int32(StateFailed))
		return err
	}
	d.state.Store(int32(StateReady))
	return nil
}

func (d *Dispatcher) validateAndPublishLocked(primarySoName string, entries map[uint32]uint64) error {
	if len(entries) == 0 {
		return &ValidationError{Field: "entries", Reason: "must be non-empty"}
	}
	for slotID, offset := range entries {
		if offset == 0 {
			return &ValidationError{Field: "function_offset", Reason: "must be nonzero"}
		}
		_ = slotID // slot ids are inherently unique as Go map keys
	}
	if d.linker != nil {
		if _, ok := d.linker.GetSoinfo(primarySoName); !ok {
			return &ValidationError{Field: "primary_so_name", Reason: "does not correspond to a linker-loaded library"}
		}
	}
	d.slots = entries
	d.activeSoName = primarySoName
	return nil
}

// Clear resets the dispatcher to Uninitialized, dropping the slot table
// (spec.md §4.8 "clear() resets all state").
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots = nil
	d.activeSoName = ""
	d.state.Store(int32(StateUninitialized))
}

// ensureReady runs lazy init exactly once if the dispatcher isn't already
// Ready, holding the mutex for the whole attempt (spec.md §5
// "single-writer, serialized by a process mutex") so two racing first
// dispatches can't both run recovery concurrently.
func (d *Dispatcher) ensureReady() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if InitState(d.state.Load()) == StateReady {
		return nil
	}
	if InitState(d.state.Load()) == StateFailed {
		return &DispatchError{Reason: "initialization previously failed"}
	}
	if d.lazy == nil {
		d.state.Store(int32(StateFailed))
		return &DispatchError{Reason: "not ready and no lazy recovery configured"}
	}
	d.state.Store(int32(StateInitializing))

	soName, entries, err := d.lazy()
	if err != nil {
		d.state.Store(int32(StateFailed))
		return err
	}
	if err := d.validateAndPublishLocked(soName, entries); err != nil {
		d.state.Store(int32(StateFailed))
		return err
	}
	d.state.Store(int32(StateReady))
	return nil
}

// DispatchByID is vm_takeover_dispatch_by_id's Go-native equivalent
// (spec.md §4.8, §6): lazily initializes on first call, resolves slot_id
// under the lock, then runs the guest function and truncates its result to
// the low 32 bits. Returns 0 on any failure — not ready, unknown slot, or a
// VM execution error — matching the exported C ABI's "on failure return 0".
func (d *Dispatcher) DispatchByID(a, b int32, slotID uint32) int32 {
	if d.GetInitState() != StateReady {
		if err := d.ensureReady(); err != nil {
			return 0
		}
	}

	d.mu.Lock()
	offset, ok := d.slots[slotID]
	soName := d.activeSoName
	d.mu.Unlock()
	if !ok {
		return 0
	}

	result, err := d.engine.Execute(0, soName, offset, []uint64{uint64(uint32(a)), uint64(uint32(b))})
	if err != nil {
		return 0
	}
	return int32(uint32(result))
}
