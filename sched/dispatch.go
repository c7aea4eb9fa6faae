package sched

import (
	"reflect"
	"sync"

	"github.com/chazu/riptide/future"
)

// ---------------------------------------------------------------------------
// DispatchTable: per-concrete-type drive/drop function pair
// ---------------------------------------------------------------------------

// dispatchTable pairs the two operations the scheduler needs on an erased
// future: driving it one poll forward and dropping its state when the task
// is finished, cancelled or torn down.
//
// One table exists per concrete future type, built on first spawn and shared
// by every task of that type thereafter. Whether a type supports disposal is
// discovered once here, not re-checked on the teardown path.
type dispatchTable struct {
	name  string
	drive func(data any, cx *future.Context) future.Poll
	drop  func(data any)
}

var (
	tablesMu sync.RWMutex
	tables   = make(map[reflect.Type]*dispatchTable)
)

// tableFor returns the dispatch table for f's concrete type, building and
// registering it on first use.
func tableFor(f future.Future) *dispatchTable {
	rt := reflect.TypeOf(f)

	tablesMu.RLock()
	tbl := tables[rt]
	tablesMu.RUnlock()
	if tbl != nil {
		return tbl
	}

	tbl = &dispatchTable{
		name: rt.String(),
		drive: func(data any, cx *future.Context) future.Poll {
			return data.(future.Future).Poll(cx)
		},
	}
	if _, ok := f.(future.Disposer); ok {
		tbl.drop = func(data any) {
			data.(future.Disposer).Dispose()
		}
	} else {
		tbl.drop = func(any) {}
	}

	tablesMu.Lock()
	if existing, ok := tables[rt]; ok {
		// Lost a build race; keep the registered table so the pairing of
		// type and table stays process-wide unique.
		tbl = existing
	} else {
		tables[rt] = tbl
	}
	tablesMu.Unlock()
	return tbl
}
