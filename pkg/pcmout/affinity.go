// ABOUTME: Goroutine affinity checks for debug builds
// ABOUTME: Panics when control or pump work runs on the wrong goroutine
package pcmout

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

// goroutineID parses the current goroutine id out of the stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// affinity remembers the goroutine a context is bound to. All methods are
// no-ops unless built with the pcmdebug tag.
type affinity struct {
	name string
	id   atomic.Uint64
}

// bind records the current goroutine as the owner.
func (a *affinity) bind() {
	if !addDebugChecks {
		return
	}
	a.id.Store(goroutineID())
}

// check panics when called from a goroutine other than the owner. The first
// check on an unbound affinity binds it.
func (a *affinity) check() {
	if !addDebugChecks {
		return
	}
	cur := goroutineID()
	if a.id.CompareAndSwap(0, cur) {
		return
	}
	if owner := a.id.Load(); owner != cur {
		panic(fmt.Sprintf("%s work on goroutine %d, owned by goroutine %d",
			a.name, cur, owner))
	}
}
