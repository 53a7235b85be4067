package ncm

import "sync/atomic"

// WeakHandle is a non-owning reference to a Core, modeling the source's
// weak_from_this() callback-safety idiom (spec.md §9): a Dependencies
// implementation holds a WeakHandle rather than a *Core, so a callback
// that outlives Shutdown() simply finds nothing to upgrade to instead of
// reviving a torn-down Core.
type WeakHandle struct {
	core atomic.Pointer[Core]
}

func newWeakHandle(c *Core) *WeakHandle {
	h := &WeakHandle{}
	h.core.Store(c)
	return h
}

// TryUpgrade returns the live Core, or (nil, false) once invalidate has
// been called.
func (h *WeakHandle) TryUpgrade() (*Core, bool) {
	c := h.core.Load()
	if c == nil {
		return nil, false
	}
	return c, true
}

// invalidate drops the reference; called once, at the start of Shutdown.
func (h *WeakHandle) invalidate() {
	h.core.Store(nil)
}
