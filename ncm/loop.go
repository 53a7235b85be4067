package ncm

// loop.go implements "the NCM thread" of spec.md §5: a single goroutine
// draining a single FIFO request channel. postOnNCM is the only way work
// reaches it, mirroring the teacher's Processor::postWithRetrying.
//
// Shutdown is not a second channel racing the request channel -- it is a
// close of reqCh itself, guarded by sendMu so no send ever races a close
// (the classic Go "close under a lock that every sender also takes"
// idiom). runLoop simply ranges over reqCh: every fn already enqueued
// before the close still runs, in the order it was enqueued, on this one
// goroutine, and the range loop exits on its own once the channel is
// both closed and drained. There is no separate drain pass and no path
// that runs fn() on a foreign goroutine.

const ncmRequestQueueSize = 256

func (c *Core) runLoop() {
	defer close(c.loopDone)
	for fn := range c.reqCh {
		fn()
	}
}

// postOnNCM is the sole way work reaches the NCM goroutine. Safe to call
// from any goroutine, including from within the NCM goroutine itself
// (the request is simply queued behind whatever runs next). Returns
// false without enqueuing fn if the core has already begun shutting
// down -- callers with a callback argument must invoke it themselves
// with a shutdown status in that case, since fn (and whatever callback
// it closes over) will never run.
func (c *Core) postOnNCM(fn func()) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed.Load() {
		return false
	}
	c.reqCh <- fn
	return true
}

// closeRequestQueue closes reqCh under sendMu's write lock, so it can
// never race a concurrent postOnNCM's send (which holds the read lock
// for the duration of its own send). Called once, from Shutdown.
func (c *Core) closeRequestQueue() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.closed.Store(true)
	close(c.reqCh)
}
