package training

import "sync"

// control carries the cooperative stop/pause protocol between the manager
// and the engine's training loop. Stop is unconditionally preemptive over
// pause: a stop request clears any pending pause wait.
type control struct {
	mu    sync.Mutex
	cond  *sync.Cond
	stop  bool
	pause bool
}

func newControl() *control {
	c := &control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// requestStop is idempotent and safe at any time; it wakes a paused loop so
// the stop can be observed promptly.
func (c *control) requestStop() {
	c.mu.Lock()
	c.stop = true
	c.pause = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *control) requestPause() {
	c.mu.Lock()
	if !c.stop {
		c.pause = true
	}
	c.mu.Unlock()
}

func (c *control) resume() {
	c.mu.Lock()
	c.pause = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *control) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

func (c *control) pauseRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pause
}

// waitWhilePaused blocks until the pause is lifted and reports whether a
// stop arrived while waiting (or had already been requested).
func (c *control) waitWhilePaused() (stopped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pause && !c.stop {
		c.cond.Wait()
	}
	return c.stop
}
