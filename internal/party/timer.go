package party

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// scopedTimer is a repeating timer whose ticks run on the party loop. It is
// acquired when a scope begins and released by exactly one Stop; further Stop
// calls do nothing. A tick already queued when Stop runs is discarded.
type scopedTimer struct {
	name    string
	stop    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func (p *Party) startTimer(name string, every time.Duration, fn func()) *scopedTimer {
	t := &scopedTimer{name: name, stop: make(chan struct{})}
	p.timersLive.Add(1)

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick := func() {
					if !t.stopped.Load() {
						fn()
					}
				}
				select {
				case p.actions <- tick:
				case <-t.stop:
					return
				case <-p.done:
					return
				}
			case <-t.stop:
				return
			case <-p.done:
				return
			}
		}
	}()
	return t
}

// Stop releases the timer. It reports whether this call did the release.
func (t *scopedTimer) Stop(p *Party) bool {
	if t == nil {
		return false
	}
	released := false
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
		p.timersLive.Add(-1)
		log.Printf("party: %s timer released", t.name)
		released = true
	})
	return released
}
