// Package media provides a headless player: a playhead that advances with
// wall-clock time while playing.
package media

import (
	"errors"
	"sync"
	"time"

	"github.com/corvino/cinema/internal/protocol"
)

// ErrAutoplayBlocked is returned by Play when the clock is set to refuse
// starting playback on its own.
var ErrAutoplayBlocked = errors.New("autoplay blocked")

// Clock is a virtual media element. It is safe for concurrent use.
type Clock struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64

	playing bool
	loading bool
	blocked bool

	position float64   // seconds at anchor
	anchor   time.Time // when position was last fixed
}

// NewClock returns a paused clock at zero. A duration of zero means unknown,
// and the playhead is then unbounded.
func NewClock(duration float64) *Clock {
	return &Clock{now: time.Now, duration: duration}
}

// SetNow replaces the time source.
func (c *Clock) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.anchor = now()
}

// BlockAutoplay makes subsequent Play calls fail until unblocked.
func (c *Clock) BlockAutoplay(blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = blocked
}

// SetLoading marks the media as buffering. The playhead does not advance
// while loading.
func (c *Clock) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fix()
	c.loading = loading
}

func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked {
		return ErrAutoplayBlocked
	}
	c.fix()
	c.playing = true
	return nil
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fix()
	c.playing = false
}

func (c *Clock) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.clamp(seconds)
	c.anchor = c.now()
}

func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

func (c *Clock) Duration() float64 {
	return c.duration
}

func (c *Clock) State() protocol.PlayerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.loading:
		return protocol.Loading
	case c.playing && !c.ended():
		return protocol.Playing
	}
	return protocol.Paused
}

// fix folds elapsed play time into position. Callers hold mu.
func (c *Clock) fix() {
	c.position = c.current()
	c.anchor = c.now()
}

func (c *Clock) current() float64 {
	pos := c.position
	if c.playing && !c.loading && !c.anchor.IsZero() {
		pos += c.now().Sub(c.anchor).Seconds()
	}
	return c.clamp(pos)
}

func (c *Clock) ended() bool {
	return c.duration > 0 && c.current() >= c.duration
}

func (c *Clock) clamp(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if c.duration > 0 && seconds > c.duration {
		return c.duration
	}
	return seconds
}
