// Package channel is the duplex message socket a party talks through.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvino/cinema/internal/metrics"
	"github.com/corvino/cinema/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
	sendBuffer = 64
)

// State is the connection lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Options configures a channel. The callbacks run on the channel's own
// goroutines.
type Options struct {
	Header  http.Header
	Dialer  *websocket.Dialer
	Metrics metrics.Collector

	OnOpen    func()
	OnMessage func(data []byte)
	// OnClose is called once when the channel ends. err is nil after a
	// local Close or a clean close by the peer.
	OnClose func(err error)
}

// Channel is a websocket connection that drops outbound messages unless it
// is open. It never reconnects.
type Channel struct {
	url  string
	opts Options

	state  atomic.Int32
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	userClosed atomic.Bool
}

// Open starts connecting to url and returns at once in the Connecting state.
func Open(url string, opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		url:    url,
		opts:   opts,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	go c.run()
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Done is closed once the channel has fully shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send serializes m and queues it for writing. Unless the channel is open
// the message is dropped.
func (c *Channel) Send(m protocol.Message) {
	if st := c.State(); st != StateOpen {
		log.Printf("channel: dropping %s, state=%s", m.Type(), st)
		c.opts.Metrics.MessageDropped(m.Type())
		return
	}
	data, err := protocol.Serialize(m)
	if err != nil {
		log.Printf("channel: %v", err)
		c.opts.Metrics.MessageDropped(m.Type())
		return
	}
	select {
	case c.send <- data:
		c.opts.Metrics.MessageSent(m.Type())
	default:
		log.Printf("channel: send buffer full, dropping %s", m.Type())
		c.opts.Metrics.MessageDropped(m.Type())
	}
}

// Close shuts the channel down. It is safe to call more than once and from
// any goroutine.
func (c *Channel) Close() {
	c.once.Do(func() {
		c.userClosed.Store(true)
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing))
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		c.cancel()
	})
}

func (c *Channel) run() {
	defer close(c.done)

	log.Printf("channel: connecting to %s", c.url)
	conn, _, err := c.opts.Dialer.DialContext(c.ctx, c.url, c.opts.Header)
	if err != nil {
		c.state.Store(int32(StateClosed))
		if c.userClosed.Load() {
			c.closed(nil)
			return
		}
		log.Printf("channel: dial %s: %v", c.url, err)
		c.closed(fmt.Errorf("dial: %w", err))
		return
	}

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		// Closed while the handshake was in flight.
		conn.Close()
		c.state.Store(int32(StateClosed))
		c.closed(nil)
		return
	}
	log.Printf("channel: connected to %s", c.url)
	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	readDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, readDone)
	}()
	readErr := c.readPump(conn)
	close(readDone)

	c.state.Store(int32(StateClosed))
	c.cancel()
	<-writerDone
	conn.Close()

	if c.userClosed.Load() {
		readErr = nil
	}
	c.closed(readErr)
}

func (c *Channel) closed(err error) {
	if c.opts.OnClose != nil {
		c.opts.OnClose(err)
	}
}

func (c *Channel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMsgSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("channel: read error: %v", err)
			}
			return err
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(data)
		}
	}
}

func (c *Channel) writePump(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("channel: write: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				conn.Close()
				return
			}
			// Give the peer a moment to answer the close frame, then force it.
			select {
			case <-readDone:
			case <-time.After(time.Second):
			}
			conn.Close()
			return
		}
	}
}
