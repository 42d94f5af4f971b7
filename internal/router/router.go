// Package router dispatches inbound channel payloads to one handler per
// message type.
package router

import (
	"log"

	"github.com/corvino/cinema/internal/protocol"
)

// Handler receives a decoded message.
type Handler func(protocol.Message)

// Failure reasons passed to the OnFailure hook.
const (
	ReasonUndecodable = "undecodable"
	ReasonUnhandled   = "unhandled"
)

// Router maps message types to handlers. It is not safe for concurrent use;
// callers route from a single goroutine.
type Router struct {
	handlers map[string]Handler

	// OnFailure, if set, is told about every payload that reached no handler.
	OnFailure func(reason, msgType string)
}

// New returns an empty router.
func New() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register associates h with msgType. A later registration for the same type
// replaces the earlier one.
func (r *Router) Register(msgType string, h Handler) {
	r.handlers[msgType] = h
}

// Handles reports whether a handler is registered for msgType.
func (r *Router) Handles(msgType string) bool {
	_, ok := r.handlers[msgType]
	return ok
}

// Route decodes raw and invokes the matching handler synchronously. Payloads
// that do not decode, or have no handler, are logged and dropped.
func (r *Router) Route(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("route: dropping message: %v", err)
		r.fail(ReasonUndecodable, protocol.TypeUnknown)
		return
	}
	r.Dispatch(msg)
}

// Dispatch invokes the handler for an already decoded message.
func (r *Router) Dispatch(msg protocol.Message) {
	if _, ok := msg.(protocol.Unknown); ok {
		log.Printf("route: dropping unknown message")
		r.fail(ReasonUndecodable, protocol.TypeUnknown)
		return
	}
	h, ok := r.handlers[msg.Type()]
	if !ok {
		log.Printf("route: no handler type=%s", msg.Type())
		r.fail(ReasonUnhandled, msg.Type())
		return
	}
	h(msg)
}

func (r *Router) fail(reason, msgType string) {
	if r.OnFailure != nil {
		r.OnFailure(reason, msgType)
	}
}

// Typed registration helpers.

func (r *Router) OnPlay(f func(protocol.Play)) {
	r.Register(protocol.TypePlay, func(m protocol.Message) { f(m.(protocol.Play)) })
}

func (r *Router) OnPause(f func(protocol.Pause)) {
	r.Register(protocol.TypePause, func(m protocol.Message) { f(m.(protocol.Pause)) })
}

func (r *Router) OnSeeked(f func(protocol.Seeked)) {
	r.Register(protocol.TypeSeeked, func(m protocol.Message) { f(m.(protocol.Seeked)) })
}

func (r *Router) OnStatsResponses(f func(protocol.StatsResponses)) {
	r.Register(protocol.TypeStatsResponses, func(m protocol.Message) { f(m.(protocol.StatsResponses)) })
}

func (r *Router) OnDisconnected(f func(protocol.Disconnected)) {
	r.Register(protocol.TypeDisconnected, func(m protocol.Message) { f(m.(protocol.Disconnected)) })
}
