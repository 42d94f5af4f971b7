// Package party keeps a local media player in step with a watch party.
//
// A Party owns the session state (role, room, roster) and the local playback
// intent. Every mutation happens on one goroutine: the loop started by Run.
// Channel data, channel state changes, timer ticks and user actions are all
// posted to that loop and run to completion one at a time. Methods other than
// Run and Do must only be called from the loop, or before Run starts.
package party

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/corvino/cinema/internal/metrics"
	"github.com/corvino/cinema/internal/protocol"
	"github.com/corvino/cinema/internal/router"
)

// Role is this client's part in a party.
type Role int

const (
	Solo Role = iota
	Director
	Guest
)

func (r Role) String() string {
	switch r {
	case Solo:
		return "solo"
	case Director:
		return "director"
	case Guest:
		return "guest"
	}
	return "unknown"
}

var (
	ErrInParty   = errors.New("already in a party")
	ErrNoRoom    = errors.New("room code is required")
	ErrNoChannel = errors.New("no channel dialer configured")
	ErrStopped   = errors.New("party loop stopped")
)

const (
	defaultStatsInterval   = time.Second
	defaultPersistInterval = 5 * time.Second

	// Forward bias applied when catching up to the director, covering the
	// time the snapshot spent in flight.
	catchUpBias = 1.0
)

// Media is the local player. Reads always reflect its live state.
type Media interface {
	Play() error
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	Duration() float64
	State() protocol.PlayerState
}

// Conn is an open party channel.
type Conn interface {
	Send(protocol.Message)
	Close()
}

// ConnHandlers receive channel notifications. They may be called from any
// goroutine; the party moves them onto its loop.
type ConnHandlers struct {
	OnOpen  func()
	OnData  func(raw []byte)
	OnClose func(err error)
}

// DialFunc opens the channel for a room. It must return at once; the
// connection completes in the background and reports through h.
type DialFunc func(room string, h ConnHandlers) Conn

// PositionSaver persists the last playback position of a source.
type PositionSaver interface {
	SavePosition(source string, seconds float64) error
}

// EventKind classifies notifications for the user interface.
type EventKind int

const (
	EventMessage       EventKind = iota // a routed inbound message changed playback or roster
	EventCaughtUp                       // the one-time join adjustment ran
	EventChannelOpen
	EventChannelClosed
)

// Event is passed to Config.OnEvent on the party loop.
type Event struct {
	Kind    EventKind
	Message protocol.Message
	Err     error
}

// Config holds the party's collaborators and settings.
type Config struct {
	Name            string
	Video           string
	StatsInterval   time.Duration
	PersistInterval time.Duration

	Dial      DialFunc
	Positions PositionSaver
	Metrics   metrics.Collector
	OnEvent   func(Event)
}

// Session is the state that exists while in a party.
type Session struct {
	Role         Role
	RoomCode     string
	Participants []Participant
	DirectorName *string

	// awaitingCatchUp is set on joining as a guest and cleared by the first
	// snapshot that names a director.
	awaitingCatchUp bool
}

// Status is a copy of the party's state for display.
type Status struct {
	Role           Role
	Room           string
	Name           string
	Video          string
	Playing        bool
	TimeSeconds    float64
	Duration       float64
	State          protocol.PlayerState
	Participants   []Participant
	DirectorName   string
	CatchUpPending bool
}

// Party is the watch-party state machine.
type Party struct {
	cfg    Config
	media  Media
	router *router.Router
	stats  metrics.Collector

	session Session
	conn    Conn
	connGen uint64

	// Playback intent. target is applied to the media exactly once for each
	// bump of adjustGen.
	playing    bool
	target     float64
	adjustGen  uint64
	appliedGen uint64

	statsTimer *scopedTimer
	timersLive atomic.Int64

	actions chan func()
	done    chan struct{}
	running atomic.Bool
}

// New creates a solo party driving media.
func New(cfg Config, media Media) *Party {
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = defaultStatsInterval
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = defaultPersistInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	p := &Party{
		cfg:     cfg,
		media:   media,
		router:  router.New(),
		stats:   cfg.Metrics,
		session: Session{Role: Solo},
		actions: make(chan func(), 64),
		done:    make(chan struct{}),
	}
	p.router.OnFailure = func(reason, _ string) { p.stats.RouteFailure(reason) }
	p.router.OnPlay(func(m protocol.Play) { p.received(m); p.remotePlay(m) })
	p.router.OnPause(func(m protocol.Pause) { p.received(m); p.remotePause(m) })
	p.router.OnSeeked(func(m protocol.Seeked) { p.received(m); p.remoteSeeked(m) })
	p.router.OnStatsResponses(func(m protocol.StatsResponses) { p.received(m); p.applySnapshot(m) })
	p.router.OnDisconnected(func(m protocol.Disconnected) { p.received(m); p.remoteDisconnected(m) })
	return p
}

// Run is the party loop. It returns when ctx is cancelled, after leaving any
// party and releasing every timer.
func (p *Party) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("party: Run called twice")
	}

	var persist *scopedTimer
	if p.cfg.Positions != nil && p.cfg.Video != "" {
		persist = p.startTimer("persist", p.cfg.PersistInterval, p.persistPosition)
	}

	defer func() {
		persist.Stop(p)
		p.Leave()
		close(p.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-p.actions:
			fn()
		}
	}
}

// Do runs fn on the party loop and waits for it to finish. It must not be
// called from the loop itself.
func (p *Party) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case p.actions <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrStopped
	}
}

// post queues fn on the loop from another goroutine. It gives up once the
// loop has stopped.
func (p *Party) post(fn func()) {
	select {
	case p.actions <- fn:
	case <-p.done:
	}
}

// Role returns the current role.
func (p *Party) Role() Role { return p.session.Role }

// Status returns a copy of the current state.
func (p *Party) Status() Status {
	st := Status{
		Role:           p.session.Role,
		Room:           p.session.RoomCode,
		Name:           p.cfg.Name,
		Video:          p.cfg.Video,
		Playing:        p.playing,
		TimeSeconds:    p.media.CurrentTime(),
		Duration:       p.media.Duration(),
		State:          p.media.State(),
		Participants:   append([]Participant(nil), p.session.Participants...),
		CatchUpPending: p.session.awaitingCatchUp,
	}
	if p.session.DirectorName != nil {
		st.DirectorName = *p.session.DirectorName
	}
	return st
}

// CreateRoom enters a freshly created room as its director.
func (p *Party) CreateRoom(room string) error {
	return p.enter(room, Director)
}

// JoinRoom enters an existing room. A client holding the room's director
// credential joins as director, everyone else as a guest.
func (p *Party) JoinRoom(room string, asDirector bool) error {
	if asDirector {
		return p.enter(room, Director)
	}
	return p.enter(room, Guest)
}

func (p *Party) enter(room string, role Role) error {
	if p.session.Role != Solo {
		return ErrInParty
	}
	if room == "" {
		return ErrNoRoom
	}
	if p.cfg.Dial == nil {
		return ErrNoChannel
	}

	p.session = Session{
		Role:            role,
		RoomCode:        room,
		awaitingCatchUp: role == Guest,
	}
	p.connGen++
	gen := p.connGen
	p.conn = p.cfg.Dial(room, ConnHandlers{
		OnOpen: func() {
			p.post(func() { p.channelOpened(gen) })
		},
		OnData: func(raw []byte) {
			p.post(func() { p.channelData(gen, raw) })
		},
		OnClose: func(err error) {
			p.post(func() { p.channelClosed(gen, err) })
		},
	})
	p.statsTimer = p.startTimer("stats", p.cfg.StatsInterval, p.OnTimeInterval)

	log.Printf("party: entered room=%s role=%s name=%s", room, role, p.cfg.Name)
	return nil
}

// Leave returns to solo playback. The stats timer is released, the channel
// closed, the roster cleared and playback paused. Leaving while solo does
// nothing.
func (p *Party) Leave() {
	if p.session.Role == Solo {
		return
	}
	p.statsTimer.Stop(p)
	p.statsTimer = nil
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	// Anything still queued from the old connection is now stale.
	p.connGen++

	log.Printf("party: left room=%s", p.session.RoomCode)
	p.session = Session{Role: Solo}
	p.stats.Participants(0)
	p.playing = false
	p.sync()
}

// LocalPlay handles the user pressing play. It reports false when local
// controls are disabled.
func (p *Party) LocalPlay() bool {
	switch p.session.Role {
	case Guest:
		return false
	case Director:
		p.send(protocol.Play{Initiator: p.cfg.Name})
	default:
		p.playing = true
		p.sync()
	}
	return true
}

// LocalPause handles the user pressing pause.
func (p *Party) LocalPause() bool {
	switch p.session.Role {
	case Guest:
		return false
	case Director:
		p.send(protocol.Pause{Initiator: p.cfg.Name})
	default:
		p.playing = false
		p.sync()
	}
	return true
}

// LocalSeek handles the user moving the playhead. A director pauses the
// whole party before announcing the new position, so guests can catch up.
func (p *Party) LocalSeek(seconds float64) bool {
	switch p.session.Role {
	case Guest:
		return false
	case Director:
		p.adjust(seconds)
		p.send(protocol.Pause{Initiator: p.cfg.Name})
		p.send(protocol.Seeked{Initiator: p.cfg.Name, TimeSeconds: seconds})
	default:
		p.adjust(seconds)
	}
	return true
}

// OnTimeInterval reports local playback to the room and asks for a fresh
// roster. It runs on every stats tick, in both party roles.
func (p *Party) OnTimeInterval() {
	if p.session.Role == Solo {
		return
	}
	p.send(protocol.Stats{
		Initiator:   p.cfg.Name,
		TimeSeconds: p.media.CurrentTime(),
		PlayerState: p.media.State(),
		IsDirector:  p.session.Role == Director,
	})
	p.send(protocol.RequestStats{})
}

// HandleData routes one inbound payload. Channel data normally arrives
// through the loop; this entry point is for callers already on it.
func (p *Party) HandleData(raw []byte) {
	if p.session.Role == Solo {
		return
	}
	p.router.Route(raw)
}

func (p *Party) channelData(gen uint64, raw []byte) {
	if gen != p.connGen {
		return
	}
	p.HandleData(raw)
}

func (p *Party) channelOpened(gen uint64) {
	if gen != p.connGen {
		return
	}
	log.Printf("party: channel open room=%s", p.session.RoomCode)
	p.emit(Event{Kind: EventChannelOpen})
}

// channelClosed reports a lost channel. The role is kept and nothing
// reconnects; leaving is the only way out of a party.
func (p *Party) channelClosed(gen uint64, err error) {
	if gen != p.connGen {
		return
	}
	if err != nil {
		log.Printf("party: channel closed room=%s: %v", p.session.RoomCode, err)
	} else {
		log.Printf("party: channel closed room=%s", p.session.RoomCode)
	}
	p.emit(Event{Kind: EventChannelClosed, Err: err})
}

func (p *Party) received(m protocol.Message) {
	p.stats.MessageReceived(m.Type())
}

func (p *Party) remotePlay(m protocol.Play) {
	p.playing = true
	p.sync()
	p.emit(Event{Kind: EventMessage, Message: m})
}

func (p *Party) remotePause(m protocol.Pause) {
	p.playing = false
	p.sync()
	p.emit(Event{Kind: EventMessage, Message: m})
}

// remoteSeeked follows the director's seek. Directors only seek from local
// input and ignore the broadcast.
func (p *Party) remoteSeeked(m protocol.Seeked) {
	if p.session.Role == Director {
		return
	}
	p.adjust(m.TimeSeconds)
	p.emit(Event{Kind: EventMessage, Message: m})
}

func (p *Party) applySnapshot(m protocol.StatsResponses) {
	p.session.Participants, p.session.DirectorName = ApplySnapshot(m)
	p.stats.Participants(len(p.session.Participants))
	p.emit(Event{Kind: EventMessage, Message: m})

	if p.session.Role != Guest || !p.session.awaitingCatchUp {
		return
	}
	director, ok := FindDirector(p.session.Participants)
	if !ok {
		return
	}
	p.session.awaitingCatchUp = false
	p.playing = director.State == protocol.Playing
	p.adjust(director.TimeSeconds + catchUpBias)
	p.stats.CatchUp()
	log.Printf("party: caught up with director=%s time=%.1f playing=%t", director.Name, director.TimeSeconds+catchUpBias, p.playing)
	p.emit(Event{Kind: EventCaughtUp})
}

func (p *Party) remoteDisconnected(m protocol.Disconnected) {
	p.session.Participants = Remove(p.session.Participants, m.ID)
	p.stats.Participants(len(p.session.Participants))
	p.emit(Event{Kind: EventMessage, Message: m})
}

// adjust sets a new target time and bumps the generation so sync seeks once.
func (p *Party) adjust(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	p.target = seconds
	p.adjustGen++
	p.sync()
}

// sync brings the media element in line with the playback intent.
func (p *Party) sync() {
	if p.appliedGen != p.adjustGen {
		p.media.Seek(p.target)
		p.appliedGen = p.adjustGen
	}
	if p.playing {
		if err := p.media.Play(); err != nil {
			// Autoplay refusals are not fatal; the user can press play.
			log.Printf("party: media play rejected: %v", err)
		}
		return
	}
	p.media.Pause()
}

func (p *Party) send(m protocol.Message) {
	if p.conn == nil {
		p.stats.MessageDropped(m.Type())
		return
	}
	p.conn.Send(m)
}

func (p *Party) persistPosition() {
	if p.session.Role == Guest {
		return
	}
	if err := p.cfg.Positions.SavePosition(p.cfg.Video, p.media.CurrentTime()); err != nil {
		log.Printf("party: save position: %v", err)
	}
}

func (p *Party) emit(e Event) {
	if p.cfg.OnEvent != nil {
		p.cfg.OnEvent(e)
	}
}
