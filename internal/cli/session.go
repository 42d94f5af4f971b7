package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/corvino/cinema/internal/channel"
	"github.com/corvino/cinema/internal/launch"
	"github.com/corvino/cinema/internal/metrics"
	"github.com/corvino/cinema/internal/party"
	"github.com/corvino/cinema/internal/roomsvc"
	"github.com/corvino/cinema/internal/store"
)

// session bundles what every command that talks to the room service needs.
type session struct {
	cfg     *Config
	store   *store.Store
	rooms   *roomsvc.Client
	metrics *metrics.PrometheusCollector
}

func openSession(cfg *Config) (*session, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return &session{
		cfg:     cfg,
		store:   st,
		rooms:   roomsvc.NewClient(cfg.Server, cfg.Username, cfg.Password),
		metrics: metrics.NewPrometheusCollector(),
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		log.Printf("cli: close state: %v", err)
	}
}

// name picks the display name: the configured one, else the stored username.
func (s *session) name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	if name, err := s.store.Username(); err == nil && name != "" {
		return name
	}
	return "user"
}

func (s *session) resolver() launch.Resolver {
	return launch.Resolver{
		Rooms:       s.rooms,
		Credentials: s.store,
		Positions:   s.store,
		Timeout:     s.cfg.RoomCheckTimeout,
	}
}

// dialer connects party channels to <ws base>/<room>.
func (s *session) dialer() (party.DialFunc, error) {
	base := s.cfg.WSURL
	if base == "" {
		var err error
		base, err = roomsvc.RoomsURL(s.cfg.Server)
		if err != nil {
			return nil, err
		}
	}
	header := s.rooms.AuthHeader()

	return func(room string, h party.ConnHandlers) party.Conn {
		return channel.Open(roomsvc.ChannelURL(base, room), channel.Options{
			Header:    header,
			Metrics:   s.metrics,
			OnOpen:    h.OnOpen,
			OnMessage: h.OnData,
			OnClose:   h.OnClose,
		})
	}, nil
}

func (s *session) newParty(video string, m party.Media, onEvent func(party.Event)) (*party.Party, error) {
	dial, err := s.dialer()
	if err != nil {
		return nil, err
	}
	return party.New(party.Config{
		Name:            s.name(),
		Video:           video,
		StatsInterval:   s.cfg.StatsInterval,
		PersistInterval: s.cfg.PersistInterval,
		Dial:            dial,
		Positions:       s.store,
		Metrics:         s.metrics,
		OnEvent:         onEvent,
	}, m), nil
}

// createRoom asks the service for a room and stores the director credential
// for it.
func (s *session) createRoom(ctx context.Context, video string) (string, error) {
	room, err := s.rooms.CreateRoom(ctx, video)
	if err != nil {
		return "", err
	}
	if _, err := s.store.SaveDirectorCredential(room); err != nil {
		return "", fmt.Errorf("save director credential: %w", err)
	}
	return room, nil
}

func (s *session) shareLink(video, room string) string {
	return launch.ShareLink(s.cfg.Server, video, room)
}

// serveMetrics exposes /metrics when metrics_addr is set.
func (s *session) serveMetrics(ctx context.Context) {
	addr := strings.TrimSpace(s.cfg.MetricsAddr)
	if addr == "" {
		return
	}
	go func() {
		if err := s.metrics.Serve(ctx, addr); err != nil {
			log.Printf("cli: %v", err)
		}
	}()
}
