package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corvino/cinema/internal/protocol"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// echoServer writes every frame it reads straight back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type counter struct {
	mu      sync.Mutex
	sent    map[string]int
	dropped map[string]int
}

func newCounter() *counter {
	return &counter{sent: map[string]int{}, dropped: map[string]int{}}
}

func (c *counter) MessageSent(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[t]++
}

func (c *counter) MessageDropped(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[t]++
}

func (c *counter) MessageReceived(string) {}
func (c *counter) RouteFailure(string) {}
func (c *counter) CatchUp() {}
func (c *counter) Participants(int) {}

func (c *counter) counts(t string) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[t], c.dropped[t]
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSendEchoAndClose(t *testing.T) {
	srv := echoServer(t)
	stats := newCounter()

	opened := make(chan struct{})
	received := make(chan []byte, 1)
	closedErr := make(chan error, 1)

	c := Open(wsURL(srv), Options{
		Metrics:   stats,
		OnOpen:    func() { close(opened) },
		OnMessage: func(data []byte) { received <- data },
		OnClose:   func(err error) { closedErr <- err },
	})
	waitFor(t, opened, "open")
	if c.State() != StateOpen {
		t.Fatalf("state = %s, want open", c.State())
	}

	c.Send(protocol.Seeked{Initiator: "alice", TimeSeconds: 42})

	select {
	case data := <-received:
		got := protocol.Deserialize(data)
		if got != (protocol.Seeked{Initiator: "alice", TimeSeconds: 42}) {
			t.Fatalf("echo = %#v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no echo")
	}
	if sent, _ := stats.counts(protocol.TypeSeeked); sent != 1 {
		t.Fatalf("sent count = %d", sent)
	}

	c.Close()
	c.Close()
	waitFor(t, c.Done(), "shutdown")

	select {
	case err := <-closedErr:
		if err != nil {
			t.Fatalf("OnClose after local Close = %v, want nil", err)
		}
	default:
		t.Fatal("OnClose not called")
	}
	if c.State() != StateClosed {
		t.Fatalf("state = %s, want closed", c.State())
	}

	c.Send(protocol.Play{Initiator: "alice"})
	if _, dropped := stats.counts(protocol.TypePlay); dropped != 1 {
		t.Fatalf("send after close: dropped = %d, want 1", dropped)
	}
}

func TestSendWhileConnectingDrops(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()
	defer close(release)

	stats := newCounter()
	c := Open(wsURL(srv), Options{Metrics: stats})
	defer c.Close()

	c.Send(protocol.Pause{Initiator: "bob"})

	sent, dropped := stats.counts(protocol.TypePause)
	if sent != 0 || dropped != 1 {
		t.Fatalf("sent=%d dropped=%d, want 0 and 1", sent, dropped)
	}
}

func TestDialFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	closedErr := make(chan error, 1)
	c := Open(wsURL(srv), Options{OnClose: func(err error) { closedErr <- err }})
	waitFor(t, c.Done(), "shutdown")

	if err := <-closedErr; err == nil {
		t.Fatal("expected a dial error")
	}
	if c.State() != StateClosed {
		t.Fatalf("state = %s", c.State())
	}
}

func TestPeerCloseReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the TCP connection without a close frame.
		conn.UnderlyingConn().Close()
	}))
	defer srv.Close()

	closedErr := make(chan error, 1)
	c := Open(wsURL(srv), Options{OnClose: func(err error) { closedErr <- err }})
	waitFor(t, c.Done(), "shutdown")

	if err := <-closedErr; err == nil {
		t.Fatal("expected an error for an abrupt close")
	}
}

func TestHeaderSentOnDial(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		gotAuth <- user + ":" + pass
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("cinema", "secret")

	c := Open(wsURL(srv), Options{Header: http.Header{"Authorization": req.Header["Authorization"]}})
	defer c.Close()

	select {
	case got := <-gotAuth:
		if got != "cinema:secret" {
			t.Fatalf("basic auth = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the dial")
	}
}
