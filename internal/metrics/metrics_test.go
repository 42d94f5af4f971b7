package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewPrometheusCollector()

	c.MessageSent("Play")
	c.MessageSent("Play")
	c.MessageSent("Stats")
	c.MessageDropped("Pause")
	c.MessageReceived("StatsResponses")
	c.RouteFailure("undecodable")
	c.CatchUp()
	c.Participants(3)

	if got := testutil.ToFloat64(c.messagesSent.WithLabelValues("Play")); got != 2 {
		t.Errorf("sent Play = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.messagesSent.WithLabelValues("Stats")); got != 1 {
		t.Errorf("sent Stats = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.messagesDropped.WithLabelValues("Pause")); got != 1 {
		t.Errorf("dropped Pause = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.routeFailures.WithLabelValues("undecodable")); got != 1 {
		t.Errorf("route failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.catchUps); got != 1 {
		t.Errorf("catchups = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.participants); got != 3 {
		t.Errorf("participants = %v, want 3", got)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewPrometheusCollector()
	b := NewPrometheusCollector()
	a.CatchUp()

	if got := testutil.ToFloat64(b.catchUps); got != 0 {
		t.Fatalf("second collector saw %v catchups", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewPrometheusCollector()
	c.MessageSent("Seeked")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `cinema_messages_sent_total{type="Seeked"} 1`) {
		t.Fatalf("metrics output missing sent counter:\n%s", body)
	}
}
