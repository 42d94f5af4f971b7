package roomsvc

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateRoomSendsEncodedPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/createroom" {
			http.NotFound(w, r)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("url"))
		if err != nil {
			http.Error(w, "bad url", http.StatusBadRequest)
			return
		}
		gotPath = string(decoded)
		w.Write([]byte(`{"room":"WXYZ"}`))
	}))
	defer srv.Close()

	code, err := NewClient(srv.URL, "", "").CreateRoom(context.Background(), "/cinema/movies/night of the living dead.mp4")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if code != "WXYZ" {
		t.Errorf("code = %q", code)
	}
	if gotPath != "/cinema/movies/night of the living dead.mp4" {
		t.Errorf("server decoded path %q", gotPath)
	}
}

func TestCheckRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("room") == "ABCD" {
			w.Write([]byte(`{"exists":true}`))
			return
		}
		w.Write([]byte(`{"exists":false}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", "")

	for _, tc := range []struct {
		code string
		want bool
	}{
		{"ABCD", true},
		{"ZZZZ", false},
	} {
		got, err := c.CheckRoom(context.Background(), tc.code)
		if err != nil {
			t.Fatalf("CheckRoom(%s): %v", tc.code, err)
		}
		if got != tc.want {
			t.Errorf("CheckRoom(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestValidateRoom(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("room") {
		case "SLOW":
			select {
			case <-release:
			case <-r.Context().Done():
			}
			w.Write([]byte(`{"exists":true}`))
		case "GONE":
			w.Write([]byte(`{"exists":false}`))
		default:
			w.Write([]byte(`{"exists":true}`))
		}
	}))
	defer srv.Close()
	defer close(release)
	c := NewClient(srv.URL, "", "")
	ctx := context.Background()

	if err := c.ValidateRoom(ctx, "ABCD", time.Second); err != nil {
		t.Errorf("valid room: %v", err)
	}
	if err := c.ValidateRoom(ctx, "GONE", time.Second); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room: %v", err)
	}
	if err := c.ValidateRoom(ctx, "SLOW", 50*time.Millisecond); !errors.Is(err, ErrRoomCheckTimeout) {
		t.Errorf("slow room: %v", err)
	}
}

func TestBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cinema" || pass != "popcorn" {
			w.Header().Set("Www-Authenticate", `Basic realm="Authentication Required"`)
			http.Error(w, "Access Denied. Incorrect username or password", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"exists":true}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "cinema", "popcorn").CheckRoom(context.Background(), "ABCD"); err != nil {
		t.Fatalf("authorised check: %v", err)
	}
	_, err := NewClient(srv.URL, "cinema", "wrong").CheckRoom(context.Background(), "ABCD")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad password: %v", err)
	}
	if h := NewClient(srv.URL, "", "").AuthHeader(); h.Get("Authorization") != "" {
		t.Fatal("no credentials should send no header")
	}
}

func TestMalformedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createroom":
			w.Write([]byte(`{}`))
		case "/checkroom":
			w.Write([]byte(`{"exists":"yes"}`))
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", "")

	if _, err := c.CreateRoom(context.Background(), "/x"); err == nil {
		t.Error("empty room code should fail")
	}
	if _, err := c.CheckRoom(context.Background(), "ABCD"); err == nil {
		t.Error("non-boolean exists should fail")
	}
}

func TestRoomsURL(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"http://localhost:5000", "ws://localhost:5000/rooms"},
		{"https://cinema.example.com/", "wss://cinema.example.com/rooms"},
		{"https://cinema.example.com:5001/browse?x=1", "wss://cinema.example.com:5001/rooms"},
	} {
		got, err := RoomsURL(tc.in)
		if err != nil {
			t.Fatalf("RoomsURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("RoomsURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := RoomsURL("not a url"); err == nil {
		t.Error("expected error for a URL with no host")
	}
	if got := ChannelURL("ws://localhost:5000/rooms/", "ABCD"); got != "ws://localhost:5000/rooms/ABCD" {
		t.Errorf("ChannelURL = %q", got)
	}
}
