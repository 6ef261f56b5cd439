package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voxelbuild.ai/internal/observerproto"
)

type fakeSource struct {
	mu        sync.Mutex
	ch        chan []byte
	buf       int
	cancelled chan struct{}
	once      sync.Once
	gone      chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{cancelled: make(chan struct{}), gone: make(chan struct{})}
}

func (f *fakeSource) Subscribe(buf int) (uint64, <-chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = buf
	f.ch = make(chan []byte, buf)
	return 1, f.ch
}

func (f *fakeSource) Unsubscribe(uint64) { close(f.gone) }
func (f *fakeSource) Tick() uint64       { return 77 }
func (f *fakeSource) Cancel()            { f.once.Do(func() { close(f.cancelled) }) }

func (f *fakeSource) frames() chan []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func newTestServer(src Source) *httptest.Server {
	s := NewServer(src, observerproto.SiteParams{SnapshotName: "hut", TickRateHz: 20}, []string{"AIR", "STONE"}, zerolog.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", s.WSHandler())
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	return httptest.NewServer(mux)
}

func TestObserverStreamsBinaryFramesAndForwardsCancel(t *testing.T) {
	src := newFakeSource()
	srv := newTestServer(src)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, MaxQueue: 1000}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.frames() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("server never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if src.buf != 64 {
		t.Fatalf("queue not clamped: %d", src.buf)
	}
	src.frames() <- []byte{1, 2, 3}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.BinaryMessage || string(msg) != "\x01\x02\x03" {
		t.Fatalf("got type=%d msg=%v", typ, msg)
	}

	if err := conn.WriteJSON(observerproto.ControlMsg{Type: observerproto.TypeCancel, ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	select {
	case <-src.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("cancel not forwarded")
	}

	_ = conn.Close()
	select {
	case <-src.gone:
	case <-time.After(2 * time.Second):
		t.Fatalf("session not unsubscribed")
	}
}

func TestObserverRejectsBadHandshake(t *testing.T) {
	src := newFakeSource()
	srv := newTestServer(src)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
	if src.frames() != nil {
		t.Fatalf("subscribed on bad handshake")
	}
}

func TestBootstrap(t *testing.T) {
	srv := newTestServer(newFakeSource())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Tick != 77 || b.Site.SnapshotName != "hut" || len(b.BlockPalette) != 2 {
		t.Fatalf("bootstrap %+v", b)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.1:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
