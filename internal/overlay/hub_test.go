package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/auricle-ai/auricle/pkg/types"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return f
}

// waitForClients blocks until the hub has n registered clients.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		count := len(hub.clients)
		hub.mu.Unlock()
		if count == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func TestHubBroadcastsTranscript(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Transcript(types.TranscriptEvent{
		Speaker:    types.SpeakerInterviewer,
		Text:       "what is a goroutine?",
		Confidence: 0.85,
		Timestamp:  time.Now(),
	})

	f := readFrame(t, conn)
	if f.Type != "transcript" || f.Speaker != "INTERVIEWER" || f.Text != "what is a goroutine?" {
		t.Errorf("frame = %+v", f)
	}
}

func TestHubStreamsAnswerSequence(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Question(types.QuestionIntent{Text: "explain channels", Kind: types.IntentImperative, Confidence: 0.90})
	hub.AnswerDelta("Channels are ")
	hub.AnswerDelta("typed conduits.")
	hub.AnswerDone()

	wantTypes := []string{"question", "answer_delta", "answer_delta", "answer_done"}
	for i, want := range wantTypes {
		f := readFrame(t, conn)
		if f.Type != want {
			t.Fatalf("frame %d type = %q, want %q", i, f.Type, want)
		}
	}
}

func TestHubFanOut(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	first := dial(t, srv)
	second := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.AnswerDelta("to everyone")

	for _, conn := range []*websocket.Conn{first, second} {
		f := readFrame(t, conn)
		if f.Text != "to everyone" {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestHubForwardsControlSignals(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"pause"}`)); err != nil {
		t.Fatalf("write control: %v", err)
	}

	select {
	case ctrl := <-hub.Controls():
		if ctrl != ControlPause {
			t.Errorf("control = %q, want pause", ctrl)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("control signal never arrived")
	}
}

func TestHubFatalNotifiesAndCloses(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Fatal(errors.New("audio device lost"))

	f := readFrame(t, conn)
	if f.Type != "fatal" || f.Error != "audio device lost" {
		t.Errorf("frame = %+v", f)
	}

	// Broadcasting after close is a silent no-op.
	hub.AnswerDelta("never delivered")
	hub.Close()
}

func TestServerHealthEndpoints(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	t.Cleanup(hub.Close)
	s := NewServer(ServerConfig{Metrics: true}, hub, nil)

	srv := httptest.NewServer(s.srv.Handler)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
