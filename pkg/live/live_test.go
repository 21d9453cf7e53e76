package live

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/kiln"
	"github.com/vango-dev/kiln/pkg/protocol"
	"github.com/vango-dev/kiln/pkg/telemetry"
)

func counter() *kiln.Definition {
	return &kiln.Definition{
		Name: "counter",
		Setup: func(ctx *kiln.SetupContext) map[string]any {
			count := kiln.NewSignal(ctx, 0)
			return map[string]any{
				"count": count,
				"inc":   func() { count.Update(func(n int) int { return n + 1 }) },
			}
		},
		Markup: `<button @click="inc">${count}</button>`,
	}
}

func mountCounter(ctx context.Context, app *kiln.App, _ *http.Request) error {
	_, err := app.Mount(ctx, "body", counter(), nil)
	return err
}

var sessionAttr = regexp.MustCompile(`data-session="([^"]+)"`)

func openPage(t *testing.T, ts *httptest.Server) (string, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	m := sessionAttr.FindStringSubmatch(string(body))
	require.Len(t, m, 2, "page should carry the session id")
	return string(body), m[1]
}

func dial(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + SocketPath + "?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := protocol.DecodeFrame(msg)
	require.NoError(t, err)
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, f *protocol.Frame) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, f.Encode()))
}

func findTag(n *protocol.Node, tag string) *protocol.Node {
	if n == nil {
		return nil
	}
	if n.Kind == protocol.NodeElement && n.Tag == tag {
		return n
	}
	for _, c := range n.Children {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// texts collects every text a batch writes, directly or in inserted nodes.
func texts(b *protocol.MutationBatch) []string {
	var out []string
	var walk func(n *protocol.Node)
	walk = func(n *protocol.Node) {
		if n.Kind == protocol.NodeText {
			out = append(out, n.Text)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, m := range b.Mutations {
		switch m.Op {
		case protocol.OpSetText:
			out = append(out, m.Text)
		case protocol.OpInsert:
			walk(m.Node)
		}
	}
	return out
}

func newTestServer(t *testing.T, cfg Config, mount MountFunc) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(cfg, mount)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func TestPageRendersOnServer(t *testing.T) {
	srv, ts := newTestServer(t, Config{Title: "Counter"}, mountCounter)

	page, id := openPage(t, ts)
	assert.Contains(t, page, "<title>Counter</title>")
	assert.Contains(t, page, "<button>0</button>")
	assert.Contains(t, page, `src="/kiln/client.js"`)

	sess, ok := srv.Session(id)
	require.True(t, ok)
	assert.False(t, sess.Connected())
	assert.Equal(t, 1, srv.SessionCount())
}

func TestEventRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, Config{}, mountCounter)
	_, id := openPage(t, ts)
	conn := dial(t, ts, id)

	f := readFrame(t, conn)
	require.Equal(t, protocol.FrameSnapshot, f.Type)
	assert.False(t, f.Flags.Has(protocol.FlagResumed))
	snap, err := protocol.DecodeSnapshot(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, id, snap.Session)
	btn := findTag(snap.Root, "button")
	require.NotNil(t, btn)
	require.NotZero(t, btn.ID)

	ev := &protocol.Event{Seq: 1, Target: btn.ID, Type: "click"}
	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))

	f = readFrame(t, conn)
	require.Equal(t, protocol.FrameMutations, f.Type)
	batch, err := protocol.DecodeMutations(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, snap.Seq+1, batch.Seq)
	assert.Contains(t, texts(batch), "1")
}

func TestPingPong(t *testing.T) {
	_, ts := newTestServer(t, Config{}, mountCounter)
	_, id := openPage(t, ts)
	conn := dial(t, ts, id)
	readFrame(t, conn)

	writeFrame(t, conn, protocol.NewFrame(protocol.FramePing, nil))
	assert.Equal(t, protocol.FramePong, readFrame(t, conn).Type)
}

func TestUnknownTargetReportsError(t *testing.T) {
	_, ts := newTestServer(t, Config{}, mountCounter)
	_, id := openPage(t, ts)
	conn := dial(t, ts, id)
	readFrame(t, conn)

	ev := &protocol.Event{Seq: 1, Target: 999999, Type: "click"}
	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))

	f := readFrame(t, conn)
	require.Equal(t, protocol.FrameError, f.Type)
	em, err := protocol.DecodeErrorMessage(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeUnknownTarget, em.Code)
	assert.False(t, em.Fatal)
}

func TestUnknownSessionIsFatal(t *testing.T) {
	_, ts := newTestServer(t, Config{}, mountCounter)
	conn := dial(t, ts, "missing")

	f := readFrame(t, conn)
	require.Equal(t, protocol.FrameError, f.Type)
	em, err := protocol.DecodeErrorMessage(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeSessionNotFound, em.Code)
	assert.True(t, em.Fatal)
}

func TestResumeSendsFlaggedSnapshot(t *testing.T) {
	_, ts := newTestServer(t, Config{}, mountCounter)
	_, id := openPage(t, ts)

	first := dial(t, ts, id)
	snap, err := protocol.DecodeSnapshot(readFrame(t, first).Payload)
	require.NoError(t, err)
	btn := findTag(snap.Root, "button")
	require.NotNil(t, btn)
	ev := &protocol.Event{Seq: 1, Target: btn.ID, Type: "click"}
	writeFrame(t, first, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))
	require.Equal(t, protocol.FrameMutations, readFrame(t, first).Type)
	require.NoError(t, first.Close())

	second := dial(t, ts, id)
	f := readFrame(t, second)
	require.Equal(t, protocol.FrameSnapshot, f.Type)
	assert.True(t, f.Flags.Has(protocol.FlagResumed))
	snap, err = protocol.DecodeSnapshot(f.Payload)
	require.NoError(t, err)
	btn = findTag(snap.Root, "button")
	require.NotNil(t, btn)
	require.Len(t, btn.Children, 1)
	assert.Equal(t, "1", btn.Children[0].Text)
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestSessionExpires(t *testing.T) {
	srv, ts := newTestServer(t, Config{ResumeWindow: 50 * time.Millisecond}, mountCounter)
	_, id := openPage(t, ts)

	require.Eventually(t, func() bool {
		_, ok := srv.Session(id)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMaxSessions(t *testing.T) {
	_, ts := newTestServer(t, Config{MaxSessions: 1}, mountCounter)
	openPage(t, ts)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMountFailure(t *testing.T) {
	srv, ts := newTestServer(t, Config{}, func(ctx context.Context, app *kiln.App, _ *http.Request) error {
		_, err := app.Mount(ctx, "#missing", counter(), nil)
		return err
	})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Zero(t, srv.SessionCount())
}

func TestStaticRoutesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	_, ts := newTestServer(t, Config{Metrics: metrics, Gatherer: reg}, mountCounter)

	resp, err := http.Get(ts.URL + ClientPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, string(body), "kiln/ws")

	resp, err = http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, id := openPage(t, ts)
	conn := dial(t, ts, id)
	readFrame(t, conn)

	resp, err = http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "kiln_active_sessions 1")
	assert.Contains(t, string(body), `kiln_frames_sent_total{type="snapshot"} 1`)
}

func TestSameOriginCheck(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/kiln/ws", nil)
	assert.True(t, SameOriginCheck(r))

	r.Header.Set("Origin", "http://example.com")
	assert.True(t, SameOriginCheck(r))

	r.Header.Set("Origin", "http://evil.test")
	assert.False(t, SameOriginCheck(r))
}

func TestInjectClient(t *testing.T) {
	got := injectClient("<html><body><p>x</p></body></html>", "abc")
	assert.Equal(t, `<html><body><p>x</p><script src="/kiln/client.js" data-session="abc" defer></script></body></html>`, got)
	assert.True(t, strings.HasSuffix(injectClient("<p>x</p>", "abc"), "</script>"))
}
