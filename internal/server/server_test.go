package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexblob/internal/blob"
	"github.com/normanking/cortexblob/internal/config"
	"github.com/normanking/cortexblob/internal/deform"
	"github.com/normanking/cortexblob/internal/emotion"
	"github.com/normanking/cortexblob/internal/logging"
)

type fixture struct {
	engine *blob.Engine
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T, stride int) fixture {
	t.Helper()

	store, err := emotion.NewPresetStore(emotion.DefaultPresets())
	require.NoError(t, err)
	mesh, err := deform.NewPolarSphere(1, 6, 3)
	require.NoError(t, err)
	cloud, err := deform.NewPointCloud(1, 50, 1)
	require.NoError(t, err)

	engine, err := blob.NewEngine(blob.Options{
		Presets:       store,
		Router:        emotion.DefaultRouter(),
		Field:         deform.NewField(deform.NewNoise(1)),
		Mesh:          mesh,
		Cloud:         cloud,
		NeutralPreset: "Neutrality",
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	logger, err := logging.New(&logging.Config{Level: "debug", MaxHistory: 50})
	require.NoError(t, err)

	srv := New(config.ServerConfig{FrameStride: stride}, engine, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.hub.closeAll()
		ts.Close()
	})

	return fixture{engine: engine, server: srv, http: ts}
}

func (f fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f fixture) step(t *testing.T) blob.Frame {
	t.Helper()
	frame, err := f.engine.Step(context.Background(), 1.0/60)
	require.NoError(t, err)
	return frame
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Neutrality", body["preset"])
	assert.Equal(t, false, body["session"])
}

func TestListPresetsKeepsOrder(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodGet, "/api/v1/presets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	presets := decode[emotion.Presets](t, resp)
	assert.True(t, presets.Equal(emotion.DefaultPresets()))
	assert.Equal(t, "Neutrality", presets[0].Name)
}

func TestPresetCRUD(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodGet, "/api/v1/presets/Nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/v1/presets/Calm", `{"amplitude": 0.05, "color": 660510}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/presets/Calm", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[emotion.Vector](t, resp)
	assert.InDelta(t, 0.05, v.Amplitude, 1e-9)
	assert.Equal(t, "#0a141e", v.Color.Hex())
	assert.Equal(t, emotion.DefaultVector().Frequency, v.Frequency)

	resp = f.do(t, http.MethodPut, "/api/v1/presets/Calm", `{"modifier": 7}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/presets/Calm", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, f.engine.PresetNames(), "Calm")
}

func TestDeleteProtectedPreset(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodDelete, "/api/v1/presets/Neutrality", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/presets/Nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyAndSentimentAreQueued(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodPost, "/api/v1/presets/Joy/apply", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Neutrality", f.engine.ActivePreset())

	assert.Equal(t, "Joy", f.step(t).Preset)

	resp = f.do(t, http.MethodPost, "/api/v1/sentiment", `{"label": "anger"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Anger", f.step(t).Preset)

	resp = f.do(t, http.MethodPost, "/api/v1/sentiment", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSavePreset(t *testing.T) {
	f := newFixture(t, 1)
	f.step(t)

	resp := f.do(t, http.MethodPost, "/api/v1/presets/Snapshot/save", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved := decode[emotion.Vector](t, resp)
	stored, err := f.engine.Preset("Snapshot")
	require.NoError(t, err)
	assert.Equal(t, stored, saved)
	assert.Equal(t, "Snapshot", f.engine.ActivePreset())
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t, 1)

	resp := f.do(t, http.MethodPost, "/api/v1/session/end", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/session/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[map[string]any](t, resp)
	assert.Equal(t, true, state["active"])
	assert.NotEmpty(t, state["id"])

	resp = f.do(t, http.MethodPost, "/api/v1/session/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/session/summary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[map[string]string](t, resp))

	resp = f.do(t, http.MethodPost, "/api/v1/session/end", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ended := decode[map[string]any](t, resp)
	assert.Equal(t, "nothing detected", ended["summary"])

	resp = f.do(t, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["active"])
}

func TestLogsAndMetrics(t *testing.T) {
	f := newFixture(t, 1)
	f.do(t, http.MethodDelete, "/api/v1/presets/Joy", "")
	f.step(t)

	resp := f.do(t, http.MethodGet, "/api/v1/logs?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]logging.LogEntry](t, resp)
	require.NotEmpty(t, entries)
	assert.Equal(t, "Preset removed", entries[len(entries)-1].Message)

	resp = f.do(t, http.MethodGet, "/api/v1/logs?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cortexblob_frames_total")
}

func dial(t *testing.T, f fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.server.hub.count() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

// readUntil reads messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg outbound
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWebSocketRequests(t *testing.T) {
	f := newFixture(t, 1)
	conn := dial(t, f)

	require.NoError(t, conn.WriteJSON(inbound{Type: "apply", Name: "Joy"}))
	readUntil(t, conn, "apply.ok")

	require.NoError(t, conn.WriteJSON(inbound{Type: "delete", Name: "Neutrality"}))
	msg := readUntil(t, conn, "delete.error")
	assert.Contains(t, msg.Error, "Neutrality")

	require.NoError(t, conn.WriteJSON(inbound{Type: "session.start"}))
	readUntil(t, conn, "session.start.ok")

	require.NoError(t, conn.WriteJSON(inbound{Type: "bogus"}))
	msg = readUntil(t, conn, "error")
	assert.Contains(t, msg.Error, "bogus")
}

func TestWebSocketReceivesEventsAndFrames(t *testing.T) {
	f := newFixture(t, 2)
	conn := dial(t, f)

	require.True(t, f.engine.ApplyPreset("Fear"))
	f.server.OnFrame(f.step(t))
	f.server.OnFrame(f.step(t))

	msg := readUntil(t, conn, "frame")
	data := msg.Data.(map[string]any)
	assert.Equal(t, float64(2), data["index"])
	assert.Equal(t, "Fear", data["preset"])
}

func TestWebSocketDisconnectUpdatesClients(t *testing.T) {
	f := newFixture(t, 1)
	conn := dial(t, f)

	conn.Close()
	require.Eventually(t, func() bool { return f.server.hub.count() == 0 }, time.Second, 5*time.Millisecond)
}
