package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/config"
	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/playback"
	"github.com/bryanchriswhite/Silhouette/internal/plugin"
	"github.com/bryanchriswhite/Silhouette/internal/render"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// heldAcquirer keeps sessions in Capturing until stopped.
type heldAcquirer struct{}

func (heldAcquirer) Acquire(ctx context.Context) (snapshot.Pair, error) {
	<-ctx.Done()
	return snapshot.Pair{}, ctx.Err()
}

func newTestServer(t *testing.T, mjpeg *output.MJPEGOutput) (*Server, *httptest.Server) {
	t.Helper()

	cfgMgr, err := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	ticker := vsync.NewTicker(100)
	t.Cleanup(ticker.Stop)

	ctrl := playback.NewController(playback.Options{
		Acquirer: heldAcquirer{},
		OpenVideo: func(context.Context) (media.Video, error) {
			return nil, nil
		},
		Renderer: render.New(crop.Size{Width: 962, Height: 720}),
		Viewport: viewport.NewStatic(viewport.Size{Width: 4, Height: 3}),
		Output:   &output.Discard{},
		VSync:    ticker,
	})
	t.Cleanup(ctrl.Stop)

	p := plugin.New(ctrl, nil)
	require.NoError(t, p.Activate(context.Background()))

	s := NewServer(p, cfgMgr, mjpeg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestPlaybackLifecycle(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var st playback.Status
	resp, err := http.Get(ts.URL + "/api/playback")
	require.NoError(t, err)
	decode(t, resp, &st)
	assert.Equal(t, playback.Idle, st.State)

	resp = post(t, ts.URL+"/api/playback/start")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started map[string]interface{}
	decode(t, resp, &started)
	assert.Equal(t, "capturing", started["state"])
	assert.NotEmpty(t, started["session_id"])

	resp = post(t, ts.URL+"/api/playback/start")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, ts.URL+"/api/playback/stop")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped map[string]interface{}
	decode(t, resp, &stopped)
	assert.Equal(t, "idle", stopped["state"])
}

func TestToggleEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/playback/toggle")
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, playback.Capturing, s.controller.State())

	// ignored mid-capture
	resp = post(t, ts.URL+"/api/playback/toggle")
	resp.Body.Close()
	assert.Equal(t, playback.Capturing, s.controller.State())
}

func TestCrop(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/crop?width=1920&height=1080")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c cropResponse
	decode(t, resp, &c)
	assert.InDelta(t, 0, c.X, 1e-9)
	assert.InDelta(t, 89.4375, c.Y, 1e-6)
	assert.InDelta(t, 962, c.Width, 1e-6)
	assert.InDelta(t, 541.125, c.Height, 1e-6)
}

func TestCropDegenerateAndInvalid(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/crop?width=0&height=1080")
	require.NoError(t, err)
	var c cropResponse
	decode(t, resp, &c)
	assert.Equal(t, cropResponse{}, c)

	for _, q := range []string{
		"width=wide",
		"width=1920&height=1080&anchor_x=NaN",
		"width=1920&height=1080&anchor_y=-Inf",
		"width=Inf&height=1080",
	} {
		resp, err = http.Get(ts.URL + "/api/crop?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"x": math.NaN()})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Body.String())
}

func TestUpdateConfig(t *testing.T) {
	s, ts := newTestServer(t, nil)

	put := func(body string) *http.Response {
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/config", strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := put(`{"video": {"volume": 0.8}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := s.configMgr.Get()
	assert.Equal(t, 0.8, cfg.Video.Volume)
	assert.Equal(t, 962, cfg.Video.Width, "partial update keeps other fields")

	resp = put(`{"output": {"backend": "vnc"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = put(`not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsWebSocket(t *testing.T) {
	_, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/playback/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var initial map[string]interface{}
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "idle", initial["state"])

	resp := post(t, ts.URL+"/api/playback/start")
	resp.Body.Close()

	var ev playback.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.NotEmpty(t, ev.SessionID)

	var raw map[string]interface{}
	resp = post(t, ts.URL+"/api/playback/stop")
	resp.Body.Close()
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, "idle", raw["state"])
}

func TestStreamRoutesOnlyWithMJPEG(t *testing.T) {
	_, without := newTestServer(t, nil)
	resp, err := http.Get(without.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, with := newTestServer(t, output.NewMJPEGOutput(output.Config{Width: 4, Height: 3, FPS: 10}))
	resp, err = http.Get(with.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
