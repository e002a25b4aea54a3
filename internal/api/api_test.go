package api_test

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petitstrawberry/prism/internal/api"
	"github.com/petitstrawberry/prism/internal/config"
	"github.com/petitstrawberry/prism/internal/engine"
	"github.com/petitstrawberry/prism/internal/events"
	"github.com/petitstrawberry/prism/internal/metrics"
	"github.com/petitstrawberry/prism/internal/models"
)

// fakeTap is a CaptureTap serving canned bus frames.
type fakeTap struct {
	frames [][]float32
}

func (f *fakeTap) SubscribeTap(id string) <-chan []float32 {
	ch := make(chan []float32, len(f.frames))
	for _, fr := range f.frames {
		ch <- fr
	}
	return ch
}

func (f *fakeTap) UnsubscribeTap(id string) {}

// newTestServer spins up a full router around a real engine, wired the way
// prismd wires it: registry changes republish on the event bus.
func newTestServer(t *testing.T, taps api.CaptureTap) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := config.Config{
		SampleRate:          48000,
		BusChannels:         8,
		RingFrames:          64,
		FrameSize:           8,
		SafetyOffset:        4,
		ZeroTimestampPeriod: 16,
	}
	eng := engine.New(cfg)
	bus := events.NewBus()
	eng.SetNotifier(func(sel engine.Selector) {
		if sel == engine.SelectorClientList {
			bus.Publish(models.Directory{Clients: eng.Snapshot()})
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(eng))

	info := models.Info{
		Version:     "test",
		SampleRate:  cfg.SampleRate,
		BusChannels: cfg.BusChannels,
		RingFrames:  cfg.RingFrames,
		FrameSize:   cfg.FrameSize,
	}

	router := api.NewRouter(eng, nil, bus, taps, reg, info)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, eng
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetClients(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)
	eng.Join(9, 200)

	resp := do(t, srv, http.MethodGet, "/api/clients", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var dir models.Directory
	decodeJSON(t, resp, &dir)
	if len(dir.Clients) != 2 {
		t.Fatalf("got %d clients, want 2", len(dir.Clients))
	}
}

func TestPostRouting(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)

	resp := do(t, srv, http.MethodPost, "/api/routing", `{"pid":100,"channel_offset":4}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res models.RoutingResult
	decodeJSON(t, resp, &res)
	if res.Updated != 1 {
		t.Errorf("updated = %d, want 1", res.Updated)
	}

	snap := eng.Snapshot()
	if len(snap) != 1 || snap[0].ChannelOffset != 4 {
		t.Errorf("snapshot = %+v, want offset 4", snap)
	}
}

func TestPostRoutingErrors(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"odd offset", `{"pid":100,"channel_offset":1}`, 400, "INVALID_OFFSET"},
		{"overrun offset", `{"pid":100,"channel_offset":7}`, 400, "INVALID_OFFSET"},
		{"unknown pid", `{"pid":999,"channel_offset":4}`, 404, "NO_SUCH_CLIENT"},
		{"missing pid", `{"channel_offset":4}`, 400, "BAD_REQUEST"},
		{"garbage", `{pid}`, 400, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/api/routing", tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			var appErr models.AppError
			decodeJSON(t, resp, &appErr)
			if appErr.Code != tc.code {
				t.Errorf("code = %q, want %q", appErr.Code, tc.code)
			}
		})
	}
}

func TestPostRoutingBroadcast(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)
	eng.Join(9, 200)

	resp := do(t, srv, http.MethodPost, "/api/routing", `{"pid":-1,"channel_offset":6}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res models.RoutingResult
	decodeJSON(t, resp, &res)
	if res.Updated != 2 {
		t.Errorf("updated = %d, want 2", res.Updated)
	}
}

func TestGetInfo(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)

	resp := do(t, srv, http.MethodGet, "/api/info", "")
	var info models.Info
	decodeJSON(t, resp, &info)
	if info.BusChannels != 8 || info.ActiveClients != 1 {
		t.Errorf("info = %+v, want 8 channels and 1 active client", info)
	}
}

func TestSSEInitialDirectory(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/subscribe", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()

	line := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "data: ") {
				line <- strings.TrimPrefix(scanner.Text(), "data: ")
				return
			}
		}
	}()

	select {
	case data := <-line:
		var dir models.Directory
		if err := json.Unmarshal([]byte(data), &dir); err != nil {
			t.Fatalf("bad SSE payload %q: %v", data, err)
		}
		if len(dir.Clients) != 1 || dir.Clients[0].ClientID != 7 {
			t.Errorf("initial directory = %+v", dir)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial SSE event")
	}
}

func TestCaptureWithoutClock(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp := do(t, srv, http.MethodGet, "/api/capture", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCaptureStreamsPair(t *testing.T) {
	// One bus frame chunk: 2 frames x 8 channels; pair 2-3 carries signal.
	chunk := make([]float32, 2*8)
	chunk[2], chunk[3] = 0.25, -0.25
	chunk[8+2], chunk[8+3] = 0.5, -0.5
	tap := &fakeTap{frames: [][]float32{chunk}}

	srv, _ := newTestServer(t, tap)
	resp := do(t, srv, http.MethodGet, "/api/capture?offset=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	// 2 frames x 2 channels x 4 bytes
	buf := make([]byte, 16)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read capture stream: %v", err)
	}
	got := []float32{
		math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])),
		math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])),
	}
	want := []float32{0.25, -0.25, 0.5, -0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCaptureRejectsBadOffset(t *testing.T) {
	srv, _ := newTestServer(t, &fakeTap{})
	for _, q := range []string{"offset=1", "offset=8", "offset=-2", "offset=x"} {
		resp := do(t, srv, http.MethodGet, "/api/capture?"+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	eng.Join(7, 100)

	resp := do(t, srv, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "prism_active_clients 1") {
		t.Errorf("metrics output missing active clients gauge:\n%s", body)
	}
}
