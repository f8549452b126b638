package stream

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/playback"
	"github.com/litescript/ls-orrery/internal/simclock"
	"github.com/litescript/ls-orrery/internal/state"
)

const startMs = 1_677_326_400_000.0 // jdUTC 2460001.0

func series(t *testing.T, p astro.Vec3) *ephem.EphemerisSeries {
	t.Helper()
	samples := make([]ephem.EphemerisSample, 4)
	for i := range samples {
		samples[i] = ephem.EphemerisSample{TimeTDB: 2460000.5 + float64(i), Position: p}
	}
	s, err := ephem.NewEphemerisSeries(samples)
	if err != nil {
		t.Fatalf("NewEphemerisSeries: %v", err)
	}
	return s
}

func newManager(t *testing.T, ready bool) *state.Manager {
	t.Helper()
	m := state.NewManager(state.DefaultConfig(), simclock.New(startMs), nil)
	if err := m.AddBody(state.Body{
		Name:      "Sun",
		NAIFID:    ephem.NAIFSun,
		Ephemeris: series(t, astro.Vec3{}),
		Caps:      state.CapLightSource,
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBody(state.Body{
		Name:      "Earth",
		NAIFID:    ephem.NAIFEarth,
		Ephemeris: series(t, astro.Vec3{X: 1, Y: 2, Z: 3}),
		Caps:      state.CapSunLit,
	}); err != nil {
		t.Fatal(err)
	}
	if ready {
		if err := m.MarkReady(); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func newTestServer(t *testing.T, ready bool) (*Server, *state.Manager) {
	t.Helper()
	m := newManager(t, ready)
	cfg := DefaultConfig()
	cfg.FrameInterval = 10 * time.Millisecond
	return NewServer(m, cfg, nil), m
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	h := decode[healthResponse](t, rec)
	if h.Ready || h.Status != "loading" {
		t.Errorf("health = %+v, want loading and not ready", h)
	}
	if h.Bodies != 2 {
		t.Errorf("Bodies = %d, want 2", h.Bodies)
	}
}

func TestFrameNotReady(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/api/frame", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestFrameAxes(t *testing.T) {
	s, _ := newTestServer(t, true)

	tests := []struct {
		query string
		axes  string
		want  astro.Vec3
	}{
		{"", AxesYUp, astro.Vec3{X: 1, Y: 3, Z: -2}},
		{"?axes=y-up", AxesYUp, astro.Vec3{X: 1, Y: 3, Z: -2}},
		{"?axes=ecliptic", AxesEcliptic, astro.Vec3{X: 1, Y: 2, Z: 3}},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, "/api/frame"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /api/frame%s status = %d", tt.query, rec.Code)
		}
		msg := decode[FrameMessage](t, rec)
		if msg.Axes != tt.axes {
			t.Errorf("%s: Axes = %q, want %q", tt.query, msg.Axes, tt.axes)
		}
		earth, ok := msg.Frame.Body("Earth")
		if !ok {
			t.Fatalf("%s: Earth missing", tt.query)
		}
		if earth.Position.Sub(tt.want).Norm() > 1e-6 {
			t.Errorf("%s: Earth position = %+v, want %+v", tt.query, earth.Position, tt.want)
		}
		if earth.SunDirection == nil {
			t.Errorf("%s: SunDirection missing", tt.query)
		}
	}
}

func TestEncodeFrameLeavesInputUntouched(t *testing.T) {
	dir := astro.Vec3{X: 0, Y: 1, Z: 0}
	f := state.Frame{Bodies: []state.BodyState{{Name: "Earth", Position: astro.Vec3{Y: 5}, SunDirection: &dir}}}
	msg := EncodeFrame(f, "")

	if f.Bodies[0].Position.Y != 5 || dir.Y != 1 {
		t.Errorf("EncodeFrame mutated its input: %+v, %+v", f.Bodies[0].Position, dir)
	}
	if got := msg.Frame.Bodies[0].SunDirection; got == nil || got.Z != -1 {
		t.Errorf("encoded sun direction = %+v, want (0,0,-1)", got)
	}
}

func TestBodyEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := do(t, s, http.MethodGet, "/api/bodies/Earth?axes=ecliptic", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	b := decode[state.BodyState](t, rec)
	if b.NAIFID != int(ephem.NAIFEarth) {
		t.Errorf("NAIFID = %d, want %d", b.NAIFID, ephem.NAIFEarth)
	}

	if rec := do(t, s, http.MethodGet, "/api/bodies/Vulcan", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown body status = %d, want 404", rec.Code)
	}
}

func TestSpeedEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSpeed  float64
	}{
		{"multiplier", `{"multiplier": 3600}`, http.StatusOK, 3600},
		{"slider max", `{"slider": 100}`, http.StatusOK, playback.MaxSpeed},
		{"clamped", `{"multiplier": 1e12}`, http.StatusOK, playback.MaxSpeed},
		{"zero", `{"multiplier": 0}`, http.StatusBadRequest, 1},
		{"empty", `{}`, http.StatusBadRequest, 1},
		{"garbage", `not json`, http.StatusBadRequest, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestServer(t, true)
			rec := do(t, s, http.MethodPost, "/api/speed", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := m.Clock().Speed(); got != tt.wantSpeed {
				t.Errorf("speed = %v, want %v", got, tt.wantSpeed)
			}
			if tt.wantStatus == http.StatusOK {
				resp := decode[ControlResponse](t, rec)
				if resp.Speed != tt.wantSpeed || resp.SpeedLabel == "" {
					t.Errorf("response = %+v", resp)
				}
			}
		})
	}
}

func TestTimeEndpoint(t *testing.T) {
	s, m := newTestServer(t, true)
	m.Pause()

	rec := do(t, s, http.MethodPost, "/api/time", `{"rfc3339": "2024-01-01T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	want := astro.EpochMs(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if resp := decode[ControlResponse](t, rec); resp.SimulatedTimeMs != want {
		t.Errorf("SimulatedTimeMs = %v, want %v", resp.SimulatedTimeMs, want)
	}

	rec = do(t, s, http.MethodPost, "/api/time", `{"epochMs": 0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("epochMs status = %d", rec.Code)
	}
	if got := m.Clock().Now(); got != 0 {
		t.Errorf("clock = %v, want 0", got)
	}

	if rec := do(t, s, http.MethodPost, "/api/time", `{"rfc3339": "soon"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad rfc3339 status = %d, want 400", rec.Code)
	}
}

func TestTimeSkipSurvivesBodyPolls(t *testing.T) {
	s, _ := newTestServer(t, true)

	if rec := do(t, s, http.MethodPost, "/api/time", `{"rfc3339": "2023-02-26T00:00:00Z"}`); rec.Code != http.StatusOK {
		t.Fatalf("time status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/bodies/Earth", ""); rec.Code != http.StatusOK {
		t.Fatalf("body status = %d", rec.Code)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/api/frame", true},
		{"/api/frame", false},
		{"/api/frame?since=0", true},
		{"/api/frame?since=1", false},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, tt.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tt.path, rec.Code)
		}
		msg := decode[FrameMessage](t, rec)
		if msg.Frame.TimeSkipped != tt.want {
			t.Errorf("%s timeSkipped = %v, want %v", tt.path, msg.Frame.TimeSkipped, tt.want)
		}
		if msg.Frame.SkipCount != 1 {
			t.Errorf("%s skipCount = %d, want 1", tt.path, msg.Frame.SkipCount)
		}
	}

	if rec := do(t, s, http.MethodGet, "/api/frame?since=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}

func TestPauseResume(t *testing.T) {
	s, m := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/api/pause", "")
	if rec.Code != http.StatusOK || !m.Paused() {
		t.Fatalf("pause: status %d, paused %v", rec.Code, m.Paused())
	}
	if resp := decode[ControlResponse](t, rec); !resp.Paused {
		t.Error("response should report paused")
	}

	do(t, s, http.MethodPost, "/api/resume", "")
	if m.Paused() {
		t.Error("still paused after resume")
	}

	do(t, s, http.MethodPost, "/api/toggle", "")
	if !m.Paused() {
		t.Error("toggle should pause")
	}
}

func TestEventsEndpoint(t *testing.T) {
	s, m := newTestServer(t, true)
	m.Pause()
	m.Resume()

	rec := do(t, s, http.MethodGet, "/api/events?n=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	events := decode[[]state.Event](t, rec)
	if len(events) != 2 || events[0].Type != state.EventPause || events[1].Type != state.EventResume {
		t.Errorf("events = %+v, want PAUSE, RESUME", events)
	}

	if rec := do(t, s, http.MethodGet, "/api/events?n=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("n=-1 status = %d, want 400", rec.Code)
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWebSocketFrames(t *testing.T) {
	s, _ := newTestServer(t, true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?axes=ecliptic"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FrameMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != "frame" || msg.Axes != AxesEcliptic {
		t.Errorf("message = %s/%s, want frame/ecliptic", msg.Type, msg.Axes)
	}
	if len(msg.Frame.Bodies) != 2 {
		t.Errorf("len(Bodies) = %d, want 2", len(msg.Frame.Bodies))
	}
}

func TestWebSocketControl(t *testing.T) {
	s, m := newTestServer(t, true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	speed := 60.0
	if err := conn.WriteJSON(ControlRequest{Action: "speed", Multiplier: &speed}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := conn.WriteJSON(ControlRequest{Action: "warp"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var gotControl, gotError bool
	for !(gotControl && gotError) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v (control %v, error %v)", err, gotControl, gotError)
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		switch head.Type {
		case "control":
			var cm ControlMessage
			if err := json.NewDecoder(bytes.NewReader(data)).Decode(&cm); err != nil {
				t.Fatal(err)
			}
			if cm.State.Speed != 60 {
				t.Errorf("control speed = %v, want 60", cm.State.Speed)
			}
			gotControl = true
		case "error":
			gotError = true
		}
	}

	if m.Clock().Speed() != 60 {
		t.Errorf("manager speed = %v, want 60", m.Clock().Speed())
	}
}

func TestWebSocketSkipsUntilReady(t *testing.T) {
	s, m := newTestServer(t, false)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("received a message before ready")
	}
	conn.Close()

	if err := m.MarkReady(); err != nil {
		t.Fatal(err)
	}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FrameMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON after ready: %v", err)
	}
	if msg.Type != "frame" {
		t.Errorf("Type = %q, want frame", msg.Type)
	}
}

// readUntilSkip reads frames until one reports a time skip.
func readUntilSkip(t *testing.T, conn *websocket.Conn) FrameMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg FrameMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("no skipped frame before error: %v", err)
		}
		if msg.Type == "frame" && msg.Frame.TimeSkipped {
			return msg
		}
	}
}

func TestWebSocketTimeSkipPerConnection(t *testing.T) {
	s, _ := newTestServer(t, true)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		defer conn.Close()

		// The first frame means the connection's cursor exists.
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var first FrameMessage
		if err := conn.ReadJSON(&first); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		conns = append(conns, conn)
	}

	resp, err := http.Post(srv.URL+"/api/time", "application/json", strings.NewReader(`{"rfc3339": "2023-02-26T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("POST /api/time: %v", err)
	}
	resp.Body.Close()

	// A poller taking a frame in between must not steal the skip.
	if rec := do(t, s, http.MethodGet, "/api/frame", ""); rec.Code != http.StatusOK {
		t.Fatalf("frame status = %d", rec.Code)
	}

	want := astro.EpochMs(time.Date(2023, 2, 26, 0, 0, 0, 0, time.UTC))
	for i, conn := range conns {
		msg := readUntilSkip(t, conn)
		if msg.Frame.SimulatedTimeMs < want {
			t.Errorf("conn %d skipped frame at %v, want >= %v", i, msg.Frame.SimulatedTimeMs, want)
		}
	}
}
