package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gridworks-sim/gridworks/internal/events"
	"github.com/gridworks-sim/gridworks/internal/factory"
)

// mockEngine implements EngineController for handler tests.
type mockEngine struct {
	steps      int
	stepErr    error
	placeID    factory.MachineID
	placeErr   error
	connectErr error
	removeErr  error
	snapshot   factory.FloorState
}

func (m *mockEngine) Step() error { m.steps++; return m.stepErr }
func (m *mockEngine) Place(name, recipe string, pos factory.Cell) (factory.MachineID, error) {
	return m.placeID, m.placeErr
}
func (m *mockEngine) Connect(from, to factory.MachineID) error { return m.connectErr }
func (m *mockEngine) Remove(id factory.MachineID) error        { return m.removeErr }
func (m *mockEngine) HasMachine(id factory.MachineID) bool     { return true }
func (m *mockEngine) Snapshot() factory.FloorState             { return m.snapshot }
func (m *mockEngine) Ticks() uint64                            { return 0 }
func (m *mockEngine) Counts() (int, int)                       { return 0, 0 }

func (m *mockEngine) DragStart(client string, origin factory.MachineID) error { return nil }
func (m *mockEngine) DragUpdate(client string, delta factory.Vec2) (int, error) {
	return 0, nil
}
func (m *mockEngine) DragEnd(client string, terminal factory.MachineID, hasTerminal bool) error {
	return nil
}
func (m *mockEngine) DragCancel(client string) {}

func withEngine(t *testing.T, e EngineController) {
	t.Helper()
	prev := engine
	engine = e
	t.Cleanup(func() { engine = prev })
}

func TestHealthEndpoint(t *testing.T) {
	SetEngineReady(true)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
	if !resp.Ready {
		t.Error("expected ready flag set")
	}
}

func TestStateEndpointWithoutEngine(t *testing.T) {
	withEngine(t, nil)

	req := httptest.NewRequest("GET", "/state", nil)
	w := httptest.NewRecorder()

	stateHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without engine, got %d", w.Code)
	}
}

func TestStateEndpointReturnsSnapshot(t *testing.T) {
	withEngine(t, &mockEngine{
		snapshot: factory.FloorState{
			Tick: 7,
			Machines: []factory.MachineState{
				{ID: 1, Name: "mine", Kind: factory.KindMachine},
			},
		},
	})

	req := httptest.NewRequest("GET", "/state", nil)
	w := httptest.NewRecorder()

	stateHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var state factory.FloorState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if state.Tick != 7 || len(state.Machines) != 1 || state.Machines[0].Name != "mine" {
		t.Errorf("unexpected snapshot: %+v", state)
	}
}

func TestOperatorTick(t *testing.T) {
	mock := &mockEngine{}
	withEngine(t, mock)

	req := httptest.NewRequest("POST", "/operator/tick", nil)
	w := httptest.NewRecorder()

	operatorTickHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.steps != 1 {
		t.Errorf("expected one engine step, got %d", mock.steps)
	}
}

func TestOperatorTickRejectsGet(t *testing.T) {
	mock := &mockEngine{}
	withEngine(t, mock)

	req := httptest.NewRequest("GET", "/operator/tick", nil)
	w := httptest.NewRecorder()

	operatorTickHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
	if mock.steps != 0 {
		t.Error("GET must not tick the engine")
	}
}

func TestOperatorPlace(t *testing.T) {
	withEngine(t, &mockEngine{placeID: 9})

	body := strings.NewReader(`{"name": "mine", "recipe": "iron_mine", "x": 3, "y": 4}`)
	req := httptest.NewRequest("POST", "/operator/place", body)
	w := httptest.NewRecorder()

	operatorPlaceHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp PlaceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.MachineID != 9 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOperatorPlaceValidation(t *testing.T) {
	withEngine(t, &mockEngine{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", "not json"},
		{"missing name", `{"recipe": "iron_mine"}`},
		{"missing recipe", `{"name": "mine"}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/operator/place", strings.NewReader(tc.body))
		w := httptest.NewRecorder()

		operatorPlaceHandler(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestOperatorPlaceUnknownRecipe(t *testing.T) {
	withEngine(t, &mockEngine{placeErr: factory.ErrMisconfiguredMachine})

	body := strings.NewReader(`{"name": "mine", "recipe": "nonsense"}`)
	req := httptest.NewRequest("POST", "/operator/place", body)
	w := httptest.NewRecorder()

	operatorPlaceHandler(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown recipe, got %d", w.Code)
	}
}

func TestOperatorConnectErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{factory.ErrUnknownMachine, http.StatusNotFound},
		{factory.ErrSelfConnection, http.StatusUnprocessableEntity},
		{factory.ErrCapacityExceeded, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		withEngine(t, &mockEngine{connectErr: tc.err})

		body := strings.NewReader(`{"from": 1, "to": 2}`)
		req := httptest.NewRequest("POST", "/operator/connect", body)
		w := httptest.NewRecorder()

		operatorConnectHandler(w, req)

		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestOperatorRemove(t *testing.T) {
	withEngine(t, &mockEngine{})

	body := strings.NewReader(`{"machine_id": 3}`)
	req := httptest.NewRequest("POST", "/operator/remove", body)
	w := httptest.NewRecorder()

	operatorRemoveHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestOperatorRemoveUnknownMachine(t *testing.T) {
	withEngine(t, &mockEngine{removeErr: factory.ErrUnknownMachine})

	body := strings.NewReader(`{"machine_id": 404}`)
	req := httptest.NewRequest("POST", "/operator/remove", body)
	w := httptest.NewRecorder()

	operatorRemoveHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestOperatorEndpointsWithoutEngine(t *testing.T) {
	withEngine(t, nil)

	req := httptest.NewRequest("POST", "/operator/tick", nil)
	w := httptest.NewRecorder()

	operatorTickHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without engine, got %d", w.Code)
	}
}

func TestEventsEndpointServesBuffer(t *testing.T) {
	events.Clear()
	events.Emit("info", "tick.started", "", map[string]interface{}{"tick": 1})

	req := httptest.NewRequest("GET", "/events", nil)
	w := httptest.NewRecorder()

	eventsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got []events.Event
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "tick.started" {
		t.Errorf("unexpected events: %+v", got)
	}
}

func TestEventsEndpointLimitFallsBackWithoutDatabase(t *testing.T) {
	events.Clear()
	events.Emit("info", "tick.completed", "", nil)

	// No Postgres client configured: ?limit= serves the buffer.
	req := httptest.NewRequest("GET", "/events?limit=10", nil)
	w := httptest.NewRecorder()

	eventsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tick.completed") {
		t.Errorf("expected buffered event in response: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	InitMetrics()
	SetFloorName("test-floor")
	withEngine(t, &mockEngine{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	metricsHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{
		"gridworks_uptime_seconds",
		"gridworks_ticks_total",
		"gridworks_machines",
		"gridworks_resources",
		"gridworks_mqtt_connected",
		"gridworks_postgres_connected",
		"gridworks_ws_clients",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
	if !strings.Contains(body, `floor="test-floor"`) {
		t.Error("metrics output missing floor label")
	}
}
