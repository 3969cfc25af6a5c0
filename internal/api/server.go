package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gridworks-sim/gridworks/internal/events"
	"github.com/gridworks-sim/gridworks/internal/factory"
)

// EngineController is the slice of the engine the API needs. It allows
// testing handlers with mock implementations.
type EngineController interface {
	Step() error
	Place(name, recipeName string, pos factory.Cell) (factory.MachineID, error)
	Connect(from, to factory.MachineID) error
	Remove(id factory.MachineID) error
	HasMachine(id factory.MachineID) bool
	Snapshot() factory.FloorState
	Ticks() uint64
	Counts() (machines, resources int)

	DragStart(client string, origin factory.MachineID) error
	DragUpdate(client string, delta factory.Vec2) (int, error)
	DragEnd(client string, terminal factory.MachineID, hasTerminal bool) error
	DragCancel(client string)
}

var engine EngineController

// SetEngine sets the engine used by state and operator endpoints.
func SetEngine(e EngineController) {
	engine = e
}

// readiness is shared by /health, /metrics and the alert monitor.
var readiness = struct {
	mu                sync.RWMutex
	engineReady       bool
	mqttConnected     bool
	postgresConnected bool
}{}

// SetEngineReady marks the engine as loaded and ticking.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetMQTTConnected records the floor bus connection state.
func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetPostgresConnected records the event log connection state.
func SetPostgresConnected(connected bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.mu.Unlock()
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Ready     bool   `json:"ready"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()

	readiness.mu.RLock()
	ready := readiness.engineReady
	readiness.mu.RUnlock()

	resp := HealthResponse{
		Status:    "ok",
		Service:   "engine",
		Hostname:  host,
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// eventsHandler serves recent events. Without arguments it returns the
// in-memory ring buffer; with ?limit=N it reads the Postgres audit log
// when one is configured, falling back to the buffer otherwise.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if client := events.GetPostgresClient(); client != nil {
			limit, err := strconv.Atoi(limitStr)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "invalid limit"})
				return
			}
			rows, err := client.Query(limit)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: err.Error()})
				return
			}
			_ = json.NewEncoder(w).Encode(rows)
			return
		}
	}

	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

func stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "engine not ready"})
		return
	}
	_ = json.NewEncoder(w).Encode(engine.Snapshot())
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// writeOperatorError maps structural engine errors onto HTTP statuses.
func writeOperatorError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, factory.ErrUnknownMachine):
		status = http.StatusNotFound
	case errors.Is(err, factory.ErrCapacityExceeded),
		errors.Is(err, factory.ErrSelfConnection),
		errors.Is(err, factory.ErrMisconfiguredMachine):
		status = http.StatusUnprocessableEntity
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: err.Error()})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "method not allowed"})
		return false
	}
	if engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "engine not ready"})
		return false
	}
	return true
}

func operatorTickHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !requirePost(w, r) {
		return
	}

	if err := engine.Step(); err != nil {
		writeOperatorError(w, err)
		return
	}

	events.Emit("info", "operator.tick", "", nil)
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

type PlaceRequest struct {
	Name   string `json:"name"`
	Recipe string `json:"recipe"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type PlaceResponse struct {
	OK        bool   `json:"ok"`
	MachineID int    `json:"machine_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

func operatorPlaceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !requirePost(w, r) {
		return
	}

	var req PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(PlaceResponse{OK: false, Error: "invalid JSON"})
		return
	}
	if req.Name == "" || req.Recipe == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(PlaceResponse{OK: false, Error: "name and recipe required"})
		return
	}

	id, err := engine.Place(req.Name, req.Recipe, factory.Cell{X: req.X, Y: req.Y})
	if err != nil {
		writeOperatorError(w, err)
		return
	}

	events.Emit("info", "operator.place", "", map[string]interface{}{
		"machine_id": int(id),
		"name":       req.Name,
		"recipe":     req.Recipe,
	})
	_ = json.NewEncoder(w).Encode(PlaceResponse{OK: true, MachineID: int(id)})
}

type ConnectRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func operatorConnectHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !requirePost(w, r) {
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "invalid JSON"})
		return
	}

	if err := engine.Connect(factory.MachineID(req.From), factory.MachineID(req.To)); err != nil {
		writeOperatorError(w, err)
		return
	}

	events.Emit("info", "operator.connect", "", map[string]interface{}{
		"from": req.From,
		"to":   req.To,
	})
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

type RemoveRequest struct {
	MachineID int `json:"machine_id"`
}

func operatorRemoveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !requirePost(w, r) {
		return
	}

	var req RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "invalid JSON"})
		return
	}

	if err := engine.Remove(factory.MachineID(req.MachineID)); err != nil {
		writeOperatorError(w, err)
		return
	}

	events.Emit("info", "operator.remove", "", map[string]interface{}{
		"machine_id": req.MachineID,
	})
	_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
}

// NewMux builds the API routing table.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/state", RequireAnyRole(stateHandler))
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/ui", RequireAnyRole(uiHandler))
	mux.HandleFunc("/ws", wsEventsHandler)
	mux.HandleFunc("/operator/tick", RequireAnyRole(operatorTickHandler))
	mux.HandleFunc("/operator/place", RequireAnyRole(operatorPlaceHandler))
	mux.HandleFunc("/operator/connect", RequireAnyRole(operatorConnectHandler))
	mux.HandleFunc("/operator/remove", RequireAdmin(operatorRemoveHandler))
	return mux
}

// ListenAndServe starts the API server on the given port.
// It blocks until the server exits.
func ListenAndServe(port int) error {
	mux := NewMux()
	addr := fmt.Sprintf(":%d", port)

	if IsTLSEnabled() {
		if LoadTLSConfig() == nil {
			log.Printf("TLS configured but key pair failed to load, serving plaintext on %s", addr)
			return http.ListenAndServe(addr, mux)
		}
		cfg := GetTLSConfig()
		log.Printf("API listening on %s (TLS)\n", addr)
		return http.ListenAndServeTLS(addr, cfg.CertFile, cfg.KeyFile, mux)
	}

	log.Printf("API listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

// Start starts the API server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int) {
	go func() {
		if err := ListenAndServe(port); err != nil {
			log.Printf("api server error: %v", err)
		}
	}()
}
