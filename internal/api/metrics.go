package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gridworks-sim/gridworks/internal/events"
	"github.com/gridworks-sim/gridworks/internal/version"
)

// Metrics state
var (
	metricsState = &MetricsState{}
)

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	floorName string
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetFloorName sets the floor name for metrics labels.
func SetFloorName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.floorName = name
}

// GetFloorName returns the current floor name.
func GetFloorName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.floorName
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Gather metrics
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	floorName := metricsState.floorName
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()

	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	var ticks uint64
	var machines, resources int
	if engine != nil {
		ticks = engine.Ticks()
		machines, resources = engine.Counts()
	}

	// Determine floor active (1 if engine ready, 0 otherwise)
	floorActive := 0
	if engineReady {
		floorActive = 1
	}

	mqttConnectedVal := 0
	if mqttConnected {
		mqttConnectedVal = 1
	}

	postgresConnectedVal := 0
	if postgresConnected {
		postgresConnectedVal = 1
	}

	// Get hostname for instance label
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	// Build Prometheus text format response
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper to write metric with optional labels
	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	// Common labels
	labels := fmt.Sprintf(`floor="%s",instance="%s",version="%s"`, floorName, hostname, version.Version)

	// Uptime
	writeMetric("gridworks_uptime_seconds", "gauge",
		"Number of seconds since the engine started", uptime, labels)

	// Floor active
	writeMetric("gridworks_floors_active", "gauge",
		"Whether the floor is loaded and ticking (1) or not (0)", floorActive, labels)

	// Ticks total
	writeMetric("gridworks_ticks_total", "counter",
		"Total number of global simulation ticks since startup", ticks, labels)

	// Machines
	writeMetric("gridworks_machines", "gauge",
		"Number of machines currently on the floor", machines, labels)

	// Buffered resources
	writeMetric("gridworks_resources", "gauge",
		"Number of resources currently buffered across all machines", resources, labels)

	// Events total
	writeMetric("gridworks_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	// MQTT connected
	writeMetric("gridworks_mqtt_connected", "gauge",
		"Whether the floor bus broker is connected (1) or not (0)", mqttConnectedVal, labels)

	// Postgres connected
	writeMetric("gridworks_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", postgresConnectedVal, labels)

	// WebSocket clients
	writeMetric("gridworks_ws_clients", "gauge",
		"Number of active WebSocket client connections", WSClientCount(), labels)
}
