package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	FloorName string                 `json:"floor_name"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig holds the webhook target and per-dependency disconnect
// delays. A dependency must stay down for its whole delay before an
// alert fires, so a broker restart does not page anyone.
type AlertConfig struct {
	WebhookURL              string
	MQTTDisconnectDelay     time.Duration
	PostgresDisconnectDelay time.Duration
}

// outage is the debounce state for one dependency.
type outage struct {
	since     time.Time
	alerted   bool
	lastKnown bool
}

// observe folds in the current connection state. It reports whether a
// down alert should fire now (the delay just elapsed) and whether a
// recovery alert is due (reconnected after an alerted outage).
func (o *outage) observe(connected bool, delay time.Duration, now time.Time) (fireDown, fireUp bool) {
	if connected {
		fireUp = !o.lastKnown && o.alerted
		o.since = time.Time{}
		o.alerted = false
		o.lastKnown = true
		return
	}

	if o.lastKnown {
		o.since = now
	}
	o.lastKnown = false

	if !o.alerted && !o.since.IsZero() && now.Sub(o.since) >= delay {
		o.alerted = true
		fireDown = true
	}
	return
}

var (
	alertMu     sync.Mutex
	alertConfig = &AlertConfig{
		MQTTDisconnectDelay:     30 * time.Second,
		PostgresDisconnectDelay: 5 * time.Second,
	}
	mqttOutage        outage
	postgresOutage    outage
	alertsInitialized bool
)

// InitAlerts configures alerting from GRIDWORKS_ALERT_WEBHOOK_URL and
// the optional GRIDWORKS_MQTT_ALERT_DELAY / GRIDWORKS_POSTGRES_ALERT_DELAY
// duration overrides.
func InitAlerts() {
	alertMu.Lock()
	defer alertMu.Unlock()

	alertConfig.WebhookURL = os.Getenv("GRIDWORKS_ALERT_WEBHOOK_URL")

	if s := os.Getenv("GRIDWORKS_MQTT_ALERT_DELAY"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			alertConfig.MQTTDisconnectDelay = d
		}
	}
	if s := os.Getenv("GRIDWORKS_POSTGRES_ALERT_DELAY"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			alertConfig.PostgresDisconnectDelay = d
		}
	}

	if alertConfig.WebhookURL != "" {
		log.Printf("alerts enabled: webhook configured (mqtt_delay=%s, pg_delay=%s)",
			alertConfig.MQTTDisconnectDelay, alertConfig.PostgresDisconnectDelay)
	}

	// Both dependencies count as up until proven otherwise.
	mqttOutage = outage{lastKnown: true}
	postgresOutage = outage{lastKnown: true}
	alertsInitialized = true
}

// GetAlertWebhookURL returns the configured webhook URL.
func GetAlertWebhookURL() string {
	alertMu.Lock()
	defer alertMu.Unlock()
	return alertConfig.WebhookURL
}

// SendAlert delivers an alert to the webhook, or logs it when no
// webhook is configured. Delivery is asynchronous and best-effort.
func SendAlert(event, severity, message string, details map[string]interface{}) {
	alertMu.Lock()
	webhookURL := alertConfig.WebhookURL
	alertMu.Unlock()

	if webhookURL == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", event, severity, message, details)
		return
	}

	floorName := GetFloorName()
	if floorName == "" {
		floorName = "unknown"
	}

	payload := AlertPayload{
		FloorName: floorName,
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   message,
		Details:   details,
	}

	go postWebhook(webhookURL, payload)
}

func postWebhook(url string, payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}

// CheckAndAlertMQTT observes the floor bus connection state.
func CheckAndAlertMQTT(connected bool) {
	alertMu.Lock()
	if !alertsInitialized {
		alertMu.Unlock()
		return
	}
	now := time.Now()
	down, up := mqttOutage.observe(connected, alertConfig.MQTTDisconnectDelay, now)
	since := mqttOutage.since
	alertMu.Unlock()

	if down {
		SendAlert(AlertMQTTDisconnected, SeverityWarning, "MQTT broker disconnected",
			map[string]interface{}{
				"disconnected_since":   since.UTC().Format(time.RFC3339),
				"disconnected_seconds": int(now.Sub(since).Seconds()),
			})
	}
	if up {
		SendAlert(AlertMQTTDisconnected, SeverityInfo, "MQTT connection restored",
			map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
	}
}

// CheckAndAlertPostgres observes the event log connection state.
func CheckAndAlertPostgres(connected bool) {
	alertMu.Lock()
	if !alertsInitialized {
		alertMu.Unlock()
		return
	}
	now := time.Now()
	down, up := postgresOutage.observe(connected, alertConfig.PostgresDisconnectDelay, now)
	since := postgresOutage.since
	alertMu.Unlock()

	if down {
		SendAlert(AlertPostgresUnavailable, SeverityCritical, "PostgreSQL unavailable",
			map[string]interface{}{
				"disconnected_since":   since.UTC().Format(time.RFC3339),
				"disconnected_seconds": int(now.Sub(since).Seconds()),
			})
	}
	if up {
		SendAlert(AlertPostgresUnavailable, SeverityInfo, "PostgreSQL connection restored",
			map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
	}
}

// StartAlertMonitor polls the readiness state and feeds it to the
// outage trackers.
func StartAlertMonitor(checkInterval time.Duration) {
	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for range ticker.C {
			readiness.mu.RLock()
			mqttConnected := readiness.mqttConnected
			postgresConnected := readiness.postgresConnected
			readiness.mu.RUnlock()

			CheckAndAlertMQTT(mqttConnected)
			CheckAndAlertPostgres(postgresConnected)
		}
	}()
}
