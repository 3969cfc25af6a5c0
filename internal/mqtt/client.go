package mqtt

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const opTimeout = 10 * time.Second

// Client wraps the Paho MQTT client for the Gridworks floor bus.
type Client struct {
	client paho.Client
	mu     sync.Mutex
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(clientID string) *Client {
	opts := paho.NewClientOptions().
		AddBroker(BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Client{
		client: paho.NewClient(opts),
	}
}

// TimeoutError reports a bus operation that did not complete within the
// operation timeout.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("mqtt %s timeout", e.Op)
	}
	return fmt.Sprintf("mqtt %s timeout: %s", e.Op, e.Topic)
}

// await resolves a paho token against the operation timeout.
func await(token paho.Token, op, topic string) error {
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: op, Topic: topic}
	}
	return token.Error()
}

// Connect attempts to connect to the broker. It returns an error on
// failure but never blocks indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return await(c.client.Connect(), "connect", "")
}

// Subscribe subscribes to a topic with the given handler at QoS 1.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return await(c.client.Subscribe(topic, 1, handler), "subscribe", topic)
}

// Publish sends a payload to a topic at QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return await(c.client.Publish(topic, 1, false, payload), "publish", topic)
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// StartWithRetry attempts to connect, logging errors but not crashing.
// Returns true if connected, false otherwise.
func (c *Client) StartWithRetry() bool {
	if err := c.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", BrokerURL(), err)
		return false
	}

	log.Printf("mqtt: connected to %s", BrokerURL())
	return true
}
