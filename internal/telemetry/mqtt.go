package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// StatusTopic carries the retained controller status document.
const StatusTopic = "poolhouse/controller/status"

// Publisher pushes status payloads to the broker. Failures must never
// crash the process.
type Publisher interface {
	PublishStatus(payload []byte) error
	Close() error
}

// MQTTPublisher publishes to a real broker.
type MQTTPublisher struct {
	client paho.Client
}

func NewMQTTPublisher(broker, clientID string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("broker connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return &MQTTPublisher{client: client}, nil
}

// PublishStatus sends a retained status document so late subscribers
// see the current state immediately.
func (p *MQTTPublisher) PublishStatus(payload []byte) error {
	token := p.client.Publish(StatusTopic, 0, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// FakePublisher records payloads for test assertions.
type FakePublisher struct {
	Payloads     [][]byte
	PublishError error
	Closed       bool
}

func (f *FakePublisher) PublishStatus(payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
