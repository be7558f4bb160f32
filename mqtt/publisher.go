// Package mqtt publishes IMU state updates to MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aldas/go-imucan-client"
	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTopic          = "imucan/state"
	defaultPublishTimeout = 1 * time.Second
	disconnectQuiesceMs   = 250
)

var errPublishTimeout = errors.New("mqtt publish timeout")

// Config configures MQTT publisher
type Config struct {
	// Broker is broker URL. For example: tcp://127.0.0.1:1883
	Broker   string
	ClientID string
	// Topic is where updates are published. Defaults to `imucan/state`
	Topic string
	// PerDeviceTopic appends `/<model>/<number>` to Topic
	PerDeviceTopic bool
	// PublishTimeout limits how long single publish waits for broker. Defaults to 1s
	PublishTimeout time.Duration
	// Logger is used for diagnostic logging. Defaults to logrus standard logger.
	Logger log.FieldLogger
}

// client is subset of paho.Client that publisher needs
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes state updates as JSON with QoS 0 and retained flag so late subscribers get latest state.
type Publisher struct {
	client client
	config Config
	logger log.FieldLogger
}

// NewPublisher creates publisher for given broker. Connect must be called before publishing.
func NewPublisher(config Config) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetAutoReconnect(true)

	return newPublisher(paho.NewClient(opts), config)
}

func newPublisher(c client, config Config) *Publisher {
	if config.Topic == "" {
		config.Topic = defaultTopic
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaultPublishTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{
		client: c,
		config: config,
		logger: logger,
	}
}

// Connect connects to broker
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect(), p.config.PublishTimeout*5); err != nil {
		return fmt.Errorf("mqtt connect error: %w", err)
	}
	p.logger.WithField("broker", p.config.Broker).Info("connected to MQTT broker")
	return nil
}

// Report publishes update to topic
func (p *Publisher) Report(ctx context.Context, update imucan.Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("mqtt failed to marshal update: %w", err)
	}
	topic := p.Topic(update.Device)
	if err := wait(ctx, p.client.Publish(topic, 0, true, payload), p.config.PublishTimeout); err != nil {
		return fmt.Errorf("mqtt publish error, topic: %v, err: %w", topic, err)
	}
	return nil
}

// Topic returns topic where updates of given device are published
func (p *Publisher) Topic(device imucan.Device) string {
	if !p.config.PerDeviceTopic {
		return p.config.Topic
	}
	return fmt.Sprintf("%v/%d/%d", p.config.Topic, device.Model, device.Number)
}

// Close disconnects from broker
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMs)
	return nil
}

func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errPublishTimeout
	}
}
