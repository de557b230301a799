// Package notify publishes driver-session notices to the ops MQTT broker.
// Only HIGH severity incidents produce notices; the session works fine with
// no notifier configured.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fleetlink/driverd/core/alert"
	"github.com/fleetlink/driverd/infra/logger"
)

// Config defines the connection parameters for the MQTT notifier.
type Config struct {
	Enabled   bool   `koanf:"enabled"`
	Broker    string `koanf:"broker"`
	ClientID  string `koanf:"client_id"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	Topic     string `koanf:"topic"`
	QoS       byte   `koanf:"qos"`
	TimeoutMS int    `koanf:"timeout_ms"`
}

// SetDefaults applies the default topic and publish timeout.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "fleet/notices"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
	if c.ClientID == "" {
		c.ClientID = "driverd"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTNotifier publishes notices as JSON messages on a single topic.
type MQTTNotifier struct {
	cli     pahoClient
	topic   string
	qos     byte
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time
}

// noticeMessage is the wire shape of a published notice.
type noticeMessage struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewMQTTNotifier connects to the broker and returns the notifier.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt-notifier")

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTNotifier{
		cli:     c,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log,
		now:     time.Now,
	}, nil
}

// PublishNotice sends the notice to the configured topic.
func (n *MQTTNotifier) PublishNotice(notice alert.Notice) error {
	payload, err := json.Marshal(noticeMessage{
		ThreadID:  notice.ThreadID,
		Title:     notice.Title,
		Content:   notice.Content,
		Timestamp: n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	token := n.cli.Publish(n.topic, n.qos, false, payload)
	if !token.WaitTimeout(n.timeout) {
		return fmt.Errorf("publish to %s timed out", n.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", n.topic, err)
	}
	n.log.Debugf("notice published to %s (thread %s)", n.topic, notice.ThreadID)
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}
