// Package mqtt delivers push notifications to users over an MQTT broker.
// Each user owns one topic; mobile clients subscribe to their own topic
// to receive session and reservation updates.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jmercadier/chargeshare/core/notify"
	"github.com/jmercadier/chargeshare/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Broker     string      `json:"broker" yaml:"broker"`
	ClientID   string      `json:"client_id" yaml:"client_id"`
	Username   string      `json:"username" yaml:"username"`
	Password   string      `json:"password" yaml:"password"`
	UseTLS     bool        `json:"use_tls" yaml:"use_tls"`
	ClientCert string      `json:"client_cert" yaml:"client_cert"`
	ClientKey  string      `json:"client_key" yaml:"client_key"`
	CABundle   string      `json:"ca_bundle" yaml:"ca_bundle"`
	QoS        byte        `json:"qos" yaml:"qos"`
	TLSConfig  *tls.Config `json:"-" yaml:"-"`
}

// SetDefaults fills the client identifier when unset.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "chargeshare-" + uuid.NewString()[:8]
	}
}

// Validate checks the broker address when the notifier is enabled.
func (c *Config) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required when enabled")
	}
	return nil
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

// PushNotifier implements notify.Notifier by publishing one JSON message
// per notification to chargeshare/users/<id>/notifications.
type PushNotifier struct {
	cli pahoClient
	qos byte
	log logger.Logger
}

// NewPushNotifier connects to the MQTT broker.
func NewPushNotifier(cfg Config) (*PushNotifier, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_notifier")
	opts.OnConnect = func(_ paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &PushNotifier{cli: c, qos: cfg.QoS, log: log}, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// Notify publishes the notification to the user's topic. Publish failures
// are returned to the caller but delivery is not retried; the log sink in
// front of this notifier keeps the record.
func (p *PushNotifier) Notify(_ context.Context, userID string, kind notify.Kind, payload map[string]any) error {
	msg := struct {
		ID        string         `json:"id"`
		Kind      string         `json:"kind"`
		Payload   map[string]any `json:"payload,omitempty"`
		Timestamp int64          `json:"timestamp"`
	}{
		ID:        uuid.NewString(),
		Kind:      string(kind),
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("chargeshare/users/%s/notifications", userID)
	token := p.cli.Publish(topic, p.qos, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Errorf("publish to %s failed: %v", topic, err)
		return err
	}
	return nil
}

// Close disconnects from the broker.
func (p *PushNotifier) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
