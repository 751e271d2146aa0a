package output

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/SimplyPrint/nfc-wedge/internal/config"
	"github.com/SimplyPrint/nfc-wedge/internal/logging"
)

const publishTimeout = 5 * time.Second

// publisher is the part of paho.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTT publishes each UID as a plain text message.
type MQTT struct {
	client publisher
	topic  string
	close  func()
}

// NewMQTT connects to the broker in cfg. The connection is retried in the
// background, so a broker that is down at startup is not an error.
func NewMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	if cfg.Host == "" {
		return nil, errors.New("no MQTT host configured")
	}

	var broker string
	var tlsConfig *tls.Config

	if cfg.CACert != "" || cfg.ClientCert != "" {
		port := cfg.Port
		if port == 0 {
			port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, port)

		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		port := cfg.Port
		if port == 0 {
			port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, port)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID(cfg.ClientID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logging.Info(logging.CatOutput, "MQTT connected", map[string]any{"broker": broker})
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn(logging.CatOutput, "MQTT connection lost", map[string]any{"error": err.Error()})
		})
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	paho.ERROR = log.New(os.Stderr, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stderr, "[MQTT CRIT] ", 0)

	client := paho.NewClient(opts)
	// With ConnectRetry the token only completes once connected. Stop waiting
	// after publishTimeout and let the retries continue in the background.
	if token := client.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, token.Error())
	}

	return &MQTT{
		client: client,
		topic:  cfg.Topic,
		close:  func() { client.Disconnect(250) },
	}, nil
}

// clientID returns the configured ID, or a per-process one so that several
// wedges on one broker do not disconnect each other.
func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "nfc-wedge-" + uuid.NewString()[:8]
}

func buildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Emit publishes uid with QoS 1 and waits for the broker to acknowledge.
func (m *MQTT) Emit(uid string) error {
	token := m.client.Publish(m.topic, 1, false, uid)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}
