package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/jgoulah/dukescraper/internal/config"
	"github.com/jgoulah/dukescraper/pkg/models"
)

const defaultTopicPrefix = "duke_energy"

// ErrDisabled is returned when publishing to a target that is not enabled in config
var ErrDisabled = errors.New("publishing target is not enabled")

// Publisher publishes usage data to Home Assistant over HTTP and to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	httpClient  *http.Client
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
	}

	var client mqtt.Client
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID("dukescraper")
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
	}

	return newPublisher(client, mqttCfg.TopicPrefix, haCfg), nil
}

func newPublisher(client mqtt.Client, topicPrefix string, haCfg config.HAConfig) *Publisher {
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}
	return &Publisher{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		haConfig:    haCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// MQTTEnabled reports whether a broker connection is configured
func (p *Publisher) MQTTEnabled() bool {
	return p.client != nil
}

// HAEnabled reports whether Home Assistant publishing is configured
func (p *Publisher) HAEnabled() bool {
	return p.haConfig.Enabled
}

type usageMessage struct {
	Meter string  `json:"meter"`
	Date  string  `json:"date"`
	KWh   float64 `json:"kwh"`
}

// PublishUsage publishes one day of usage to {prefix}/{meter}/usage
func (p *Publisher) PublishUsage(reading models.UsageData) error {
	return p.publishJSON(p.Topic(reading.Meter, "usage"), false, usageMessage{
		Meter: reading.Meter,
		Date:  reading.Date.Format("2006-01-02"),
		KWh:   reading.KWh,
	})
}

// PublishBilling publishes the latest billing period of a meter as a retained
// message on {prefix}/{meter}/billing
func (p *Publisher) PublishBilling(meter string, billing map[string]any) error {
	return p.publishJSON(p.Topic(meter, "billing"), true, billing)
}

func (p *Publisher) publishJSON(topic string, retained bool, v any) error {
	if p.client == nil {
		return fmt.Errorf("MQTT: %w", ErrDisabled)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Bool("retained", retained).Msg("published mqtt message")
	return nil
}

// Topic returns the topic of a meter's data kind
func (p *Publisher) Topic(meter, kind string) string {
	return p.topicPrefix + "/" + MeterSlug(meter) + "/" + kind
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// MeterSlug turns a meter number such as "ELECTRIC - 123" into "electric_123"
func MeterSlug(meter string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(meter), "_"), "_")
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
