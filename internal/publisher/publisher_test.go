package publisher

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dukescraper/internal/config"
	"github.com/jgoulah/dukescraper/pkg/models"
)

func TestMeterSlug(t *testing.T) {
	assert.Equal(t, "electric_123456", MeterSlug("ELECTRIC - 123456"))
	assert.Equal(t, "gas_0_1", MeterSlug(" GAS / 0.1 "))
}

func TestHomeAssistant(t *testing.T) {
	var got []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		assert.NoError(t, json.Unmarshal(body, &m))
		got = append(got, m)

		switch r.URL.Path {
		case "/api/appdaemon/backfill_state":
			w.WriteHeader(http.StatusOK)
		case "/api/appdaemon/generate_statistics":
			_, _ = io.WriteString(w, `{"inserted":3,"updated":1,"total_hours":24}`)
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := newPublisher(nil, "", config.HAConfig{Enabled: true, URL: server.URL + "/", Token: "tok", EntityPrefix: "sensor.duke"})

	err := p.Publish(t.Context(), models.UsageData{
		Meter: "ELECTRIC - 1",
		Date:  time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		KWh:   12.345,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{
		"entity_id":    "sensor.duke_electric_1",
		"state":        "12.35",
		"last_changed": "2025-06-01T00:00:00Z",
		"last_updated": "2025-06-01T00:00:00Z",
	}, got[0])

	stats, err := p.GenerateStatistics(t.Context(), "ELECTRIC - 1")
	require.NoError(t, err)
	assert.Equal(t, &StatsResult{Inserted: 3, Updated: 1, TotalHours: 24}, stats)
	assert.Equal(t, "sensor.duke_electric_1", got[1]["entity_id"])
}

func TestHomeAssistantErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newPublisher(nil, "", config.HAConfig{Enabled: true, URL: server.URL, Token: "bad"})
	err := p.Publish(t.Context(), models.UsageData{Meter: "ELECTRIC - 1"})
	assert.ErrorContains(t, err, "status 401")

	disabled := newPublisher(nil, "", config.HAConfig{})
	assert.ErrorIs(t, disabled.Publish(t.Context(), models.UsageData{}), ErrDisabled)
	_, err = disabled.GenerateStatistics(t.Context(), "ELECTRIC - 1")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, "sensor.duke_energy_electric_1", disabled.EntityID("ELECTRIC - 1"))
}

func TestNewValidation(t *testing.T) {
	_, err := New(config.MQTTConfig{}, config.HAConfig{Enabled: true})
	assert.ErrorContains(t, err, "URL is required")

	_, err = New(config.MQTTConfig{Enabled: true}, config.HAConfig{})
	assert.ErrorContains(t, err, "broker address is required")

	p, err := New(config.MQTTConfig{}, config.HAConfig{})
	require.NoError(t, err)
	assert.False(t, p.MQTTEnabled())
	assert.False(t, p.HAEnabled())
	assert.ErrorIs(t, p.PublishUsage(models.UsageData{}), ErrDisabled)
	p.Close()
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeMQTT records publishes; other mqtt.Client methods are not used.
type fakeMQTT struct {
	mqtt.Client
	messages []published
	err      error
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: f.err}
}

func (f *fakeMQTT) IsConnected() bool { return false }

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

func TestMQTT(t *testing.T) {
	fake := &fakeMQTT{}
	p := newPublisher(fake, "home/duke/", config.HAConfig{})
	require.True(t, p.MQTTEnabled())

	require.NoError(t, p.PublishUsage(models.UsageData{
		Meter: "ELECTRIC - 42",
		Date:  time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		KWh:   7.5,
	}))
	require.NoError(t, p.PublishBilling("ELECTRIC - 42", map[string]any{"amt": 20}))

	require.Len(t, fake.messages, 2)
	assert.Equal(t, "home/duke/electric_42/usage", fake.messages[0].topic)
	assert.False(t, fake.messages[0].retained)
	assert.JSONEq(t, `{"meter":"ELECTRIC - 42","date":"2025-06-02","kwh":7.5}`, string(fake.messages[0].payload))
	assert.Equal(t, "home/duke/electric_42/billing", fake.messages[1].topic)
	assert.True(t, fake.messages[1].retained)

	fake.err = errors.New("broker gone")
	assert.ErrorContains(t, p.PublishUsage(models.UsageData{Meter: "ELECTRIC - 42"}), "broker gone")
	p.Close()
}
