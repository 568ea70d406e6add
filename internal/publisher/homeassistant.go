package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jgoulah/dukescraper/pkg/models"
)

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// StatsResult is the AppDaemon statistics summary
type StatsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

// EntityID returns the Home Assistant entity of a meter
func (p *Publisher) EntityID(meter string) string {
	prefix := p.haConfig.EntityPrefix
	if prefix == "" {
		prefix = "sensor." + defaultTopicPrefix
	}
	return prefix + "_" + MeterSlug(meter)
}

// Publish sends a usage reading to Home Assistant via HTTP API
func (p *Publisher) Publish(ctx context.Context, reading models.UsageData) error {
	if !p.haConfig.Enabled {
		return fmt.Errorf("Home Assistant: %w", ErrDisabled)
	}

	timestamp := reading.Date.Format(time.RFC3339)
	payload := HAPayload{
		EntityID:    p.EntityID(reading.Meter),
		State:       fmt.Sprintf("%.2f", reading.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	}

	_, err := p.post(ctx, "/api/appdaemon/backfill_state", payload)
	return err
}

// GenerateStatistics asks AppDaemon to compile statistics from the backfilled
// states of a meter
func (p *Publisher) GenerateStatistics(ctx context.Context, meter string) (*StatsResult, error) {
	if !p.haConfig.Enabled {
		return nil, fmt.Errorf("Home Assistant: %w", ErrDisabled)
	}

	// Statistics generation is slow on large histories
	client := &http.Client{Transport: p.httpClient.Transport, Timeout: 60 * time.Second}
	body, err := p.postWith(ctx, client, "/api/appdaemon/generate_statistics", map[string]string{
		"entity_id": p.EntityID(meter),
	})
	if err != nil {
		return nil, err
	}

	var result StatsResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

func (p *Publisher) post(ctx context.Context, path string, payload any) ([]byte, error) {
	return p.postWith(ctx, p.httpClient, path, payload)
}

func (p *Publisher) postWith(ctx context.Context, client *http.Client, path string, payload any) ([]byte, error) {
	apiURL := strings.TrimSuffix(p.haConfig.URL, "/") + path

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
