package dukeenergy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const meterNumberSeparator = " - "

// ParseMeterNumber splits a meter's display text such as "ELECTRIC - 123456"
// into its type and id.
func ParseMeterNumber(s string) (meterType, id string, err error) {
	parts := strings.Split(s, meterNumberSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed meter number %q", s)
	}
	return parts[0], parts[1], nil
}

// Meter is one electric meter on the account. Billing and usage data are
// recorded on it by the owning Client.
type Meter struct {
	Type           string
	ID             string
	StartDate      string
	UpdateInterval time.Duration
	// Date is the reference date of usage chart requests.
	Date time.Time

	client     *Client
	billing    map[string]any
	chart      map[string]any
	usage      UsageChart
	lastUpdate time.Time
}

// NewMeter returns a meter owned by c.
func (c *Client) NewMeter(meterType, id, startDate string) *Meter {
	return &Meter{
		Type:           meterType,
		ID:             id,
		StartDate:      startDate,
		UpdateInterval: c.updateInterval,
		Date:           c.now(),
		client:         c,
	}
}

// Number returns the identifier the portal expects, "{type} - {id}".
func (m *Meter) Number() string {
	return m.Type + meterNumberSeparator + m.ID
}

// SetBillingUsage records the latest billing period.
func (m *Meter) SetBillingUsage(period map[string]any) {
	m.billing = period
}

// Billing returns the latest billing period, nil until one was fetched.
func (m *Meter) Billing() map[string]any {
	return m.billing
}

// SetChartUsage records a usage chart response and decodes its summary.
func (m *Meter) SetChartUsage(chart map[string]any) error {
	m.chart = chart
	var u UsageChart
	if err := decode(chart, &u); err != nil {
		return fmt.Errorf("decoding usage chart: %w", err)
	}
	m.usage = u
	return nil
}

// ChartData returns the raw usage chart response.
func (m *Meter) ChartData() map[string]any {
	return m.chart
}

// Usage returns the decoded usage chart.
func (m *Meter) Usage() UsageChart {
	return m.usage
}

// LastUpdate returns when Update last completed successfully.
func (m *Meter) LastUpdate() time.Time {
	return m.lastUpdate
}

// Update refreshes billing and usage data when UpdateInterval has passed since
// the last successful update. Date is moved to the current day first.
func (m *Meter) Update(ctx context.Context) error {
	if m.client == nil {
		return errors.New("meter has no client")
	}
	now := m.client.now()
	if !m.lastUpdate.IsZero() && now.Sub(m.lastUpdate) < m.UpdateInterval {
		return nil
	}
	m.Date = now

	err := errors.Join(
		m.client.GetBillingInfo(ctx, m),
		m.client.GetUsageChartData(ctx, m),
	)
	if err != nil {
		return err
	}
	m.lastUpdate = now
	return nil
}

// UsageChart is the summary of a DailyEnergy usage chart response.
type UsageChart struct {
	Status    string         `mapstructure:"Status"`
	MeterData ChartMeterData `mapstructure:"meterData"`
}

// ChartMeterData holds the chart series and totals.
type ChartMeterData struct {
	Unit    string       `mapstructure:"unitOfMeasure"`
	Total   float64      `mapstructure:"totalUsage"`
	Average float64      `mapstructure:"averageUsage"`
	Series  []ChartPoint `mapstructure:"Series1"`
}

// ChartPoint is one day of the chart.
type ChartPoint struct {
	Date  string  `mapstructure:"date"`
	Usage float64 `mapstructure:"usage"`
}

var chartPointLayouts = []string{
	"01/02/2006",
	chartDateLayout,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
}

// Daily returns the series as dated values. Points whose date cannot be
// parsed are skipped.
func (u UsageChart) Daily() []DailyUsage {
	var out []DailyUsage
	for _, p := range u.MeterData.Series {
		d, ok := parseChartDate(p.Date)
		if !ok {
			continue
		}
		out = append(out, DailyUsage{Date: d, Usage: p.Usage, Unit: u.MeterData.Unit})
	}
	return out
}

// DailyUsage is the usage of a single day.
type DailyUsage struct {
	Date  time.Time
	Usage float64
	Unit  string
}

func parseChartDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range chartPointLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
