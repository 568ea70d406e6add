package dukeenergy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	opBillingInfo = "billing_info"
	opUsageChart  = "usage_chart"

	usageAnalysisAccept = "application/json, text/plain, */*"
	chartDateLayout     = "01 / 02 / 2006"
)

// GetBillingInfo fetches the billing information of m and records the most
// recent billing period on it. Any failure logs the session out and is
// returned as a *FetchError.
func (c *Client) GetBillingInfo(ctx context.Context, m *Meter) error {
	body, err := c.usageAnalysis(ctx, opBillingInfo, billingInformationPath, map[string]any{
		"MeterNumber": m.Number(),
	})
	if err != nil {
		return err
	}

	data, _ := body["Data"].([]any)
	if len(data) == 0 {
		return c.fail(&FetchError{Op: opBillingInfo, Reason: ReasonDecode, Status: "OK", Err: errors.New("response has no Data")})
	}
	last, ok := data[len(data)-1].(map[string]any)
	if !ok {
		return c.fail(&FetchError{Op: opBillingInfo, Reason: ReasonDecode, Status: "OK", Err: errors.New("last Data entry is not an object")})
	}

	m.SetBillingUsage(last)
	c.succeed(opBillingInfo)
	return nil
}

// GetUsageChartData fetches the weekly daily-energy chart of m and records
// it on the meter. Any failure logs the session out and is returned as a
// *FetchError.
func (c *Client) GetUsageChartData(ctx context.Context, m *Meter) error {
	body, err := c.usageAnalysis(ctx, opUsageChart, usageChartPath, map[string]any{
		"Graph":            "DailyEnergy",
		"BillingFrequency": "Week",
		"GraphText":        "Daily Energy and Avg. ",
		"Date":             c.chartDate(m.Date),
		"MeterNumber":      m.Number(),
		"ActiveDate":       m.StartDate,
	})
	if err != nil {
		return err
	}

	if err := m.SetChartUsage(body); err != nil {
		// the raw payload is still recorded, only the summary is missing
		c.logger.Warn().Err(err).Str("meter", m.Number()).Msg("failed to decode usage chart")
	}
	c.succeed(opUsageChart)
	return nil
}

// chartDate formats the reference date of a usage chart request. The portal
// treats Sunday as the start of a new week with no data yet, so on Sundays the
// previous day is requested instead.
func (c *Client) chartDate(date time.Time) string {
	if c.now().Weekday() == time.Sunday {
		date = date.AddDate(0, 0, -1)
	}
	return date.Format(chartDateLayout)
}

// usageAnalysis posts payload to one of the usage analysis endpoints and
// returns the decoded body when its Status is "OK".
func (c *Client) usageAnalysis(ctx context.Context, op, path string, payload map[string]any) (map[string]any, error) {
	if !c.LoggedIn() {
		if err := c.login(ctx); err != nil {
			return nil, c.fail(&FetchError{Op: op, Reason: ReasonLogin, Err: err})
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonTransport, Err: err})
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonTransport, Err: err})
	}
	req.Header.Set("Accept", usageAnalysisAccept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonTransport, Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonTransport, StatusCode: resp.StatusCode, Err: err})
	}
	c.traceBody(url, resp.StatusCode, data)

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode})
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonDecode, StatusCode: resp.StatusCode, Err: err})
	}

	status, _ := body["Status"].(string)
	switch status {
	case "OK":
		return body, nil
	case "ERROR":
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonStatusError, Status: status})
	default:
		return nil, c.fail(&FetchError{Op: op, Reason: ReasonUnknownStatus, Status: status})
	}
}

// fail logs the session out so the next call re-authenticates and returns err.
func (c *Client) fail(err *FetchError) error {
	c.logger.Error().
		Str("op", err.Op).
		Str("reason", err.Reason.String()).
		Int("statusCode", err.StatusCode).
		Str("status", err.Status).
		AnErr("cause", err.Err).
		Msg("request failed, logging out")
	c.metrics.requests.WithLabelValues(err.Op, err.Reason.String()).Inc()
	c.Logout()
	return err
}

func (c *Client) succeed(op string) {
	c.metrics.requests.WithLabelValues(op, "ok").Inc()
	c.metrics.lastSuccess.WithLabelValues(op).Set(float64(c.now().Unix()))
}
