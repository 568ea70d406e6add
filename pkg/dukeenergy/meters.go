package dukeenergy

import (
	"context"
	"fmt"
	"net/http"
)

// GetMeters logs in, reads the meters listed on the usage analysis page and
// logs out again, whether or not the discovery succeeded. The returned meters
// replace the client's meter collection.
func (c *Client) GetMeters(ctx context.Context) ([]*Meter, error) {
	defer c.Logout()

	if err := c.login(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := c.endpoint(meterActivePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching usage analysis page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usage analysis page returned status %d", resp.StatusCode)
	}

	items, err := c.extractor.ExtractMeterItems(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int("count", len(items)).Msg("found meter items")

	meters := make([]*Meter, 0, len(items))
	for _, item := range items {
		meterType, id, err := ParseMeterNumber(item.Text)
		if err != nil {
			return nil, err
		}
		meters = append(meters, c.NewMeter(meterType, id, item.CalendarStartDate))
	}
	c.meters = meters
	return meters, nil
}
