package dukeenergy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const usageExportAttempts = 3

// UsageExport is the result of GetUsageXML. The export is best effort: Body
// holds whatever the last attempt returned and IsXML tells whether that was
// the expected XML document.
type UsageExport struct {
	Body          string
	IsXML         bool
	Attempts      int
	RedirectLoops int
}

type usageExportRequest struct {
	SrcAcctID   string `json:"SrcAcctId"`
	SrcAcctID2  string `json:"SrcAcctId2"`
	SrcSysCd    string `json:"SrcSysCd"`
	ServiceType string `json:"ServiceType"`
}

// GetUsageXML downloads the raw energy usage export of the selected account.
// Redirect loops are retried up to three attempts in total; any other
// transport error is returned.
func (c *Client) GetUsageXML(ctx context.Context) (UsageExport, error) {
	if !c.LoggedIn() {
		if err := c.login(ctx); err != nil {
			return UsageExport{}, err
		}
	}

	inner, err := json.Marshal(usageExportRequest{
		SrcAcctID:   c.account,
		SrcSysCd:    "ISU",
		ServiceType: "ELECTRIC",
	})
	if err != nil {
		return UsageExport{}, err
	}
	payload, err := json.Marshal(map[string]string{"request": string(inner)})
	if err != nil {
		return UsageExport{}, err
	}

	url := c.endpoint(usageExportPath)
	var out UsageExport
	for attempt := 1; attempt <= usageExportAttempts; attempt++ {
		out.Attempts = attempt

		body, err := c.postFollow(ctx, url, payload)
		if errors.Is(err, errRedirectLoop) {
			out.RedirectLoops++
			c.logger.Debug().Int("attempt", attempt).Msg("usage export redirect loop")
			continue
		}
		if err != nil {
			return out, fmt.Errorf("fetching usage export: %w", err)
		}

		out.Body = body
		if isXML(body) {
			out.IsXML = true
			c.logger.Debug().Int("attempt", attempt).Msg("got usage export xml")
			break
		}
		c.logger.Debug().Int("attempt", attempt).Str("body", preview([]byte(body), 400)).Msg("usage export is not xml")
	}
	return out, nil
}

// postFollow posts a JSON body following redirects and returns the response
// text regardless of status.
func (c *Client) postFollow(ctx context.Context, url string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	c.traceBody(url, resp.StatusCode, data)
	return string(data), nil
}

func isXML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<?xml")
}
