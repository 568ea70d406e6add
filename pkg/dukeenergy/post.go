package dukeenergy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// post sends payload to url without following redirects. A map payload is
// sent as JSON, a string payload is sent as is.
func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	var body io.Reader
	switch p := payload.(type) {
	case map[string]any:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, &PostError{URL: url, Err: fmt.Errorf("encoding payload: %w", err)}
		}
		body = bytes.NewReader(b)
	case string:
		body = strings.NewReader(p)
	default:
		c.logger.Error().Str("type", fmt.Sprintf("%T", payload)).Msg("unsupported payload type")
		return nil, &PostError{URL: url, Err: ErrUnsupportedPayload}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &PostError{URL: url, Err: err}
	}

	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return nil, &PostError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Str("url", url).Int("statusCode", resp.StatusCode).Msg("unexpected status code")
		return nil, &PostError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PostError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	c.traceBody(url, resp.StatusCode, data)
	return data, nil
}

// postAndCheckStatus posts payload and returns the decoded body only when its
// Status field is "Success". Transport failures come back as *PostError, a
// response that does not report success as *StatusError.
func (c *Client) postAndCheckStatus(ctx context.Context, url string, payload any) (map[string]any, error) {
	data, err := c.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil || len(body) == 0 {
		c.logger.Debug().Str("url", url).Str("body", preview(data, 400)).Msg("response is not JSON")
		return nil, &StatusError{URL: url, Message: "response is not JSON"}
	}

	status, ok := body["Status"].(string)
	if !ok {
		c.logger.Debug().Str("url", url).Interface("body", body).Msg("response has no Status")
		return nil, &StatusError{URL: url, Message: "response has no Status"}
	}
	if status != "Success" {
		msg, _ := body["MessageText"].(string)
		c.logger.Debug().Str("url", url).Str("status", status).Str("messageText", msg).Msg("unsuccessful status")
		return nil, &StatusError{URL: url, Status: status, Message: msg}
	}
	return body, nil
}

func (c *Client) traceBody(url string, statusCode int, body []byte) {
	c.logger.Trace().
		Str("url", url).
		Int("statusCode", statusCode).
		Func(func(e *zerolog.Event) {
			e.Str("body", preview(body, 2000))
		}).
		Msg("received portal response")
}

func preview(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
