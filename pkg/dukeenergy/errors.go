package dukeenergy

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed is returned when the portal rejects the credentials.
	ErrLoginFailed = errors.New("login failed")

	// ErrNoActiveAccount is returned when none of the accounts on the login are active.
	ErrNoActiveAccount = errors.New("no active account found")

	// ErrUnsupportedPayload is returned by the post helpers for payloads that are
	// neither a map nor a string.
	ErrUnsupportedPayload = errors.New("unsupported payload type")

	// ErrWidgetNotFound is returned when the meter dropdown is missing from the
	// usage analysis page.
	ErrWidgetNotFound = errors.New("meter widget not found")

	errRedirectLoop = errors.New("redirect loop")
)

// PostError represents a transport level failure while posting to the portal.
type PostError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("post to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("post to %s failed: status %d", e.URL, e.StatusCode)
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// StatusError represents a well formed response whose Status field did not
// report success. The portal answers HTTP 200 for these.
type StatusError struct {
	URL     string
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s: %s", e.URL, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s: status %q", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: status %q: %s", e.URL, e.Status, e.Message)
}

// Reason classifies why a billing or usage request failed.
type Reason int

const (
	ReasonLogin Reason = iota + 1
	ReasonTransport
	ReasonHTTPStatus
	ReasonStatusError
	ReasonUnknownStatus
	ReasonDecode
)

func (r Reason) String() string {
	switch r {
	case ReasonLogin:
		return "login"
	case ReasonTransport:
		return "transport"
	case ReasonHTTPStatus:
		return "http_status"
	case ReasonStatusError:
		return "status_error"
	case ReasonUnknownStatus:
		return "unknown_status"
	case ReasonDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FetchError is returned by GetBillingInfo and GetUsageChartData. The session
// has always been logged out by the time a FetchError is returned, so the next
// call authenticates from scratch.
type FetchError struct {
	Op         string
	Reason     Reason
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s failed (%s)", e.Op, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" http status %d", e.StatusCode)
	}
	if e.Status != "" {
		msg += fmt.Sprintf(" status %q", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
