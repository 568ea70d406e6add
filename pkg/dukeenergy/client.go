// Package dukeenergy is a client for the Duke Energy customer portal. It logs
// in with the customer's web credentials, discovers the electric meters on the
// account and fetches billing and usage chart data for them.
package dukeenergy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the root of the customer portal.
	DefaultBaseURL = "https://www.duke-energy.com/"

	signInPath             = "facade/api/Authentication/SignIn"
	accountSelectorPath    = "facade/api/AccountSelector/GetResiAccounts"
	billingInformationPath = "api/UsageAnalysis/GetBillingInformation"
	usageChartPath         = "api/UsageAnalysis/GetUsageChartData"
	meterActivePath        = "my-account/usage-analysis"
	usageExportPath        = "form/PlanRate/GetEnergyUsage"

	requestTimeout = 10 * time.Second
	maxRedirects   = 10

	// DefaultUpdateInterval is how often a Meter refreshes itself in Update.
	DefaultUpdateInterval = 60 * time.Minute
	// MinUpdateInterval is the lower bound applied to configured intervals.
	MinUpdateInterval = 10 * time.Minute
)

// Account is one residential account returned by the account selector.
type Account struct {
	AccountNum string `mapstructure:"AccountNum"`
	Status     string `mapstructure:"Status"`
}

// Active reports whether the account is in the ACTIVE state.
func (a Account) Active() bool {
	return strings.ToUpper(a.Status) == "ACTIVE"
}

type accountsResponse struct {
	Accounts []Account `mapstructure:"Accounts"`
	CdpID    string    `mapstructure:"CdpId"`
}

// Client holds one authenticated portal session. It is meant to be used by a
// single goroutine at a time.
type Client struct {
	email    string
	password string

	baseURL        *url.URL
	transport      http.RoundTripper
	jar            *sessionJar
	httpClient     *http.Client
	noRedirect     *http.Client
	updateInterval time.Duration
	extractor      MeterExtractor
	logger         zerolog.Logger
	registerer     prometheus.Registerer
	metrics        *metrics
	now            func() time.Time

	accounts []Account
	account  string
	cdpID    string
	meters   []*Meter
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at a different portal root.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = u
		return nil
	}
}

// WithTransport sets the round tripper the session sends requests through.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) error {
		c.transport = rt
		return nil
	}
}

// WithUpdateInterval sets the interval meters use in Update. Values below
// MinUpdateInterval are raised to it.
func WithUpdateInterval(d time.Duration) Option {
	return func(c *Client) error {
		c.updateInterval = max(d, MinUpdateInterval)
		return nil
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = l.With().Str("component", "dukeenergy").Logger()
		return nil
	}
}

// WithRegisterer registers the client's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		c.registerer = reg
		return nil
	}
}

// WithClock replaces time.Now. Used for the Sunday date adjustment and meter
// update cadence.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

// WithMeterExtractor replaces the parser used to find meters on the usage
// analysis page.
func WithMeterExtractor(e MeterExtractor) Option {
	return func(c *Client) error {
		c.extractor = e
		return nil
	}
}

// New logs in with the given credentials and selects the first active
// account. No Client is returned unless both succeed.
func New(ctx context.Context, email, password string, opts ...Option) (*Client, error) {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		email:          email,
		password:       password,
		baseURL:        base,
		updateInterval: DefaultUpdateInterval,
		extractor:      WidgetExtractor{},
		logger:         log.Logger.With().Str("component", "dukeenergy").Logger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.jar = newSessionJar()
	rt := newHeaderTransport(c.transport)
	c.httpClient = &http.Client{
		Transport: rt,
		Jar:       c.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errRedirectLoop
			}
			return nil
		},
	}
	c.noRedirect = &http.Client{
		Transport: rt,
		Jar:       c.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	c.metrics = newMetrics(c.registerer)

	if err := c.login(ctx); err != nil {
		return nil, err
	}
	if err := c.selectAccount(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

// login signs in and refreshes the account list. A failing account lookup is
// only logged: the session cookie is already valid at that point and the
// previously discovered accounts stay in place.
func (c *Client) login(ctx context.Context) error {
	c.logger.Debug().Msg("logging in")

	creds := map[string]any{"loginIdentity": c.email, "password": c.password}
	if _, err := c.postAndCheckStatus(ctx, c.endpoint(signInPath), creds); err != nil {
		c.metrics.logins.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Msg("login failed")
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	c.metrics.logins.WithLabelValues("success").Inc()

	body, err := c.postAndCheckStatus(ctx, c.endpoint(accountSelectorPath), map[string]any{"email": ""})
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch accounts")
		return nil
	}

	var res accountsResponse
	if err := decode(body, &res); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode accounts")
		return nil
	}
	c.accounts = res.Accounts
	c.cdpID = res.CdpID
	if res.CdpID == "" {
		c.logger.Debug().Msg("no CdpId in accounts response")
	}
	return nil
}

func (c *Client) selectAccount() error {
	for _, a := range c.accounts {
		if a.Active() {
			c.account = a.AccountNum
			c.logger.Debug().
				Str("account", a.AccountNum).
				Int("accounts", len(c.accounts)).
				Msg("selected account")
			return nil
		}
	}
	c.logger.Error().Int("accounts", len(c.accounts)).Msg("no active account")
	return ErrNoActiveAccount
}

// Logout clears the session cookie. The next request logs in again.
func (c *Client) Logout() {
	c.logger.Debug().Msg("logging out")
	c.jar.Clear()
	c.metrics.logouts.Inc()
}

// LoggedIn reports whether the session currently holds a cookie.
func (c *Client) LoggedIn() bool {
	return len(c.jar.All()) > 0
}

// Cookies returns the cookies of the current session.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.All()
}

// Account returns the number of the selected active account.
func (c *Client) Account() string {
	return c.account
}

// Accounts returns every account from the last account lookup.
func (c *Client) Accounts() []Account {
	return append([]Account(nil), c.accounts...)
}

// CdpID returns the correlation id from the account lookup, if any.
func (c *Client) CdpID() string {
	return c.cdpID
}

// Meters returns the meters found by the last GetMeters call.
func (c *Client) Meters() []*Meter {
	return c.meters
}

// BaseURL returns the portal root the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// MeterPageURL returns the address of the page that lists the meters.
func (c *Client) MeterPageURL() string {
	return c.endpoint(meterActivePath)
}

// decode copies a loosely typed JSON object into out, converting scalar types
// where the portal is inconsistent (numbers sent as strings and so on).
func decode(in any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(in)
}
