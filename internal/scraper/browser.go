package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Page is a page rendered by a headless browser
type Page struct {
	HTML    string
	Cookies []*http.Cookie
}

// RenderOptions controls how a page is rendered
type RenderOptions struct {
	Visible      bool          // show the browser window
	WaitSelector string        // CSS selector to wait for, empty waits for <body>
	Timeout      time.Duration // default 2 minutes
	Hold         func()        // called before the browser closes
}

// Render opens pageURL with the given session cookies and returns the page
// after scripts have run, along with the cookies the browser ended up with.
func Render(ctx context.Context, pageURL, cookieDomain string, cookies []*http.Cookie, opts RenderOptions) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Visible),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	if err := SetCookies(browserCtx, cookieDomain, cookies); err != nil {
		return nil, err
	}

	selector := opts.WaitSelector
	if selector == "" {
		selector = "body"
	}

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	browserCookies, err := ExtractCookies(browserCtx)
	if err != nil {
		return nil, err
	}

	if opts.Hold != nil {
		opts.Hold()
	}

	return &Page{HTML: html, Cookies: browserCookies}, nil
}

// ExtractCookies extracts all cookies from the current browser context
func ExtractCookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("getting cookies: %w", err)
	}

	result := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		result = append(result, fromNetworkCookie(c))
	}

	return result, nil
}

// SetCookies sets cookies in the browser context. Cookies without a domain
// get domain.
func SetCookies(ctx context.Context, domain string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	params := toCookieParams(domain, cookies)
	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(params).Do(ctx)
		}),
	); err != nil {
		return fmt.Errorf("setting cookies: %w", err)
	}

	return nil
}

func toCookieParams(domain string, cookies []*http.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Domain == "" {
			p.Domain = domain
		}
		if p.Path == "" {
			p.Path = "/"
		}
		switch c.SameSite {
		case http.SameSiteStrictMode:
			p.SameSite = network.CookieSameSiteStrict
		case http.SameSiteLaxMode:
			p.SameSite = network.CookieSameSiteLax
		case http.SameSiteNoneMode:
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

func fromNetworkCookie(c *network.Cookie) *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	// session cookies report -1
	if c.Expires > 0 {
		sec := int64(c.Expires)
		hc.Expires = time.Unix(sec, int64((c.Expires-float64(sec))*1e9)).UTC()
	}
	switch c.SameSite {
	case network.CookieSameSiteStrict:
		hc.SameSite = http.SameSiteStrictMode
	case network.CookieSameSiteLax:
		hc.SameSite = http.SameSiteLaxMode
	case network.CookieSameSiteNone:
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}
