package scraper

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCookieParams(t *testing.T) {
	params := toCookieParams("www.duke-energy.com", []*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "pref", Value: "1", Domain: ".duke-energy.com", Path: "/my-account", Secure: true, HttpOnly: true, SameSite: http.SameSiteLaxMode},
	})
	require.Len(t, params, 2)

	assert.Equal(t, &network.CookieParam{Name: "session", Value: "abc", Domain: "www.duke-energy.com", Path: "/"}, params[0])
	assert.Equal(t, ".duke-energy.com", params[1].Domain)
	assert.Equal(t, "/my-account", params[1].Path)
	assert.True(t, params[1].Secure)
	assert.True(t, params[1].HTTPOnly)
	assert.Equal(t, network.CookieSameSiteLax, params[1].SameSite)
}

func TestFromNetworkCookie(t *testing.T) {
	session := fromNetworkCookie(&network.Cookie{Name: "s", Value: "v", Domain: "d", Path: "/", Expires: -1})
	assert.True(t, session.Expires.IsZero())

	persistent := fromNetworkCookie(&network.Cookie{
		Name:     "p",
		Expires:  1750000000,
		HTTPOnly: true,
		SameSite: network.CookieSameSiteStrict,
	})
	assert.Equal(t, time.Unix(1750000000, 0).UTC(), persistent.Expires)
	assert.True(t, persistent.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, persistent.SameSite)
}
