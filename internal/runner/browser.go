package runner

import (
	"math/rand"

	"github.com/maltedev/life-quote-scraper/internal/browser"
	"github.com/maltedev/life-quote-scraper/internal/config"
)

// BrowserOptions maps the browser and scraper settings onto launch options.
// One of the configured user agents is picked per launch.
func BrowserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.ReadyTimeout = cfg.Browser.ReadyTimeout
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.Proxy
	opts.NavigationRetries = cfg.Scraper.NavigationRetries
	if n := len(cfg.Browser.UserAgents); n > 0 {
		opts.UserAgent = cfg.Browser.UserAgents[rand.Intn(n)]
	}
	return opts
}
