package scraper

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/playwright-community/playwright-go"

	"kzz_crawler/config"
	"kzz_crawler/models"
)

// Browser hands out isolated pages. A nil session gives an anonymous page.
type Browser interface {
	NewPage(sess *models.Session) (Page, error)
	Close()
}

// LaunchFunc starts a browser; swapped out in tests.
type LaunchFunc func(cfg config.BrowserConfig) (Browser, error)

type pwBrowser struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	cfg       config.BrowserConfig
	closeOnce sync.Once
}

func LaunchBrowser(cfg config.BrowserConfig) (Browser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: cfg.ProxyURL}
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &pwBrowser{pw: pw, browser: browser, cfg: cfg}, nil
}

func (b *pwBrowser) NewPage(sess *models.Session) (Page, error) {
	opts := playwright.BrowserNewContextOptions{}
	if b.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(b.cfg.UserAgent)
	}

	bctx, err := b.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}

	if sess != nil {
		if len(sess.Cookies) > 0 {
			if err := bctx.AddCookies(playwrightCookies(sess.Cookies)); err != nil {
				bctx.Close()
				return nil, fmt.Errorf("add cookies: %w", err)
			}
		}
		if len(sess.Storage) > 0 {
			script, err := localStorageScript(sess.Storage)
			if err != nil {
				bctx.Close()
				return nil, err
			}
			if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
				bctx.Close()
				return nil, fmt.Errorf("add init script: %w", err)
			}
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &pwPage{bctx: bctx, page: page}, nil
}

// Close is safe to call more than once; the run both defers it and fires it
// on cancellation.
func (b *pwBrowser) Close() {
	b.closeOnce.Do(func() {
		if err := b.browser.Close(); err != nil {
			log.Printf("[browser] close: %v", err)
		}
		b.pw.Stop()
	})
}

func playwrightCookies(cookies []models.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		oc := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		if c.Expires > 0 {
			oc.Expires = playwright.Float(c.Expires)
		}
		out = append(out, oc)
	}
	return out
}

// localStorageScript restores a localStorage snapshot before any page script
// runs.
func localStorageScript(storage map[string]string) (string, error) {
	data, err := json.Marshal(storage)
	if err != nil {
		return "", fmt.Errorf("encode localStorage: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const data = %s;
  for (const [k, v] of Object.entries(data)) {
    try { window.localStorage.setItem(k, v); } catch (e) {}
  }
})();`, data), nil
}
