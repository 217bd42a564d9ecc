package scraper

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"kzz_crawler/models"
)

// ResponseFunc receives every network response a page sees. body is lazy
// because most responses are never read.
type ResponseFunc func(url string, status int, body func() ([]byte, error))

// Page is the slice of a browser tab the crawler drives.
type Page interface {
	Goto(url string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	Text(selector string) (string, error)
	Click(selector string) error
	Fill(selector, value string) error
	Content() (string, error)
	Cookies() ([]models.Cookie, error)
	LocalStorage() (map[string]string, error)
	OnResponse(fn ResponseFunc)
	Close() error
}

// pwPage is a page in its own browser context; closing it closes both.
type pwPage struct {
	bctx playwright.BrowserContext
	page playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *pwPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   millis(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *pwPage) WaitVisible(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
}

func (p *pwPage) Text(selector string) (string, error) {
	text, err := p.page.Locator(selector).First().TextContent()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *pwPage) Click(selector string) error {
	return p.page.Locator(selector).First().Click()
}

func (p *pwPage) Fill(selector, value string) error {
	return p.page.Locator(selector).First().Fill(value)
}

func (p *pwPage) Content() (string, error) {
	return p.page.Content()
}

func (p *pwPage) Cookies() ([]models.Cookie, error) {
	cookies, err := p.bctx.Cookies()
	if err != nil {
		return nil, err
	}
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}
	return out, nil
}

func (p *pwPage) LocalStorage() (map[string]string, error) {
	raw, err := p.page.Evaluate(`() => JSON.stringify(Object.assign({}, window.localStorage))`)
	if err != nil {
		return nil, err
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("localStorage snapshot: unexpected %T", raw)
	}
	storage := map[string]string{}
	if err := json.Unmarshal([]byte(s), &storage); err != nil {
		return nil, fmt.Errorf("localStorage snapshot: %w", err)
	}
	return storage, nil
}

func (p *pwPage) OnResponse(fn ResponseFunc) {
	p.page.OnResponse(func(r playwright.Response) {
		fn(r.URL(), r.Status(), r.Body)
	})
}

// Close tears down the page's context. It is safe to call more than once
// and from another goroutine; pending calls on the page then fail.
func (p *pwPage) Close() error {
	p.closeOnce.Do(func() {
		p.page.Close()
		p.closeErr = p.bctx.Close()
	})
	return p.closeErr
}
