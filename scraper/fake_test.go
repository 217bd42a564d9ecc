package scraper

import (
	"errors"
	"strings"
	"sync"
	"time"

	"kzz_crawler/models"
)

type fakeResponse struct {
	url    string
	status int
	body   string
}

// fakePage is a scripted Page. Selectors listed in visible resolve at once;
// every other wait fails immediately.
type fakePage struct {
	mu        sync.Mutex
	visible   map[string]bool
	texts     map[string]string
	reveal    map[string]string // clicking key makes value visible
	clicks    []string
	fills     map[string]string
	cookies   []models.Cookie
	storage   map[string]string
	html      string
	responses []fakeResponse
	failURL   string // Goto fails for URLs containing it
	onResp    ResponseFunc
	closed    bool
}

func newFakePage() *fakePage {
	return &fakePage{
		visible: map[string]bool{},
		texts:   map[string]string{},
		reveal:  map[string]string{},
		fills:   map[string]string{},
	}
}

func (p *fakePage) Goto(url string, _ time.Duration) error {
	if p.failURL != "" && strings.Contains(url, p.failURL) {
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	for _, r := range p.responses {
		body := r.body
		if p.onResp != nil {
			p.onResp(r.url, r.status, func() ([]byte, error) { return []byte(body), nil })
		}
	}
	return nil
}

func (p *fakePage) WaitVisible(selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visible[selector] {
		return nil
	}
	return errors.New("timeout waiting for " + selector)
}

func (p *fakePage) Text(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.texts[selector]; ok {
		return t, nil
	}
	return "", errors.New("no element " + selector)
}

func (p *fakePage) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	if sel, ok := p.reveal[selector]; ok {
		p.visible[sel] = true
	}
	return nil
}

func (p *fakePage) Fill(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills[selector] = value
	return nil
}

func (p *fakePage) Content() (string, error) { return p.html, nil }
func (p *fakePage) Cookies() ([]models.Cookie, error) { return p.cookies, nil }
func (p *fakePage) LocalStorage() (map[string]string, error) { return p.storage, nil }
func (p *fakePage) OnResponse(fn ResponseFunc) { p.onResp = fn }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeBrowser hands out pages built by newPage, recording the session each
// page was opened with.
type fakeBrowser struct {
	mu       sync.Mutex
	newPage  func(sess *models.Session) *fakePage
	sessions []*models.Session
	closed   int
}

func (b *fakeBrowser) NewPage(sess *models.Session) (Page, error) {
	b.mu.Lock()
	b.sessions = append(b.sessions, sess)
	b.mu.Unlock()
	return b.newPage(sess), nil
}

func (b *fakeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}
