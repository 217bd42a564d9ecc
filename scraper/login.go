package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kzz_crawler/config"
	"kzz_crawler/models"
	"kzz_crawler/parser"
)

var ErrLoginFailed = errors.New("login failed")

type LoginState int

const (
	StateCheckPrompt LoginState = iota
	StateLoggedIn
	StateNotLoggedIn
	StateClickLogin
	StateFillCredentials
	StateToggleRemember
	StateAcceptTerms
	StateSubmit
	StateAwaitUserBadge
	StateCaptureIndexMetrics
	StatePersistSession
	StateDone
)

var stateNames = [...]string{
	"CheckPrompt", "LoggedIn", "NotLoggedIn", "ClickLogin", "FillCredentials",
	"ToggleRemember", "AcceptTerms", "Submit", "AwaitUserBadge",
	"CaptureIndexMetrics", "PersistSession", "Done",
}

func (s LoginState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("LoginState(%d)", int(s))
}

// readiness states wait on the page and may be retried
var retryable = map[LoginState]bool{
	StateCheckPrompt:         true,
	StateAwaitUserBadge:      true,
	StateCaptureIndexMetrics: true,
}

const maxStateRetries = 2

type stepKind int

const (
	stepAdvance stepKind = iota
	stepRetry
	stepFatal
)

type stepResult struct {
	kind stepKind
	next LoginState
	err  error
}

func advance(next LoginState) stepResult { return stepResult{kind: stepAdvance, next: next} }
func retry(err error) stepResult          { return stepResult{kind: stepRetry, err: err} }
func fatal(err error) stepResult          { return stepResult{kind: stepFatal, err: err} }

// SessionSaver persists the cookies and localStorage of a fresh login.
// *session.Manager satisfies it.
type SessionSaver interface {
	IsValid(s *models.Session) bool
	Save(ctx context.Context, cookies []models.Cookie, storage map[string]string) error
}

// MetricsSink receives the index figures read off the list page.
type MetricsSink func(ctx context.Context, m *models.IndexMetrics) error

type LoginTimeouts struct {
	Prompt      time.Duration
	Wait        time.Duration
	ClickSettle time.Duration
}

// Login drives the site's login form on an already opened list page.
type Login struct {
	page     Page
	sel      config.LoginSelectors
	index    config.IndexSelectors
	account  config.AccountConfig
	sessions SessionSaver
	metrics  MetricsSink
	timeouts LoginTimeouts

	// Trace records every state entered, retries included.
	Trace   []LoginState
	Metrics *models.IndexMetrics
}

func NewLogin(page Page, site *config.SiteConfig, account config.AccountConfig, sessions SessionSaver, metrics MetricsSink, timeouts LoginTimeouts) *Login {
	return &Login{
		page:     page,
		sel:      site.Login,
		index:    site.Index,
		account:  account,
		sessions: sessions,
		metrics:  metrics,
		timeouts: timeouts,
	}
}

func (l *Login) Run(ctx context.Context) error {
	state := StateCheckPrompt
	retries := 0

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
		l.Trace = append(l.Trace, state)

		res := l.step(ctx, state)
		switch res.kind {
		case stepAdvance:
			log.Printf("[login] %s -> %s", state, res.next)
			state = res.next
			retries = 0
		case stepRetry:
			if !retryable[state] || retries >= maxStateRetries {
				return fmt.Errorf("%w: %s: %v", ErrLoginFailed, state, res.err)
			}
			retries++
			log.Printf("[login] %s retry %d/%d: %v", state, retries, maxStateRetries, res.err)
		case stepFatal:
			return fmt.Errorf("%w: %s: %v", ErrLoginFailed, state, res.err)
		}
	}
	return nil
}

func (l *Login) step(ctx context.Context, state LoginState) stepResult {
	switch state {
	case StateCheckPrompt:
		return l.checkPrompt()
	case StateLoggedIn:
		return advance(StatePersistSession)
	case StateNotLoggedIn:
		if l.account.Username == "" || l.account.Password == "" {
			return fatal(errors.New("no account credentials configured"))
		}
		return advance(StateClickLogin)
	case StateClickLogin:
		return l.clickLogin(ctx)
	case StateFillCredentials:
		if err := l.waitThen(l.sel.Username, func() error { return l.page.Fill(l.sel.Username, l.account.Username) }); err != nil {
			return fatal(fmt.Errorf("username: %w", err))
		}
		if err := l.waitThen(l.sel.Password, func() error { return l.page.Fill(l.sel.Password, l.account.Password) }); err != nil {
			return fatal(fmt.Errorf("password: %w", err))
		}
		return advance(StateToggleRemember)
	case StateToggleRemember:
		if err := l.waitThen(l.sel.Remember, func() error { return l.page.Click(l.sel.Remember) }); err != nil {
			return fatal(fmt.Errorf("remember me: %w", err))
		}
		return advance(StateAcceptTerms)
	case StateAcceptTerms:
		if err := l.waitThen(l.sel.Terms, func() error { return l.page.Click(l.sel.Terms) }); err != nil {
			return fatal(fmt.Errorf("terms: %w", err))
		}
		return advance(StateSubmit)
	case StateSubmit:
		if err := l.page.Click(l.sel.Submit); err != nil {
			return fatal(fmt.Errorf("submit: %w", err))
		}
		return advance(StateAwaitUserBadge)
	case StateAwaitUserBadge:
		if err := l.page.WaitVisible(l.sel.UserBadge, l.timeouts.Wait); err != nil {
			return retry(err)
		}
		name, _ := l.page.Text(l.sel.UserBadge)
		log.Printf("[login] logged in as %q", name)
		return advance(StateCaptureIndexMetrics)
	case StateCaptureIndexMetrics:
		return l.captureIndexMetrics(ctx)
	case StatePersistSession:
		return l.persistSession(ctx)
	}
	return fatal(fmt.Errorf("unknown state %d", int(state)))
}

func (l *Login) checkPrompt() stepResult {
	if err := l.page.WaitVisible(l.sel.Prompt, l.timeouts.Prompt); err != nil {
		// no visitor prompt: the page already shows the full list
		return advance(StateLoggedIn)
	}
	text, err := l.page.Text(l.sel.Prompt)
	if err != nil {
		return retry(err)
	}
	if text != l.sel.VisitorText {
		return advance(StateLoggedIn)
	}
	return advance(StateNotLoggedIn)
}

func (l *Login) clickLogin(ctx context.Context) stepResult {
	if err := l.page.WaitVisible(l.sel.Button, l.timeouts.Wait); err != nil {
		return fatal(fmt.Errorf("login button: %w", err))
	}
	text, err := l.page.Text(l.sel.Button)
	if err != nil {
		return fatal(fmt.Errorf("login button: %w", err))
	}
	if l.sel.ButtonText != "" && text != l.sel.ButtonText {
		return fatal(fmt.Errorf("login button reads %q, want %q", text, l.sel.ButtonText))
	}
	if err := l.page.Click(l.sel.Button); err != nil {
		return fatal(fmt.Errorf("click login: %w", err))
	}
	if err := sleepCtx(ctx, l.timeouts.ClickSettle); err != nil {
		return fatal(err)
	}
	return advance(StateFillCredentials)
}

func (l *Login) captureIndexMetrics(ctx context.Context) stepResult {
	m, err := ReadIndexMetrics(l.page, l.index)
	if err != nil {
		return retry(err)
	}
	l.Metrics = m
	if l.metrics != nil {
		if err := l.metrics(ctx, m); err != nil {
			log.Printf("[login] saving index metrics: %v", err)
		}
	}
	return advance(StatePersistSession)
}

func (l *Login) persistSession(ctx context.Context) stepResult {
	cookies, err := l.page.Cookies()
	if err != nil {
		return fatal(fmt.Errorf("read cookies: %w", err))
	}
	storage, err := l.page.LocalStorage()
	if err != nil {
		return fatal(fmt.Errorf("read localStorage: %w", err))
	}
	// a prompt that never rendered also lands here; only an authenticated
	// context may replace the stored session
	if !l.sessions.IsValid(&models.Session{Cookies: cookies, Storage: storage}) {
		return fatal(errors.New("page holds no valid login cookie"))
	}
	if err := l.sessions.Save(ctx, cookies, storage); err != nil {
		return fatal(fmt.Errorf("save session: %w", err))
	}
	return advance(StateDone)
}

func (l *Login) waitThen(selector string, action func() error) error {
	if err := l.page.WaitVisible(selector, l.timeouts.Wait); err != nil {
		return err
	}
	return action()
}

// ReadIndexMetrics reads the four rolling-index widgets. It fails only when
// none of them parse.
func ReadIndexMetrics(p Page, sel config.IndexSelectors) (*models.IndexMetrics, error) {
	read := func(selector string) *float64 {
		if selector == "" {
			return nil
		}
		text, err := p.Text(selector)
		if err != nil {
			return nil
		}
		return parser.ParseIndexFigure(text)
	}

	m := &models.IndexMetrics{
		BondIndex:         read(sel.BondIndex),
		MedianPrice:       read(sel.MedianPrice),
		MedianPremiumRate: read(sel.MedianPremiumRate),
		YieldToMaturity:   read(sel.YieldToMaturity),
		CreatedAt:         time.Now(),
	}
	if m.BondIndex == nil && m.MedianPrice == nil && m.MedianPremiumRate == nil && m.YieldToMaturity == nil {
		return nil, errors.New("index widgets not readable")
	}
	return m, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
