package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kzz_crawler/config"
	"kzz_crawler/models"
)

type savedSession struct {
	calls   int
	cookies []models.Cookie
	storage map[string]string
	err     error
}

func (s *savedSession) IsValid(sess *models.Session) bool {
	c, ok := sess.Cookie("kbzw__user_login")
	return ok && c.ExpiresAt().After(time.Now())
}

func (s *savedSession) Save(_ context.Context, cookies []models.Cookie, storage map[string]string) error {
	s.calls++
	s.cookies = cookies
	s.storage = storage
	return s.err
}

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		ID:            "jisilu",
		ListURL:       "https://example.test/list",
		DetailURL:     "https://example.test/detail/%s?index=%d",
		PrimaryCookie: "kbzw__user_login",
		Endpoints: map[string]string{
			config.EndpointList:         "/webapi/cb/list/",
			config.EndpointIndexHistory: "/webapi/cb/index_history/",
			config.EndpointHistory:      "/data/cbnew/dish/",
			config.EndpointAdjustLogs:   "/data/cbnew/adj_logs/",
		},
		Login: config.LoginSelectors{
			Prompt:      ".prompt",
			VisitorText: "游客仅显示前 30 条转债记录，请登录查看完整列表数据",
			Button:      ".login-button",
			ButtonText:  "登录",
			Username:    "#user",
			Password:    "#pass",
			Remember:    "#remember",
			Terms:       "#terms",
			Submit:      "#submit",
			UserBadge:   ".user_icon .name",
		},
		Index: config.IndexSelectors{
			BondIndex:         ".idx",
			MedianPrice:       ".median",
			MedianPremiumRate: ".premium",
			YieldToMaturity:   ".ytm",
		},
	}
}

// visitorPage is a list page showing the visitor prompt with a working login
// form behind it.
func visitorPage(site *config.SiteConfig) *fakePage {
	p := newFakePage()
	sel := site.Login
	for _, s := range []string{sel.Prompt, sel.Button, sel.Username, sel.Password, sel.Remember, sel.Terms} {
		p.visible[s] = true
	}
	p.texts[sel.Prompt] = sel.VisitorText
	p.texts[sel.Button] = "登录"
	p.texts[sel.UserBadge] = "leichao"
	p.reveal[sel.Submit] = sel.UserBadge
	p.texts[site.Index.BondIndex] = "1,834.21"
	p.texts[site.Index.MedianPrice] = "118.50"
	p.texts[site.Index.MedianPremiumRate] = "31.52%"
	p.texts[site.Index.YieldToMaturity] = "-2.10%"
	p.cookies = []models.Cookie{{Name: "kbzw__user_login", Value: "x", Expires: 1900000000}}
	p.storage = map[string]string{"token": "abc"}
	return p
}

// loggedInPage shows no visitor prompt and already carries the login cookie.
func loggedInPage() *fakePage {
	p := newFakePage()
	p.cookies = []models.Cookie{{Name: "kbzw__user_login", Value: "x", Expires: float64(time.Now().Add(time.Hour).Unix())}}
	return p
}

func newTestLogin(page Page, site *config.SiteConfig, saver SessionSaver, sink MetricsSink) *Login {
	return NewLogin(page, site, config.AccountConfig{Username: "u", Password: "p"}, saver, sink, LoginTimeouts{})
}

func TestLoginFullFlow(t *testing.T) {
	site := testSite()
	page := visitorPage(site)
	saver := &savedSession{}

	var sunk *models.IndexMetrics
	login := newTestLogin(page, site, saver, func(_ context.Context, m *models.IndexMetrics) error {
		sunk = m
		return nil
	})

	require.NoError(t, login.Run(context.Background()))

	assert.Equal(t, []LoginState{
		StateCheckPrompt, StateNotLoggedIn, StateClickLogin, StateFillCredentials,
		StateToggleRemember, StateAcceptTerms, StateSubmit, StateAwaitUserBadge,
		StateCaptureIndexMetrics, StatePersistSession,
	}, login.Trace)
	assert.Equal(t, []string{".login-button", "#remember", "#terms", "#submit"}, page.clicks)
	assert.Equal(t, map[string]string{"#user": "u", "#pass": "p"}, page.fills)

	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, "kbzw__user_login", saver.cookies[0].Name)
	assert.Equal(t, "abc", saver.storage["token"])

	require.NotNil(t, sunk)
	assert.Equal(t, 1834.21, *sunk.BondIndex)
	assert.Equal(t, 31.52, *sunk.MedianPremiumRate)
	assert.Same(t, sunk, login.Metrics)
}

func TestLoginAlreadyLoggedIn(t *testing.T) {
	site := testSite()
	page := loggedInPage()
	saver := &savedSession{}

	login := newTestLogin(page, site, saver, nil)
	require.NoError(t, login.Run(context.Background()))

	assert.Equal(t, []LoginState{StateCheckPrompt, StateLoggedIn, StatePersistSession}, login.Trace)
	assert.Empty(t, page.clicks)
	assert.Equal(t, 1, saver.calls)
}

func TestLoginPromptWithOtherTextCountsAsLoggedIn(t *testing.T) {
	site := testSite()
	page := loggedInPage()
	page.visible[site.Login.Prompt] = true
	page.texts[site.Login.Prompt] = "欢迎回来"

	login := newTestLogin(page, site, &savedSession{}, nil)
	require.NoError(t, login.Run(context.Background()))
	assert.Equal(t, StateLoggedIn, login.Trace[1])
}

func TestLoginBadgeRetriesAreBounded(t *testing.T) {
	site := testSite()
	page := visitorPage(site)
	delete(page.reveal, site.Login.Submit) // badge never shows up
	saver := &savedSession{}

	login := newTestLogin(page, site, saver, nil)
	err := login.Run(context.Background())

	require.ErrorIs(t, err, ErrLoginFailed)
	badge := 0
	for _, s := range login.Trace {
		if s == StateAwaitUserBadge {
			badge++
		}
	}
	assert.Equal(t, 1+maxStateRetries, badge)
	assert.Zero(t, saver.calls, "no session saved after a failed login")
}

func TestLoginWithoutCredentialsIsFatal(t *testing.T) {
	site := testSite()
	page := visitorPage(site)

	login := NewLogin(page, site, config.AccountConfig{}, &savedSession{}, nil, LoginTimeouts{})
	err := login.Run(context.Background())

	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, []LoginState{StateCheckPrompt, StateNotLoggedIn}, login.Trace)
}

func TestLoginWrongButtonIsFatal(t *testing.T) {
	site := testSite()
	page := visitorPage(site)
	page.texts[site.Login.Button] = "注册"

	login := newTestLogin(page, site, &savedSession{}, nil)
	require.ErrorIs(t, login.Run(context.Background()), ErrLoginFailed)
	assert.Empty(t, page.clicks)
}

func TestLoginSaveFailureIsFatal(t *testing.T) {
	site := testSite()
	saver := &savedSession{err: errors.New("disk full")}

	login := newTestLogin(loggedInPage(), site, saver, nil)
	err := login.Run(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLoginMissingPromptWithoutCookieSavesNothing(t *testing.T) {
	site := testSite()
	page := newFakePage() // prompt never renders, context is anonymous
	saver := &savedSession{}

	login := newTestLogin(page, site, saver, nil)
	err := login.Run(context.Background())

	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, []LoginState{StateCheckPrompt, StateLoggedIn, StatePersistSession}, login.Trace)
	assert.Zero(t, saver.calls)
}

func TestLoginExpiredCookieSavesNothing(t *testing.T) {
	site := testSite()
	page := newFakePage()
	page.cookies = []models.Cookie{{Name: site.PrimaryCookie, Value: "old", Expires: float64(time.Now().Add(-time.Minute).Unix())}}
	saver := &savedSession{}

	err := newTestLogin(page, site, saver, nil).Run(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Zero(t, saver.calls)
}
