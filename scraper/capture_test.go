package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRoutesMatchingResponses(t *testing.T) {
	var mu sync.Mutex
	var got []string

	c := NewCapture(context.Background(),
		Route{Name: "list", Match: "/webapi/cb/list/", Handle: func(_ context.Context, _ string, body []byte) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(body))
			return nil
		}},
		Route{Name: "history", Match: "/data/cbnew/dish/", Handle: func(context.Context, string, []byte) error {
			return errors.New("bad payload")
		}},
	)

	body := func(s string) func() ([]byte, error) {
		return func() ([]byte, error) { return []byte(s), nil }
	}
	c.Observe("https://www.jisilu.cn/webapi/cb/list/?x=1", 200, body("rows"))
	c.Observe("https://www.jisilu.cn/webapi/cb/list/", 302, body("redirect"))
	c.Observe("https://www.jisilu.cn/static/app.js", 200, body("js"))
	c.Observe("https://www.jisilu.cn/data/cbnew/dish/?bond_id=110043", 200, body("{}"))
	c.Observe("https://www.jisilu.cn/webapi/cb/list/", 200, func() ([]byte, error) {
		return nil, errors.New("target closed")
	})
	c.Wait()

	assert.Equal(t, []string{"rows"}, got)
	assert.Equal(t, 1, c.Hits("list"))
	assert.Zero(t, c.Hits("history"))
	assert.Equal(t, 2, c.Errors())
}

func TestCaptureRecoversHandlerPanic(t *testing.T) {
	c := NewCapture(context.Background(),
		Route{Name: "list", Match: "/list", Handle: func(context.Context, string, []byte) error {
			var m map[string]int
			m["boom"]++
			return nil
		}},
	)
	c.Observe("https://example.test/list", 200, func() ([]byte, error) { return nil, nil })
	c.Wait()
	require.Equal(t, 1, c.Errors())
}
