package scraper

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Route binds a URL substring to a handler for the response body.
type Route struct {
	Name   string
	Match  string
	Handle func(ctx context.Context, url string, body []byte) error
}

// Capture dispatches matching responses to their routes. Each body read and
// handler call runs on its own goroutine; Wait joins them and must be called
// before the page closes.
type Capture struct {
	ctx    context.Context
	routes []Route

	wg     sync.WaitGroup
	mu     sync.Mutex
	hits   map[string]int
	errors int
}

func NewCapture(ctx context.Context, routes ...Route) *Capture {
	return &Capture{ctx: ctx, routes: routes, hits: make(map[string]int)}
}

func (c *Capture) Attach(p Page) {
	p.OnResponse(c.Observe)
}

// Observe is the response hook. Handler failures are logged and counted here
// and never reach the browser driver.
func (c *Capture) Observe(url string, status int, body func() ([]byte, error)) {
	if status != 200 {
		return
	}
	for _, r := range c.routes {
		if r.Match == "" || !strings.Contains(url, r.Match) {
			continue
		}
		route := r
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Printf("[capture] %s handler panic: %v", route.Name, p)
					c.fail()
				}
			}()

			data, err := body()
			if err != nil {
				log.Printf("[capture] %s: read body: %v", route.Name, err)
				c.fail()
				return
			}
			if err := route.Handle(c.ctx, url, data); err != nil {
				log.Printf("[capture] %s: %v", route.Name, err)
				c.fail()
				return
			}
			c.mu.Lock()
			c.hits[route.Name]++
			c.mu.Unlock()
		}()
		return
	}
}

func (c *Capture) fail() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

func (c *Capture) Wait() {
	c.wg.Wait()
}

// Hits is the number of successfully handled responses for a route.
func (c *Capture) Hits(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[name]
}

func (c *Capture) Errors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}
