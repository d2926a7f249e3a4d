package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/rewardx/pkg/utils"
)

// StatusError is the typed failure returned for non-2xx node responses.
// Callers treat it as transient and retry at the next scheduled iteration.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient issues GETs against a rotating set of node endpoints, guarded by
// a token bucket (request pacing) and a per-endpoint circuit breaker.
type HTTPClient struct {
	endpoints []string
	client    *http.Client

	// token bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// breaker state per endpoint
	mu        sync.Mutex
	failures  map[string]int
	openUntil map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		openUntil:        map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// acquire blocks until a pacing token is available.
func (c *HTTPClient) acquire() {
	for {
		last := c.lastRefill.Load().(time.Time)
		if now := time.Now(); now.Sub(last) >= c.refillEvery {
			if atomic.LoadInt64(&c.tokens) < c.maxTokens {
				atomic.AddInt64(&c.tokens, 1)
			}
			c.lastRefill.Store(now)
		}
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

// tripped reports whether the endpoint's breaker is open. An expired breaker
// is closed again and its failure count reset.
func (c *HTTPClient) tripped(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.openUntil[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.openUntil, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure counts a failure and opens the breaker at the threshold.
func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.openUntil[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// getJSON issues a GET against a configured endpoint and decodes the JSON
// response into out. It rotates across endpoints when an attempt fails due to
// circuit-breaker state or server-side errors; non-2xx responses surface as
// *StatusError so callers can treat them as transient.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	var lastErr error
	attempted := false
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		if c.tripped(ep) {
			continue
		}
		attempted = true

		c.acquire()

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, ep+path, nil)
		if reqErr != nil {
			// Request creation failed: not an endpoint failure, just return.
			return reqErr
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		// From here on, always drain+close the body before continuing/returning.
		if resp.StatusCode >= 500 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Message: "server error"}
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = &StatusError{StatusCode: resp.StatusCode, Message: "unexpected status"}
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				_ = utils.DrainAndClose(resp.Body)
				lastErr = err
				continue
			}
		}

		if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
			return cerr
		}
		return nil
	}

	if !attempted {
		// Every breaker is open: no request was issued, so a nil return here
		// would read as a successful empty response.
		return fmt.Errorf("all endpoints unavailable")
	}
	return lastErr
}
