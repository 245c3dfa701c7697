// Package publish implements the HTTP client that moves data between
// the registry and a remote Atlas-style aggregator (§4.9a): POSTing
// consolidated measurements to the publish endpoint, POSTing streaming
// evaluation payloads to the eval endpoint, and GETting the current
// subscription list from the config endpoint.
//
// Grounded on pkg/nats/client.go's shape: an unexported connection
// handle wrapped by a small struct, a NewClient constructor, a handful
// of exported methods, and every error wrapped with enough context to
// tell which server and which phase failed.
//
// # Configuration
//
// A Client is built from a *spectatorconfig.Config; uri, evalUri, and
// configUri may each be a comma-separated list of servers, which the
// client round-robins across, moving to the next server on every
// attempt.
//
// # Thread Safety
//
// All Client methods are safe for concurrent use.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/atlasmetrics/spectator-go/internal/spectatorconfig"
	"github.com/atlasmetrics/spectator-go/pkg/spectatorlog"
)

const (
	maxAttempts = 5
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// HTTPError is returned when a server responds with a non-2xx status
// that is not retried (a 4xx other than 429). When retries on
// 429/503/5xx are exhausted, the error returned is a wrapped error
// rather than an HTTPError. It carries the status code and response
// body so a caller can tell a validation rejection (§6's
// "{type:error,errorCount,message}" body) from a generic server
// failure, rather than just seeing an opaque error string.
type HTTPError struct {
	Server     string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("publish: %s returned %d: %s", e.Server, e.StatusCode, string(e.Body))
}

// Client is the publish/subscribe/eval transport. Construct one per
// process via NewClient; it owns a rate-limited, retrying http.Client.
type Client struct {
	httpClient *http.Client
	instanceID string

	publishServers []string
	evalServers    []string
	configServers  []string

	publishIdx atomic.Uint64
	evalIdx    atomic.Uint64
	configIdx  atomic.Uint64

	limiter *rate.Limiter
}

// NewClient builds a Client from cfg. instanceID is stamped on every
// request as X-Spectator-Instance-Id (see Registry.InstanceID).
func NewClient(cfg *spectatorconfig.Config, instanceID string) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		instanceID:     instanceID,
		publishServers: splitServers(cfg.URI),
		evalServers:    splitServers(cfg.EvalURI),
		configServers:  splitServers(cfg.ConfigURI),
		limiter:        rate.NewLimiter(rate.Every(50*time.Millisecond), 5),
	}
}

func splitServers(uri string) []string {
	if uri == "" {
		return nil
	}
	parts := strings.Split(uri, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Publish POSTs payload (built by wire.BuildPublishPayload) to the
// publish endpoint, returning the response body so the caller can
// inspect it for a partial-validation-error report (see
// wire.ParseValidationResponse).
func (c *Client) Publish(ctx context.Context, payload []byte) ([]byte, error) {
	if len(c.publishServers) == 0 {
		return nil, fmt.Errorf("publish: no uri configured")
	}
	return c.doWithRetry(ctx, c.publishServers, &c.publishIdx, http.MethodPost, payload)
}

// PublishEval POSTs each of payloads (built by wire.BuildEvalPayloads)
// to the eval endpoint, in order, stopping at the first failure.
func (c *Client) PublishEval(ctx context.Context, payloads [][]byte) error {
	if len(c.evalServers) == 0 {
		return fmt.Errorf("publish: no evalUri configured")
	}
	for _, p := range payloads {
		if _, err := c.doWithRetry(ctx, c.evalServers, &c.evalIdx, http.MethodPost, p); err != nil {
			return err
		}
	}
	return nil
}

// FetchSubscriptions GETs the current subscription list document from
// the config endpoint (parse with wire.ParseSubscriptionPayload).
func (c *Client) FetchSubscriptions(ctx context.Context) ([]byte, error) {
	if len(c.configServers) == 0 {
		return nil, fmt.Errorf("publish: no configUri configured")
	}
	return c.doWithRetry(ctx, c.configServers, &c.configIdx, http.MethodGet, nil)
}

func (c *Client) doWithRetry(ctx context.Context, servers []string, idx *atomic.Uint64, method string, body []byte) ([]byte, error) {
	var lastErr error
	backoff := baseBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		server := servers[int(idx.Add(1)-1)%len(servers)]
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, server, reqBody)
		if err != nil {
			return nil, fmt.Errorf("publish: building request to %s: %w", server, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Spectator-Instance-Id", c.instanceID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("publish: request to %s: %w", server, err)
			spectatorlog.ComponentWarn("publish", lastErr.Error())
			if !sleep(ctx, jitter(backoff)) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			lastErr = fmt.Errorf("publish: %s returned %d", server, resp.StatusCode)
			spectatorlog.ComponentWarn("publish", server, "returned", resp.StatusCode, "retrying after", wait)
			if !sleep(ctx, wait) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("publish: %s returned %d: %s", server, resp.StatusCode, string(data))
			spectatorlog.ComponentWarn("publish", lastErr.Error())
			if !sleep(ctx, jitter(backoff)) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		return nil, &HTTPError{Server: server, StatusCode: resp.StatusCode, Body: data}
	}
	return nil, fmt.Errorf("publish: exhausted %d attempts: %w", maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(b time.Duration) time.Duration {
	b *= 2
	if b > maxBackoff {
		return maxBackoff
	}
	return b
}

func jitter(b time.Duration) time.Duration {
	half := b / 2
	if half <= 0 {
		return b
	}
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// retryAfter interprets a Retry-After header per RFC 9110 (either a
// number of seconds or an HTTP-date); falls back to a jittered backoff
// when the header is absent or unparsable.
func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return jitter(fallback)
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return jitter(fallback)
}
