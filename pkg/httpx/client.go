// Package httpx builds outbound HTTP clients guarded by a circuit breaker,
// optionally dialing through a SOCKS5 proxy.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/net/proxy"

	"findash/internal/metrics"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

type Options struct {
	Name      string
	ProxyAddr string
	Timeout   time.Duration
	Header    http.Header
	Logger    logrus.FieldLogger
}

type Client struct {
	name   string
	http   *http.Client
	cb     *gobreaker.CircuitBreaker
	header http.Header
	log    logrus.FieldLogger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	log := opts.Logger.WithField("upstream", opts.Name)

	c := &Client{
		name:   opts.Name,
		header: opts.Header,
		log:    log,
		http:   newHTTPClient(opts.ProxyAddr, opts.Timeout, log),
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// 4xx answers are the caller's problem, not an unhealthy upstream.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker %q changed from %s to %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return c
}

func newHTTPClient(proxyAddr string, timeout time.Duration, log logrus.FieldLogger) *http.Client {
	if proxyAddr == "" {
		return &http.Client{Timeout: timeout}
	}

	dialer, err := proxy.FromURL(&url.URL{Scheme: "socks5h", Host: proxyAddr}, proxy.Direct)
	if err != nil {
		log.WithError(err).Warn("failed to create SOCKS5 dialer, using direct connection")
		return &http.Client{Timeout: timeout}
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Do sends one request through the breaker and returns the raw body of a 2xx
// response. There is no retry.
func (c *Client) Do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) ([]byte, error) {
	start := time.Now()
	out, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		for k, vs := range c.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, errors.Wrap(err, "read body")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Status: resp.StatusCode, Body: truncate(string(data), 256)}
		}
		return data, nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(c.name, status).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if err != nil {
		c.log.WithError(err).WithField("url", rawURL).Debug("upstream request failed")
		return nil, err
	}
	return out.([]byte), nil
}

// JSON marshals in (when non-nil), sends it and decodes the answer into out
// (when non-nil).
func (c *Client) JSON(ctx context.Context, method, rawURL string, in, out interface{}) error {
	var body io.Reader
	header := http.Header{"Accept": []string{"application/json"}}
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
		header.Set("Content-Type", "application/json")
	}

	data, err := c.Do(ctx, method, rawURL, body, header)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode response")
}

// State reports the breaker state, mostly for health endpoints.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
