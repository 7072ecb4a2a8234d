// Package gateway is the dashboard's single door to the backend REST API.
// Every remote operation goes through Call, which makes exactly one attempt
// and reports failure as a *Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/pkg/httpx"
)

type Operation string

const (
	OpSubscriptionsList   Operation = "subscriptions.list"
	OpSubscriptionsPause  Operation = "subscriptions.pause"
	OpSubscriptionsResume Operation = "subscriptions.resume"
	OpSubscriptionsCancel Operation = "subscriptions.cancel"
	OpAlertsList          Operation = "alerts.list"
	OpAlertsResolve       Operation = "alerts.resolve"
	OpLogsList            Operation = "logs.list"
	OpLogsAppend          Operation = "logs.append"
	OpWalletBalance       Operation = "wallet.balance"
	OpMarketPrice         Operation = "market.price"
	OpAgentAsk            Operation = "agent.ask"
)

type Kind string

const (
	KindNetwork   Kind = "network"
	KindHTTP      Kind = "http"
	KindMalformed Kind = "malformed"
	KindBusiness  Kind = "business"
)

// Error is the one failure outcome of a gateway call.
type Error struct {
	Op     Operation
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a gateway error, or "" for anything else.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Params carries path parameters, query values and an optional JSON body.
type Params struct {
	Path  map[string]string
	Query url.Values
	Body  interface{}
}

type route struct {
	method string
	path   string
}

var routes = map[Operation]route{
	OpSubscriptionsList:   {http.MethodGet, "/subscriptions/{user}"},
	OpSubscriptionsPause:  {http.MethodPost, "/subscriptions/{user}/pause/{sub}"},
	OpSubscriptionsResume: {http.MethodPost, "/subscriptions/{user}/resume/{sub}"},
	OpSubscriptionsCancel: {http.MethodPost, "/subscriptions/{user}/cancel/{sub}"},
	OpAlertsList:          {http.MethodGet, "/alerts"},
	OpAlertsResolve:       {http.MethodPost, "/alerts/{id}/resolve"},
	OpLogsList:            {http.MethodGet, "/logs"},
	OpLogsAppend:          {http.MethodPost, "/logs"},
	OpWalletBalance:       {http.MethodGet, "/crypto/wallet/balance"},
	OpMarketPrice:         {http.MethodGet, "/crypto/price"},
	OpAgentAsk:            {http.MethodPost, "/agent/ask"},
}

func (rt route) build(p Params) (string, error) {
	path := rt.path
	for {
		i := strings.IndexByte(path, '{')
		if i < 0 {
			break
		}
		j := strings.IndexByte(path[i:], '}') + i
		name := path[i+1 : j]
		v := p.Path[name]
		if v == "" {
			return "", errors.Errorf("missing %s", name)
		}
		path = path[:i] + url.PathEscape(v) + path[j+1:]
	}
	if len(p.Query) > 0 {
		path += "?" + p.Query.Encode()
	}
	return path, nil
}

type Gateway struct {
	http    *httpx.Client
	baseURL string
	log     logrus.FieldLogger
}

func New(client *httpx.Client, baseURL string, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.WithField("component", "gateway"),
	}
}

// Call performs op once and decodes a 2xx body into out (which may be nil).
// An empty or undecodable body is reported as KindMalformed; the typed
// helpers turn that into the operation's default shape.
func (g *Gateway) Call(ctx context.Context, op Operation, p Params, out interface{}) error {
	rt, ok := routes[op]
	if !ok {
		return &Error{Op: op, Kind: KindBusiness, Err: errors.New("no mapping for operation")}
	}
	path, err := rt.build(p)
	if err != nil {
		return &Error{Op: op, Kind: KindBusiness, Err: err}
	}

	var header http.Header
	var body io.Reader
	if p.Body != nil {
		raw, err := json.Marshal(p.Body)
		if err != nil {
			return &Error{Op: op, Kind: KindBusiness, Err: errors.Wrap(err, "encode body")}
		}
		body = bytes.NewReader(raw)
		header = http.Header{"Content-Type": []string{"application/json"}}
	}

	data, err := g.http.Do(ctx, rt.method, g.baseURL+path, body, header)
	if err != nil {
		return classify(op, err)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Op: op, Kind: KindMalformed, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	return nil
}

// classify maps transport errors. An open breaker counts as a network failure.
func classify(op Operation, err error) *Error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return &Error{Op: op, Kind: KindHTTP, Status: se.Status, Err: err}
	}
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

// coerced logs a malformed body and reports whether the caller should fall
// back to its default shape.
func (g *Gateway) coerced(err error) bool {
	if KindOf(err) != KindMalformed {
		return false
	}
	g.log.WithError(err).Warn("malformed response, using default")
	return true
}
