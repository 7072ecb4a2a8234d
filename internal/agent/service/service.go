package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/agent"
	"findash/internal/auditlog"
	"findash/pkg/httpx"
)

var (
	ErrEmptyQuery = errors.New("Query must not be empty")
	ErrTimeout    = errors.New("Agent timed out")
)

type ActivityLog interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

// Upstream is an external assistant reached over HTTP.
type Upstream struct {
	Client  *httpx.Client
	URL     string
	Timeout time.Duration
}

type upstreamRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type upstreamResponse struct {
	Response      json.RawMessage `json:"response"`
	ExecutedTools []string        `json:"executed_tools"`
}

func (u *Upstream) ask(ctx context.Context, query, user string) (interface{}, []string, error) {
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out upstreamResponse
	err := u.Client.JSON(ctx, http.MethodPost, u.URL, upstreamRequest{Query: query, UserID: user}, &out)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, nil, ErrTimeout
		}
		return nil, nil, errors.Wrap(err, "upstream agent")
	}
	return decodeResponse(out.Response), out.ExecutedTools, nil
}

// decodeResponse keeps strings and cards typed; anything else passes through.
func decodeResponse(raw json.RawMessage) interface{} {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var card agent.Card
	if err := json.Unmarshal(raw, &card); err == nil && card.Type == "card" {
		return &card
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return v
	}
	return ""
}

type Service struct {
	mode     agent.Mode
	upstream *Upstream
	tools    Tools
	activity ActivityLog
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService picks api mode when an upstream is given, mock otherwise.
func NewService(upstream *Upstream, tools Tools, activity ActivityLog, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mode := agent.ModeMock
	if upstream != nil && upstream.URL != "" {
		mode = agent.ModeAPI
	} else {
		upstream = nil
	}
	return &Service{
		mode:     mode,
		upstream: upstream,
		tools:    tools,
		activity: activity,
		log:      log.WithField("component", "agent"),
		now:      time.Now,
	}
}

func (s *Service) Mode() agent.Mode { return s.mode }

func (s *Service) push(ctx context.Context, cat auditlog.Category, msg string, details map[string]interface{}) {
	if s.activity != nil {
		s.activity.Push(ctx, cat, msg, details)
	}
}

// Ask answers one query: showcase cards first, then the fast dispatcher,
// then the upstream assistant, then the generic demo card.
func (s *Service) Ask(ctx context.Context, query, user string) (agent.Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return agent.Reply{}, ErrEmptyQuery
	}
	if user == "" {
		user = "user1"
	}
	start := s.now()
	reply := agent.Reply{SessionID: uuid.NewString()[:8], Mode: s.mode, ExecutedTools: []string{}}
	entry := s.log.WithFields(logrus.Fields{"session": reply.SessionID, "user_id": user})

	card, showcase := demoCard(query)
	switch {
	case showcase:
		reply.Response = card
		reply.ExecutedTools = append(reply.ExecutedTools, "demo-card")
	default:
		d, hit, err := s.tools.fast(ctx, query, user)
		if hit && err == nil {
			reply.Response = d.text
			reply.Data = d.data
			reply.ExecutedTools = append(reply.ExecutedTools, "fast-dispatcher", d.tool)
			break
		}
		if err != nil {
			entry.WithError(err).Warn("fast dispatcher failed")
		}

		if s.upstream != nil {
			resp, tools, err := s.upstream.ask(ctx, query, user)
			if errors.Is(err, ErrTimeout) {
				s.push(ctx, auditlog.CategoryError, "Agent timeout", map[string]interface{}{"session": reply.SessionID})
				return agent.Reply{}, err
			}
			if err == nil {
				reply.Response = resp
				reply.ExecutedTools = append(reply.ExecutedTools, tools...)
				break
			}
			entry.WithError(err).Warn("upstream agent failed, using demo card")
			s.push(ctx, auditlog.CategoryError, "Agent error", map[string]interface{}{"session": reply.SessionID, "err": err.Error()})
		}
		reply.Response = card
	}
	reply.TookMs = s.now().Sub(start).Milliseconds()

	s.push(ctx, auditlog.CategoryAction, "Agent handled query: "+query, map[string]interface{}{
		"session":        reply.SessionID,
		"mode":           s.mode,
		"user":           user,
		"executed_tools": reply.ExecutedTools,
	})
	if c, ok := reply.Response.(*agent.Card); ok {
		s.push(ctx, auditlog.CategoryInfo, "Recommendation: "+c.Description, nil)
	}

	if s.tools.Alerts != nil {
		first := strings.Fields(query)[0]
		if n := s.tools.Alerts.ResolveMatching(ctx, first); n > 0 {
			entry.WithField("resolved", n).Info("resolved alerts matching query")
		}
	}
	return reply, nil
}
