// Package console is the chat side panel: free-text queries go to the
// assistant, replies come back as text or recommendation cards, and card
// actions run the same mutations as the panel buttons.
package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"findash/internal/agent"
	"findash/internal/auditlog"
	"findash/internal/dashboard/gateway"
)

var (
	ErrClosed          = errors.New("console is closed")
	ErrEmpty           = errors.New("empty message")
	ErrStaleReply      = errors.New("reply superseded by a newer query")
	ErrNoCard          = errors.New("no card with that sequence")
	ErrNoAction        = errors.New("card has no such action")
	ErrUnsupportedTool = errors.New("unsupported tool")
)

type State int

const (
	StateClosed State = iota
	StateIdle
	StateAwaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	}
	return "closed"
}

type Kind string

const (
	KindText Kind = "text"
	KindCard Kind = "card"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat line. Seq is the query sequence it belongs to.
type Message struct {
	Kind      Kind        `json:"kind"`
	Seq       uint64      `json:"seq"`
	Role      Role        `json:"role"`
	Text      string      `json:"text,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Card      *agent.Card `json:"card,omitempty"`
}

type Asker interface {
	Ask(ctx context.Context, query, user string) (gateway.Reply, error)
}

// Runner performs a card action. It returns ErrUnsupportedTool for tools
// it does not know.
type Runner interface {
	RunTool(ctx context.Context, tool string, args map[string]interface{}) error
}

type Notifier interface {
	Push(ctx context.Context, category auditlog.Category, message string, details map[string]interface{}) auditlog.Entry
}

type Options struct {
	User         string
	ConfirmDelay time.Duration
	Logger       logrus.FieldLogger
}

type Console struct {
	asker  Asker
	runner Runner
	notify Notifier
	opts   Options
	log    logrus.FieldLogger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	session  uint64
	latest   uint64
	messages []Message
	timers   []*time.Timer
}

func New(asker Asker, runner Runner, notify Notifier, opts Options) *Console {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.User == "" {
		opts.User = "user1"
	}
	return &Console{
		asker:  asker,
		runner: runner,
		notify: notify,
		opts:   opts,
		log:    opts.Logger.WithField("component", "console"),
		now:    time.Now,
	}
}

func (c *Console) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		c.state = StateIdle
		c.session++
	}
}

// Close discards the session's messages and pending confirmations. Replies
// still in flight are dropped when they arrive.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.messages = nil
	c.state = StateClosed
}

func (c *Console) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Typing is true while the most recent query has no reply.
func (c *Console) Typing() bool {
	return c.State() == StateAwaiting
}

func (c *Console) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		if m.Card != nil {
			card := *m.Card
			m.Card = &card
		}
		out[i] = m
	}
	return out
}

// Send asks the assistant and blocks for the reply. Several Sends may be in
// flight; only the reply to the newest one is kept.
func (c *Console) Send(ctx context.Context, text string) (Message, error) {
	if text == "" {
		return Message{}, ErrEmpty
	}
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return Message{}, ErrClosed
	}
	c.latest++
	seq, session := c.latest, c.session
	c.messages = append(c.messages, Message{Kind: KindText, Seq: seq, Role: RoleUser, Text: text, Timestamp: c.now()})
	c.state = StateAwaiting
	c.mu.Unlock()

	reply, err := c.asker.Ask(ctx, text, c.opts.User)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed || c.session != session {
		return Message{}, ErrClosed
	}
	if seq != c.latest {
		c.log.WithFields(logrus.Fields{"seq": seq, "latest": c.latest}).Debug("dropping stale reply")
		return Message{}, ErrStaleReply
	}
	c.state = StateIdle

	msg := Message{Kind: KindText, Seq: seq, Role: RoleAssistant, Timestamp: c.now()}
	switch {
	case err != nil:
		msg.Text = "Sorry, the assistant is unavailable right now."
		c.log.WithError(err).Warn("assistant query failed")
		if c.notify != nil {
			c.notify.Push(ctx, auditlog.CategoryError, "Assistant query failed: "+err.Error(), nil)
		}
	case reply.Card != nil:
		msg.Kind = KindCard
		msg.Card = reply.Card
	default:
		msg.Text = reply.Text
	}
	c.messages = append(c.messages, msg)
	return msg, err
}

// Select runs action idx of the card replying to query seq. After the
// confirmation delay an action entry is logged and the card is cleared.
func (c *Console) Select(ctx context.Context, seq uint64, idx int) error {
	c.mu.Lock()
	i := c.cardIndex(seq)
	if i < 0 {
		c.mu.Unlock()
		return ErrNoCard
	}
	card := c.messages[i].Card
	if idx < 0 || idx >= len(card.Actions) {
		c.mu.Unlock()
		return ErrNoAction
	}
	action := card.Actions[idx]
	session := c.session
	c.mu.Unlock()

	if err := c.runner.RunTool(ctx, action.Tool, action.Args); err != nil {
		if errors.Is(err, ErrUnsupportedTool) {
			c.log.WithField("tool", action.Tool).Warn("unsupported card action")
			if c.notify != nil {
				c.notify.Push(ctx, auditlog.CategoryWarning, fmt.Sprintf("Action %q is not supported here.", action.Label), map[string]interface{}{"tool": action.Tool})
			}
		}
		return err
	}

	confirm := func() {
		c.mu.Lock()
		if c.session != session || c.state == StateClosed {
			c.mu.Unlock()
			return
		}
		if j := c.cardIndex(seq); j >= 0 {
			c.messages[j].Card = nil
			c.messages[j].Kind = KindText
			c.messages[j].Text = "Done: " + action.Label
		}
		c.mu.Unlock()
		if c.notify != nil {
			c.notify.Push(context.Background(), auditlog.CategoryAction, "AI action executed: "+action.Label, map[string]interface{}{"tool": action.Tool, "args": action.Args})
		}
	}

	if c.opts.ConfirmDelay <= 0 {
		confirm()
		return nil
	}
	c.mu.Lock()
	c.timers = append(c.timers, time.AfterFunc(c.opts.ConfirmDelay, confirm))
	c.mu.Unlock()
	return nil
}

// cardIndex finds the assistant card for seq. Caller holds mu.
func (c *Console) cardIndex(seq uint64) int {
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Seq == seq && m.Role == RoleAssistant && m.Card != nil {
			return i
		}
	}
	return -1
}
