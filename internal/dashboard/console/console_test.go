package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/agent"
	"findash/internal/alert"
	"findash/internal/auditlog"
	auditsvc "findash/internal/auditlog/service"
	"findash/internal/dashboard/gateway"
)

// gatedAsker holds each query until its gate is released.
type gatedAsker struct {
	mu    sync.Mutex
	gates map[string]chan gateway.Reply
}

func newGatedAsker() *gatedAsker {
	return &gatedAsker{gates: make(map[string]chan gateway.Reply)}
}

func (a *gatedAsker) gate(q string) chan gateway.Reply {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gates[q] == nil {
		a.gates[q] = make(chan gateway.Reply, 1)
	}
	return a.gates[q]
}

func (a *gatedAsker) Ask(ctx context.Context, query, user string) (gateway.Reply, error) {
	return <-a.gate(query), nil
}

type fixedAsker struct {
	reply gateway.Reply
	err   error
}

func (a fixedAsker) Ask(context.Context, string, string) (gateway.Reply, error) { return a.reply, a.err }

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingRunner) RunTool(_ context.Context, tool string, args map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tool)
	return r.err
}

func netflixCard() *agent.Card {
	return agent.NewCard("subscription", "Netflix not used recently", "Detected inactivity.",
		alert.Recommendation{Label: "Pause Netflix", Tool: "pauseSubscription", Args: map[string]interface{}{"id": "sub1"}},
		alert.Recommendation{Label: "Book a flight", Tool: "bookFlight"},
	)
}

func TestStateMachine(t *testing.T) {
	c := New(fixedAsker{reply: gateway.Reply{Text: "hi"}}, &recordingRunner{}, nil, Options{})
	assert.Equal(t, StateClosed, c.State())

	_, err := c.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrClosed)

	c.Open()
	assert.Equal(t, StateIdle, c.State())
	msg, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, c.Messages(), 2)

	c.Close()
	assert.Equal(t, StateClosed, c.State())
	assert.Empty(t, c.Messages())
}

func TestStaleReplyIsDropped(t *testing.T) {
	asker := newGatedAsker()
	c := New(asker, &recordingRunner{}, nil, Options{})
	c.Open()

	type result struct {
		msg Message
		err error
	}
	first := make(chan result, 1)
	go func() {
		m, err := c.Send(context.Background(), "first")
		first <- result{m, err}
	}()
	require.Eventually(t, c.Typing, time.Second, 5*time.Millisecond)

	second := make(chan result, 1)
	go func() {
		m, err := c.Send(context.Background(), "second")
		second <- result{m, err}
	}()
	require.Eventually(t, func() bool { return len(c.Messages()) == 2 }, time.Second, 5*time.Millisecond)

	// Newest reply lands first; the older one arrives late and is dropped.
	asker.gate("second") <- gateway.Reply{Text: "answer two"}
	r2 := <-second
	require.NoError(t, r2.err)
	assert.Equal(t, uint64(2), r2.msg.Seq)
	assert.False(t, c.Typing())

	asker.gate("first") <- gateway.Reply{Text: "answer one"}
	r1 := <-first
	assert.ErrorIs(t, r1.err, ErrStaleReply)

	var texts []string
	for _, m := range c.Messages() {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second", "answer two"}, texts)
}

func TestTypingStaysOnWhileNewestOutstanding(t *testing.T) {
	asker := newGatedAsker()
	c := New(asker, &recordingRunner{}, nil, Options{})
	c.Open()

	done := make(chan struct{}, 2)
	go func() { c.Send(context.Background(), "a"); done <- struct{}{} }()
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	go func() { c.Send(context.Background(), "b"); done <- struct{}{} }()
	require.Eventually(t, func() bool { return len(c.Messages()) == 2 }, time.Second, 5*time.Millisecond)

	asker.gate("a") <- gateway.Reply{Text: "late"}
	<-done
	assert.True(t, c.Typing())

	asker.gate("b") <- gateway.Reply{Text: "ok"}
	<-done
	assert.False(t, c.Typing())
}

func TestAskFailureLogsError(t *testing.T) {
	relay := auditsvc.NewRelay(nil, 0, nil)
	c := New(fixedAsker{err: errors.New("gateway down")}, &recordingRunner{}, relay, Options{})
	c.Open()

	msg, err := c.Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, KindText, msg.Kind)
	assert.Equal(t, StateIdle, c.State())
	require.Equal(t, 1, relay.Len())
	assert.Equal(t, auditlog.CategoryError, relay.List(auditlog.Query{})[0].Category)
}

func TestSelectRunsActionThenConfirms(t *testing.T) {
	relay := auditsvc.NewRelay(nil, 0, nil)
	runner := &recordingRunner{}
	c := New(fixedAsker{reply: gateway.Reply{Card: netflixCard()}}, runner, relay, Options{ConfirmDelay: 30 * time.Millisecond})
	c.Open()

	msg, err := c.Send(context.Background(), "netflix?")
	require.NoError(t, err)
	require.Equal(t, KindCard, msg.Kind)

	require.NoError(t, c.Select(context.Background(), msg.Seq, 0))
	assert.Equal(t, []string{"pauseSubscription"}, runner.calls)
	assert.Zero(t, relay.Len(), "confirmation waits for the delay")

	require.Eventually(t, func() bool { return relay.Len() == 1 }, time.Second, 5*time.Millisecond)
	e := relay.List(auditlog.Query{})[0]
	assert.Equal(t, auditlog.CategoryAction, e.Category)
	assert.Equal(t, "AI action executed: Pause Netflix", e.Message)

	msgs := c.Messages()
	assert.Nil(t, msgs[len(msgs)-1].Card)
	assert.ErrorIs(t, c.Select(context.Background(), msg.Seq, 0), ErrNoCard)
}

func TestSelectErrors(t *testing.T) {
	relay := auditsvc.NewRelay(nil, 0, nil)
	runner := &recordingRunner{err: ErrUnsupportedTool}
	c := New(fixedAsker{reply: gateway.Reply{Card: netflixCard()}}, runner, relay, Options{})
	c.Open()
	msg, err := c.Send(context.Background(), "netflix?")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Select(context.Background(), msg.Seq, 5), ErrNoAction)
	assert.ErrorIs(t, c.Select(context.Background(), 99, 0), ErrNoCard)

	assert.ErrorIs(t, c.Select(context.Background(), msg.Seq, 1), ErrUnsupportedTool)
	warnings := relay.List(auditlog.Query{Categories: []auditlog.Category{auditlog.CategoryWarning}})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Book a flight")
	assert.NotNil(t, c.Messages()[1].Card, "card stays when the action fails")
}

func TestCloseCancelsPendingConfirmation(t *testing.T) {
	relay := auditsvc.NewRelay(nil, 0, nil)
	c := New(fixedAsker{reply: gateway.Reply{Card: netflixCard()}}, &recordingRunner{}, relay, Options{ConfirmDelay: 20 * time.Millisecond})
	c.Open()
	msg, err := c.Send(context.Background(), "netflix?")
	require.NoError(t, err)
	require.NoError(t, c.Select(context.Background(), msg.Seq, 0))
	c.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, relay.Len())
}
