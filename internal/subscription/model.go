package subscription

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
	StatusTrialing Status = "trialing"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceled, StatusTrialing:
		return true
	}
	return false
}

type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
)

type Subscription struct {
	ID       string          `json:"id"`
	Plan     string          `json:"plan"`
	Status   Status          `json:"status"`
	RenewsOn *time.Time      `json:"renews_on,omitempty"`
	Logo     string          `json:"logo,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

func (s Subscription) EntityID() string { return s.ID }

// Snapshot is the full state of one user's subscriptions panel.
type Snapshot struct {
	Subs    []Subscription  `json:"subs"`
	Balance decimal.Decimal `json:"balance"`
}

// Transition reports the status an action leads to from the given status.
// ok is false when the action does not apply (e.g. resuming an active plan).
func Transition(from Status, a Action) (to Status, ok bool) {
	switch a {
	case ActionPause:
		if from == StatusActive || from == StatusTrialing {
			return StatusPaused, true
		}
	case ActionResume:
		if from == StatusPaused {
			return StatusActive, true
		}
	case ActionCancel:
		if from == StatusActive || from == StatusPaused || from == StatusTrialing {
			return StatusCanceled, true
		}
	}
	return from, false
}

// Past-tense verb used in activity log messages.
func (a Action) Past() string {
	switch a {
	case ActionPause:
		return "Paused"
	case ActionResume:
		return "Resumed"
	case ActionCancel:
		return "Canceled"
	}
	return string(a)
}

type Plan struct {
	Name  string
	Price decimal.Decimal
	Logo  string
}

// Catalogue holds the monthly price of every demo plan.
var Catalogue = []Plan{
	{Name: "Netflix", Price: decimal.RequireFromString("15.49"), Logo: "/logos/netflix.svg"},
	{Name: "Spotify", Price: decimal.RequireFromString("9.99"), Logo: "/logos/spotify.svg"},
	{Name: "Amazon Prime", Price: decimal.RequireFromString("14.99"), Logo: "/logos/amazon.svg"},
	{Name: "ChatGPT Plus", Price: decimal.RequireFromString("20.00"), Logo: "/logos/openai.svg"},
	{Name: "Apple Music", Price: decimal.RequireFromString("10.99"), Logo: "/logos/apple-music.svg"},
}

var DemoBalance = decimal.RequireFromString("76.43")

// LookupPlan matches a plan name case-insensitively.
func LookupPlan(name string) (Plan, bool) {
	for _, p := range Catalogue {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Plan{}, false
}

var seedRenewDays = []int{10, 20, 25, 15, 18}

// Seed returns the demo fixture sub1..sub5, all active.
func Seed(now time.Time) []Subscription {
	subs := make([]Subscription, len(Catalogue))
	for i, p := range Catalogue {
		renews := now.AddDate(0, 0, seedRenewDays[i])
		subs[i] = Subscription{
			ID:       "sub" + string(rune('1'+i)),
			Plan:     p.Name,
			Status:   StatusActive,
			RenewsOn: &renews,
			Logo:     p.Logo,
			Price:    p.Price,
		}
	}
	return subs
}
