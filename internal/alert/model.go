package alert

import (
	"strconv"
	"strings"
	"time"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

type Category string

const (
	CategorySubscription Category = "subscription"
	CategoryWallet       Category = "wallet"
	CategoryMarket       Category = "market"
	CategoryCrypto       Category = "crypto"
	CategoryTreasury     Category = "treasury"
)

// Recommendation is one suggested action: a human label plus the tool that
// performs it and the tool's arguments.
type Recommendation struct {
	Label string                 `json:"label"`
	Tool  string                 `json:"tool"`
	Args  map[string]interface{} `json:"args,omitempty"`
}

type Alert struct {
	ID              int64                  `json:"id"`
	Level           Level                  `json:"level"`
	Category        Category               `json:"type"`
	Message         string                 `json:"message"`
	Summary         string                 `json:"summary,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Recommendations []Recommendation       `json:"recommendations,omitempty"`
	Resolved        bool                   `json:"resolved"`
}

func (a Alert) EntityID() string { return strconv.FormatInt(a.ID, 10) }

// Match reports whether the alert passes both predicates. An empty level or
// text matches everything; text is a case-insensitive substring of Message.
func (a Alert) Match(level Level, text string) bool {
	if level != "" && a.Level != level {
		return false
	}
	if text != "" && !strings.Contains(strings.ToLower(a.Message), strings.ToLower(text)) {
		return false
	}
	return true
}

// Filter returns, in order, exactly the alerts matching level and text.
func Filter(alerts []Alert, level Level, text string) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Match(level, text) {
			out = append(out, a)
		}
	}
	return out
}

// Summarize renders "<message> Suggested actions: a, b".
func Summarize(a Alert) string {
	if len(a.Recommendations) == 0 {
		return a.Message
	}
	labels := make([]string, len(a.Recommendations))
	for i, r := range a.Recommendations {
		labels[i] = r.Label
	}
	return a.Message + " Suggested actions: " + strings.Join(labels, ", ")
}
