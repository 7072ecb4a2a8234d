package auditlog

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategoryAction  Category = "action"
	CategoryAlert   Category = "alert"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryInfo, CategorySuccess, CategoryWarning, CategoryError, CategoryAction, CategoryAlert:
		return true
	}
	return false
}

// Entry is one immutable line of the activity feed.
type Entry struct {
	ID        int64                  `json:"id" db:"id"`
	Category  Category               `json:"type" db:"category"`
	Message   string                 `json:"message" db:"message"`
	Timestamp time.Time              `json:"timestamp" db:"created_at"`
	Details   map[string]interface{} `json:"details,omitempty" db:"-"`
}

// Query selects entries. Zero values mean "no constraint"; Limit 0 means all.
type Query struct {
	Limit      int
	Categories []Category
	Since      time.Time
	Search     string
}

func (q Query) Match(e Entry) bool {
	if len(q.Categories) > 0 {
		ok := false
		for _, c := range q.Categories {
			if e.Category == c {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(q.Search)) {
		return false
	}
	return true
}

// DayGroup is the entries of one local calendar day, newest first.
type DayGroup struct {
	Day     string  `json:"day"`
	Entries []Entry `json:"entries"`
}
