package user

import "time"

// User is a demo guest account. Username doubles as the subscriptions owner id.
type User struct {
	ID        int64      `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	Plan      string     `json:"plan" db:"plan"`
	Active    bool       `json:"active" db:"active"`
	RenewsOn  *time.Time `json:"renews_on,omitempty" db:"renews_on"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
