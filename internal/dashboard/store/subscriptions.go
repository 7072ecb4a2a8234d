package store

import (
	"context"

	"findash/internal/subscription"
)

// SubscriptionIntent builds the optimistic transition for action. call runs
// the remote side and may return the server's collection.
func SubscriptionIntent(action subscription.Action, call func(ctx context.Context) ([]subscription.Subscription, error)) Intent[subscription.Subscription] {
	return Intent[subscription.Subscription]{
		Name: string(action),
		Apply: func(s subscription.Subscription) (subscription.Subscription, bool) {
			to, ok := subscription.Transition(s.Status, action)
			if !ok {
				return s, false
			}
			s.Status = to
			return s, true
		},
		Call: call,
	}
}
