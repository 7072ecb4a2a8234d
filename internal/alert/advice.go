package alert

import (
	"strings"
	"time"
)

func rec(label, tool string, args map[string]interface{}) Recommendation {
	return Recommendation{Label: label, Tool: tool, Args: args}
}

// Advise attaches recommendations picked from the message text when the alert
// carries none, and fills in the summary.
func Advise(a Alert) Alert {
	if len(a.Recommendations) == 0 {
		a.Recommendations = adviceFor(strings.ToLower(a.Message))
	}
	if a.Summary == "" {
		a.Summary = Summarize(a)
	}
	return a
}

func adviceFor(msg string) []Recommendation {
	switch {
	case strings.Contains(msg, "btc crossed"), strings.Contains(msg, "price"), strings.Contains(msg, "dropped"):
		return []Recommendation{
			rec("Hold position", "noop", nil),
			rec("Sell 30% to USDC", "sellETH", map[string]interface{}{"percent": 30}),
		}
	case strings.Contains(msg, "wallet") && strings.Contains(msg, "low"):
		return []Recommendation{
			rec("Mint 50 USDC via Circle", "mintUSDC", map[string]interface{}{"amount": 50}),
			rec("Transfer from backup wallet", "transferUSDC", map[string]interface{}{"from": "BACKUP_WALLET", "amount": 50}),
		}
	case strings.Contains(msg, "subscription") && strings.Contains(msg, "paused"):
		return []Recommendation{rec("Resume subscription", "resumeSubscription", nil)}
	case strings.Contains(msg, "subscription"):
		return []Recommendation{
			rec("Resume subscription", "resumeSubscription", nil),
			rec("Cancel subscription", "cancelSubscription", nil),
		}
	case strings.Contains(msg, "failed"):
		return []Recommendation{
			rec("Retry with higher gas", "retryTx", map[string]interface{}{"gas_multiplier": 1.2}),
			rec("Use backup wallet", "transferUSDC", map[string]interface{}{"from": "BACKUP_WALLET"}),
		}
	case strings.Contains(msg, "circle") && strings.Contains(msg, "low"):
		return []Recommendation{
			rec("Top up with 100 USDC", "mintUSDC", map[string]interface{}{"amount": 100}),
			rec("Redeem USDC back", "redeemUSDC", nil),
		}
	}
	return nil
}

// DemoEvent builds one of the canned alerts used for live demos. ok is false
// for an unknown event type.
func DemoEvent(eventType, demoWallet string, now time.Time) (Alert, bool) {
	var a Alert
	switch eventType {
	case "wallet_low":
		a = Alert{
			Level: LevelWarning, Category: CategoryWallet,
			Message: "Demo wallet USDC low (balance = 8)",
			Context: map[string]interface{}{"wallet": demoWallet, "usdc": 8},
			Recommendations: []Recommendation{
				rec("Mint 50 USDC via Circle", "mintUSDC", map[string]interface{}{"amount": 50, "address": demoWallet}),
				rec("Transfer from backup wallet", "transferUSDC", map[string]interface{}{"to": demoWallet, "amount": 50}),
			},
		}
	case "market_drop":
		a = Alert{
			Level: LevelError, Category: CategoryMarket,
			Message: "Ethereum price dropped -10% in the last hour",
			Context: map[string]interface{}{"symbol": "ETH", "drop_pct": -10},
			Recommendations: []Recommendation{
				rec("Hold ETH position", "noop", nil),
				rec("Sell 30% ETH to USDC", "sellETH", map[string]interface{}{"percent": 30}),
				rec("Sell ETH to USDC and cash out", "redeemUSDC", map[string]interface{}{"destination": "PayPal"}),
			},
		}
	case "subscription_expired":
		renews := now.AddDate(0, 0, 2).Format("2006-01-02")
		a = Alert{
			Level: LevelWarning, Category: CategorySubscription,
			Message: "User1 subscription expiring soon (" + renews + ")",
			Context: map[string]interface{}{"user": "user1", "renews_on": renews},
			Recommendations: []Recommendation{
				rec("Resume subscription", "resumeSubscription", map[string]interface{}{"user": "user1"}),
				rec("Downgrade to Free", "cancelSubscription", map[string]interface{}{"user": "user1"}),
				rec("Renew subscription", "createCheckoutSession", map[string]interface{}{"user": "user1", "plan": "Pro"}),
			},
		}
	case "failed_tx":
		a = Alert{
			Level: LevelError, Category: CategoryCrypto,
			Message: "Transaction failed due to insufficient gas",
			Context: map[string]interface{}{"tx_hash": "0xFAILED123"},
			Recommendations: []Recommendation{
				rec("Retry with higher gas", "retryTx", map[string]interface{}{"gas_multiplier": 1.2}),
				rec("Retry with smaller amount", "transferUSDC", map[string]interface{}{"amount_factor": 0.5}),
				rec("Use backup wallet", "transferUSDC", map[string]interface{}{"from": "BACKUP_WALLET"}),
			},
		}
	case "crypto_to_fiat":
		a = Alert{
			Level: LevelInfo, Category: CategoryTreasury,
			Message: "Convert 100 USDC to fiat (PayPal transfer)",
			Context: map[string]interface{}{"amount": 100, "currency": "USDC", "destination": "PayPal"},
			Recommendations: []Recommendation{
				rec("Redeem 100 USDC", "redeemUSDC", map[string]interface{}{"amount": 100}),
				rec("Redeem 50 USDC, keep 50 USDC", "redeemUSDC", map[string]interface{}{"amount": 50}),
			},
		}
	case "circle_low":
		a = Alert{
			Level: LevelWarning, Category: CategoryTreasury,
			Message: "Circle USD balance low (balance = 40)",
			Context: map[string]interface{}{"balance": map[string]interface{}{"currency": "USD", "amount": 40}},
			Recommendations: []Recommendation{
				rec("Top-up with 100 USDC", "mintUSDC", map[string]interface{}{"amount": 100}),
				rec("Redeem USDC back", "redeemUSDC", map[string]interface{}{"amount": 40}),
			},
		}
	default:
		return Alert{}, false
	}
	a.Timestamp = now
	a.Summary = Summarize(a)
	return a, true
}

// DemoEvents lists the event types DemoEvent understands.
var DemoEvents = []string{"wallet_low", "market_drop", "subscription_expired", "failed_tx", "crypto_to_fiat", "circle_low"}
