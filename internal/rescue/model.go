package rescue

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusExecuting Status = "executing"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusExecuting, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step actions understood by the executor.
const (
	ActionSellETH         = "sell_eth"
	ActionTransferUSDC    = "transfer_usdc"
	ActionDepositToStripe = "deposit_to_stripe"
	ActionCheckout        = "create_checkout_session"
	ActionTransferAll     = "transfer_all"
)

type Step struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
	Status    StepStatus             `json:"status"`
	Result    interface{}            `json:"result"`
	StartedAt *time.Time             `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at"`
}

type Plan struct {
	ID               string     `json:"id"`
	Event            string     `json:"event"`
	Description      string     `json:"description"`
	Steps            []Step     `json:"steps"`
	RequiresApproval bool       `json:"requires_approval"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	User             string     `json:"user"`
}

// Clone deep-copies the plan so callers never share step slices.
func (p Plan) Clone() Plan {
	out := p
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		params := make(map[string]interface{}, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		s.Params = params
		out.Steps[i] = s
	}
	return out
}

// Blueprint is the description and step list a triggering event maps to.
type Blueprint struct {
	Description string
	Steps       []Step
}

func step(action string, params map[string]interface{}) Step {
	return Step{Action: action, Params: params, Status: StepPending}
}

// Match picks the blueprint for a free-text event. ok is false when no plan applies.
func Match(event, user string) (Blueprint, bool) {
	ev := strings.ToLower(event)
	switch {
	case strings.Contains(ev, "eth drop"):
		return Blueprint{
			Description: "Sell 30% ETH→USDC→Transfer to Judge",
			Steps: []Step{
				step(ActionSellETH, map[string]interface{}{"percent": 30, "to": "USDC"}),
				step(ActionTransferUSDC, map[string]interface{}{"amount": "auto", "to": "JUDGE_WALLET"}),
			},
		}, true
	case strings.Contains(ev, "low usdc"):
		return Blueprint{
			Description: "Top up Demo with simulated USDC",
			Steps:       []Step{step(ActionTransferUSDC, map[string]interface{}{"amount": 10, "to": "DEMO_WALLET"})},
		}, true
	case strings.Contains(ev, "subscription expiring"):
		return Blueprint{
			Description: "Renew Pro subscription for " + user,
			Steps:       []Step{step(ActionCheckout, map[string]interface{}{"plan": "Pro", "amount": "20.00", "user": user})},
		}, true
	case strings.Contains(ev, "off-ramp"), strings.Contains(ev, "crypto to fiat"):
		return Blueprint{
			Description: "Off-ramp USDC to the card account",
			Steps:       []Step{step(ActionDepositToStripe, map[string]interface{}{"amount": 20})},
		}, true
	case strings.Contains(ev, "wallet compromised"):
		return Blueprint{
			Description: "Transfer all funds to backup wallet",
			Steps:       []Step{step(ActionTransferAll, map[string]interface{}{"to": "BACKUP_WALLET"})},
		}, true
	}
	return Blueprint{}, false
}
