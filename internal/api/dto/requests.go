package dto

import "github.com/go-playground/validator/v10"

type CreateLogRequest struct {
	Type    string                 `json:"type" validate:"required,oneof=info success warning error action alert"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Details map[string]interface{} `json:"details"`
}

type TransferRequest struct {
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,numeric"`
	Token  string `json:"token" validate:"omitempty,oneof=USDC ETH usdc eth"`
}

type CheckTxRequest struct {
	TxHash string `json:"tx_hash" validate:"required,startswith=0x,len=66"`
}

type TreasuryAmountRequest struct {
	Amount  string `json:"amount" validate:"required,numeric"`
	Address string `json:"address" validate:"omitempty,eth_addr"`
}

type PlanRequest struct {
	Plan string `json:"plan" validate:"required,max=64"`
}

type RescueGenerateRequest struct {
	Event  string `json:"event" validate:"required,max=128"`
	UserID string `json:"user_id" validate:"omitempty,max=64"`
}

type AgentAskRequest struct {
	Query  string `json:"query" validate:"required,max=2000"`
	UserID string `json:"user_id" validate:"omitempty,max=64"`
}

var Validate = validator.New()
