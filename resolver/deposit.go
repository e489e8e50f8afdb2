package resolver

import (
	"encoding/json"
	"fmt"
)

// ActionKind selects what a DepositMessage's action does once the balance
// has been credited.
type ActionKind string

const (
	ActionNotify  ActionKind = "notify"
	ActionExecute ActionKind = "execute"
)

// Action is the deposit message's optional action, §6 "Deposit message".
type Action struct {
	Kind ActionKind

	// Notify fields.
	OnTransferMsg string

	// Execute fields.
	Intents       json.RawMessage
	RefundIfFails bool
}

// DepositMessage is the parsed form of the msg field attached to an
// inbound on_transfer call, per §4.7's Deposit side and §6's wire shape.
type DepositMessage struct {
	ReceiverID string
	Action     *Action
}

type depositMessageDoc struct {
	ReceiverID string          `json:"receiver_id"`
	Action     json.RawMessage `json:"action"`

	// Legacy V1 shape, accepted and mapped onto an Execute action.
	ExecuteIntents json.RawMessage `json:"execute_intents"`
	RefundIfFails  bool            `json:"refund_if_fails"`
}

type actionDoc struct {
	Type          ActionKind      `json:"type"`
	OnTransferMsg string          `json:"on_transfer_msg"`
	Intents       json.RawMessage `json:"intents"`
	RefundIfFails bool            `json:"refund_if_fails"`
}

// ParseDepositMessage decodes raw into a DepositMessage, accepting both the
// current {receiver_id, action} shape and the legacy V1
// {execute_intents, refund_if_fails} shape mapped onto an Execute action.
func ParseDepositMessage(raw []byte) (DepositMessage, error) {
	var doc depositMessageDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return DepositMessage{}, fmt.Errorf("resolver: malformed deposit message: %w", err)
	}

	msg := DepositMessage{ReceiverID: doc.ReceiverID}

	switch {
	case len(doc.Action) > 0:
		var a actionDoc
		if err := json.Unmarshal(doc.Action, &a); err != nil {
			return DepositMessage{}, fmt.Errorf("resolver: malformed action: %w", err)
		}
		switch a.Type {
		case ActionNotify:
			msg.Action = &Action{Kind: ActionNotify, OnTransferMsg: a.OnTransferMsg}
		case ActionExecute:
			msg.Action = &Action{Kind: ActionExecute, Intents: a.Intents, RefundIfFails: a.RefundIfFails}
		default:
			return DepositMessage{}, fmt.Errorf("resolver: unknown action type %q", a.Type)
		}

	case len(doc.ExecuteIntents) > 0:
		// Legacy V1 shape.
		msg.Action = &Action{
			Kind:          ActionExecute,
			Intents:       doc.ExecuteIntents,
			RefundIfFails: doc.RefundIfFails,
		}
	}

	return msg, nil
}
