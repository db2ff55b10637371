// Package lifecycle holds the order state machine. It is pure: callers load the
// persisted state, ask the engine for the next state, and write the result only
// when the engine returns no error.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cocsc-web/api/internal/enum"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrActorNotAllowed   = errors.New("actor not allowed to perform this action")
)

type Action string

const (
	ActionAttachReceipt Action = "attach_receipt"
	ActionVerify        Action = "verify"
	ActionReject        Action = "reject"
	ActionConfirmCash   Action = "confirm_cash"
	ActionMarkReceived  Action = "mark_received"
	ActionCancel        Action = "cancel"
)

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
)

// State is the part of an order the engine reasons about.
type State struct {
	Status        string
	Fulfillment   string
	PaymentMethod string
	HasReceipt    bool
}

// Terminal reports whether no further action may be applied.
func (s State) Terminal() bool {
	return s.Status == enum.OrderStatusCancelled || s.Fulfillment == enum.FulfillmentReceived
}

// PaymentStatus projects the stored status and receipt presence onto the
// payment axis shown to admins.
func (s State) PaymentStatus() string {
	switch s.Status {
	case enum.OrderStatusPaid:
		return enum.PaymentStatusPaid
	case enum.OrderStatusCancelled:
		return enum.PaymentStatusVoid
	case enum.OrderStatusPendingPayment:
		if s.HasReceipt {
			return enum.PaymentStatusPendingVerification
		}
	}
	return enum.PaymentStatusUnpaid
}

type rule struct {
	actors []Actor
	allow  func(e *Engine, s State) bool
	apply  func(s State) State
}

var rules = map[Action]rule{
	ActionAttachReceipt: {
		actors: []Actor{ActorCustomer, ActorAdmin},
		allow: func(_ *Engine, s State) bool {
			return s.Status == enum.OrderStatusPendingPayment && s.PaymentMethod == enum.PaymentMethodGCash
		},
		apply: func(s State) State { s.HasReceipt = true; return s },
	},
	ActionVerify: {
		actors: []Actor{ActorAdmin},
		allow: func(e *Engine, s State) bool {
			return s.Status == enum.OrderStatusPendingPayment && (s.HasReceipt || !e.strictReceipt)
		},
		apply: func(s State) State { s.Status = enum.OrderStatusPaid; return s },
	},
	ActionReject: {
		actors: []Actor{ActorAdmin},
		allow: func(_ *Engine, s State) bool {
			return s.Status == enum.OrderStatusPendingPayment && s.HasReceipt
		},
		apply: func(s State) State { s.Status = enum.OrderStatusPending; return s },
	},
	ActionConfirmCash: {
		actors: []Actor{ActorAdmin},
		allow: func(_ *Engine, s State) bool {
			return s.Status == enum.OrderStatusPending
		},
		apply: func(s State) State { s.Status = enum.OrderStatusPaid; return s },
	},
	ActionMarkReceived: {
		actors: []Actor{ActorAdmin},
		allow: func(_ *Engine, s State) bool {
			return s.Status == enum.OrderStatusPaid && s.Fulfillment == enum.FulfillmentNotReceived
		},
		apply: func(s State) State { s.Fulfillment = enum.FulfillmentReceived; return s },
	},
	ActionCancel: {
		actors: []Actor{ActorAdmin},
		allow:  func(_ *Engine, s State) bool { return true },
		apply:  func(s State) State { s.Status = enum.OrderStatusCancelled; return s },
	},
}

// Engine applies lifecycle rules.
type Engine struct {
	// strictReceipt refuses to verify a GCASH order that has no receipt.
	strictReceipt bool
}

// NewEngine creates an Engine. With strictReceipt set, verify requires an attached receipt.
func NewEngine(strictReceipt bool) *Engine {
	return &Engine{strictReceipt: strictReceipt}
}

// InitialStatus is the status a new order starts in for its payment method.
func InitialStatus(paymentMethod string) (string, error) {
	switch paymentMethod {
	case enum.PaymentMethodCash:
		return enum.OrderStatusPending, nil
	case enum.PaymentMethodGCash:
		return enum.OrderStatusPendingPayment, nil
	}
	return "", fmt.Errorf("unknown payment method %q", paymentMethod)
}

// Apply returns the state after action, or an error and the unchanged state.
func (e *Engine) Apply(s State, action Action, actor Actor) (State, error) {
	r, ok := rules[action]
	if !ok {
		return s, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	if !slices.Contains(r.actors, actor) {
		return s, fmt.Errorf("%w: %s cannot %s", ErrActorNotAllowed, actor, action)
	}
	if s.Terminal() || !r.allow(e, s) {
		return s, fmt.Errorf("%w: cannot %s an order that is %s", ErrInvalidTransition, action, describe(s))
	}
	return r.apply(s), nil
}

// Change is a requested edit to an order's lifecycle fields. Empty fields are left alone.
type Change struct {
	Status        string
	Fulfillment   string
	AttachReceipt bool
}

// Plan maps a requested change onto actions, applies them in order (receipt,
// status, fulfillment) and returns the resulting state. Any failing step fails
// the whole plan.
func (e *Engine) Plan(s State, c Change, actor Actor) (State, []Action, error) {
	var actions []Action

	if c.AttachReceipt {
		actions = append(actions, ActionAttachReceipt)
	}

	if c.Status != "" && c.Status != s.Status {
		a, err := statusAction(s, c.Status)
		if err != nil {
			return s, nil, err
		}
		actions = append(actions, a)
	}

	if c.Fulfillment != "" && c.Fulfillment != s.Fulfillment {
		if c.Fulfillment != enum.FulfillmentReceived {
			return s, nil, fmt.Errorf("%w: cannot move fulfillment from %s to %s", ErrInvalidTransition, s.Fulfillment, c.Fulfillment)
		}
		actions = append(actions, ActionMarkReceived)
	}

	next := s
	for _, a := range actions {
		var err error
		next, err = e.Apply(next, a, actor)
		if err != nil {
			return s, nil, err
		}
	}
	return next, actions, nil
}

func statusAction(s State, target string) (Action, error) {
	switch {
	case target == enum.OrderStatusCancelled:
		return ActionCancel, nil
	case s.Status == enum.OrderStatusPendingPayment && target == enum.OrderStatusPaid:
		return ActionVerify, nil
	case s.Status == enum.OrderStatusPendingPayment && target == enum.OrderStatusPending:
		return ActionReject, nil
	case s.Status == enum.OrderStatusPending && target == enum.OrderStatusPaid:
		return ActionConfirmCash, nil
	}
	return "", fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, s.Status, target)
}

func describe(s State) string {
	if s.Fulfillment == enum.FulfillmentReceived {
		return "already received"
	}
	if s.Status == enum.OrderStatusPendingPayment && !s.HasReceipt {
		return "awaiting receipt upload"
	}
	return s.Status
}
