package lifecycle

import (
	"fmt"
	"testing"

	"github.com/cocsc-web/api/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cashPending               = State{Status: enum.OrderStatusPending, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodCash}
	gcashAwaitingUpload       = State{Status: enum.OrderStatusPendingPayment, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash}
	gcashAwaitingVerification = State{Status: enum.OrderStatusPendingPayment, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true}
	paidNotReceived           = State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodCash}
	received                  = State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentReceived, PaymentMethod: enum.PaymentMethodCash}
	cancelled                 = State{Status: enum.OrderStatusCancelled, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true}
)

func TestInitialStatus(t *testing.T) {
	s, err := InitialStatus(enum.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPending, s)

	s, err = InitialStatus(enum.PaymentMethodGCash)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPendingPayment, s)

	_, err = InitialStatus("PAYPAL")
	assert.Error(t, err)
}

// legal lists every (state, action) pair the engine accepts in non-strict mode,
// with the expected result.
var legal = []struct {
	name   string
	from   State
	action Action
	actor  Actor
	want   State
}{
	{"customer uploads receipt", gcashAwaitingUpload, ActionAttachReceipt, ActorCustomer, gcashAwaitingVerification},
	{"customer replaces receipt", gcashAwaitingVerification, ActionAttachReceipt, ActorCustomer, gcashAwaitingVerification},
	{"admin verifies", gcashAwaitingVerification, ActionVerify, ActorAdmin, State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true}},
	{"admin verifies without receipt (lenient)", gcashAwaitingUpload, ActionVerify, ActorAdmin, State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash}},
	{"admin rejects", gcashAwaitingVerification, ActionReject, ActorAdmin, State{Status: enum.OrderStatusPending, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true}},
	{"admin confirms cash", cashPending, ActionConfirmCash, ActorAdmin, State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodCash}},
	{"admin marks received", paidNotReceived, ActionMarkReceived, ActorAdmin, received},
	{"admin cancels pending", cashPending, ActionCancel, ActorAdmin, State{Status: enum.OrderStatusCancelled, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodCash}},
	{"admin cancels awaiting upload", gcashAwaitingUpload, ActionCancel, ActorAdmin, State{Status: enum.OrderStatusCancelled, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash}},
	{"admin cancels awaiting verification", gcashAwaitingVerification, ActionCancel, ActorAdmin, cancelled},
	{"admin cancels paid", paidNotReceived, ActionCancel, ActorAdmin, State{Status: enum.OrderStatusCancelled, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodCash}},
}

func TestApply_LegalTransitions(t *testing.T) {
	e := NewEngine(false)
	for _, tc := range legal {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Apply(tc.from, tc.action, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApply_EveryOtherPairIsInvalid(t *testing.T) {
	e := NewEngine(false)
	states := map[string]State{
		"cash pending":                cashPending,
		"gcash awaiting upload":       gcashAwaitingUpload,
		"gcash awaiting verification": gcashAwaitingVerification,
		"paid":                        paidNotReceived,
		"received":                    received,
		"cancelled":                   cancelled,
	}
	actions := []Action{ActionAttachReceipt, ActionVerify, ActionReject, ActionConfirmCash, ActionMarkReceived, ActionCancel}

	isLegal := func(s State, a Action) bool {
		for _, l := range legal {
			if l.from == s && l.action == a {
				return true
			}
		}
		return false
	}

	for name, s := range states {
		for _, a := range actions {
			if isLegal(s, a) {
				continue
			}
			t.Run(fmt.Sprintf("%s/%s", name, a), func(t *testing.T) {
				got, err := e.Apply(s, a, ActorAdmin)
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, s, got, "state must be unchanged")
			})
		}
	}
}

func TestApply_StrictReceiptPolicy(t *testing.T) {
	e := NewEngine(true)

	_, err := e.Apply(gcashAwaitingUpload, ActionVerify, ActorAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := e.Apply(gcashAwaitingVerification, ActionVerify, ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPaid, got.Status)
}

func TestApply_CustomerCannotAdminister(t *testing.T) {
	e := NewEngine(false)
	for _, a := range []Action{ActionVerify, ActionReject, ActionConfirmCash, ActionMarkReceived, ActionCancel} {
		_, err := e.Apply(gcashAwaitingVerification, a, ActorCustomer)
		assert.ErrorIs(t, err, ErrActorNotAllowed, "action %s", a)
	}
}

func TestApply_CashOrderRejectsReceipt(t *testing.T) {
	_, err := NewEngine(false).Apply(State{
		Status:        enum.OrderStatusPendingPayment,
		Fulfillment:   enum.FulfillmentNotReceived,
		PaymentMethod: enum.PaymentMethodCash,
	}, ActionAttachReceipt, ActorCustomer)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlan(t *testing.T) {
	e := NewEngine(false)

	tests := []struct {
		name    string
		from    State
		change  Change
		want    State
		actions []Action
		wantErr error
	}{
		{
			name:    "verify",
			from:    gcashAwaitingVerification,
			change:  Change{Status: enum.OrderStatusPaid},
			want:    State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true},
			actions: []Action{ActionVerify},
		},
		{
			name:    "reject back to pending",
			from:    gcashAwaitingVerification,
			change:  Change{Status: enum.OrderStatusPending},
			want:    State{Status: enum.OrderStatusPending, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true},
			actions: []Action{ActionReject},
		},
		{
			name:    "attach receipt and verify in one request",
			from:    gcashAwaitingUpload,
			change:  Change{Status: enum.OrderStatusPaid, AttachReceipt: true},
			want:    State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentNotReceived, PaymentMethod: enum.PaymentMethodGCash, HasReceipt: true},
			actions: []Action{ActionAttachReceipt, ActionVerify},
		},
		{
			name:    "confirm cash and hand over",
			from:    cashPending,
			change:  Change{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentReceived},
			want:    State{Status: enum.OrderStatusPaid, Fulfillment: enum.FulfillmentReceived, PaymentMethod: enum.PaymentMethodCash},
			actions: []Action{ActionConfirmCash, ActionMarkReceived},
		},
		{
			name:   "same status is a no-op",
			from:   paidNotReceived,
			change: Change{Status: enum.OrderStatusPaid},
			want:   paidNotReceived,
		},
		{
			name:    "paid back to pending is invalid",
			from:    paidNotReceived,
			change:  Change{Status: enum.OrderStatusPending},
			want:    paidNotReceived,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "received before paid is invalid",
			from:    cashPending,
			change:  Change{Fulfillment: enum.FulfillmentReceived},
			want:    cashPending,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "un-receive is invalid",
			from:    received,
			change:  Change{Fulfillment: enum.FulfillmentNotReceived},
			want:    received,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "cancel after received is invalid",
			from:    received,
			change:  Change{Status: enum.OrderStatusCancelled},
			want:    received,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "second step failure rolls back first",
			from:    gcashAwaitingVerification,
			change:  Change{Status: enum.OrderStatusPending, Fulfillment: enum.FulfillmentReceived},
			want:    gcashAwaitingVerification,
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, actions, err := e.Plan(tc.from, tc.change, ActorAdmin)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, actions)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.actions, actions)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, enum.PaymentStatusUnpaid, cashPending.PaymentStatus())
	assert.Equal(t, enum.PaymentStatusUnpaid, gcashAwaitingUpload.PaymentStatus())
	assert.Equal(t, enum.PaymentStatusPendingVerification, gcashAwaitingVerification.PaymentStatus())
	assert.Equal(t, enum.PaymentStatusPaid, paidNotReceived.PaymentStatus())
	assert.Equal(t, enum.PaymentStatusPaid, received.PaymentStatus())
	assert.Equal(t, enum.PaymentStatusVoid, cancelled.PaymentStatus())
}
