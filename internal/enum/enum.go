package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "pending"
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCancelled      = "cancelled"
)

const (
	FulfillmentNotReceived = "not_received"
	FulfillmentReceived    = "received"
)

// Payment status is derived from status + receipt presence, never stored.
const (
	PaymentStatusUnpaid              = "unpaid"
	PaymentStatusPendingVerification = "pending_verification"
	PaymentStatusPaid                = "paid"
	PaymentStatusVoid                = "void"
)

const (
	PaymentMethodCash  = "CASH"
	PaymentMethodGCash = "GCASH"
)

// ── Accounts ──

const (
	AdminRole = "ADMIN"
)

// ── Events ──

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)
