package intentpay

import (
	"context"
	"log"
)

// OrderAPI is the external order/payment-routing service consumed by the
// effects coordinator. The http package provides the production
// implementation; tests substitute mocks.
type OrderAPI interface {
	// PreviewOrder returns an unhydrated preview for the given destination
	// parameters. Nothing is persisted server-side.
	PreviewOrder(ctx context.Context, params PayParams) (Order, error)

	// GetOrder fetches an order by id. Also used as the refresh-order
	// polling query for destination status.
	GetOrder(ctx context.Context, id string) (Order, error)

	// HydrateOrder finalizes the destination/intent address, optionally
	// recording a refund address and a chosen payment-source token.
	HydrateOrder(ctx context.Context, req HydrationRequest) (Order, error)

	// SubmitSourcePayment submits an observed payer transaction for
	// verification and returns the updated order.
	SubmitSourcePayment(ctx context.Context, orderID string, sub SourceSubmission) (Order, error)

	// FindOrderPayments is the find-source-payment polling query. It
	// returns the order reflecting any payment observed server-side.
	FindOrderPayments(ctx context.Context, orderID string) (Order, error)
}

// StatusUpdate is a push-channel message about a payment in flight.
type StatusUpdate struct {
	PaymentID         string `json:"payment_id"`
	Status            string `json:"status"`
	SourceTxHash      string `json:"source_txhash,omitempty"`
	DestinationTxHash string `json:"destination_txhash,omitempty"`
}

// PushChannel is an optional real-time status feed keyed by payment id.
// Implementations that have no live endpoint return an error from Subscribe
// and the coordinator falls back to polling.
type PushChannel interface {
	Subscribe(paymentID string) (PushSubscription, error)
}

// PushSubscription delivers status updates for one payment until
// unsubscribed. Updates is closed on Unsubscribe or connection loss.
type PushSubscription interface {
	Updates() <-chan StatusUpdate
	Unsubscribe()
}

// Logger is the minimal logging surface the SDK needs. *log.Logger
// satisfies it; so does any Printf-shaped sink.
type Logger interface {
	Printf(format string, v ...interface{})
}

// defaultLogger logs through the standard library with an identifying prefix.
func defaultLogger() Logger {
	return log.New(log.Writer(), "intentpay: ", log.LstdFlags)
}
