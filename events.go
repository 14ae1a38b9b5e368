package intentpay

// PaymentEvent is the input side of the payment state machine. It is a
// sealed union: every variant lives in this package and carries its own
// payload. The store applies events against the transition table in
// state.go; the coordinator performs the asynchronous work they imply.
type PaymentEvent interface {
	EventType() string
	isPaymentEvent()
}

// ============================================================================
// Intent-level events (dispatched by host code)
// ============================================================================

// SetPayParams starts a fresh checkout from destination parameters. Valid
// from any state; the machine resets internally before previewing.
type SetPayParams struct {
	Params PayParams
}

// SetPayID resumes an existing order by identifier. Valid from any state;
// the loaded order's remote status decides where the machine lands.
type SetPayID struct {
	ID string
}

// HydrateOrder finalizes the current preview or loaded order, assigning the
// destination/intent address. Valid only from preview or unhydrated.
type HydrateOrder struct {
	RefundAddr  string
	ChosenToken *Token
}

// PaySource asks the coordinator to search for a source payment now rather
// than waiting for the next poll tick. It never changes the state type.
type PaySource struct{}

// PayEthereumSource submits an observed EVM payer transaction.
type PayEthereumSource struct {
	Submission SourceSubmission
}

// PaySolanaSource submits an observed Solana payer transaction.
type PaySolanaSource struct {
	Submission SourceSubmission
}

// PayStellarSource submits an observed Stellar payer transaction.
type PayStellarSource struct {
	Submission SourceSubmission
}

// SetChosenUSD records the payer's chosen USD amount on the current order.
// Valid while no source payment exists (preview or payment_unpaid).
type SetChosenUSD struct {
	USD float64
}

// Reset abandons the current order and returns the machine to idle.
type Reset struct{}

// ============================================================================
// Effect-completion events (dispatched by the coordinator)
// ============================================================================

// PreviewGenerated carries the preview order returned by the API.
type PreviewGenerated struct {
	Order Order
}

// OrderLoaded carries an order fetched by id after SetPayID.
type OrderLoaded struct {
	Order Order
}

// OrderHydrated carries the hydrated order returned by the API.
type OrderHydrated struct {
	Order Order
}

// PaymentVerified carries the updated order after the server verified a
// submitted source payment.
type PaymentVerified struct {
	Order Order
}

// OrderRefreshed carries a freshly fetched order from a status poll or a
// push update. It only ever moves the machine forward.
type OrderRefreshed struct {
	Order Order
}

// ErrorEvent is a terminal failure. The reducer keeps the last known order
// for diagnostic display.
type ErrorEvent struct {
	Code    string
	Message string
}

func (SetPayParams) EventType() string      { return "set_pay_params" }
func (SetPayID) EventType() string          { return "set_pay_id" }
func (HydrateOrder) EventType() string      { return "hydrate_order" }
func (PaySource) EventType() string         { return "pay_source" }
func (PayEthereumSource) EventType() string { return "pay_ethereum_source" }
func (PaySolanaSource) EventType() string   { return "pay_solana_source" }
func (PayStellarSource) EventType() string  { return "pay_stellar_source" }
func (SetChosenUSD) EventType() string      { return "set_chosen_usd" }
func (Reset) EventType() string             { return "reset" }
func (PreviewGenerated) EventType() string  { return "preview_generated" }
func (OrderLoaded) EventType() string       { return "order_loaded" }
func (OrderHydrated) EventType() string     { return "order_hydrated" }
func (PaymentVerified) EventType() string   { return "payment_verified" }
func (OrderRefreshed) EventType() string    { return "order_refreshed" }
func (ErrorEvent) EventType() string        { return "error" }

func (SetPayParams) isPaymentEvent()      {}
func (SetPayID) isPaymentEvent()          {}
func (HydrateOrder) isPaymentEvent()      {}
func (PaySource) isPaymentEvent()         {}
func (PayEthereumSource) isPaymentEvent() {}
func (PaySolanaSource) isPaymentEvent()   {}
func (PayStellarSource) isPaymentEvent()  {}
func (SetChosenUSD) isPaymentEvent()      {}
func (Reset) isPaymentEvent()             {}
func (PreviewGenerated) isPaymentEvent()  {}
func (OrderLoaded) isPaymentEvent()       {}
func (OrderHydrated) isPaymentEvent()     {}
func (PaymentVerified) isPaymentEvent()   {}
func (OrderRefreshed) isPaymentEvent()    {}
func (ErrorEvent) isPaymentEvent()        {}
