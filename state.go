package intentpay

import "fmt"

// StateType tags the variants of PaymentState.
type StateType string

const (
	StateTypeIdle       StateType = "idle"
	StateTypePreview    StateType = "preview"
	StateTypeUnhydrated StateType = "unhydrated"
	StateTypeUnpaid     StateType = "payment_unpaid"
	StateTypeStarted    StateType = "payment_started"
	StateTypeCompleted  StateType = "payment_completed"
	StateTypeBounced    StateType = "payment_bounced"
	StateTypeError      StateType = "error"
)

// Terminal reports whether the state type is a settled outcome or failure.
func (t StateType) Terminal() bool {
	switch t {
	case StateTypeCompleted, StateTypeBounced, StateTypeError:
		return true
	}
	return false
}

// PaymentState is the sealed union of lifecycle states. Exactly one variant
// is current at any time; the store is the only mutator.
type PaymentState interface {
	StateType() StateType
	isPaymentState()
}

// IdleState is the initial state: no order exists.
type IdleState struct{}

// PreviewState holds a preview order: amount and destination are known but
// no intent address has been assigned and nothing is persisted server-side.
type PreviewState struct {
	Order  Order
	Params PayParams
}

// UnhydratedState holds an order loaded by id that has no intent address yet.
type UnhydratedState struct {
	Order Order
}

// UnpaidState holds a hydrated order awaiting a source payment.
type UnpaidState struct {
	Order Order
}

// StartedState holds an order whose source payment has been observed and
// whose destination processing is in flight.
type StartedState struct {
	Order Order
}

// CompletedState is the terminal success state.
type CompletedState struct {
	Order Order
}

// BouncedState is the terminal refund state: the destination call reverted.
type BouncedState struct {
	Order Order
}

// ErrorState is the terminal failure state. Order is the last known order,
// if any, kept for diagnostic display.
type ErrorState struct {
	Order   *Order
	Code    string
	Message string
}

func (IdleState) StateType() StateType       { return StateTypeIdle }
func (PreviewState) StateType() StateType    { return StateTypePreview }
func (UnhydratedState) StateType() StateType { return StateTypeUnhydrated }
func (UnpaidState) StateType() StateType     { return StateTypeUnpaid }
func (StartedState) StateType() StateType    { return StateTypeStarted }
func (CompletedState) StateType() StateType  { return StateTypeCompleted }
func (BouncedState) StateType() StateType    { return StateTypeBounced }
func (ErrorState) StateType() StateType      { return StateTypeError }

func (IdleState) isPaymentState()       {}
func (PreviewState) isPaymentState()    {}
func (UnhydratedState) isPaymentState() {}
func (UnpaidState) isPaymentState()     {}
func (StartedState) isPaymentState()    {}
func (CompletedState) isPaymentState()  {}
func (BouncedState) isPaymentState()    {}
func (ErrorState) isPaymentState()      {}

// StateOrder returns the order carried by a state, or nil for idle and for
// error states that never saw an order.
func StateOrder(s PaymentState) *Order {
	switch s := s.(type) {
	case PreviewState:
		return &s.Order
	case UnhydratedState:
		return &s.Order
	case UnpaidState:
		return &s.Order
	case StartedState:
		return &s.Order
	case CompletedState:
		return &s.Order
	case BouncedState:
		return &s.Order
	case ErrorState:
		return s.Order
	default:
		return nil
	}
}

// stateRank orders state types along the payment lifecycle so that fetched
// order statuses can only ever move the machine forward.
func stateRank(t StateType) int {
	switch t {
	case StateTypeIdle:
		return 0
	case StateTypePreview:
		return 1
	case StateTypeUnhydrated:
		return 2
	case StateTypeUnpaid:
		return 3
	case StateTypeStarted:
		return 4
	case StateTypeCompleted, StateTypeBounced:
		return 5
	default: // error
		return 6
	}
}

// stateForOrder maps a remote order onto the state that its status implies.
// The loaded status is authoritative. Completed and bounced require a
// destination transaction hash; an order claiming completion without one is
// still in destination processing.
func stateForOrder(o Order) PaymentState {
	switch o.Status {
	case OrderStatusUnpaid:
		if o.Hydrated() {
			return UnpaidState{Order: o}
		}
		return UnhydratedState{Order: o}
	case OrderStatusStarted:
		return StartedState{Order: o}
	case OrderStatusCompleted, OrderStatusPayoutCompleted:
		if o.DestClaimTxHash == "" {
			return StartedState{Order: o}
		}
		return CompletedState{Order: o}
	case OrderStatusBounced:
		if o.DestClaimTxHash == "" {
			return StartedState{Order: o}
		}
		return BouncedState{Order: o}
	default:
		return UnhydratedState{Order: o}
	}
}

// stateWithOrder rebuilds a state of the given type around an updated order.
// Used when a refresh refines order fields without advancing the lifecycle.
func stateWithOrder(t StateType, o Order) PaymentState {
	switch t {
	case StateTypeUnhydrated:
		return UnhydratedState{Order: o}
	case StateTypeUnpaid:
		return UnpaidState{Order: o}
	case StateTypeStarted:
		return StartedState{Order: o}
	case StateTypeCompleted:
		return CompletedState{Order: o}
	case StateTypeBounced:
		return BouncedState{Order: o}
	default:
		return StartedState{Order: o}
	}
}

// advance merges a freshly fetched order into the current state and moves
// the machine to whatever the fetched status implies, never backward.
func advance(prev PaymentState, fetched Order) PaymentState {
	merged := fetched
	if po := StateOrder(prev); po != nil {
		merged = mergeOrder(*po, fetched)
	}
	next := stateForOrder(merged)
	if stateRank(next.StateType()) < stateRank(prev.StateType()) {
		// Stale or out-of-order status: keep the current lifecycle
		// position but absorb refined order fields.
		return stateWithOrder(prev.StateType(), merged)
	}
	return next
}

// invalidTransition builds the error the store logs for an event that does
// not apply to the current state. The dispatch is ignored, not fatal.
func invalidTransition(prev PaymentState, ev PaymentEvent) *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("event %q is not valid in state %q", ev.EventType(), prev.StateType()),
		nil,
	)
}

// reduce computes the next state for an event against the transition table.
// On an invalid transition it returns the previous state unchanged together
// with an invalid_transition error.
func reduce(prev PaymentState, ev PaymentEvent) (PaymentState, error) {
	switch ev := ev.(type) {
	case SetPayParams:
		// Valid from any state: reset internally, preview follows once
		// the coordinator's preview call completes.
		return IdleState{}, nil

	case SetPayID:
		// Valid from any state: reset internally, the loaded order's
		// status decides where the machine lands.
		return IdleState{}, nil

	case Reset:
		return IdleState{}, nil

	case ErrorEvent:
		return ErrorState{Order: StateOrder(prev), Code: ev.Code, Message: ev.Message}, nil

	case PreviewGenerated:
		if _, ok := prev.(IdleState); ok {
			return PreviewState{Order: ev.Order}, nil
		}
		return prev, invalidTransition(prev, ev)

	case OrderLoaded:
		if _, ok := prev.(IdleState); ok {
			return stateForOrder(ev.Order), nil
		}
		return prev, invalidTransition(prev, ev)

	case HydrateOrder:
		// State is unchanged while the hydration call is in flight.
		switch prev.(type) {
		case PreviewState, UnhydratedState:
			return prev, nil
		}
		return prev, invalidTransition(prev, ev)

	case OrderHydrated:
		switch prev.(type) {
		case PreviewState, UnhydratedState:
			return advance(prev, ev.Order), nil
		}
		return prev, invalidTransition(prev, ev)

	case PayEthereumSource, PaySolanaSource, PayStellarSource:
		// Pending server verification the state is unchanged. Started is
		// allowed for re-attaching a new source on a cross-chain re-route.
		switch prev.(type) {
		case UnpaidState, StartedState:
			return prev, nil
		}
		return prev, invalidTransition(prev, ev)

	case PaySource:
		switch prev.(type) {
		case UnpaidState, StartedState:
			return prev, nil
		}
		return prev, invalidTransition(prev, ev)

	case PaymentVerified:
		switch prev.(type) {
		case UnpaidState, StartedState:
			return advance(prev, ev.Order), nil
		}
		return prev, invalidTransition(prev, ev)

	case OrderRefreshed:
		switch prev.(type) {
		case UnpaidState, StartedState:
			return advance(prev, ev.Order), nil
		}
		return prev, invalidTransition(prev, ev)

	case SetChosenUSD:
		switch prev := prev.(type) {
		case PreviewState:
			prev.Order.ChosenFinalUSD = ev.USD
			return prev, nil
		case UnpaidState:
			prev.Order.ChosenFinalUSD = ev.USD
			return prev, nil
		}
		return prev, invalidTransition(prev, ev)

	default:
		return prev, invalidTransition(prev, ev)
	}
}
