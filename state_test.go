package intentpay

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usdc = Token{
	Network:  NetworkBase,
	Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	Symbol:   "USDC",
	Decimals: 6,
}

func testOrder(status OrderStatus) Order {
	return Order{
		ID:          "42",
		IntentAddr:  "0x00000000000000000000000000000000000000aa",
		DestChainID: NetworkBase,
		DestAddr:    "0x00000000000000000000000000000000000000bb",
		DestFinalCallTokenAmount: TokenAmount{
			Token: usdc,
			Units: big.NewInt(10_000_000),
			USD:   10,
		},
		Status: status,
	}
}

func TestReduceResetAlwaysYieldsIdle(t *testing.T) {
	states := []PaymentState{
		IdleState{},
		PreviewState{Order: testOrder("")},
		UnhydratedState{Order: testOrder(OrderStatusUnhydrated)},
		UnpaidState{Order: testOrder(OrderStatusUnpaid)},
		StartedState{Order: testOrder(OrderStatusStarted)},
		CompletedState{Order: testOrder(OrderStatusCompleted)},
		BouncedState{Order: testOrder(OrderStatusBounced)},
		ErrorState{Message: "boom"},
	}
	for _, prev := range states {
		next, err := reduce(prev, Reset{})
		require.NoError(t, err)
		assert.Equal(t, StateTypeIdle, next.StateType(), "from %s", prev.StateType())
	}
}

func TestReduceSetPayParamsValidFromAnyState(t *testing.T) {
	states := []PaymentState{
		IdleState{},
		StartedState{Order: testOrder(OrderStatusStarted)},
		CompletedState{Order: testOrder(OrderStatusCompleted)},
		ErrorState{Message: "boom"},
	}
	for _, prev := range states {
		next, err := reduce(prev, SetPayParams{Params: PayParams{ToChain: NetworkBase}})
		require.NoError(t, err)
		// Internal reset; preview follows once the coordinator previews.
		assert.Equal(t, StateTypeIdle, next.StateType())
	}
}

func TestReduceInvalidEventsLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		name  string
		prev  PaymentState
		event PaymentEvent
	}{
		{"hydrate from idle", IdleState{}, HydrateOrder{}},
		{"hydrate from unpaid", UnpaidState{Order: testOrder(OrderStatusUnpaid)}, HydrateOrder{}},
		{"hydrate from completed", CompletedState{Order: testOrder(OrderStatusCompleted)}, HydrateOrder{}},
		{"pay from idle", IdleState{}, PayEthereumSource{}},
		{"pay from preview", PreviewState{Order: testOrder("")}, PaySolanaSource{}},
		{"pay from completed", CompletedState{Order: testOrder(OrderStatusCompleted)}, PayStellarSource{}},
		{"preview generated from started", StartedState{Order: testOrder(OrderStatusStarted)}, PreviewGenerated{Order: testOrder("")}},
		{"order loaded from unpaid", UnpaidState{Order: testOrder(OrderStatusUnpaid)}, OrderLoaded{Order: testOrder(OrderStatusUnpaid)}},
		{"refresh from idle", IdleState{}, OrderRefreshed{Order: testOrder(OrderStatusStarted)}},
		{"refresh from completed", CompletedState{Order: testOrder(OrderStatusCompleted)}, OrderRefreshed{Order: testOrder(OrderStatusBounced)}},
		{"verified from preview", PreviewState{Order: testOrder("")}, PaymentVerified{Order: testOrder(OrderStatusStarted)}},
		{"chosen usd from started", StartedState{Order: testOrder(OrderStatusStarted)}, SetChosenUSD{USD: 5}},
		{"pay source from idle", IdleState{}, PaySource{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := reduce(tc.prev, tc.event)
			require.Error(t, err)
			var payErr *PaymentError
			require.ErrorAs(t, err, &payErr)
			assert.Equal(t, ErrCodeInvalidTransition, payErr.Code)
			assert.Equal(t, tc.prev.StateType(), next.StateType())
		})
	}
}

func TestReducePreviewGeneratedFromIdle(t *testing.T) {
	order := testOrder("")
	order.ID = ""
	order.IntentAddr = ""
	next, err := reduce(IdleState{}, PreviewGenerated{Order: order})
	require.NoError(t, err)
	preview, ok := next.(PreviewState)
	require.True(t, ok)
	assert.InDelta(t, 10.0, preview.Order.DestFinalCallTokenAmount.USD, 0.0001)
}

func TestReduceOrderLoadedLandsOnRemoteStatus(t *testing.T) {
	cases := []struct {
		name  string
		order Order
		want  StateType
	}{
		{"unpaid hydrated", testOrder(OrderStatusUnpaid), StateTypeUnpaid},
		{"started", testOrder(OrderStatusStarted), StateTypeStarted},
		{"bounced skips intermediates", func() Order {
			o := testOrder(OrderStatusBounced)
			o.DestClaimTxHash = "0xdead"
			return o
		}(), StateTypeBounced},
		{"completed", func() Order {
			o := testOrder(OrderStatusCompleted)
			o.DestClaimTxHash = "0xfeed"
			return o
		}(), StateTypeCompleted},
		{"unhydrated", func() Order {
			o := testOrder(OrderStatusUnhydrated)
			o.IntentAddr = ""
			return o
		}(), StateTypeUnhydrated},
		{"unpaid without intent addr", func() Order {
			o := testOrder(OrderStatusUnpaid)
			o.IntentAddr = ""
			return o
		}(), StateTypeUnhydrated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := reduce(IdleState{}, OrderLoaded{Order: tc.order})
			require.NoError(t, err)
			assert.Equal(t, tc.want, next.StateType())
		})
	}
}

func TestReduceCompletedRequiresDestTxHash(t *testing.T) {
	// A fetched order claiming completion without a destination tx hash is
	// still in destination processing.
	fetched := testOrder(OrderStatusCompleted)
	fetched.DestClaimTxHash = ""
	next, err := reduce(StartedState{Order: testOrder(OrderStatusStarted)}, OrderRefreshed{Order: fetched})
	require.NoError(t, err)
	assert.Equal(t, StateTypeStarted, next.StateType())

	fetched.DestClaimTxHash = "0xfeed"
	next, err = reduce(StartedState{Order: testOrder(OrderStatusStarted)}, OrderRefreshed{Order: fetched})
	require.NoError(t, err)
	assert.Equal(t, StateTypeCompleted, next.StateType())
}

func TestReduceRefreshNeverMovesBackward(t *testing.T) {
	started := StartedState{Order: testOrder(OrderStatusStarted)}
	stale := testOrder(OrderStatusUnpaid)
	next, err := reduce(started, OrderRefreshed{Order: stale})
	require.NoError(t, err)
	assert.Equal(t, StateTypeStarted, next.StateType())
}

func TestReducePaymentVerifiedAdvances(t *testing.T) {
	verified := testOrder(OrderStatusStarted)
	verified.SourceInitiateTxHash = "0xabc"
	next, err := reduce(UnpaidState{Order: testOrder(OrderStatusUnpaid)}, PaymentVerified{Order: verified})
	require.NoError(t, err)
	started, ok := next.(StartedState)
	require.True(t, ok)
	assert.Equal(t, "0xabc", started.Order.SourceInitiateTxHash)
}

func TestReduceVerifiedNeverRevertsToPreview(t *testing.T) {
	// Whatever the server sends back, a verified payment from unpaid lands
	// on unpaid or later, never on preview/unhydrated.
	for _, status := range []OrderStatus{OrderStatusUnpaid, OrderStatusStarted, OrderStatusCompleted, OrderStatusBounced} {
		fetched := testOrder(status)
		fetched.DestClaimTxHash = "0xfeed"
		next, err := reduce(UnpaidState{Order: testOrder(OrderStatusUnpaid)}, PaymentVerified{Order: fetched})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stateRank(next.StateType()), stateRank(StateTypeUnpaid), "status %s", status)
	}
}

func TestReduceErrorKeepsLastOrder(t *testing.T) {
	prev := UnpaidState{Order: testOrder(OrderStatusUnpaid)}
	next, err := reduce(prev, ErrorEvent{Code: ErrCodeVerificationFailed, Message: "rejected"})
	require.NoError(t, err)
	errState, ok := next.(ErrorState)
	require.True(t, ok)
	require.NotNil(t, errState.Order)
	assert.Equal(t, "42", errState.Order.ID)
	assert.Equal(t, "rejected", errState.Message)
}

func TestReduceErrorBeforeAnyOrder(t *testing.T) {
	next, err := reduce(IdleState{}, ErrorEvent{Code: ErrCodePreviewFailed, Message: "boom"})
	require.NoError(t, err)
	errState, ok := next.(ErrorState)
	require.True(t, ok)
	assert.Nil(t, errState.Order)
}

func TestReduceSetChosenUSD(t *testing.T) {
	next, err := reduce(PreviewState{Order: testOrder("")}, SetChosenUSD{USD: 25})
	require.NoError(t, err)
	preview, ok := next.(PreviewState)
	require.True(t, ok)
	assert.InDelta(t, 25.0, preview.Order.ChosenFinalUSD, 0.0001)

	next, err = reduce(UnpaidState{Order: testOrder(OrderStatusUnpaid)}, SetChosenUSD{USD: 12})
	require.NoError(t, err)
	unpaid, ok := next.(UnpaidState)
	require.True(t, ok)
	assert.InDelta(t, 12.0, unpaid.Order.ChosenFinalUSD, 0.0001)
}

func TestMergeOrderIsMonotonic(t *testing.T) {
	prev := testOrder(OrderStatusUnpaid)
	fetched := Order{Status: OrderStatusStarted, SourceInitiateTxHash: "0xabc"}
	merged := mergeOrder(prev, fetched)

	assert.Equal(t, "42", merged.ID)
	assert.Equal(t, prev.IntentAddr, merged.IntentAddr)
	assert.Equal(t, OrderStatusStarted, merged.Status)
	assert.Equal(t, "0xabc", merged.SourceInitiateTxHash)
	assert.Equal(t, 0, merged.DestFinalCallTokenAmount.Cmp(prev.DestFinalCallTokenAmount))
}

func TestMergeOrderIDIsImmutable(t *testing.T) {
	prev := testOrder(OrderStatusStarted)
	fetched := testOrder(OrderStatusStarted)
	fetched.ID = "43"
	merged := mergeOrder(prev, fetched)
	assert.Equal(t, "42", merged.ID)
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"10", 6, "10000000", false},
		{"0.5", 6, "500000", false},
		{"0.000001", 6, "1", false},
		{"1.2345678", 6, "", true}, // too many decimal places
		{"", 6, "", true},
		{"-1", 6, "", true},
		{"abc", 6, "", true},
		{"10", 0, "10", false},
	}
	for _, tc := range cases {
		units, err := ParseUnits(tc.amount, tc.decimals)
		if tc.wantErr {
			assert.Error(t, err, "amount %q", tc.amount)
			continue
		}
		require.NoError(t, err, "amount %q", tc.amount)
		assert.Equal(t, tc.want, units.String(), "amount %q", tc.amount)
	}
}
