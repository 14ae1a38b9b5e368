package intentpay

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Network represents a settlement network identifier in CAIP-2 format
// Format: namespace:reference (e.g., "eip155:8453" for Base)
type Network string

// Well-known networks supported by the checkout flow.
const (
	NetworkBase     Network = "eip155:8453"
	NetworkEthereum Network = "eip155:1"
	NetworkSolana   Network = "solana:mainnet"
	NetworkStellar  Network = "stellar:pubnet"
)

// Parse splits the network into namespace and reference components
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// Namespace returns the CAIP-2 namespace ("eip155", "solana", "stellar"),
// or an empty string if the network is malformed.
func (n Network) Namespace() string {
	ns, _, err := n.Parse()
	if err != nil {
		return ""
	}
	return ns
}

// Token identifies an asset on a settlement network.
type Token struct {
	Network  Network `json:"network"`
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
}

// TokenAmount is an exact amount of a token. Units holds the amount in the
// token's minor units (e.g., 10 USDC = 10000000 units at 6 decimals).
// USD is a display-only estimate; comparisons must always use Units.
type TokenAmount struct {
	Token Token    `json:"token"`
	Units *big.Int `json:"units"`
	USD   float64  `json:"usd"`
}

// tokenAmountJSON is the wire shape: units travel as a decimal string so
// amounts survive JSON number precision limits.
type tokenAmountJSON struct {
	Token Token   `json:"token"`
	Units string  `json:"units"`
	USD   float64 `json:"usd"`
}

// MarshalJSON encodes Units as a decimal string.
func (a TokenAmount) MarshalJSON() ([]byte, error) {
	units := "0"
	if a.Units != nil {
		units = a.Units.String()
	}
	return json.Marshal(tokenAmountJSON{Token: a.Token, Units: units, USD: a.USD})
}

// UnmarshalJSON decodes Units from a decimal string.
func (a *TokenAmount) UnmarshalJSON(data []byte) error {
	var wire tokenAmountJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.Token = wire.Token
	a.USD = wire.USD
	a.Units = new(big.Int)
	if wire.Units == "" {
		return nil
	}
	if _, ok := a.Units.SetString(wire.Units, 10); !ok {
		return fmt.Errorf("invalid token amount units: %q", wire.Units)
	}
	return nil
}

// IsZero reports whether the amount is unset or zero.
func (a TokenAmount) IsZero() bool {
	return a.Units == nil || a.Units.Sign() == 0
}

// Cmp compares two amounts by minor units. Panics if the tokens differ in
// decimals; callers compare amounts of the same token only.
func (a TokenAmount) Cmp(b TokenAmount) int {
	if a.Token.Decimals != b.Token.Decimals {
		panic("intentpay: comparing token amounts with different decimals")
	}
	au, bu := a.Units, b.Units
	if au == nil {
		au = new(big.Int)
	}
	if bu == nil {
		bu = new(big.Int)
	}
	return au.Cmp(bu)
}

// ParseUnits converts a decimal token amount ("10", "0.5") into exact minor
// units at the given number of decimals. It rejects amounts with more
// fractional digits than the token carries rather than rounding.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))
	units, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || units.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}
	return units, nil
}

// OrderStatus is the remote order/routing service's view of an order.
type OrderStatus string

const (
	OrderStatusUnhydrated      OrderStatus = "payment_unhydrated"
	OrderStatusUnpaid          OrderStatus = "payment_unpaid"
	OrderStatusStarted         OrderStatus = "payment_started"
	OrderStatusCompleted       OrderStatus = "payment_completed"
	OrderStatusBounced         OrderStatus = "payment_bounced"
	OrderStatusPayoutCompleted OrderStatus = "payout_completed"
)

// Terminal reports whether the status is a settled outcome.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusBounced, OrderStatusPayoutCompleted:
		return true
	}
	return false
}

// Order is the logical payment intent. It starts as a preview (destination
// known, no intent address), gains an ID and IntentAddr on hydration, then a
// source record once a payer transaction is observed, and finally a
// destination record when the payout settles.
type Order struct {
	// ID is assigned by hydration and immutable afterwards.
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"externalId,omitempty"`

	// IntentAddr is the finalized destination/intent address. Non-empty
	// only on hydrated orders.
	IntentAddr string `json:"intentAddr,omitempty"`

	DestChainID              Network     `json:"destChainId"`
	DestAddr                 string      `json:"destAddr"`
	DestFinalCallTokenAmount TokenAmount `json:"destFinalCallTokenAmount"`
	RefundAddr               string      `json:"refundAddr,omitempty"`
	ChosenFinalUSD           float64     `json:"chosenFinalUsd,omitempty"`

	// Source record, set once a payer transaction is observed.
	SourceChainID        Network     `json:"sourceChainId,omitempty"`
	SourcePayerAddr      string      `json:"sourcePayerAddr,omitempty"`
	SourceTokenAmount    TokenAmount `json:"sourceTokenAmount,omitzero"`
	SourceInitiateTxHash string      `json:"sourceInitiateTxHash,omitempty"`

	// Destination record, set once the destination-side transfer finalizes.
	DestClaimTxHash string `json:"destClaimTxHash,omitempty"`

	Status    OrderStatus            `json:"status,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt,omitzero"`
}

// Hydrated reports whether the order has a finalized intent address and id.
func (o Order) Hydrated() bool {
	return o.ID != "" && o.IntentAddr != ""
}

// mergeOrder refines prev with the fields of next without regressing:
// fields already assigned on prev survive when next omits them, and the
// order id, once assigned, never changes. next's status wins when present.
func mergeOrder(prev, next Order) Order {
	out := next
	if prev.ID != "" {
		out.ID = prev.ID
	}
	if out.ExternalID == "" {
		out.ExternalID = prev.ExternalID
	}
	if out.IntentAddr == "" {
		out.IntentAddr = prev.IntentAddr
	}
	if out.DestChainID == "" {
		out.DestChainID = prev.DestChainID
	}
	if out.DestAddr == "" {
		out.DestAddr = prev.DestAddr
	}
	if out.DestFinalCallTokenAmount.IsZero() && !prev.DestFinalCallTokenAmount.IsZero() {
		out.DestFinalCallTokenAmount = prev.DestFinalCallTokenAmount
	}
	if out.RefundAddr == "" {
		out.RefundAddr = prev.RefundAddr
	}
	if out.ChosenFinalUSD == 0 {
		out.ChosenFinalUSD = prev.ChosenFinalUSD
	}
	if out.SourceChainID == "" {
		out.SourceChainID = prev.SourceChainID
	}
	if out.SourcePayerAddr == "" {
		out.SourcePayerAddr = prev.SourcePayerAddr
	}
	if out.SourceTokenAmount.IsZero() && !prev.SourceTokenAmount.IsZero() {
		out.SourceTokenAmount = prev.SourceTokenAmount
	}
	if out.SourceInitiateTxHash == "" {
		out.SourceInitiateTxHash = prev.SourceInitiateTxHash
	}
	if out.DestClaimTxHash == "" {
		out.DestClaimTxHash = prev.DestClaimTxHash
	}
	if out.Status == "" {
		out.Status = prev.Status
	}
	if out.Metadata == nil {
		out.Metadata = prev.Metadata
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = prev.CreatedAt
	}
	return out
}

// PayParams describe the destination side of a new checkout: which token,
// how much, and where it should land.
type PayParams struct {
	ToChain    Network                `json:"toChain"`
	ToToken    Token                  `json:"toToken"`
	ToUnits    string                 `json:"toUnits"` // decimal, e.g. "10" or "0.5"
	ToAddress  string                 `json:"toAddress"`
	RefundAddr string                 `json:"refundAddr,omitempty"`
	ExternalID string                 `json:"externalId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SourceSubmission carries an observed payer-side transaction for server
// verification.
type SourceSubmission struct {
	SourceChainID Network     `json:"sourceChainId"`
	PayerAddr     string      `json:"payerAddr"`
	SourceToken   Token       `json:"sourceToken"`
	SourceAmount  TokenAmount `json:"sourceAmount"`
	PaymentTxHash string      `json:"paymentTxHash"`
}

// HydrationRequest finalizes a preview or loaded order into a payable one.
type HydrationRequest struct {
	Order       Order  `json:"order"`
	RefundAddr  string `json:"refundAddr,omitempty"`
	ChosenToken *Token `json:"chosenToken,omitempty"`
}
