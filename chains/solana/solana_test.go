package solana

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

var usdc = intentpay.Token{
	Network:  intentpay.NetworkSolana,
	Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	Symbol:   "USDC",
	Decimals: 6,
}

const payerAddr = "11111111111111111111111111111111"

// txSignature decodes to 64 zero bytes, the minimal well-formed signature.
var txSignature = strings.Repeat("1", 64)

func TestSourcePayment(t *testing.T) {
	ev, err := SourcePayment(intentpay.NetworkSolana, payerAddr, usdc, big.NewInt(10_000_000), txSignature)
	require.NoError(t, err)

	sub := ev.Submission
	assert.Equal(t, intentpay.NetworkSolana, sub.SourceChainID)
	assert.Equal(t, payerAddr, sub.PayerAddr)
	assert.Equal(t, usdc, sub.SourceToken)
	assert.Equal(t, txSignature, sub.PaymentTxHash)
	assert.Equal(t, big.NewInt(10_000_000), sub.SourceAmount.Units)
}

func TestSourcePaymentRejectsNonSolanaChain(t *testing.T) {
	_, err := SourcePayment(intentpay.NetworkBase, payerAddr, usdc, big.NewInt(1), txSignature)
	requireCode(t, err, intentpay.ErrCodeUnsupportedChain)
}

func TestSourcePaymentRejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"", "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", "tooshort", strings.Repeat("1", 31)} {
		_, err := SourcePayment(intentpay.NetworkSolana, addr, usdc, big.NewInt(1), txSignature)
		requireCode(t, err, intentpay.ErrCodeInvalidAddress)
	}
}

func TestSourcePaymentRejectsBadSignature(t *testing.T) {
	for _, sig := range []string{"", "abc", strings.Repeat("1", 32), "0x" + strings.Repeat("ab", 32)} {
		_, err := SourcePayment(intentpay.NetworkSolana, payerAddr, usdc, big.NewInt(1), sig)
		requireCode(t, err, intentpay.ErrCodeInvalidTxHash)
	}
}

func TestSourcePaymentRejectsNonPositiveAmount(t *testing.T) {
	for _, units := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := SourcePayment(intentpay.NetworkSolana, payerAddr, usdc, units, txSignature)
		requireCode(t, err, intentpay.ErrCodeInvalidAmount)
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var payErr *intentpay.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, code, payErr.Code)
}
