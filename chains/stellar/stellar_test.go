package stellar

import (
	"encoding/base32"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

var usdc = intentpay.Token{
	Network:  intentpay.NetworkStellar,
	Address:  "USDC:GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN",
	Symbol:   "USDC",
	Decimals: 7,
}

var txHash = strings.Repeat("ab", 32)

// testAccountID builds a strkey-shaped account id: the account version
// byte 0x30 encodes to the leading 'G'.
func testAccountID() string {
	raw := make([]byte, 35)
	raw[0] = 0x30
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
}

func TestSourcePayment(t *testing.T) {
	payer := testAccountID()
	ev, err := SourcePayment(intentpay.NetworkStellar, payer, usdc, big.NewInt(10_000_000), txHash)
	require.NoError(t, err)

	sub := ev.Submission
	assert.Equal(t, intentpay.NetworkStellar, sub.SourceChainID)
	assert.Equal(t, payer, sub.PayerAddr)
	assert.Equal(t, usdc, sub.SourceToken)
	assert.Equal(t, txHash, sub.PaymentTxHash)
	assert.Equal(t, big.NewInt(10_000_000), sub.SourceAmount.Units)
}

func TestSourcePaymentLowercasesTxHash(t *testing.T) {
	ev, err := SourcePayment(intentpay.NetworkStellar, testAccountID(), usdc, big.NewInt(1), strings.ToUpper(txHash))
	require.NoError(t, err)
	assert.Equal(t, txHash, ev.Submission.PaymentTxHash)
}

func TestSourcePaymentRejectsNonStellarChain(t *testing.T) {
	_, err := SourcePayment(intentpay.NetworkBase, testAccountID(), usdc, big.NewInt(1), txHash)
	requireCode(t, err, intentpay.ErrCodeUnsupportedChain)
}

func TestSourcePaymentRejectsBadAddress(t *testing.T) {
	valid := testAccountID()
	bad := []string{
		"",
		valid[:55],                 // too short
		"S" + valid[1:],            // wrong version prefix
		strings.ToLower(valid),     // base32 is upper-case only
		valid[:55] + "0",           // '0' is not a base32 character
	}
	for _, addr := range bad {
		_, err := SourcePayment(intentpay.NetworkStellar, addr, usdc, big.NewInt(1), txHash)
		requireCode(t, err, intentpay.ErrCodeInvalidAddress)
	}
}

func TestSourcePaymentRejectsBadTxHash(t *testing.T) {
	for _, hash := range []string{"", "abcd", "0x" + txHash, strings.Repeat("zz", 32)} {
		_, err := SourcePayment(intentpay.NetworkStellar, testAccountID(), usdc, big.NewInt(1), hash)
		requireCode(t, err, intentpay.ErrCodeInvalidTxHash)
	}
}

func TestSourcePaymentRejectsNonPositiveAmount(t *testing.T) {
	for _, units := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := SourcePayment(intentpay.NetworkStellar, testAccountID(), usdc, units, txHash)
		requireCode(t, err, intentpay.ErrCodeInvalidAmount)
	}
}

func TestIsAccountID(t *testing.T) {
	assert.True(t, IsAccountID(testAccountID()))
	assert.False(t, IsAccountID(""))
	assert.False(t, IsAccountID("GABC"))
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var payErr *intentpay.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, code, payErr.Code)
}
