// Package stellar builds source-payment submissions for Stellar, validating
// account ids and transaction hashes before server verification.
package stellar

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

// SourcePayment builds a PayStellarSource event from an observed payer
// transaction. txHash is the 64-char hex Stellar transaction hash.
func SourcePayment(chain intentpay.Network, payerAddr string, token intentpay.Token, amountUnits *big.Int, txHash string) (intentpay.PayStellarSource, error) {
	if chain.Namespace() != "stellar" {
		return intentpay.PayStellarSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeUnsupportedChain,
			fmt.Sprintf("%q is not a Stellar network", chain),
			nil,
		)
	}
	if !IsAccountID(payerAddr) {
		return intentpay.PayStellarSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid Stellar account id: %q", payerAddr),
			nil,
		)
	}
	if !isTxHash(txHash) {
		return intentpay.PayStellarSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidTxHash,
			fmt.Sprintf("invalid Stellar transaction hash: %q", txHash),
			nil,
		)
	}
	if amountUnits == nil || amountUnits.Sign() <= 0 {
		return intentpay.PayStellarSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAmount,
			"source amount must be positive",
			nil,
		)
	}

	return intentpay.PayStellarSource{
		Submission: intentpay.SourceSubmission{
			SourceChainID: chain,
			PayerAddr:     payerAddr,
			SourceToken:   token,
			SourceAmount: intentpay.TokenAmount{
				Token: token,
				Units: new(big.Int).Set(amountUnits),
			},
			PaymentTxHash: strings.ToLower(txHash),
		},
	}, nil
}

// IsAccountID reports whether s is a strkey-encoded Stellar account id:
// 56 base32 characters with the account version byte prefix "G".
func IsAccountID(s string) bool {
	if len(s) != 56 || s[0] != 'G' {
		return false
	}
	_, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	return err == nil
}

// isTxHash reports whether s is a 32-byte hex hash without a 0x prefix.
func isTxHash(s string) bool {
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == 32
}
