// Package solana builds source-payment submissions for Solana, validating
// payer public keys and transaction signatures before server verification.
package solana

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

// SourcePayment builds a PaySolanaSource event from an observed payer
// transaction. txSignature is the base58 transaction signature.
func SourcePayment(chain intentpay.Network, payerAddr string, token intentpay.Token, amountUnits *big.Int, txSignature string) (intentpay.PaySolanaSource, error) {
	if chain.Namespace() != "solana" {
		return intentpay.PaySolanaSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeUnsupportedChain,
			fmt.Sprintf("%q is not a Solana network", chain),
			nil,
		)
	}
	payer, err := solana.PublicKeyFromBase58(payerAddr)
	if err != nil {
		return intentpay.PaySolanaSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid Solana address %q: %v", payerAddr, err),
			nil,
		)
	}
	sig, err := solana.SignatureFromBase58(txSignature)
	if err != nil {
		return intentpay.PaySolanaSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidTxHash,
			fmt.Sprintf("invalid Solana transaction signature %q: %v", txSignature, err),
			nil,
		)
	}
	if amountUnits == nil || amountUnits.Sign() <= 0 {
		return intentpay.PaySolanaSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAmount,
			"source amount must be positive",
			nil,
		)
	}

	return intentpay.PaySolanaSource{
		Submission: intentpay.SourceSubmission{
			SourceChainID: chain,
			PayerAddr:     payer.String(),
			SourceToken:   token,
			SourceAmount: intentpay.TokenAmount{
				Token: token,
				Units: new(big.Int).Set(amountUnits),
			},
			PaymentTxHash: sig.String(),
		},
	}, nil
}
