// Package evm builds source-payment submissions for EVM settlement
// networks, validating addresses and transaction hashes before anything is
// sent for server verification.
package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	intentpay "github.com/RozoAI/intent-pay-sub000"
)

// SourcePayment builds a PayEthereumSource event from an observed payer
// transaction. The payer address is normalized to its checksummed form.
func SourcePayment(chain intentpay.Network, payerAddr string, token intentpay.Token, amountUnits *big.Int, txHash string) (intentpay.PayEthereumSource, error) {
	if chain.Namespace() != "eip155" {
		return intentpay.PayEthereumSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeUnsupportedChain,
			fmt.Sprintf("%q is not an EVM network", chain),
			nil,
		)
	}
	if !common.IsHexAddress(payerAddr) {
		return intentpay.PayEthereumSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid EVM address: %q", payerAddr),
			nil,
		)
	}
	if !isTxHash(txHash) {
		return intentpay.PayEthereumSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidTxHash,
			fmt.Sprintf("invalid EVM transaction hash: %q", txHash),
			nil,
		)
	}
	if amountUnits == nil || amountUnits.Sign() <= 0 {
		return intentpay.PayEthereumSource{}, intentpay.NewPaymentError(
			intentpay.ErrCodeInvalidAmount,
			"source amount must be positive",
			nil,
		)
	}

	return intentpay.PayEthereumSource{
		Submission: intentpay.SourceSubmission{
			SourceChainID: chain,
			PayerAddr:     common.HexToAddress(payerAddr).Hex(),
			SourceToken:   token,
			SourceAmount: intentpay.TokenAmount{
				Token: token,
				Units: new(big.Int).Set(amountUnits),
			},
			PaymentTxHash: txHash,
		},
	}, nil
}

// isTxHash reports whether s is a 0x-prefixed 32-byte hex hash.
func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
