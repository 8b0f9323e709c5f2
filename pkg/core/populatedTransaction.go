package core

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/aawallet-go/pkg/logger"
	"github.com/Layr-Labs/aawallet-go/pkg/paymaster"
	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TxState tracks a PopulatedTransaction through signing and submission.
type TxState int

const (
	StateUnsigned TxState = iota
	StateSigned
	StateSubmitted
)

func (s TxState) String() string {
	switch s {
	case StateUnsigned:
		return "unsigned"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("TxState(%d)", int(s))
	}
}

// FeeEstimate is the expected cost of a transaction.
type FeeEstimate struct {
	GasLimit uint64
	GasPrice *big.Int
	Fee      *big.Int
}

// PopulatedTransaction is a transaction ready to be signed and sent.
//
// Field mutations must go through the setters, which drop any attached signature.
// A PopulatedTransaction is owned by one goroutine at a time and is not safe for
// concurrent use.
type PopulatedTransaction struct {
	core  *Core
	tx    *zkTransaction.Transaction
	state TxState

	// signatures maps each r ‖ s returned by SignTransaction to the digest it covers
	signatures map[string]common.Hash
}

func newPopulatedTransaction(core *Core, tx *zkTransaction.Transaction) *PopulatedTransaction {
	return &PopulatedTransaction{
		core:       core,
		tx:         tx,
		state:      StateUnsigned,
		signatures: make(map[string]common.Hash),
	}
}

// Transaction returns a copy of the underlying record.
func (p *PopulatedTransaction) Transaction() *zkTransaction.Transaction {
	return p.tx.Copy()
}

// State reports whether the transaction is unsigned, signed or submitted.
func (p *PopulatedTransaction) State() TxState {
	return p.state
}

// Digest returns the EIP-712 digest of the current fields.
func (p *PopulatedTransaction) Digest() (common.Hash, error) {
	return zkTransaction.Digest(p.tx)
}

// SignTransaction asks the remote signer to sign the transaction digest and returns the
// raw 64-byte r ‖ s signature. The transaction itself is left unchanged; pass the result
// to AttachSignature.
func (p *PopulatedTransaction) SignTransaction(ctx context.Context) ([]byte, error) {
	digest, err := p.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction digest: %w", err)
	}

	p.core.logger.Sugar().Debugw("Signing transaction digest",
		zap.String("digest", digest.Hex()),
		zap.Uint64("nonce", p.tx.Nonce),
	)

	der, err := p.core.signer.SignDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	sc, err := signatureCodec.DecodeDer(der)
	if err != nil {
		return nil, err
	}

	signature := sc.Bytes()
	p.signatures[string(signature)] = digest
	return signature, nil
}

// AttachSignature wraps a raw r ‖ s signature in the configured scheme and sets it as the
// custom signature. A nil validator selects the configured default.
//
// Any previously attached signature is silently replaced. Once SignTransaction has been
// called, only a signature it returned over the current fields is accepted: a signature
// over fields that have since changed, or one it never produced, returns
// ErrStaleSignature and nothing is attached. Sign again instead.
func (p *PopulatedTransaction) AttachSignature(signature []byte, validator *common.Address, hookData [][]byte) error {
	if len(p.signatures) > 0 {
		current, err := p.Digest()
		if err != nil {
			return fmt.Errorf("failed to compute transaction digest: %w", err)
		}
		signed, ok := p.signatures[string(signature)]
		if !ok {
			return fmt.Errorf("%w: signature was not produced for digest %s", ErrStaleSignature, current.Hex())
		}
		if signed != current {
			return fmt.Errorf("%w: signed %s, current %s", ErrStaleSignature, signed.Hex(), current.Hex())
		}
	}

	validatorAddress := p.core.config.ValidatorAddress
	if validator != nil {
		validatorAddress = *validator
	}
	customSignature, err := p.core.config.Scheme.Encode(signature, validatorAddress, hookData)
	if err != nil {
		return err
	}

	p.tx.CustomData.CustomSignature = customSignature
	p.state = StateSigned

	p.core.logger.Sugar().Debugw("Attached custom signature",
		zap.String("scheme", p.core.config.Scheme.Kind.String()),
		zap.String("validator", validatorAddress.String()),
		logger.Truncated("customSignature", customSignature),
	)
	return nil
}

// Send validates the transaction, signs it if no signature is attached, then serializes
// and submits it. Validation failures return before the signer is invoked. opts only
// apply when Send performs the signing. Calling Send on a submitted transaction signs
// and submits it again.
func (p *PopulatedTransaction) Send(ctx context.Context, opts *SendOpts) (*zkTransaction.Response, error) {
	if opts == nil {
		opts = &SendOpts{}
	}
	if p.state == StateSubmitted {
		p.invalidate()
	}
	if err := p.core.CheckTransaction(p.tx); err != nil {
		return nil, err
	}

	if p.state != StateSigned {
		signature, err := p.SignTransaction(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.AttachSignature(signature, opts.ValidatorAddress, opts.HookData); err != nil {
			return nil, err
		}
	}

	raw, err := zkTransaction.Serialize(p.tx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	hash, err := p.core.provider.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, &ProviderError{Op: "SendRawTransaction", Err: err}
	}
	p.state = StateSubmitted

	p.core.logger.Sugar().Infow("Transaction submitted",
		zap.String("transactionHash", hash.Hex()),
		zap.String("from", p.tx.From.String()),
		zap.Uint64("nonce", p.tx.Nonce),
	)
	return &zkTransaction.Response{
		Hash:        hash,
		Raw:         raw,
		Transaction: p.tx.Copy(),
	}, nil
}

// AttachPaymaster sponsors the transaction through paymasterAddress. A nil token selects
// the general flow; otherwise the approval-based flow pays fees in token, with the inner
// input obtained from the configured payload provider.
func (p *PopulatedTransaction) AttachPaymaster(ctx context.Context, paymasterAddress common.Address, token *common.Address) error {
	var (
		params *zkTransaction.PaymasterParams
		err    error
	)
	if token == nil {
		params, err = paymaster.GeneralParams(paymasterAddress, nil)
	} else {
		payloadProvider := p.core.config.PayloadProvider
		if payloadProvider == nil {
			return validationErrorf("approval-based paymaster requires a payload provider")
		}
		payload, perr := payloadProvider.GetPayloadForManualUsage(ctx, paymasterAddress)
		if perr != nil {
			return fmt.Errorf("failed to get paymaster payload: %w", perr)
		}
		params, err = paymaster.ApprovalBasedParams(paymasterAddress, *token, p.core.config.PaymasterMinimalAllowance, payload)
	}
	if err != nil {
		return err
	}

	p.tx.CustomData.PaymasterParams = params
	p.invalidate()
	return nil
}

// EstimateFee estimates gas for the current fields and prices it at the populated gas
// price. Estimation failures fall back to the configured gas ceiling.
func (p *PopulatedTransaction) EstimateFee(ctx context.Context) *FeeEstimate {
	gasLimit := p.core.EstimateGas(ctx, p.tx)
	gasPrice := new(big.Int)
	if p.tx.GasPrice != nil {
		gasPrice.Set(p.tx.GasPrice)
	}
	return &FeeEstimate{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Fee:      new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice),
	}
}

// SetTo changes the recipient and drops any attached signature.
func (p *PopulatedTransaction) SetTo(to common.Address) {
	p.tx.To = &to
	p.invalidate()
}

// SetValue changes the transferred value; nil means zero.
func (p *PopulatedTransaction) SetValue(value *big.Int) {
	p.tx.Value = new(big.Int)
	if value != nil {
		p.tx.Value.Set(value)
	}
	p.invalidate()
}

// SetData replaces the calldata with a copy of data.
func (p *PopulatedTransaction) SetData(data []byte) {
	p.tx.Data = common.CopyBytes(data)
	p.invalidate()
}

// SetGasLimit overrides the gas limit.
func (p *PopulatedTransaction) SetGasLimit(gasLimit uint64) {
	p.tx.GasLimit = gasLimit
	p.invalidate()
}

// SetGasPrice overrides the gas price; nil means zero.
func (p *PopulatedTransaction) SetGasPrice(gasPrice *big.Int) {
	p.tx.GasPrice = new(big.Int)
	if gasPrice != nil {
		p.tx.GasPrice.Set(gasPrice)
	}
	p.invalidate()
}

// SetNonce overrides the nonce.
func (p *PopulatedTransaction) SetNonce(nonce uint64) {
	p.tx.Nonce = nonce
	p.invalidate()
}

// invalidate drops the attached signature. The signatures record is kept so that
// attaching a signature produced before the change is detected as stale.
func (p *PopulatedTransaction) invalidate() {
	p.tx.CustomData.CustomSignature = nil
	p.state = StateUnsigned
}
