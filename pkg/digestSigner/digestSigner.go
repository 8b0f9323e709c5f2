// Package digestSigner wraps the external signing callback through which a wallet
// obtains signatures. The wallet holds no private key: every digest is sent, as
// bare hex, to a remote signer (secure enclave, HSM, KMS) addressed by an opaque
// identity, and the raw DER signature it returns is handed back to the caller.
package digestSigner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/util"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

var (
	// ErrEmptySignature is returned when the callback resolves without a signature
	ErrEmptySignature = errors.New("signer returned an empty signature")
	// ErrInvalidSignatureHex is returned when the callback output is not hex
	ErrInvalidSignatureHex = errors.New("signer returned invalid hex")
)

// SignerFn is the remote signing callback. digestHex carries no 0x prefix and the
// returned signature is hex encoded DER, with or without a 0x prefix.
// The callback may block on user interaction; ctx is forwarded unchanged.
type SignerFn func(ctx context.Context, identity string, digestHex string) (string, error)

// IDigestSigner defines the signing capability consumed by the wallet core.
type IDigestSigner interface {
	// SignDigest signs a 32-byte digest and returns the raw DER signature
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)

	// Identity returns the opaque key identity passed to the remote signer
	Identity() string
}

// SignerError carries a failure of the remote signer. The original error is kept
// verbatim since it may represent a user-denied approval.
type SignerError struct {
	Identity string
	Err      error
}

func (e *SignerError) Error() string {
	return fmt.Sprintf("signer callback failed for identity %q: %v", e.Identity, e.Err)
}

func (e *SignerError) Unwrap() error {
	return e.Err
}

// DigestSigner implements IDigestSigner on top of a SignerFn.
// It holds no state besides the identity and the callback, and never retries:
// the remote signer may prompt a user and must not be invoked twice silently.
type DigestSigner struct {
	identity string
	signerFn SignerFn
	logger   *zap.Logger
}

// NewDigestSigner creates a DigestSigner.
//
// Parameters:
//   - identity: The key alias understood by the remote signer
//   - signerFn: The signing callback
//   - logger: A zap logger; nil disables logging
//
// Returns:
//   - *DigestSigner: The signer
//   - error: An error if identity or signerFn is missing
func NewDigestSigner(identity string, signerFn SignerFn, logger *zap.Logger) (*DigestSigner, error) {
	if identity == "" {
		return nil, fmt.Errorf("signer identity cannot be empty")
	}
	if signerFn == nil {
		return nil, fmt.Errorf("signer callback cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestSigner{
		identity: identity,
		signerFn: signerFn,
		logger:   logger,
	}, nil
}

// Identity returns the key identity.
func (d *DigestSigner) Identity() string {
	return d.identity
}

// Sign passes digestHex, stripped of its 0x prefix, to the callback exactly once
// and returns the decoded signature bytes.
func (d *DigestSigner) Sign(ctx context.Context, digestHex string) ([]byte, error) {
	bare := util.StripHexPrefix(digestHex)

	d.logger.Sugar().Debugw("Requesting remote signature",
		zap.String("identity", d.identity),
		zap.String("digest", bare),
	)

	sigHex, err := d.signerFn(ctx, d.identity, bare)
	if err != nil {
		return nil, &SignerError{Identity: d.identity, Err: err}
	}

	sigHex = strings.TrimSpace(sigHex)
	if sigHex == "" || sigHex == "0x" {
		return nil, &SignerError{Identity: d.identity, Err: ErrEmptySignature}
	}
	sig, err := hexutil.Decode(util.EnsureHexPrefix(sigHex))
	if err != nil {
		return nil, &SignerError{Identity: d.identity, Err: fmt.Errorf("%w: %v", ErrInvalidSignatureHex, err)}
	}

	d.logger.Sugar().Debugw("Received remote signature",
		zap.String("identity", d.identity),
		zap.Int("length", len(sig)),
	)
	return sig, nil
}

// SignDigest signs a 32-byte digest.
func (d *DigestSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	return d.Sign(ctx, digest.Hex())
}

// SignMessage signs the EIP-191 personal-message hash of message.
func (d *DigestSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return d.SignDigest(ctx, common.BytesToHash(accounts.TextHash(message)))
}
