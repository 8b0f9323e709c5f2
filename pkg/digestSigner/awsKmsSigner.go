package digestSigner

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"go.uber.org/zap"
)

// AWSKMSSigner is a remote signer backed by AWS KMS asymmetric ECC_NIST_P256 keys.
// The wallet identity is used verbatim as the KMS key id, ARN or alias
// (e.g. "alias/wallet-1"), and KMS returns ASN.1 DER signatures, which is the
// SignerFn contract.
type AWSKMSSigner struct {
	kmsClient kmsiface.KMSAPI
	logger    *zap.Logger
}

// NewAWSKMSSigner creates a KMS signer for the given AWS region.
//
// Parameters:
//   - region: The AWS region where the KMS keys live
//   - logger: A zap logger for signing operations
//
// Returns:
//   - *AWSKMSSigner: A new AWS KMS signer
//   - error: An error if the AWS session cannot be created
func NewAWSKMSSigner(region string, logger *zap.Logger) (*AWSKMSSigner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSKMSSignerWithClient(kms.New(sess), logger), nil
}

// NewAWSKMSSignerWithClient creates a KMS signer around an existing client.
func NewAWSKMSSignerWithClient(client kmsiface.KMSAPI, logger *zap.Logger) *AWSKMSSigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSKMSSigner{
		kmsClient: client,
		logger:    logger,
	}
}

// SignerFn returns a callback that signs digests with KMS.
func (a *AWSKMSSigner) SignerFn() SignerFn {
	return a.signDigest
}

func (a *AWSKMSSigner) signDigest(ctx context.Context, identity string, digestHex string) (string, error) {
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return "", fmt.Errorf("invalid digest hex: %w", err)
	}

	input := &kms.SignInput{
		KeyId:            aws.String(identity),
		Message:          digest,
		MessageType:      aws.String(kms.MessageTypeDigest),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	}

	result, err := a.kmsClient.SignWithContext(ctx, input)
	if err != nil {
		return "", fmt.Errorf("KMS signing failed: %w", err)
	}

	a.logger.Sugar().Debugw("KMS produced signature",
		zap.String("keyId", identity),
		zap.Int("derLength", len(result.Signature)),
	)
	return hex.EncodeToString(result.Signature), nil
}

// GetPublicKey returns the uncompressed (0x04 ‖ X ‖ Y) public key of a KMS key,
// as needed by the public-key coordinate signature scheme.
func (a *AWSKMSSigner) GetPublicKey(ctx context.Context, identity string) ([]byte, error) {
	result, err := a.kmsClient.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(identity),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key from KMS: %w", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(result.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("KMS key %s is not an ECDSA key", identity)
	}
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("unsupported curve for key %s: %w", identity, err)
	}
	return ecdhKey.Bytes(), nil
}
