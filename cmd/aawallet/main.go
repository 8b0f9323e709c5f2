package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/config"
	"github.com/Layr-Labs/aawallet-go/pkg/core"
	"github.com/Layr-Labs/aawallet-go/pkg/digestSigner"
	"github.com/Layr-Labs/aawallet-go/pkg/logger"
	"github.com/Layr-Labs/aawallet-go/pkg/provider"
	"github.com/Layr-Labs/aawallet-go/pkg/util"
	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const configMetadataKey = "config"

// flagConfigKeys maps global flags to the config keys they override
var flagConfigKeys = map[string]string{
	"rpc-url":              config.KeyRPCUrl,
	"address":              config.KeyAddress,
	"identity":             config.KeyIdentity,
	"validator-address":    config.KeyValidatorAddress,
	"multicall3-address":   config.KeyMulticall3Address,
	"native-token-address": config.KeyNativeTokenAddress,
	"signature-scheme":     config.KeySignatureScheme,
	"public-key":           config.KeyPublicKey,
	"aws-kms-key-id":       config.KeyKMSKeyID,
	"aws-region":           config.KeyAWSRegion,
	"default-gas-limit":    config.KeyDefaultGasLimit,
	"gas-limit-margin":     config.KeyGasLimitMargin,
	"debug":                config.KeyDebug,
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "aawallet",
		Usage: "Account-abstraction wallet for zkSync smart accounts",
		Description: `aawallet populates, signs and submits EIP-712 (type 113) transactions on behalf of
a smart-contract account. Digests are signed by an AWS KMS key and wrapped in the
signature format expected by the account's validator.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML, TOML or JSON config file",
				EnvVars: []string{"AAWALLET_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"AAWALLET_DEBUG"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Rollup JSON-RPC endpoint",
				EnvVars: []string{"AAWALLET_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "address",
				Usage:   "Smart account address",
				EnvVars: []string{"AAWALLET_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "identity",
				Usage:   "Key identity passed to the signer (defaults to the KMS key id)",
				EnvVars: []string{"AAWALLET_IDENTITY"},
			},
			&cli.StringFlag{
				Name:    "validator-address",
				Usage:   "Default validator named in custom signatures",
				EnvVars: []string{"AAWALLET_VALIDATOR_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "multicall3-address",
				Usage:   "Multicall3 contract address",
				EnvVars: []string{"AAWALLET_MULTICALL3_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "native-token-address",
				Usage:   "Native token system contract address",
				EnvVars: []string{"AAWALLET_NATIVE_TOKEN_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "signature-scheme",
				Usage:   "Custom signature format: validator-hooks or public-key-coordinates",
				EnvVars: []string{"AAWALLET_SIGNATURE_SCHEME"},
			},
			&cli.StringFlag{
				Name:    "public-key",
				Usage:   "Uncompressed signer public key for the public-key-coordinates scheme (fetched from KMS when omitted)",
				EnvVars: []string{"AAWALLET_PUBLIC_KEY"},
			},
			&cli.StringFlag{
				Name:    "aws-kms-key-id",
				Usage:   "AWS KMS key ID used to sign digests",
				EnvVars: []string{"AAWALLET_KMS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Local private key used to sign digests (hex, development only)",
				EnvVars: []string{"AAWALLET_PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "private-key-curve",
				Usage:   "Curve of --private-key: secp256r1 or secp256k1",
				Value:   string(digestSigner.CurveP256),
				EnvVars: []string{"AAWALLET_PRIVATE_KEY_CURVE"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region of the KMS key",
				EnvVars: []string{"AAWALLET_AWS_REGION"},
			},
			&cli.Uint64Flag{
				Name:    "default-gas-limit",
				Usage:   "Gas limit used when estimation fails",
				EnvVars: []string{"AAWALLET_DEFAULT_GAS_LIMIT"},
			},
			&cli.Uint64Flag{
				Name:    "gas-limit-margin",
				Usage:   "Gas added on top of every estimate",
				EnvVars: []string{"AAWALLET_GAS_LIMIT_MARGIN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "transfer",
				Aliases: []string{"t"},
				Usage:   "Transfer native tokens from the smart account",
				Flags: append(sendFlags(),
					&cli.StringFlag{
						Name:    "paymaster",
						Usage:   "Paymaster sponsoring the transaction with the general flow",
						EnvVars: []string{"AAWALLET_PAYMASTER"},
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the populated transaction and fee estimate without signing",
					},
				),
				Action: transferAction,
			},
			{
				Name:  "send",
				Usage: "Send a transaction with arbitrary calldata",
				Flags: append(sendFlags(),
					&cli.StringFlag{
						Name:  "data",
						Usage: "Hex calldata",
					},
				),
				Action: sendAction,
			},
			{
				Name:   "write",
				Usage:  "Call a state-changing contract method",
				Flags:  append(sendFlags(), contractFlags()...),
				Action: writeAction,
			},
			{
				Name:   "read",
				Usage:  "Call a view method of a contract",
				Flags:  contractFlags(),
				Action: readAction,
			},
			{
				Name:    "balances",
				Aliases: []string{"b"},
				Usage:   "Read token balances of the smart account with one Multicall3 call",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "token",
						Usage:    "Token address; repeat for several tokens",
						Required: true,
					},
				},
				Action: balancesAction,
			},
			{
				Name:  "digest",
				Usage: "Print the EIP-712 digest and unsigned encoding of a transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
					&cli.StringFlag{Name: "value", Usage: "Value in wei", Value: "0"},
					&cli.StringFlag{Name: "data", Usage: "Hex calldata"},
				},
				Action: digestAction,
			},
			{
				Name:  "sign-message",
				Usage: "Sign an EIP-191 message and print the custom signature",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Usage: "Message to sign", Required: true},
				},
				Action: signMessageAction,
			},
		},
		Before: validateFlags,
	}
}

func sendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
		&cli.StringFlag{Name: "value", Usage: "Value in wei", Value: "0"},
		&cli.StringFlag{Name: "validator", Usage: "Validator overriding the configured default"},
		&cli.StringSliceFlag{Name: "hook-data", Usage: "Hex hook data; repeat for several hooks"},
	}
}

func contractFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "contract", Usage: "Contract address", Required: true},
		&cli.StringFlag{Name: "abi-file", Usage: "Path to the contract ABI JSON", Required: true},
		&cli.StringFlag{Name: "method", Usage: "Method name", Required: true},
		&cli.StringSliceFlag{Name: "arg", Usage: "Method argument; repeat in declaration order"},
	}
}

// validateFlags loads the configuration once and stores it for the command actions.
func validateFlags(c *cli.Context) error {
	overrides := make(map[string]interface{})
	for flag, key := range flagConfigKeys {
		if !c.IsSet(flag) {
			continue
		}
		switch flag {
		case "debug":
			overrides[key] = c.Bool(flag)
		case "default-gas-limit", "gas-limit-margin":
			overrides[key] = c.Uint64(flag)
		default:
			overrides[key] = c.String(flag)
		}
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return err
	}
	privateKey := c.String("private-key")
	if privateKey == "" && cfg.KMSKeyID == "" {
		return fmt.Errorf("must specify either --private-key or --aws-kms-key-id for digest signing")
	}
	if privateKey != "" && cfg.KMSKeyID != "" {
		return fmt.Errorf("cannot specify both --private-key and --aws-kms-key-id")
	}
	if cfg.Identity == "" {
		cfg.Identity = cfg.KMSKeyID
		if privateKey != "" {
			cfg.Identity = "local"
		}
	}
	if cfg.KMSKeyID != "" && cfg.Identity != cfg.KMSKeyID {
		return fmt.Errorf("identity %q must match --aws-kms-key-id %q since KMS signs with the identity as key id", cfg.Identity, cfg.KMSKeyID)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	c.App.Metadata[configMetadataKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configMetadataKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug: cfg.Debug,
	})
}

// setupWallet connects to the RPC endpoint and builds a Core with the configured signer.
func setupWallet(ctx context.Context, c *cli.Context) (*core.Core, *zap.Logger, func(), error) {
	cfg, err := loadedConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	l, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	signerFn, err := setupDigestSigner(ctx, c, cfg, l)
	if err != nil {
		return nil, nil, nil, err
	}

	coreConfig, err := cfg.CoreConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := provider.Dial(ctx, &provider.ProviderConfig{RPCUrl: cfg.RPCUrl}, l)
	if err != nil {
		return nil, nil, nil, err
	}

	wallet, err := core.NewCore(coreConfig, client, signerFn, l)
	if err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	cleanup := func() {
		client.Close()
		_ = l.Sync()
	}
	return wallet, l, cleanup, nil
}

// setupDigestSigner returns the signing callback for the configured backend. For the
// public-key-coordinates scheme it also fills in the public key when none is configured.
func setupDigestSigner(ctx context.Context, c *cli.Context, cfg *config.Config, l *zap.Logger) (digestSigner.SignerFn, error) {
	needsPublicKey := strings.EqualFold(cfg.SignatureScheme, "public-key-coordinates") && cfg.PublicKey == ""

	if privateKey := c.String("private-key"); privateKey != "" {
		signer, err := digestSigner.NewPrivateKeySigner(cfg.Identity, privateKey, digestSigner.Curve(c.String("private-key-curve")))
		if err != nil {
			return nil, fmt.Errorf("failed to setup private key signer: %w", err)
		}
		if needsPublicKey {
			cfg.PublicKey = hexutil.Encode(signer.PublicKey())
		}
		return signer.SignerFn(), nil
	}

	kmsSigner, err := digestSigner.NewAWSKMSSigner(cfg.AWSRegion, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup KMS signer: %w", err)
	}
	if needsPublicKey {
		pub, err := kmsSigner.GetPublicKey(ctx, cfg.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch signer public key: %w", err)
		}
		cfg.PublicKey = hexutil.Encode(pub)
	}
	return kmsSigner.SignerFn(), nil
}

func parseValue(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(s, 0)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	return value, nil
}

func parseHexData(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(util.EnsureHexPrefix(s))
}

func parseSendOpts(c *cli.Context) (*core.SendOpts, error) {
	opts := &core.SendOpts{}
	if validator := c.String("validator"); validator != "" {
		address, err := util.ParseAddress(validator)
		if err != nil {
			return nil, err
		}
		opts.ValidatorAddress = &address
	}
	for _, hook := range c.StringSlice("hook-data") {
		data, err := parseHexData(hook)
		if err != nil {
			return nil, fmt.Errorf("invalid hook data %q: %w", hook, err)
		}
		opts.HookData = append(opts.HookData, data)
	}
	return opts, nil
}

func printResponse(response *zkTransaction.Response) {
	fmt.Printf("Transaction Hash: %s\n", response.Hash.Hex())
	fmt.Printf("Nonce: %d\n", response.Transaction.Nonce)
	fmt.Printf("Gas Limit: %d\n", response.Transaction.GasLimit)
}

func transferAction(c *cli.Context) error {
	ctx := c.Context

	to, err := util.ParseAddress(c.String("to"))
	if err != nil {
		return err
	}
	value, err := parseValue(c.String("value"))
	if err != nil {
		return err
	}
	opts, err := parseSendOpts(c)
	if err != nil {
		return err
	}

	wallet, l, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	ptx, err := wallet.PopulateTransaction(ctx, to, &core.PopulateOpts{Value: value})
	if err != nil {
		return fmt.Errorf("failed to populate transaction: %w", err)
	}

	if paymasterAddress := c.String("paymaster"); paymasterAddress != "" {
		address, err := util.ParseAddress(paymasterAddress)
		if err != nil {
			return err
		}
		if err := ptx.AttachPaymaster(ctx, address, nil); err != nil {
			return fmt.Errorf("failed to attach paymaster: %w", err)
		}
	}

	if c.Bool("dry-run") {
		fee := ptx.EstimateFee(ctx)
		digest, err := ptx.Digest()
		if err != nil {
			return err
		}
		fmt.Printf("Digest: %s\n", digest.Hex())
		fmt.Printf("Gas Limit: %d\n", fee.GasLimit)
		fmt.Printf("Gas Price: %s\n", fee.GasPrice)
		fmt.Printf("Fee: %s\n", fee.Fee)
		return nil
	}

	l.Sugar().Infow("Sending transfer",
		zap.String("to", to.String()),
		zap.String("value", value.String()),
	)
	response, err := ptx.Send(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to send transfer: %w", err)
	}
	printResponse(response)
	return nil
}

func sendAction(c *cli.Context) error {
	ctx := c.Context

	to, err := util.ParseAddress(c.String("to"))
	if err != nil {
		return err
	}
	value, err := parseValue(c.String("value"))
	if err != nil {
		return err
	}
	data, err := parseHexData(c.String("data"))
	if err != nil {
		return fmt.Errorf("invalid calldata: %w", err)
	}
	opts, err := parseSendOpts(c)
	if err != nil {
		return err
	}

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	response, err := wallet.SendTransaction(ctx, to, value, data, opts)
	if err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	printResponse(response)
	return nil
}

func loadContract(c *cli.Context, wallet *core.Core) (*core.Contract, []interface{}, error) {
	address, err := util.ParseAddress(c.String("contract"))
	if err != nil {
		return nil, nil, err
	}
	abiJSON, err := os.ReadFile(c.String("abi-file"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ABI file: %w", err)
	}
	contract, err := wallet.Contract(address, string(abiJSON))
	if err != nil {
		return nil, nil, err
	}

	method, ok := contract.ABI().Methods[c.String("method")]
	if !ok {
		return nil, nil, fmt.Errorf("method %q not found in ABI", c.String("method"))
	}
	args, err := parseMethodArgs(method, c.StringSlice("arg"))
	if err != nil {
		return nil, nil, err
	}
	return contract, args, nil
}

func writeAction(c *cli.Context) error {
	ctx := c.Context

	value, err := parseValue(c.String("value"))
	if err != nil {
		return err
	}
	opts, err := parseSendOpts(c)
	if err != nil {
		return err
	}

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	contract, args, err := loadContract(c, wallet)
	if err != nil {
		return err
	}

	response, err := contract.Write(ctx, c.String("method"), args, &core.WriteOpts{
		Value:            value,
		ValidatorAddress: opts.ValidatorAddress,
		HookData:         opts.HookData,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", c.String("method"), err)
	}
	printResponse(response)
	return nil
}

func readAction(c *cli.Context) error {
	ctx := c.Context

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	contract, args, err := loadContract(c, wallet)
	if err != nil {
		return err
	}

	values, err := contract.Read(ctx, c.String("method"), args...)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.String("method"), err)
	}
	for i, value := range values {
		fmt.Printf("[%d] %s\n", i, formatValue(value))
	}
	return nil
}

func balancesAction(c *cli.Context) error {
	ctx := c.Context

	tokens, err := util.ParseAddresses(c.StringSlice("token"))
	if err != nil {
		return err
	}

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	balances, err := wallet.GetBalancesWithMultiCall3(ctx, tokens)
	if err != nil {
		return fmt.Errorf("failed to read balances: %w", err)
	}

	fmt.Printf("Account: %s\n", wallet.Address().Hex())
	lines := util.Map(tokens, func(token common.Address, index uint64) string {
		return fmt.Sprintf("  %s: %s", token.Hex(), balances[index])
	})
	fmt.Println(strings.Join(lines, "\n"))
	return nil
}

func digestAction(c *cli.Context) error {
	ctx := c.Context

	to, err := util.ParseAddress(c.String("to"))
	if err != nil {
		return err
	}
	value, err := parseValue(c.String("value"))
	if err != nil {
		return err
	}
	data, err := parseHexData(c.String("data"))
	if err != nil {
		return fmt.Errorf("invalid calldata: %w", err)
	}

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	ptx, err := wallet.PopulateTransaction(ctx, to, &core.PopulateOpts{Value: value, Data: data})
	if err != nil {
		return fmt.Errorf("failed to populate transaction: %w", err)
	}
	digest, err := ptx.Digest()
	if err != nil {
		return err
	}
	raw, err := zkTransaction.Serialize(ptx.Transaction())
	if err != nil {
		return err
	}

	fmt.Printf("Digest: %s\n", digest.Hex())
	fmt.Printf("Unsigned Transaction: %s\n", hexutil.Encode(raw))
	return nil
}

func signMessageAction(c *cli.Context) error {
	ctx := c.Context

	wallet, _, cleanup, err := setupWallet(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	signature, err := wallet.SignMessage(ctx, []byte(c.String("message")))
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}
	fmt.Printf("Signature: %s\n", hexutil.Encode(signature))
	return nil
}
