// Package config loads wallet settings from an optional config file and AAWALLET_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/core"
	"github.com/Layr-Labs/aawallet-go/pkg/multicall"
	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/Layr-Labs/aawallet-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
)

const EnvPrefix = "AAWALLET"

// Config keys
const (
	KeyRPCUrl                    = "rpc_url"
	KeyAddress                   = "address"
	KeyIdentity                  = "identity"
	KeyValidatorAddress          = "validator_address"
	KeyMulticall3Address         = "multicall3_address"
	KeyNativeTokenAddress        = "native_token_address"
	KeySignatureScheme           = "signature_scheme"
	KeyPublicKey                 = "public_key"
	KeyKMSKeyID                  = "kms_key_id"
	KeyAWSRegion                 = "aws_region"
	KeyDefaultGasLimit           = "default_gas_limit"
	KeyGasLimitMargin            = "gas_limit_margin"
	KeyPaymasterMinimalAllowance = "paymaster_minimal_allowance"
	KeyDebug                     = "debug"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	RPCUrl                    string `mapstructure:"rpc_url"`
	Address                   string `mapstructure:"address"`
	Identity                  string `mapstructure:"identity"`
	ValidatorAddress          string `mapstructure:"validator_address"`
	Multicall3Address         string `mapstructure:"multicall3_address"`
	NativeTokenAddress        string `mapstructure:"native_token_address"`
	SignatureScheme           string `mapstructure:"signature_scheme"`
	PublicKey                 string `mapstructure:"public_key"`
	KMSKeyID                  string `mapstructure:"kms_key_id"`
	AWSRegion                 string `mapstructure:"aws_region"`
	DefaultGasLimit           uint64 `mapstructure:"default_gas_limit"`
	GasLimitMargin            uint64 `mapstructure:"gas_limit_margin"`
	PaymasterMinimalAllowance string `mapstructure:"paymaster_minimal_allowance"`
	Debug                     bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPCUrl, "")
	v.SetDefault(KeyAddress, "")
	v.SetDefault(KeyIdentity, "")
	v.SetDefault(KeyValidatorAddress, "")
	v.SetDefault(KeyMulticall3Address, multicall.DefaultMulticall3Address.Hex())
	v.SetDefault(KeyNativeTokenAddress, multicall.DefaultNativeTokenAddress.Hex())
	v.SetDefault(KeySignatureScheme, signatureCodec.SchemeValidatorHooks.String())
	v.SetDefault(KeyPublicKey, "")
	v.SetDefault(KeyKMSKeyID, "")
	v.SetDefault(KeyAWSRegion, "us-east-1")
	v.SetDefault(KeyDefaultGasLimit, core.DefaultGasLimit)
	v.SetDefault(KeyGasLimitMargin, core.DefaultGasLimitMargin)
	v.SetDefault(KeyPaymasterMinimalAllowance, core.DefaultPaymasterMinimalAllowance.String())
	v.SetDefault(KeyDebug, false)
}

// Load reads configuration in increasing order of precedence: defaults, the file at
// path (skipped when empty), AAWALLET_ environment variables, then overrides.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings required to build a wallet.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyRPCUrl)
	}
	if c.Identity == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyIdentity)
	}
	for key, value := range map[string]string{
		KeyAddress:            c.Address,
		KeyValidatorAddress:   c.ValidatorAddress,
		KeyMulticall3Address:  c.Multicall3Address,
		KeyNativeTokenAddress: c.NativeTokenAddress,
	} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%w: %s %q is not a valid address", ErrInvalidConfig, key, value)
		}
	}
	if _, err := signatureCodec.ParseSchemeKind(c.SignatureScheme); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CoreConfig converts the settings into a core.CoreConfig.
func (c *Config) CoreConfig() (*core.CoreConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	scheme, err := c.scheme()
	if err != nil {
		return nil, err
	}

	allowance, ok := new(big.Int).SetString(c.PaymasterMinimalAllowance, 0)
	if !ok || allowance.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s %q is not a non-negative integer", ErrInvalidConfig, KeyPaymasterMinimalAllowance, c.PaymasterMinimalAllowance)
	}

	return &core.CoreConfig{
		Address:                   common.HexToAddress(c.Address),
		Identity:                  c.Identity,
		ValidatorAddress:          common.HexToAddress(c.ValidatorAddress),
		Multicall3Address:         common.HexToAddress(c.Multicall3Address),
		NativeTokenAddress:        common.HexToAddress(c.NativeTokenAddress),
		Scheme:                    scheme,
		DefaultGasLimit:           c.DefaultGasLimit,
		GasLimitMargin:            c.GasLimitMargin,
		PaymasterMinimalAllowance: allowance,
	}, nil
}

func (c *Config) scheme() (signatureCodec.Scheme, error) {
	kind, err := signatureCodec.ParseSchemeKind(c.SignatureScheme)
	if err != nil {
		return signatureCodec.Scheme{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if kind != signatureCodec.SchemePublicKeyCoordinates {
		return signatureCodec.NewValidatorHooksScheme(), nil
	}

	if c.PublicKey == "" {
		return signatureCodec.Scheme{}, fmt.Errorf("%w: %s is required for the %s scheme", ErrInvalidConfig, KeyPublicKey, kind)
	}
	pub, err := hexutil.Decode(util.EnsureHexPrefix(c.PublicKey))
	if err != nil {
		return signatureCodec.Scheme{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, KeyPublicKey, err)
	}
	scheme, err := signatureCodec.NewPublicKeyCoordinatesScheme(pub)
	if err != nil {
		return signatureCodec.Scheme{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, KeyPublicKey, err)
	}
	return scheme, nil
}
