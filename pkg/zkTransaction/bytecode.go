package zkTransaction

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	bytecodeWordSize      = 32
	bytecodeHashVersion   = 1
	maxBytecodeWordLength = 1<<16 - 1
)

// ErrInvalidBytecode is returned for bytecode that cannot be deployed as a factory dependency
var ErrInvalidBytecode = errors.New("invalid bytecode")

// HashBytecode returns the versioned bytecode hash under which a factory dependency is
// known on chain: sha256(bytecode) with the first four bytes replaced by the version
// byte, a zero byte and the big-endian length in 32-byte words.
func HashBytecode(bytecode []byte) (common.Hash, error) {
	if len(bytecode)%bytecodeWordSize != 0 {
		return common.Hash{}, fmt.Errorf("%w: length %d is not a multiple of %d", ErrInvalidBytecode, len(bytecode), bytecodeWordSize)
	}
	words := len(bytecode) / bytecodeWordSize
	if words > maxBytecodeWordLength {
		return common.Hash{}, fmt.Errorf("%w: %d words exceeds %d", ErrInvalidBytecode, words, maxBytecodeWordLength)
	}
	if words%2 == 0 {
		return common.Hash{}, fmt.Errorf("%w: word count %d must be odd", ErrInvalidBytecode, words)
	}

	hash := sha256.Sum256(bytecode)
	hash[0] = bytecodeHashVersion
	hash[1] = 0
	binary.BigEndian.PutUint16(hash[2:4], uint16(words))
	return common.Hash(hash), nil
}
