package confidential

import (
	"github.com/holiman/uint256"
)

const wordSize = 32

// EncodeClearValues packs values as consecutive 32 byte big-endian words, the
// ABI encoding of a static uint256 tuple.
func EncodeClearValues(values []uint64) []byte {
	out := make([]byte, 0, len(values)*wordSize)
	for _, v := range values {
		word := uint256.NewInt(v).Bytes32()
		out = append(out, word[:]...)
	}
	return out
}

// DecodeClearValues is the inverse of EncodeClearValues. Words that do not
// fit an uint64 are rejected.
func DecodeClearValues(data []byte) ([]uint64, error) {
	if len(data)%wordSize != 0 {
		return nil, ErrInvalidEncoding
	}
	out := make([]uint64, 0, len(data)/wordSize)
	for i := 0; i < len(data); i += wordSize {
		word := new(uint256.Int).SetBytes(data[i : i+wordSize])
		if !word.IsUint64() {
			return nil, ErrInvalidEncoding
		}
		out = append(out, word.Uint64())
	}
	return out, nil
}
