package confidential

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	inputProofDomain = []byte("gsanta.input.v1")
	decryptionDomain = []byte("gsanta.decrypt.v1")
)

// InputProofDigest is the message a capability signs to attest that handle
// encrypts a value for user within contract.
func InputProofDigest(contract, user common.Address, handle common.Hash) common.Hash {
	return crypto.Keccak256Hash(inputProofDomain, contract.Bytes(), user.Bytes(), handle.Bytes())
}

// DecryptionDigest is the message a capability signs to attest that
// clearValues is the decryption of handles within contract.
func DecryptionDigest(contract common.Address, handles []common.Hash, clearValues []byte) common.Hash {
	parts := make([][]byte, 0, len(handles)+3)
	parts = append(parts, decryptionDomain, contract.Bytes())
	for _, h := range handles {
		parts = append(parts, h.Bytes())
	}
	parts = append(parts, clearValues)
	return crypto.Keccak256Hash(parts...)
}

// Sign produces a recoverable secp256k1 signature over digest.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest.Bytes(), key)
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}
