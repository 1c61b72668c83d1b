// Package confidential defines the confidential-computation capability used to
// encrypt record budgets and to produce decryption proofs for them.
//
// Values are encrypted against a context (the contract that stores the
// ciphertext handle) and a user. Revealing a value is a two party affair: the
// capability decrypts and signs the clear value, and the ledger verifies that
// signature before it stores the value publicly.
package confidential

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Artifact is the output of one encryption: the handle the ledger stores in
// place of the value and the proof that the handle was produced by the
// capability for the given context and user.
type Artifact struct {
	Ciphertext common.Hash
	Proof      []byte
}

// SubmitFunc publishes a decryption proof. It is invoked by the capability
// once the proof exists and its error is returned to the caller unchanged.
type SubmitFunc func(ctx context.Context, clearValues, proof []byte) error

// DecryptionResult holds the clear values of a decryption request keyed by
// the handles that were requested.
type DecryptionResult struct {
	ClearValues map[common.Hash]uint64
	Encoded     []byte
	Proof       []byte
}

// Capability is the confidential-computation service.
type Capability interface {
	// Initialize prepares key material. It must succeed before any other call.
	Initialize(ctx context.Context) error

	Encrypt(ctx context.Context, contract, user common.Address, value uint64) (*Artifact, error)

	// RequestDecryptionProof decrypts the handles, proves the result and hands
	// both to submit. The result is only returned when submit succeeded.
	RequestDecryptionProof(ctx context.Context, handles []common.Hash, contract common.Address, submit SubmitFunc) (*DecryptionResult, error)
}
