// Package ledger defines the contracts the gift-exchange core consumes from the
// ledger that stores exchange records.
//
// The core never talks to a chain directly. It reads records through a Reader
// and writes them through a Writer; ethledger binds both to a deployed contract
// over JSON-RPC and localledger implements them on a local key-value store.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RecordSnapshot is the ledger's view of one exchange record. Numeric fields
// are exactly what the ledger returned and may be nil.
type RecordSnapshot struct {
	Name               string
	Description        string
	PublicParticipants *big.Int
	PublicBudget       *big.Int
	Timestamp          *big.Int
	Creator            common.Address
	IsVerified         bool
	RevealedValue      *big.Int
}

// CreateArgs carries the fields of a record creation transaction.
type CreateArgs struct {
	ID           string
	Name         string
	Ciphertext   common.Hash
	Proof        []byte
	Participants uint64
	Budget       uint64
	Description  string
}

// Receipt is the confirmation of an accepted ledger write.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Status      uint64
}

// Reader is the read side of the ledger.
type Reader interface {
	// ContractAddress is the address of the confidential context the records
	// live in. Encryption and decryption proofs are bound to it.
	ContractAddress() common.Address

	ListRecordIDs(ctx context.Context) ([]string, error)
	GetRecord(ctx context.Context, id string) (*RecordSnapshot, error)

	// GetEncryptedHandle returns the opaque handle of the record's encrypted budget.
	GetEncryptedHandle(ctx context.Context, id string) (common.Hash, error)

	CheckAvailability(ctx context.Context) (bool, error)
}

// PendingTx is a submitted write that has not been confirmed yet.
type PendingTx interface {
	Hash() common.Hash
	AwaitConfirmation(ctx context.Context) (*Receipt, error)
}

// Writer is the write side of the ledger. Every method signs on behalf of
// the connected account.
type Writer interface {
	CreateRecord(ctx context.Context, args CreateArgs) (PendingTx, error)

	// SubmitDecryptionProof publishes the clear value of a record together
	// with the proof that it decrypts the stored handle. It fails with
	// ErrAlreadyVerified when the record was verified before.
	SubmitDecryptionProof(ctx context.Context, id string, clearValues, proof []byte) (*Receipt, error)
}
