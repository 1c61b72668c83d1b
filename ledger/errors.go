package ledger

import "errors"

var (
	// ErrAlreadyVerified is returned by SubmitDecryptionProof when another
	// party already verified the record.
	ErrAlreadyVerified = errors.New("ledger: data already verified")

	// ErrTxRejected indicates the account holder declined to sign a write.
	ErrTxRejected = errors.New("ledger: transaction rejected by user")

	// ErrRecordNotFound indicates an unknown record id.
	ErrRecordNotFound = errors.New("ledger: record not found")

	// ErrDuplicateRecord indicates a create for an id that already exists.
	ErrDuplicateRecord = errors.New("ledger: record already exists")

	// ErrInvalidProof indicates an input or decryption proof that does not verify.
	ErrInvalidProof = errors.New("ledger: invalid proof")

	// ErrReverted indicates a confirmed transaction whose execution failed.
	ErrReverted = errors.New("ledger: transaction reverted")
)
