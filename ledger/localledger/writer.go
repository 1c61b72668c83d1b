package localledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/gsanta/ledger"
)

// writer signs on behalf of one account.
type writer struct {
	l    *Ledger
	from common.Address
}

func (w *writer) CreateRecord(ctx context.Context, args ledger.CreateArgs) (ledger.PendingTx, error) {
	tx, err := w.l.create(ctx, w.from, args)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *writer) SubmitDecryptionProof(ctx context.Context, id string, clearValues, proof []byte) (*ledger.Receipt, error) {
	return w.l.verify(ctx, w.from, id, clearValues, proof)
}

// pendingTx is a validated record waiting for inclusion. The record becomes
// visible only when AwaitConfirmation succeeds.
type pendingTx struct {
	l     *Ledger
	id    string
	enc   []byte // rlp(storedRecord)
	hash  common.Hash
	delay time.Duration

	mu      sync.Mutex
	receipt *ledger.Receipt
}

func (tx *pendingTx) Hash() common.Hash {
	return tx.hash
}

// AwaitConfirmation waits out the confirmation delay and stores the record.
// A cancelled wait leaves nothing behind. Once stored, further calls return
// the same receipt.
func (tx *pendingTx) AwaitConfirmation(ctx context.Context) (*ledger.Receipt, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.receipt != nil {
		return tx.receipt, nil
	}
	if tx.delay > 0 {
		timer := time.NewTimer(tx.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	receipt, err := tx.l.commitCreate(ctx, tx)
	if err != nil {
		return nil, err
	}
	tx.receipt = receipt
	return receipt, nil
}
