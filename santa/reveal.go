package santa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/gsanta/ledger"
)

// RevealState is the progress of a reveal of one record.
type RevealState uint8

const (
	RevealIdle RevealState = iota
	RevealCheckingOnChain
	RevealAlreadyVerified
	RevealRequestingHandle
	RevealProducingProof
	RevealSubmittingProof
	RevealVerified
	RevealFailed
)

func (s RevealState) String() string {
	switch s {
	case RevealIdle:
		return "idle"
	case RevealCheckingOnChain:
		return "checking"
	case RevealAlreadyVerified:
		return "already-verified"
	case RevealRequestingHandle:
		return "requesting-handle"
	case RevealProducingProof:
		return "producing-proof"
	case RevealSubmittingProof:
		return "submitting-proof"
	case RevealVerified:
		return "verified"
	case RevealFailed:
		return "failed"
	}
	return "unknown"
}

// RevealResult is the outcome of a successful reveal. Known is false when
// another party verified the record first and the value was not observed.
type RevealResult struct {
	Value           uint64 `json:"value"`
	Known           bool   `json:"known"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// RevealState returns the reveal progress of the record with the given id.
func (b *Backend) RevealState(id string) RevealState {
	b.revealMu.Lock()
	defer b.revealMu.Unlock()
	return b.reveals[id]
}

// beginReveal claims the record for one reveal. It fails while another
// reveal of the same record runs.
func (b *Backend) beginReveal(id string) bool {
	b.revealMu.Lock()
	defer b.revealMu.Unlock()
	if _, busy := b.reveals[id]; busy {
		return false
	}
	b.reveals[id] = RevealCheckingOnChain
	return true
}

func (b *Backend) setRevealState(id string, state RevealState) {
	b.revealMu.Lock()
	defer b.revealMu.Unlock()
	if state == RevealIdle {
		delete(b.reveals, id)
		return
	}
	b.reveals[id] = state
}

// Reveal publishes the clear budget of a record. A record that is already
// verified returns its stored value without producing a new proof. A record
// verified by someone else while the proof was being produced counts as a
// success without a value. Only one reveal of a record runs at a time.
func (b *Backend) Reveal(ctx context.Context, id string) (RevealResult, error) {
	account, ok := b.session.Account()
	if !ok {
		b.showError(msgConnectFirst)
		return RevealResult{}, ErrNotConnected
	}
	if !b.beginReveal(id) {
		return RevealResult{}, ErrRevealInProgress
	}
	defer b.setRevealState(id, RevealIdle)

	var (
		start  = time.Now()
		logger = b.opLogger("reveal").New("id", id)
	)
	snap, err := b.ledger.GetRecord(ctx, id)
	if err != nil {
		return RevealResult{}, b.revealFailed(logger, id, err)
	}
	if snap.IsVerified {
		b.setRevealState(id, RevealAlreadyVerified)
		value := toUint64(snap.RevealedValue)
		revealCachedMeter.Mark(1)
		logger.Debug("Record already verified", "value", value)
		b.showSuccess(msgAlreadyVerified)
		return RevealResult{Value: value, Known: true, AlreadyVerified: true}, nil
	}
	if !b.ready() {
		b.showError(msgNotReady)
		return RevealResult{}, ErrNotReady
	}
	writer, err := b.ledger.WriterFor(account)
	if err != nil {
		return RevealResult{}, b.revealFailed(logger, id, err)
	}
	b.setRevealState(id, RevealRequestingHandle)
	handle, err := b.ledger.GetEncryptedHandle(ctx, id)
	if err != nil {
		return RevealResult{}, b.revealFailed(logger, id, err)
	}
	b.setRevealState(id, RevealProducingProof)
	submit := func(ctx context.Context, clearValues, proof []byte) error {
		b.setRevealState(id, RevealSubmittingProof)
		b.status.Show(PhasePending, msgVerifying)
		receipt, err := writer.SubmitDecryptionProof(ctx, id, clearValues, proof)
		if err != nil {
			return err
		}
		logger.Debug("Decryption proof accepted", "tx", receipt.TxHash)
		return nil
	}
	result, err := b.capability.RequestDecryptionProof(ctx, []common.Hash{handle}, b.ledger.ContractAddress(), submit)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyVerified) {
			b.setRevealState(id, RevealVerified)
			revealRaceMeter.Mark(1)
			logger.Info("Record verified concurrently")
			b.showSuccess(msgRaceVerified)
			b.resyncAfter(ctx, logger)
			return RevealResult{AlreadyVerified: true}, nil
		}
		return RevealResult{}, b.revealFailed(logger, id, err)
	}
	value, ok := result.ClearValues[handle]
	if !ok {
		// The proof is on the ledger already.
		b.resyncAfter(ctx, logger)
		return RevealResult{}, b.revealFailed(logger, id, fmt.Errorf("no clear value for handle %s", handle.Hex()))
	}
	b.setRevealState(id, RevealVerified)
	b.resyncAfter(ctx, logger)
	revealOkMeter.Mark(1)
	revealTimer.UpdateSince(start)
	logger.Info("Record revealed", "value", value)
	b.showSuccess(msgRevealed)
	return RevealResult{Value: value, Known: true}, nil
}

func (b *Backend) resyncAfter(ctx context.Context, logger log.Logger) {
	if err := b.Resync(ctx); err != nil {
		logger.Warn("Refresh after reveal failed", "err", err)
	}
}

func (b *Backend) revealFailed(logger log.Logger, id string, err error) error {
	b.setRevealState(id, RevealFailed)
	revealFailMeter.Mark(1)
	logger.Warn("Reveal failed", "err", err)
	b.showError(msgDecryptFailed + err.Error())
	return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
}
