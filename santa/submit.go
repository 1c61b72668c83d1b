package santa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/gsanta/ledger"
)

// Form is the user input for a new record. Numbers are kept as typed and
// parsed on submission.
type Form struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Participants string `json:"participants"`
	Budget       string `json:"budget"`
}

// parseCount reads the leading decimal integer of s. Input without one,
// negative numbers and values that overflow yield 0.
func parseCount(s string) uint64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	if strings.HasPrefix(s, "-") {
		return 0
	}
	s = strings.TrimPrefix(s, "+")

	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := uint64(c - '0')
		if n > (^uint64(0)-d)/10 {
			return 0
		}
		n = n*10 + d
	}
	return n
}

// idGenerator hands out record ids derived from the wall clock, strictly
// increasing within the process.
type idGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{now: time.Now}
}

func (g *idGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("santa-%d", ms)
}

// Submit encrypts the budget of form, creates the record on the ledger and
// waits for confirmation. On success the read model is refreshed, the form
// closed and the new record id returned.
func (b *Backend) Submit(ctx context.Context, form Form) (string, error) {
	account, ok := b.session.Account()
	if !ok {
		b.showError(msgConnectFirst)
		return "", ErrNotConnected
	}
	if !b.submitting.CompareAndSwap(false, true) {
		return "", ErrSubmitInProgress
	}
	defer b.submitting.Store(false)

	if !b.ready() {
		b.showError(msgNotReady)
		return "", ErrNotReady
	}
	var (
		start        = time.Now()
		logger       = b.opLogger("submit")
		participants = parseCount(form.Participants)
		budget       = parseCount(form.Budget)
	)
	id := b.ids.next()
	for b.model.Has(id) {
		id = b.ids.next()
	}
	logger = logger.New("id", id)
	b.status.Show(PhasePending, msgCreating)

	writer, err := b.ledger.WriterFor(account)
	if err != nil {
		return "", b.submitFailed(logger, err)
	}
	artifact, err := b.capability.Encrypt(ctx, b.ledger.ContractAddress(), account, budget)
	if err != nil {
		return "", b.submitFailed(logger, err)
	}
	tx, err := writer.CreateRecord(ctx, ledger.CreateArgs{
		ID:           id,
		Name:         form.Name,
		Ciphertext:   artifact.Ciphertext,
		Proof:        artifact.Proof,
		Participants: participants,
		Budget:       budget,
		Description:  form.Description,
	})
	if err != nil {
		return "", b.submitFailed(logger, err)
	}
	logger.Debug("Record submitted", "tx", tx.Hash())
	b.status.Show(PhasePending, msgAwaitingConfirm)

	receipt, err := tx.AwaitConfirmation(ctx)
	if err != nil {
		return "", b.submitFailed(logger, err)
	}
	submitOkMeter.Mark(1)
	submitTimer.UpdateSince(start)
	logger.Info("Record created", "tx", receipt.TxHash, "block", receipt.BlockNumber)
	b.showSuccess(msgCreated)

	if err := b.Resync(ctx); err != nil {
		logger.Warn("Refresh after submission failed", "err", err)
	}
	b.CloseForm()
	return id, nil
}

func (b *Backend) submitFailed(logger log.Logger, err error) error {
	if errors.Is(err, ledger.ErrTxRejected) {
		submitRejectMeter.Mark(1)
		logger.Info("Transaction rejected by user")
		b.showError(msgTxRejected)
		return fmt.Errorf("%w: %w", ErrTxRejected, err)
	}
	submitFailMeter.Mark(1)
	logger.Warn("Submission failed", "err", err)
	b.showError(msgSubmitFailed + err.Error())
	return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
}
