package ethledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tos-network/gsanta/ledger"
)

// ConfirmFunc is asked before a transaction is signed. Returning an error
// aborts the transaction; ledger.ErrTxRejected marks a user refusal.
type ConfirmFunc func(method string, tx *types.Transaction) error

// WithConfirmation wraps the signer of opts so that confirm runs before
// every signature.
func WithConfirmation(opts *bind.TransactOpts, confirm ConfirmFunc) *bind.TransactOpts {
	signer := opts.Signer
	wrapped := *opts
	wrapped.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		method := "transaction"
		if data := tx.Data(); len(data) >= 4 {
			if m, err := parsedABI.MethodById(data[:4]); err == nil {
				method = m.Name
			}
		}
		if err := confirm(method, tx); err != nil {
			return nil, err
		}
		return signer(from, tx)
	}
	return &wrapped
}

type writer struct {
	c    *Client
	opts bind.TransactOpts
}

func (w *writer) transact(ctx context.Context, method string, params ...interface{}) (*types.Transaction, error) {
	opts := w.opts
	opts.Context = ctx
	tx, err := w.c.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, classify(err)
	}
	w.c.log.Debug("Submitted transaction", "method", method, "hash", tx.Hash(), "from", opts.From)
	return tx, nil
}

func (w *writer) CreateRecord(ctx context.Context, args ledger.CreateArgs) (ledger.PendingTx, error) {
	tx, err := w.transact(ctx, "createBusinessData",
		args.ID,
		args.Name,
		[32]byte(args.Ciphertext),
		args.Proof,
		new(big.Int).SetUint64(args.Participants),
		new(big.Int).SetUint64(args.Budget),
		args.Description,
	)
	if err != nil {
		return nil, err
	}
	return &pendingTx{tx: tx, backend: w.c.backend}, nil
}

// SubmitDecryptionProof sends verifyDecryption and waits for it to be mined.
// A competing verification mined between gas estimation and inclusion makes
// the transaction revert; that case is reported as ErrAlreadyVerified.
func (w *writer) SubmitDecryptionProof(ctx context.Context, id string, clearValues, proof []byte) (*ledger.Receipt, error) {
	tx, err := w.transact(ctx, "verifyDecryption", id, clearValues, proof)
	if err != nil {
		return nil, err
	}
	receipt, err := (&pendingTx{tx: tx, backend: w.c.backend}).AwaitConfirmation(ctx)
	if errors.Is(err, ledger.ErrReverted) {
		snap, rerr := w.c.GetRecord(ctx, id)
		if rerr != nil {
			w.c.log.Debug("Failed to inspect reverted verification", "id", id, "err", rerr)
			return receipt, err
		}
		if snap.IsVerified {
			return receipt, fmt.Errorf("%w: transaction %s reverted", ledger.ErrAlreadyVerified, tx.Hash().Hex())
		}
	}
	return receipt, err
}

type pendingTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (p *pendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

// AwaitConfirmation blocks until the transaction is mined.
func (p *pendingTx) AwaitConfirmation(ctx context.Context) (*ledger.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, classify(err)
	}
	out := &ledger.Receipt{
		TxHash: receipt.TxHash,
		Status: receipt.Status,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return out, ledger.ErrReverted
	}
	return out, nil
}
