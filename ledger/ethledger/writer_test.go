package ethledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/gsanta/ledger"
)

func newTestWriter(t *testing.T, confirm ConfirmFunc) (ledger.Writer, *contractService) {
	t.Helper()
	client, svc := newTestClient(t)
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}
	opts.GasPrice = big.NewInt(1)
	if confirm != nil {
		opts = WithConfirmation(opts, confirm)
	}
	client.SetTransactor(opts)

	w, err := client.WriterFor(opts.From)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	return w, svc
}

func createArgs(id string) ledger.CreateArgs {
	return ledger.CreateArgs{
		ID:           id,
		Name:         "Xmas",
		Ciphertext:   testHandle,
		Proof:        []byte{0x01},
		Participants: 10,
		Budget:       25,
		Description:  "office",
	}
}

func TestWriterCreateRecord(t *testing.T) {
	w, svc := newTestWriter(t, nil)
	ctx := context.Background()

	tx, err := w.CreateRecord(ctx, createArgs("santa-7"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	receipt, err := tx.AwaitConfirmation(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if receipt.TxHash != tx.Hash() || receipt.Status != types.ReceiptStatusSuccessful || receipt.BlockNumber != 7 {
		t.Fatalf("receipt mismatch: %+v", receipt)
	}

	sent := svc.sentTxs()
	if len(sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(sent))
	}
	if *sent[0].To() != testContract {
		t.Fatalf("transaction to %s, want %s", sent[0].To().Hex(), testContract.Hex())
	}
	method, params, err := decodeCall(sent[0].Data())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if method.Name != "createBusinessData" || params[0].(string) != "santa-7" || params[4].(*big.Int).Uint64() != 10 || params[5].(*big.Int).Uint64() != 25 {
		t.Fatalf("call mismatch: %s %v", method.Name, params)
	}
}

func TestWriterCreateRevertReason(t *testing.T) {
	w, svc := newTestWriter(t, nil)
	_, err := w.CreateRecord(context.Background(), createArgs("dup"))
	if !errors.Is(err, ledger.ErrDuplicateRecord) {
		t.Fatalf("have %v want %v", err, ledger.ErrDuplicateRecord)
	}
	if n := len(svc.sentTxs()); n != 0 {
		t.Fatalf("sent %d transactions after a revert", n)
	}
}

func TestWriterFailedReceipt(t *testing.T) {
	w, _ := newTestWriter(t, nil)
	ctx := context.Background()

	tx, err := w.CreateRecord(ctx, createArgs("failing"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	receipt, err := tx.AwaitConfirmation(ctx)
	if !errors.Is(err, ledger.ErrReverted) {
		t.Fatalf("have %v want %v", err, ledger.ErrReverted)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusFailed {
		t.Fatalf("receipt mismatch: %+v", receipt)
	}
}

func TestWriterConfirmation(t *testing.T) {
	var asked []string
	decline := true
	w, svc := newTestWriter(t, func(method string, tx *types.Transaction) error {
		asked = append(asked, method)
		if decline {
			return ledger.ErrTxRejected
		}
		return nil
	})
	ctx := context.Background()

	_, err := w.CreateRecord(ctx, createArgs("santa-7"))
	if !errors.Is(err, ledger.ErrTxRejected) {
		t.Fatalf("have %v want %v", err, ledger.ErrTxRejected)
	}
	if n := len(svc.sentTxs()); n != 0 {
		t.Fatalf("sent %d transactions after refusal", n)
	}

	decline = false
	if _, err := w.CreateRecord(ctx, createArgs("santa-7")); err != nil {
		t.Fatalf("create after approval: %v", err)
	}
	if n := len(svc.sentTxs()); n != 1 {
		t.Fatalf("sent %d transactions, want 1", n)
	}
	if len(asked) != 2 || asked[0] != "createBusinessData" || asked[1] != "createBusinessData" {
		t.Fatalf("confirmation prompts mismatch: %v", asked)
	}
}

func TestWriterSubmitDecryptionProof(t *testing.T) {
	tests := []struct {
		id      string
		want    error
		notWant error
	}{
		{id: "open"},
		{id: "done", want: ledger.ErrAlreadyVerified},
		{id: "raced", want: ledger.ErrAlreadyVerified},
		{id: "broken", want: ledger.ErrReverted, notWant: ledger.ErrAlreadyVerified},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w, _ := newTestWriter(t, nil)
			receipt, err := w.SubmitDecryptionProof(context.Background(), tt.id, []byte{0x2a}, []byte{0x01})
			if tt.want == nil {
				if err != nil {
					t.Fatalf("submit: %v", err)
				}
				if receipt.Status != types.ReceiptStatusSuccessful {
					t.Fatalf("receipt mismatch: %+v", receipt)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("have %v want %v", err, tt.want)
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Fatalf("error %v must not match %v", err, tt.notWant)
			}
		})
	}
}
