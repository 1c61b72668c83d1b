// Package localledger implements the ledger contracts on a local key-value
// store. It mirrors the behaviour of the exchange contract: records are
// immutable apart from verification, input proofs are checked on create and
// decryption proofs on verify, both against the configured KMS address.
package localledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/gsanta/confidential"
	"github.com/tos-network/gsanta/ledger"
	"github.com/tos-network/gsanta/santadb"
)

var (
	recordPrefix = []byte("rec/") // recordPrefix + id -> rlp(storedRecord)
	indexPrefix  = []byte("idx/") // indexPrefix + seq (uint64 big endian) -> id
	seqKey       = []byte("meta/seq")
)

// Config holds the identity of the simulated contract.
type Config struct {
	Contract common.Address // address the records are bound to
	KMS      common.Address // signer of input and decryption proofs

	// ConfirmDelay is how long AwaitConfirmation blocks before a created
	// record is stored.
	ConfirmDelay time.Duration
}

// ApproveFunc is consulted before every write. Returning ledger.ErrTxRejected
// models the account holder declining to sign.
type ApproveFunc func(ctx context.Context, from common.Address, method, id string) error

type storedRecord struct {
	Name         string
	Description  string
	Participants uint64
	Budget       uint64
	Timestamp    uint64
	Creator      common.Address
	Handle       common.Hash
	Verified     bool
	Revealed     uint64
}

// Ledger is a single-contract development ledger.
type Ledger struct {
	db  santadb.KeyValueStore
	cfg Config

	mu      sync.Mutex
	approve ApproveFunc
	now     func() time.Time

	log log.Logger
}

// New creates a ledger persisting to db.
func New(db santadb.KeyValueStore, cfg Config) *Ledger {
	return &Ledger{
		db:  db,
		cfg: cfg,
		now: time.Now,
		log: log.New("module", "localledger", "contract", cfg.Contract),
	}
}

// SetApproval installs the write approval hook. A nil hook approves everything.
func (l *Ledger) SetApproval(fn ApproveFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.approve = fn
}

// ContractAddress implements ledger.Reader.
func (l *Ledger) ContractAddress() common.Address {
	return l.cfg.Contract
}

// ListRecordIDs returns every record id in creation order.
func (l *Ledger) ListRecordIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := l.db.NewIterator(indexPrefix, nil)
	defer it.Release()

	var ids []string
	for it.Next() {
		ids = append(ids, string(it.Value()))
	}
	return ids, it.Error()
}

// GetRecord implements ledger.Reader.
func (l *Ledger) GetRecord(ctx context.Context, id string) (*ledger.RecordSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := l.load(id)
	if err != nil {
		return nil, err
	}
	return &ledger.RecordSnapshot{
		Name:               rec.Name,
		Description:        rec.Description,
		PublicParticipants: new(big.Int).SetUint64(rec.Participants),
		PublicBudget:       new(big.Int).SetUint64(rec.Budget),
		Timestamp:          new(big.Int).SetUint64(rec.Timestamp),
		Creator:            rec.Creator,
		IsVerified:         rec.Verified,
		RevealedValue:      new(big.Int).SetUint64(rec.Revealed),
	}, nil
}

// GetEncryptedHandle implements ledger.Reader.
func (l *Ledger) GetEncryptedHandle(ctx context.Context, id string) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	rec, err := l.load(id)
	if err != nil {
		return common.Hash{}, err
	}
	return rec.Handle, nil
}

// CheckAvailability reports whether the backing store answers.
func (l *Ledger) CheckAvailability(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := l.db.Has(seqKey); err != nil {
		return false, err
	}
	return true, nil
}

// WriterFor implements ledger.Signer.
func (l *Ledger) WriterFor(account common.Address) (ledger.Writer, error) {
	if account == (common.Address{}) {
		return nil, fmt.Errorf("localledger: no account")
	}
	return &writer{l: l, from: account}, nil
}

func (l *Ledger) load(id string) (*storedRecord, error) {
	raw, err := l.db.Get(recordKey(id))
	if err == santadb.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ledger.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rec := new(storedRecord)
	if err := rlp.DecodeBytes(raw, rec); err != nil {
		return nil, fmt.Errorf("localledger: decode %s: %w", id, err)
	}
	return rec, nil
}

func (l *Ledger) checkApproval(ctx context.Context, from common.Address, method, id string) error {
	l.mu.Lock()
	approve := l.approve
	l.mu.Unlock()
	if approve == nil {
		return nil
	}
	return approve(ctx, from, method, id)
}

// create validates a record write and stages it. Nothing is stored until the
// returned transaction is confirmed.
func (l *Ledger) create(ctx context.Context, from common.Address, args ledger.CreateArgs) (*pendingTx, error) {
	if err := l.checkApproval(ctx, from, "createBusinessData", args.ID); err != nil {
		return nil, err
	}
	if args.ID == "" {
		return nil, fmt.Errorf("localledger: empty record id")
	}
	signer, err := confidential.RecoverSigner(confidential.InputProofDigest(l.cfg.Contract, from, args.Ciphertext), args.Proof)
	if err != nil || signer != l.cfg.KMS {
		return nil, fmt.Errorf("%w: input proof for %s", ledger.ErrInvalidProof, args.ID)
	}
	if ok, err := l.db.Has(recordKey(args.ID)); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicateRecord, args.ID)
	}
	enc, err := rlp.EncodeToBytes(&storedRecord{
		Name:         args.Name,
		Description:  args.Description,
		Participants: args.Participants,
		Budget:       args.Budget,
		Timestamp:    uint64(l.now().Unix()),
		Creator:      from,
		Handle:       args.Ciphertext,
	})
	if err != nil {
		return nil, err
	}
	tx := &pendingTx{
		l:     l,
		id:    args.ID,
		enc:   enc,
		hash:  crypto.Keccak256Hash(from.Bytes(), []byte("create"), []byte(args.ID), enc),
		delay: l.cfg.ConfirmDelay,
	}
	l.log.Debug("Staged record", "id", args.ID, "creator", from, "tx", tx.hash)
	return tx, nil
}

// commitCreate stores a staged record. The record id is checked again since
// another write may have taken it after staging.
func (l *Ledger) commitCreate(ctx context.Context, tx *pendingTx) (*ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok, err := l.db.Has(recordKey(tx.id)); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicateRecord, tx.id)
	}
	seq, err := l.nextSeq()
	if err != nil {
		return nil, err
	}
	batch := l.db.NewBatch()
	batch.Put(recordKey(tx.id), tx.enc)
	batch.Put(indexKey(seq), []byte(tx.id))
	batch.Put(seqKey, encodeUint64(seq))
	if err := batch.Write(); err != nil {
		return nil, err
	}
	l.log.Info("Created record", "id", tx.id, "block", seq)
	return l.receipt(tx.hash, seq), nil
}

func (l *Ledger) verify(ctx context.Context, from common.Address, id string, clear, proof []byte) (*ledger.Receipt, error) {
	if err := l.checkApproval(ctx, from, "verifyDecryption", id); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if rec.Verified {
		return nil, ledger.ErrAlreadyVerified
	}
	signer, err := confidential.RecoverSigner(confidential.DecryptionDigest(l.cfg.Contract, []common.Hash{rec.Handle}, clear), proof)
	if err != nil || signer != l.cfg.KMS {
		return nil, fmt.Errorf("%w: decryption proof for %s", ledger.ErrInvalidProof, id)
	}
	vals, err := confidential.DecodeClearValues(clear)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("%w: clear values for %s", ledger.ErrInvalidProof, id)
	}
	rec.Verified, rec.Revealed = true, vals[0]

	enc, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return nil, err
	}
	seq, err := l.nextSeq()
	if err != nil {
		return nil, err
	}
	batch := l.db.NewBatch()
	batch.Put(recordKey(id), enc)
	batch.Put(seqKey, encodeUint64(seq))
	if err := batch.Write(); err != nil {
		return nil, err
	}
	l.log.Info("Verified record", "id", id, "value", vals[0], "block", seq)
	return l.receipt(crypto.Keccak256Hash(from.Bytes(), []byte("verify"), []byte(id), encodeUint64(seq)), seq), nil
}

// nextSeq returns the next block number. Callers hold l.mu.
func (l *Ledger) nextSeq() (uint64, error) {
	raw, err := l.db.Get(seqKey)
	if err == santadb.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("localledger: corrupt sequence")
	}
	return binary.BigEndian.Uint64(raw) + 1, nil
}

func (l *Ledger) receipt(hash common.Hash, seq uint64) *ledger.Receipt {
	return &ledger.Receipt{
		TxHash:      hash,
		BlockNumber: seq,
		Status:      1,
	}
}

func recordKey(id string) []byte {
	key := make([]byte, 0, len(recordPrefix)+len(id))
	key = append(key, recordPrefix...)
	return append(key, id...)
}

func indexKey(seq uint64) []byte {
	key := make([]byte, 0, len(indexPrefix)+8)
	key = append(key, indexPrefix...)
	return append(key, encodeUint64(seq)...)
}

func encodeUint64(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}
