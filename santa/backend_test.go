package santa

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/gsanta/confidential"
	"github.com/tos-network/gsanta/ledger"
	"github.com/tos-network/gsanta/santa/santaconfig"
	"github.com/tos-network/gsanta/wallet"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeLedger is an in-memory ledger with hooks for failure injection.
type fakeLedger struct {
	mu        sync.Mutex
	order     []string
	records   map[string]*ledger.RecordSnapshot
	handles   map[string]common.Hash
	recordErr map[string]error

	listHook   func(ctx context.Context) error
	listErr    error
	handleErr  error
	writerErr  error
	createErr  error
	awaitErr   error
	available  bool
	availErr   error
	submitHook func(id string)

	listCalls   int
	createCalls int
	proofCalls  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		records:   make(map[string]*ledger.RecordSnapshot),
		handles:   make(map[string]common.Hash),
		recordErr: make(map[string]error),
		available: true,
	}
}

func (l *fakeLedger) put(id string, snap *ledger.RecordSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[id]; !ok {
		l.order = append(l.order, id)
	}
	l.records[id] = snap
}

func (l *fakeLedger) markVerified(id string, value uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[id].IsVerified = true
	l.records[id].RevealedValue = new(big.Int).SetUint64(value)
}

func (l *fakeLedger) ContractAddress() common.Address { return testContract }

func (l *fakeLedger) ListRecordIDs(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	l.listCalls++
	hook, err := l.listHook, l.listErr
	l.listHook = nil
	l.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...), nil
}

func (l *fakeLedger) GetRecord(ctx context.Context, id string) (*ledger.RecordSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.recordErr[id]; err != nil {
		return nil, err
	}
	snap, ok := l.records[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	cpy := *snap
	return &cpy, nil
}

func (l *fakeLedger) GetEncryptedHandle(ctx context.Context, id string) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handleErr != nil {
		return common.Hash{}, l.handleErr
	}
	return l.handles[id], nil
}

func (l *fakeLedger) CheckAvailability(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available, l.availErr
}

func (l *fakeLedger) WriterFor(account common.Address) (ledger.Writer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writerErr != nil {
		return nil, l.writerErr
	}
	return &fakeWriter{l: l, from: account}, nil
}

type fakeWriter struct {
	l    *fakeLedger
	from common.Address
}

func (w *fakeWriter) CreateRecord(ctx context.Context, args ledger.CreateArgs) (ledger.PendingTx, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	w.l.createCalls++
	if w.l.createErr != nil {
		return nil, w.l.createErr
	}
	return &fakeTx{l: w.l, from: w.from, args: args}, nil
}

func (w *fakeWriter) SubmitDecryptionProof(ctx context.Context, id string, clearValues, proof []byte) (*ledger.Receipt, error) {
	w.l.mu.Lock()
	w.l.proofCalls++
	hook := w.l.submitHook
	w.l.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	values, err := confidential.DecodeClearValues(clearValues)
	if err != nil {
		return nil, err
	}
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	rec, ok := w.l.records[id]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	if rec.IsVerified {
		return nil, ledger.ErrAlreadyVerified
	}
	rec.IsVerified = true
	rec.RevealedValue = new(big.Int).SetUint64(values[0])
	return &ledger.Receipt{TxHash: crypto.Keccak256Hash([]byte(id)), Status: 1}, nil
}

type fakeTx struct {
	l    *fakeLedger
	from common.Address
	args ledger.CreateArgs
}

func (tx *fakeTx) Hash() common.Hash { return crypto.Keccak256Hash([]byte(tx.args.ID)) }

// AwaitConfirmation makes the record visible, as mining would.
func (tx *fakeTx) AwaitConfirmation(ctx context.Context) (*ledger.Receipt, error) {
	tx.l.mu.Lock()
	err := tx.l.awaitErr
	tx.l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	tx.l.put(tx.args.ID, &ledger.RecordSnapshot{
		Name:               tx.args.Name,
		Description:        tx.args.Description,
		PublicParticipants: new(big.Int).SetUint64(tx.args.Participants),
		PublicBudget:       new(big.Int).SetUint64(tx.args.Budget),
		Timestamp:          big.NewInt(time.Now().Unix()),
		Creator:            tx.from,
		RevealedValue:      new(big.Int),
	})
	tx.l.mu.Lock()
	tx.l.handles[tx.args.ID] = tx.args.Ciphertext
	tx.l.mu.Unlock()
	return &ledger.Receipt{TxHash: tx.Hash(), BlockNumber: 1, Status: 1}, nil
}

// fakeCapability keeps clear values in memory, keyed by handle.
type fakeCapability struct {
	mu       sync.Mutex
	initHook func(ctx context.Context) error
	initErr  error

	values     map[common.Hash]uint64
	encryptErr error
	proofErr   error
	dropValues bool // answer proofs without clear values

	initCalls    int
	encryptCalls int
	proofCalls   int
	lastValue    uint64
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{values: make(map[common.Hash]uint64)}
}

func (c *fakeCapability) Initialize(ctx context.Context) error {
	c.mu.Lock()
	c.initCalls++
	hook, err := c.initHook, c.initErr
	c.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return err
}

func (c *fakeCapability) Encrypt(ctx context.Context, contract, user common.Address, value uint64) (*confidential.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encryptCalls++
	c.lastValue = value
	if c.encryptErr != nil {
		return nil, c.encryptErr
	}
	handle := crypto.Keccak256Hash(contract.Bytes(), user.Bytes(), big.NewInt(int64(c.encryptCalls)).Bytes())
	c.values[handle] = value
	return &confidential.Artifact{Ciphertext: handle, Proof: []byte("input-proof")}, nil
}

func (c *fakeCapability) RequestDecryptionProof(ctx context.Context, handles []common.Hash, contract common.Address, submit confidential.SubmitFunc) (*confidential.DecryptionResult, error) {
	c.mu.Lock()
	c.proofCalls++
	err := c.proofErr
	result := &confidential.DecryptionResult{ClearValues: make(map[common.Hash]uint64)}
	var clear []uint64
	for _, h := range handles {
		v, ok := c.values[h]
		if !ok && err == nil {
			err = confidential.ErrUnknownHandle
		}
		result.ClearValues[h] = v
		clear = append(clear, v)
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	result.Encoded = confidential.EncodeClearValues(clear)
	result.Proof = []byte("decryption-proof")
	if err := submit(ctx, result.Encoded, result.Proof); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropValues {
		result.ClearValues = map[common.Hash]uint64{}
	}
	return result, nil
}

func (c *fakeCapability) counts() (initCalls, encryptCalls, proofCalls int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initCalls, c.encryptCalls, c.proofCalls
}

type testEnv struct {
	backend *Backend
	session *wallet.Session
	ledger  *fakeLedger
	cap     *fakeCapability
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		session: wallet.NewSession(),
		ledger:  newFakeLedger(),
		cap:     newFakeCapability(),
	}
	env.backend = New(santaconfig.Defaults, env.session, env.ledger, env.cap)
	t.Cleanup(env.backend.Stop)
	return env
}

// newReadyEnv returns an environment with alice connected and the
// confidential system initialized.
func newReadyEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.session.Connect(alice)
	if err := env.backend.EnsureReady(context.Background()); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}
	return env
}

func snapshot(name string, creator common.Address, participants, budget int64) *ledger.RecordSnapshot {
	return &ledger.RecordSnapshot{
		Name:               name,
		PublicParticipants: big.NewInt(participants),
		PublicBudget:       big.NewInt(budget),
		Timestamp:          big.NewInt(1700000000),
		Creator:            creator,
		RevealedValue:      new(big.Int),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")
