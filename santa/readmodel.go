package santa

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/gsanta/ledger"
)

// Record is one gift-exchange event as seen by the core.
type Record struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Participants  uint64         `json:"participants"`
	Budget        uint64         `json:"budget"`
	CreatedAt     time.Time      `json:"createdAt"`
	Creator       common.Address `json:"creator"`
	IsVerified    bool           `json:"isVerified"`
	RevealedValue *uint64        `json:"revealedValue,omitempty"`
}

// toUint64 coerces a ledger integer. Absent, negative and oversized values
// become 0.
func toUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}

func recordFromSnapshot(id string, snap *ledger.RecordSnapshot) Record {
	rec := Record{
		ID:           id,
		Name:         snap.Name,
		Description:  snap.Description,
		Participants: toUint64(snap.PublicParticipants),
		Budget:       toUint64(snap.PublicBudget),
		CreatedAt:    time.Unix(int64(toUint64(snap.Timestamp)), 0),
		Creator:      snap.Creator,
		IsVerified:   snap.IsVerified,
	}
	if snap.IsVerified {
		value := toUint64(snap.RevealedValue)
		rec.RevealedValue = &value
	}
	return rec
}

// ReadModel is the in-memory view of all records, rebuilt wholesale on every
// refresh. Owned holds the records created by the connected account.
type ReadModel struct {
	mu      sync.RWMutex
	records []Record
	owned   []Record
	index   map[string]int // record id -> position in records
}

func newReadModel() *ReadModel {
	return &ReadModel{index: make(map[string]int)}
}

// replace installs records as the new content of the model.
func (m *ReadModel) replace(records []Record, owner common.Address, connected bool) {
	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}
	owned := partition(records, owner, connected)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records, m.owned, m.index = records, owned, index
}

// repartition recomputes the owned subset for a new account.
func (m *ReadModel) repartition(owner common.Address, connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned = partition(m.records, owner, connected)
}

// Address equality is byte equality, so differently cased hex spellings of an
// address compare equal once parsed.
func partition(records []Record, owner common.Address, connected bool) []Record {
	if !connected {
		return nil
	}
	var owned []Record
	for _, rec := range records {
		if rec.Creator == owner {
			owned = append(owned, rec)
		}
	}
	return owned
}

// Records returns all records in ledger order.
func (m *ReadModel) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.records...)
}

// Owned returns the records created by the connected account.
func (m *ReadModel) Owned() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.owned...)
}

// Get returns the record with the given id, or false if not found.
func (m *ReadModel) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return Record{}, false
	}
	return m.records[i], true
}

// Has reports whether a record with the given id is known.
func (m *ReadModel) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[id]
	return ok
}

// Len returns the number of records in the model.
func (m *ReadModel) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
