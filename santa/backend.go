// Package santa implements the orchestration core of the confidential
// gift-exchange: session initialization, record synchronization, and the
// submission and reveal workflows.
package santa

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/tos-network/gsanta/confidential"
	"github.com/tos-network/gsanta/ledger"
	"github.com/tos-network/gsanta/santa/santaconfig"
	"github.com/tos-network/gsanta/wallet"
	"golang.org/x/time/rate"
)

// SessionSource reports the connected account. It is updated externally; the
// core only reads it and listens for changes.
type SessionSource interface {
	Account() (common.Address, bool)
	SubscribeConnection(ch chan<- wallet.ConnectionEvent) event.Subscription
}

// Backend owns the application state shared by the orchestrators: the
// session, the read model and the status.
type Backend struct {
	config     santaconfig.Config
	session    SessionSource
	ledger     ledger.Ledger
	capability confidential.Capability

	status  *Notifier
	model   *ReadModel
	ids     *idGenerator
	limiter *rate.Limiter

	initMu    sync.Mutex
	initState InitState

	syncMu     sync.Mutex
	syncToken  uint64
	syncCancel func()

	submitting atomic.Bool
	formOpen   atomic.Bool

	revealMu sync.Mutex
	reveals  map[string]RevealState

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	log log.Logger
}

// New creates a backend over the given collaborators.
func New(config santaconfig.Config, session SessionSource, l ledger.Ledger, capability confidential.Capability) *Backend {
	config = config.Sanitize()
	limit := rate.Inf
	if config.FetchRate > 0 {
		limit = rate.Limit(config.FetchRate)
	}
	return &Backend{
		config:     config,
		session:    session,
		ledger:     l,
		capability: capability,
		status:     NewNotifier(),
		model:      newReadModel(),
		ids:        newIDGenerator(),
		limiter:    rate.NewLimiter(limit, config.FetchBurst),
		reveals:    make(map[string]RevealState),
		quit:       make(chan struct{}),
		log:        log.New("module", "santa"),
	}
}

// Status returns the status notifier.
func (b *Backend) Status() *Notifier { return b.status }

// Model returns the read model.
func (b *Backend) Model() *ReadModel { return b.model }

// Contract returns the address of the confidential context records live in.
func (b *Backend) Contract() common.Address { return b.ledger.ContractAddress() }

// OpenForm marks the creation form as open.
func (b *Backend) OpenForm() { b.formOpen.Store(true) }

// CloseForm marks the creation form as closed.
func (b *Backend) CloseForm() { b.formOpen.Store(false) }

// FormOpen reports whether the creation form is open.
func (b *Backend) FormOpen() bool { return b.formOpen.Load() }

// opLogger returns a logger tagged with a fresh operation id.
func (b *Backend) opLogger(action string) log.Logger {
	return b.log.New("action", action, "op", uuid.New().String())
}

func (b *Backend) showSuccess(message string) {
	b.status.AutoDismiss(b.status.Show(PhaseSuccess, message), b.config.SuccessDismiss)
}

func (b *Backend) showError(message string) {
	b.status.AutoDismiss(b.status.Show(PhaseError, message), b.config.ErrorDismiss)
}
