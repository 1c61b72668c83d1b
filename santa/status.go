package santa

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
)

// Phase is the stage an action reported through the notifier is in.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status messages.
const (
	msgInitFailed      = "Confidential system initialization failed"
	msgLoadFailed      = "Failed to load data"
	msgConnectFirst    = "Please connect wallet first"
	msgNotReady        = "Confidential system is not ready"
	msgCreating        = "Creating Secret Santa with confidential encryption..."
	msgAwaitingConfirm = "Waiting for transaction confirmation..."
	msgCreated         = "Secret Santa created successfully!"
	msgTxRejected      = "Transaction rejected by user"
	msgSubmitFailed    = "Submission failed: "
	msgAlreadyVerified = "Data already verified on-chain"
	msgVerifying       = "Verifying decryption on-chain..."
	msgRevealed        = "Gift pairing revealed successfully!"
	msgRaceVerified    = "Data is already verified on-chain"
	msgDecryptFailed   = "Decryption failed: "
	msgAvailable       = "Confidential system is available and ready!"
	msgUnavailable     = "Availability check failed"
)

// Status is the single transient status shown to the user.
type Status struct {
	Visible bool   `json:"visible"`
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Token   uint64 `json:"token"`
}

// Notifier holds the current status. Every Show replaces the previous status
// and receives a new token; a dismissal only clears the status it was
// scheduled for.
type Notifier struct {
	mu      sync.Mutex
	current Status
	next    uint64
	timer   *time.Timer
	closed  bool

	feed event.Feed
}

// NewNotifier returns a notifier with nothing visible.
func NewNotifier() *Notifier {
	return new(Notifier)
}

// Show sets the status and returns its token.
func (n *Notifier) Show(phase Phase, message string) uint64 {
	n.mu.Lock()
	n.next++
	n.current = Status{Visible: true, Phase: phase, Message: message, Token: n.next}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	status := n.current
	n.mu.Unlock()

	n.feed.Send(status)
	return status.Token
}

// AutoDismiss clears the status identified by token after delay, unless it
// was replaced in the meantime.
func (n *Notifier) AutoDismiss(token uint64, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || n.current.Token != token {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(delay, func() { n.Dismiss(token) })
}

// Dismiss clears the status if token is still the current one and reports
// whether it did.
func (n *Notifier) Dismiss(token uint64) bool {
	n.mu.Lock()
	if n.current.Token != token || !n.current.Visible {
		n.mu.Unlock()
		return false
	}
	n.current = Status{Phase: PhasePending, Token: token}
	n.timer = nil
	status := n.current
	n.mu.Unlock()

	n.feed.Send(status)
	return true
}

// Current returns the current status.
func (n *Notifier) Current() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// SubscribeStatus registers ch for status changes.
func (n *Notifier) SubscribeStatus(ch chan<- Status) event.Subscription {
	return n.feed.Subscribe(ch)
}

// Close stops the pending dismissal, if any.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
