// Package wallet holds the connected account: who is connected, whether the
// connection is live, and the keys used to sign on its behalf.
package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// ConnectionEvent is posted whenever the connection state changes.
type ConnectionEvent struct {
	Account   common.Address
	Connected bool
}

// Session is the push-updated source of the current account. Consumers only
// read it and subscribe to its changes.
type Session struct {
	mu        sync.RWMutex
	account   common.Address
	connected bool

	feed event.Feed
}

// NewSession returns a disconnected session.
func NewSession() *Session {
	return new(Session)
}

// Connect marks account as connected and notifies subscribers.
func (s *Session) Connect(account common.Address) {
	s.mu.Lock()
	s.account, s.connected = account, true
	s.mu.Unlock()

	s.feed.Send(ConnectionEvent{Account: account, Connected: true})
}

// Disconnect drops the connection and notifies subscribers.
func (s *Session) Disconnect() {
	s.mu.Lock()
	account := s.account
	s.account, s.connected = common.Address{}, false
	s.mu.Unlock()

	s.feed.Send(ConnectionEvent{Account: account, Connected: false})
}

// Account returns the connected address and whether a connection exists.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.connected
}

// SubscribeConnection registers ch for connection events.
func (s *Session) SubscribeConnection(ch chan<- ConnectionEvent) event.Subscription {
	return s.feed.Subscribe(ch)
}
