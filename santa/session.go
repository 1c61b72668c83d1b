package santa

import (
	"context"
	"errors"
	"fmt"

	"github.com/tos-network/gsanta/wallet"
)

// ConnectionState is whether a wallet is connected.
type ConnectionState uint8

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// InitState is the initialization state of the confidential system.
type InitState uint8

const (
	Uninitialized InitState = iota
	Initializing
	Ready
	Failed
)

func (s InitState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ConnectionState returns the current connection state.
func (b *Backend) ConnectionState() ConnectionState {
	if _, ok := b.session.Account(); ok {
		return Connected
	}
	return Disconnected
}

// InitState returns the current initialization state.
func (b *Backend) InitState() InitState {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	return b.initState
}

// EnsureReady initializes the confidential system. It does nothing while
// disconnected, while an initialization is running, or once the system is
// ready. A failed initialization may be retried.
func (b *Backend) EnsureReady(ctx context.Context) error {
	if _, ok := b.session.Account(); !ok {
		return nil
	}
	b.initMu.Lock()
	if b.initState == Ready || b.initState == Initializing {
		b.initMu.Unlock()
		return nil
	}
	b.initState = Initializing
	b.initMu.Unlock()

	err := b.capability.Initialize(ctx)

	b.initMu.Lock()
	if err != nil {
		b.initState = Failed
	} else {
		b.initState = Ready
	}
	b.initMu.Unlock()

	if err != nil {
		initFailMeter.Mark(1)
		b.log.Error("Confidential system initialization failed", "err", err)
		b.showError(msgInitFailed)
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	b.log.Info("Confidential system ready")
	return nil
}

func (b *Backend) ready() bool {
	return b.InitState() == Ready
}

// Start follows the wallet session: every connect initializes the
// confidential system and refreshes the records, every disconnect drops the
// owned subset. The loop runs until Stop is called or ctx is done.
func (b *Backend) Start(ctx context.Context) {
	ch := make(chan wallet.ConnectionEvent, 4)
	sub := b.session.SubscribeConnection(ch)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer sub.Unsubscribe()

		if account, ok := b.session.Account(); ok {
			b.onConnect(ctx, wallet.ConnectionEvent{Account: account, Connected: true})
		}
		for {
			select {
			case ev := <-ch:
				if ev.Connected {
					b.onConnect(ctx, ev)
				} else {
					b.log.Info("Wallet disconnected", "account", ev.Account)
					b.model.repartition(ev.Account, false)
				}
			case err := <-sub.Err():
				if err != nil {
					b.log.Warn("Connection subscription failed", "err", err)
				}
				return
			case <-ctx.Done():
				return
			case <-b.quit:
				return
			}
		}
	}()
}

func (b *Backend) onConnect(ctx context.Context, ev wallet.ConnectionEvent) {
	b.log.Info("Wallet connected", "account", ev.Account)
	b.model.repartition(ev.Account, true)
	if err := b.EnsureReady(ctx); err != nil {
		return
	}
	if err := b.Refresh(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		b.log.Debug("Refresh after connect failed", "err", err)
	}
}

// Stop terminates the session loop and any pending status dismissal.
func (b *Backend) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	b.wg.Wait()
	b.status.Close()
}
