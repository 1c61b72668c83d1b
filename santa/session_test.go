package santa

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestEnsureReadyDisconnected(t *testing.T) {
	env := newTestEnv(t)
	if err := env.backend.EnsureReady(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if initCalls, _, _ := env.cap.counts(); initCalls != 0 {
		t.Fatalf("initialized while disconnected: %d calls", initCalls)
	}
	if have := env.backend.InitState(); have != Uninitialized {
		t.Fatalf("init state mismatch: have %v want %v", have, Uninitialized)
	}
	if have := env.backend.ConnectionState(); have != Disconnected {
		t.Fatalf("connection state mismatch: have %v want %v", have, Disconnected)
	}
}

func TestEnsureReadySingleFlight(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(alice)

	started, release := make(chan struct{}), make(chan struct{})
	env.cap.initHook = func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := env.backend.EnsureReady(context.Background()); err != nil {
			t.Errorf("ensure ready: %v", err)
		}
	}()
	<-started
	if have := env.backend.InitState(); have != Initializing {
		t.Fatalf("init state mismatch: have %v want %v", have, Initializing)
	}
	if err := env.backend.EnsureReady(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	close(release)
	wg.Wait()

	if err := env.backend.EnsureReady(context.Background()); err != nil {
		t.Fatalf("call after ready: %v", err)
	}
	if initCalls, _, _ := env.cap.counts(); initCalls != 1 {
		t.Fatalf("initialize called %d times, want 1", initCalls)
	}
	if have := env.backend.InitState(); have != Ready {
		t.Fatalf("init state mismatch: have %v want %v", have, Ready)
	}
}

func TestEnsureReadyFailureIsRetried(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(alice)
	env.cap.initErr = errBoom

	err := env.backend.EnsureReady(context.Background())
	if !errors.Is(err, ErrInitialization) || !errors.Is(err, errBoom) {
		t.Fatalf("have %v want %v wrapping %v", err, ErrInitialization, errBoom)
	}
	if have := env.backend.InitState(); have != Failed {
		t.Fatalf("init state mismatch: have %v want %v", have, Failed)
	}
	status := env.backend.Status().Current()
	if !status.Visible || status.Phase != PhaseError || status.Message != msgInitFailed {
		t.Fatalf("status mismatch: %+v", status)
	}

	env.cap.mu.Lock()
	env.cap.initErr = nil
	env.cap.mu.Unlock()
	if err := env.backend.EnsureReady(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if have := env.backend.InitState(); have != Ready {
		t.Fatalf("init state mismatch: have %v want %v", have, Ready)
	}
	if initCalls, _, _ := env.cap.counts(); initCalls != 2 {
		t.Fatalf("initialize called %d times, want 2", initCalls)
	}
}

func TestStartFollowsConnection(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.put("santa-1", snapshot("mine", alice, 4, 20))
	env.ledger.put("santa-2", snapshot("theirs", bob, 6, 30))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.backend.Start(ctx)

	env.session.Connect(alice)
	waitFor(t, "initial refresh", func() bool {
		return env.backend.InitState() == Ready && env.backend.Model().Len() == 2
	})
	if owned := env.backend.History(); len(owned) != 1 || owned[0].ID != "santa-1" {
		t.Fatalf("owned subset mismatch: %+v", owned)
	}

	env.session.Disconnect()
	waitFor(t, "owned subset to clear", func() bool { return len(env.backend.History()) == 0 })

	env.session.Connect(bob)
	waitFor(t, "owned subset for bob", func() bool {
		owned := env.backend.History()
		return len(owned) == 1 && owned[0].ID == "santa-2"
	})
	if initCalls, _, _ := env.cap.counts(); initCalls != 1 {
		t.Fatalf("initialize called %d times across reconnects, want 1", initCalls)
	}
}
