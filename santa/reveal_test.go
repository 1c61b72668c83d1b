package santa

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealAlreadyVerifiedIsIdempotent(t *testing.T) {
	env := newReadyEnv(t)
	snap := snapshot("Xmas", bob, 10, 25)
	snap.IsVerified = true
	snap.RevealedValue = big.NewInt(42)
	env.ledger.put("santa-1", snap)

	for i := 0; i < 2; i++ {
		res, err := env.backend.Reveal(context.Background(), "santa-1")
		require.NoError(t, err)
		assert.Equal(t, RevealResult{Value: 42, Known: true, AlreadyVerified: true}, res)
	}
	_, _, proofCalls := env.cap.counts()
	assert.Zero(t, proofCalls, "no proof for a verified record")
	assert.Zero(t, env.ledger.proofCalls, "no write for a verified record")
	assert.Equal(t, msgAlreadyVerified, env.backend.Status().Current().Message)
}

func TestRevealAlreadyVerifiedNeedsNoInitialization(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(alice)
	snap := snapshot("Xmas", bob, 10, 25)
	snap.IsVerified = true
	snap.RevealedValue = big.NewInt(42)
	env.ledger.put("santa-1", snap)

	res, err := env.backend.Reveal(context.Background(), "santa-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Value)
}

func TestRevealFlow(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Participants: "10", Budget: "25"})
	require.NoError(t, err)

	var observed []RevealState
	env.ledger.submitHook = func(string) {
		observed = append(observed, env.backend.RevealState(id))
	}
	res, err := env.backend.Reveal(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RevealResult{Value: 25, Known: true}, res)
	assert.Equal(t, []RevealState{RevealSubmittingProof}, observed)
	assert.Equal(t, RevealIdle, env.backend.RevealState(id))

	rec, ok := env.backend.Model().Get(id)
	require.True(t, ok)
	assert.True(t, rec.IsVerified)
	require.NotNil(t, rec.RevealedValue)
	assert.Equal(t, uint64(25), *rec.RevealedValue)
	assert.Equal(t, msgRevealed, env.backend.Status().Current().Message)

	// A second reveal is answered from the ledger.
	res, err = env.backend.Reveal(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), res.Value)
	_, _, proofCalls := env.cap.counts()
	assert.Equal(t, 1, proofCalls)
}

func TestRevealConcurrentVerification(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Budget: "25"})
	require.NoError(t, err)

	// Another party verifies the record while our proof is in flight.
	env.ledger.submitHook = func(id string) { env.ledger.markVerified(id, 25) }

	res, err := env.backend.Reveal(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RevealResult{AlreadyVerified: true}, res)
	assert.Equal(t, msgRaceVerified, env.backend.Status().Current().Message)

	require.NoError(t, env.backend.Refresh(context.Background()))
	rec, ok := env.backend.Model().Get(id)
	require.True(t, ok)
	assert.True(t, rec.IsVerified)
}

func TestRevealFailureLeavesRecord(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Budget: "25"})
	require.NoError(t, err)
	env.ledger.handleErr = errBoom

	_, err = env.backend.Reveal(context.Background(), id)
	require.ErrorIs(t, err, ErrDecryptionFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, RevealIdle, env.backend.RevealState(id))
	assert.Equal(t, msgDecryptFailed+"boom", env.backend.Status().Current().Message)

	snap, err := env.ledger.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, snap.IsVerified)
	assert.Zero(t, env.ledger.proofCalls)
}

func TestRevealProofFailure(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Budget: "25"})
	require.NoError(t, err)
	env.cap.proofErr = errBoom

	_, err = env.backend.Reveal(context.Background(), id)
	require.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Zero(t, env.ledger.proofCalls)
}

func TestRevealNotConnected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.backend.Reveal(context.Background(), "santa-1")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestRevealNotReady(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(alice)
	env.ledger.put("santa-1", snapshot("Xmas", alice, 1, 1))

	_, err := env.backend.Reveal(context.Background(), "santa-1")
	require.ErrorIs(t, err, ErrNotReady)
	_, _, proofCalls := env.cap.counts()
	assert.Zero(t, proofCalls)
}

func TestRevealSameRecordOnce(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Budget: "25"})
	require.NoError(t, err)

	started, release := make(chan struct{}), make(chan struct{})
	env.ledger.submitHook = func(string) {
		close(started)
		<-release
	}
	errc := make(chan error, 1)
	go func() {
		_, err := env.backend.Reveal(context.Background(), id)
		errc <- err
	}()
	<-started

	_, err = env.backend.Reveal(context.Background(), id)
	require.ErrorIs(t, err, ErrRevealInProgress)
	assert.Equal(t, RevealSubmittingProof, env.backend.RevealState(id), "rejected reveal must not clear progress")

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, RevealIdle, env.backend.RevealState(id))
	_, _, proofCalls := env.cap.counts()
	assert.Equal(t, 1, proofCalls)
}

func TestRevealMissingValueRefreshes(t *testing.T) {
	env := newReadyEnv(t)
	id, err := env.backend.Submit(context.Background(), Form{Name: "Xmas", Budget: "25"})
	require.NoError(t, err)
	env.cap.dropValues = true
	listCalls := env.ledger.listCalls

	_, err = env.backend.Reveal(context.Background(), id)
	require.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Equal(t, listCalls+1, env.ledger.listCalls)

	rec, ok := env.backend.Model().Get(id)
	require.True(t, ok)
	assert.True(t, rec.IsVerified, "read model must show the proof that reached the ledger")
	assert.Equal(t, RevealIdle, env.backend.RevealState(id))
}
