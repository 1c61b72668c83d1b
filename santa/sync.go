package santa

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Refresh rebuilds the read model from the ledger. It needs a connected
// wallet and a ready confidential system, and returns ErrSyncInProgress
// without fetching anything when another refresh is running.
func (b *Backend) Refresh(ctx context.Context) error {
	if err := b.canSync(); err != nil {
		return err
	}
	b.syncMu.Lock()
	if b.syncCancel != nil {
		b.syncMu.Unlock()
		return ErrSyncInProgress
	}
	ctx, token := b.beginSync(ctx)
	b.syncMu.Unlock()

	return b.runSync(ctx, token)
}

// Resync cancels a running refresh, if any, and starts a new one. It is used
// after a confirmed write, whose effect a refresh started earlier may miss.
func (b *Backend) Resync(ctx context.Context) error {
	if err := b.canSync(); err != nil {
		return err
	}
	b.syncMu.Lock()
	if b.syncCancel != nil {
		b.log.Debug("Cancelling superseded refresh", "token", b.syncToken)
		b.syncCancel()
	}
	ctx, token := b.beginSync(ctx)
	b.syncMu.Unlock()

	return b.runSync(ctx, token)
}

// canSync reports whether the session allows loading records.
func (b *Backend) canSync() error {
	if _, ok := b.session.Account(); !ok {
		return ErrNotConnected
	}
	if !b.ready() {
		return ErrNotReady
	}
	return nil
}

// beginSync registers a new refresh. The caller must hold syncMu.
func (b *Backend) beginSync(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	b.syncToken++
	b.syncCancel = cancel
	return ctx, b.syncToken
}

func (b *Backend) endSync(token uint64) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	if b.syncToken == token && b.syncCancel != nil {
		b.syncCancel()
		b.syncCancel = nil
	}
}

func (b *Backend) runSync(ctx context.Context, token uint64) error {
	defer b.endSync(token)

	start := time.Now()
	ids, err := b.ledger.ListRecordIDs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		syncFatalMeter.Mark(1)
		b.log.Warn("Failed to list records", "err", err)
		b.showError(msgLoadFailed)
		return fmt.Errorf("%w: %w", ErrSyncFatal, err)
	}
	records, skipped, err := b.fetchRecords(ctx, ids)
	if err != nil {
		return err
	}
	account, connected := b.session.Account()

	// Only the latest refresh may install its result.
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	if b.syncToken != token || ctx.Err() != nil {
		b.log.Debug("Discarding superseded refresh", "token", token)
		return context.Canceled
	}
	b.model.replace(records, account, connected)

	syncTimer.UpdateSince(start)
	syncRecordsGauge.Update(int64(len(records)))
	b.log.Info("Refreshed records", "count", len(records), "skipped", skipped, "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

// fetchRecords loads every record in ids, keeping their order. Records that
// fail to load are skipped, as are repeated ids.
func (b *Backend) fetchRecords(ctx context.Context, ids []string) ([]Record, int, error) {
	seen := mapset.NewThreadUnsafeSet()
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.Add(id) {
			unique = append(unique, id)
		}
	}
	var (
		fetched = make([]*Record, len(unique))
		sem     = semaphore.NewWeighted(int64(b.config.FetchConcurrency))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range unique {
		i, id := i, id
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		if err := b.limiter.Wait(gctx); err != nil {
			sem.Release(1)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			snap, err := b.ledger.GetRecord(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				syncSkipMeter.Mark(1)
				b.log.Warn("Skipping record", "id", id, "err", err)
				return nil
			}
			rec := recordFromSnapshot(id, snap)
			fetched[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	records := make([]Record, 0, len(fetched))
	for _, rec := range fetched {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, len(unique) - len(records), nil
}
