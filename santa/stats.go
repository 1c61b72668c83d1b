package santa

import (
	"context"
	"errors"
	"fmt"
)

// Stats summarizes the read model.
type Stats struct {
	TotalEvents       int    `json:"totalEvents"`
	TotalParticipants uint64 `json:"totalParticipants"`
	TotalBudget       uint64 `json:"totalBudget"`
	VerifiedEvents    int    `json:"verifiedEvents"`
	UserEvents        int    `json:"userEvents"`
}

// Stats computes totals over the current read model.
func (b *Backend) Stats() Stats {
	records := b.model.Records()
	stats := Stats{
		TotalEvents: len(records),
		UserEvents:  len(b.model.Owned()),
	}
	for _, rec := range records {
		stats.TotalParticipants += rec.Participants
		stats.TotalBudget += rec.Budget
		if rec.IsVerified {
			stats.VerifiedEvents++
		}
	}
	return stats
}

// History returns the records created by the connected account.
func (b *Backend) History() []Record {
	return b.model.Owned()
}

var errUnavailable = errors.New("contract reports unavailable")

// CheckAvailability asks the ledger whether the confidential system answers.
func (b *Backend) CheckAvailability(ctx context.Context) (bool, error) {
	ok, err := b.ledger.CheckAvailability(ctx)
	if err == nil && !ok {
		err = errUnavailable
	}
	if err != nil {
		b.log.Warn("Availability check failed", "err", err)
		b.showError(msgUnavailable)
		return false, fmt.Errorf("santa: availability check: %w", err)
	}
	b.showSuccess(msgAvailable)
	return true, nil
}
