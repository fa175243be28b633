package telemetry

import (
	"context"
	"time"

	"logisticsassist/api/models"
	"logisticsassist/api/store"
)

// Recorder appends access events to the configured store.
type Recorder struct {
	store   store.AccessEventStore
	timeout time.Duration
}

func NewRecorder(s store.AccessEventStore, timeout time.Duration) *Recorder {
	return &Recorder{store: s, timeout: timeout}
}

func (r *Recorder) Record(ctx context.Context, ev models.AccessEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.InsertAccessEvent(ctx, &ev); err != nil {
		if ctx.Err() != nil {
			return fail("record", ReasonTimeout, err)
		}
		return fail("record", ReasonStore, err)
	}
	return nil
}
