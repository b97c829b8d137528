package session

import (
	"context"
	"errors"

	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// EventSink receives session lifecycle events
type EventSink interface {
	Record(ctx context.Context, event models.SessionEvent) error
}

// NopSink discards events
type NopSink struct{}

func (NopSink) Record(context.Context, models.SessionEvent) error { return nil }

// MultiSink records each event to every sink and joins their errors
type MultiSink []EventSink

func (m MultiSink) Record(ctx context.Context, event models.SessionEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
