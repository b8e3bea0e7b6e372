package services

import (
	"context"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
	"github.com/agendadk/agendasync/internal/logger"
)

// sweeper retires meetings that disappeared from a source's feed. It
// snapshots the published meetings before the batch, crosses off each
// agenda sighted during the batch and unpublishes the remainder.
//
// Sighting happens before any policy skip: a meeting that is present in
// the feed but skipped (closed, draft, unchanged) stays published.
type sweeper struct {
	store   driven.ContentStore
	source  string
	pending map[string]domain.Entity
}

// beginSweep snapshots the published meetings of a source.
func beginSweep(ctx context.Context, store driven.ContentStore, source string) (*sweeper, error) {
	meetings, err := store.QueryPublishedBySource(ctx, domain.KindMeeting, source)
	if err != nil {
		return nil, err
	}

	pending := make(map[string]domain.Entity, len(meetings))
	for _, meeting := range meetings {
		pending[meeting.ExternalID] = meeting
	}

	return &sweeper{store: store, source: source, pending: pending}, nil
}

// Sight crosses an agenda off the pending set.
func (s *sweeper) Sight(agendaID string) {
	delete(s.pending, agendaID)
}

// Finish unpublishes every meeting never sighted during the batch and
// returns how many were retired. Individual failures are logged and do
// not abort the sweep.
func (s *sweeper) Finish(ctx context.Context) int {
	retired := 0
	for agendaID, meeting := range s.pending {
		if err := s.store.SetPublished(ctx, meeting.ID, false); err != nil {
			logger.Warn("Meeting %s cannot be unpublished: %v", agendaID, err)
			continue
		}
		logger.Info("Unpublished meeting %s (absent from source %s)", agendaID, s.source)
		retired++
	}
	return retired
}
