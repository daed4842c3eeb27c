package service

import (
	"context"
	"time"

	"solarview/internal/logger"
	"solarview/internal/push"
	"solarview/internal/store"
)

// FeedService substitutes for the broker in mock mode: on every tick it
// reloads the topology from disk, applies fixed telemetry to each panel and
// queues a broadcast. Keeps the viewer hot-reloading during calibration
// when no gateway hardware is wired up yet.
type FeedService struct {
	store   *store.Store
	hub     *push.Manager
	watts   float64
	voltage float64
	log     *logger.Logger
}

func NewFeedService(st *store.Store, hub *push.Manager, watts, voltage float64, log *logger.Logger) *FeedService {
	return &FeedService{
		store:   st,
		hub:     hub,
		watts:   watts,
		voltage: voltage,
		log:     log,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *FeedService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.store.Load(); err != nil {
				s.log.Errorw("mock feed reload failed", "err", err)
				continue
			}
			s.store.ApplyMockData(s.watts, s.voltage)
			s.hub.QueueUpdate(s.store.Snapshot())
		}
	}
}
