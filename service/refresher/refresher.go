/*
	refresher package implements the background job that periodically
	rebuilds the graph and publishes it to a snapshot cache. Cycles never
	overlap: a tick that fires while a cycle is still running is skipped.
*/

package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/releasegraph/snapshot"
)

// Service refreshes the published graph on a timer. it satisfies the
// service.Service interface.
type Service struct {
	config Config

	busy     atomic.Bool
	failures atomic.Int64
	skipped  atomic.Int64
	inFlight sync.WaitGroup
}

// New creates and returns a fully configured refresher service.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("refresher service: config validation failed: %w", err)
	}

	return &Service{config: config}, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return svc.config.Name }

// ConsecutiveFailures returns the number of cycles that failed since the
// last successful one.
func (svc *Service) ConsecutiveFailures() int64 { return svc.failures.Load() }

// SkippedTicks returns the number of ticks skipped due to a running cycle.
func (svc *Service) SkippedTicks() int64 { return svc.skipped.Load() }

// Run seeds the cache from the store, runs a first cycle right away and
// then one cycle per period until the context gets cancelled. A cycle that
// is in flight on shutdown is waited for.
func (svc *Service) Run(ctx context.Context) error {
	svc.config.Logger.WithField("period", svc.config.Period.String()).Info("started service")
	defer svc.config.Logger.Info("stopped service")

	if err := svc.Seed(ctx); err != nil {
		svc.config.Logger.WithField("err", err).Warn("unable to seed graph cache")
	}

	svc.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			svc.inFlight.Wait()

			return nil
		case <-svc.config.Clock.After(svc.config.Period):
			svc.trigger(ctx)
		}
	}
}

// Seed publishes the latest stored snapshot unless the cache already
// holds one. It is a no-op without a store.
func (svc *Service) Seed(ctx context.Context) error {
	if svc.config.Store == nil || svc.config.Cache.Current() != nil {
		return nil
	}

	snap, err := svc.config.Store.Latest(ctx)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	svc.config.Cache.Publish(snap)
	svc.observeGraph(snap)

	svc.config.Logger.WithFields(logrus.Fields{
		"snapshot_id": snap.ID().String(),
		"created_at":  snap.CreatedAt(),
	}).Info("seeded graph cache from store")

	return nil
}

// trigger starts a cycle in the background unless one is already running.
func (svc *Service) trigger(ctx context.Context) {
	if !svc.busy.CompareAndSwap(false, true) {
		svc.skipped.Add(1)
		skippedTicksTotal.WithLabelValues(svc.config.Name).Inc()
		svc.config.Logger.Warn("refresh cycle still running, skipping tick")

		return
	}

	svc.inFlight.Add(1)

	go func() {
		defer svc.inFlight.Done()
		defer svc.busy.Store(false)

		svc.refresh(ctx)
	}()
}

func (svc *Service) refresh(ctx context.Context) {
	startedAt := svc.config.Clock.Now()

	g, err := svc.config.Loader.Load(ctx)
	elapsed := svc.config.Clock.Now().Sub(startedAt)
	refreshDuration.WithLabelValues(svc.config.Name).Observe(elapsed.Seconds())

	if err != nil {
		failures := svc.failures.Add(1)
		refreshTotal.WithLabelValues(svc.config.Name, outcomeFailure).Inc()
		consecutiveFailures.WithLabelValues(svc.config.Name).Set(float64(failures))

		svc.config.Logger.WithFields(logrus.Fields{
			"err":                  err,
			"consecutive_failures": failures,
			"elapsed":              elapsed.String(),
		}).Error("refresh cycle failed, keeping previous graph")

		return
	}

	// Stamped with the tick time; consecutive publishes stay a period apart.
	snap := snapshot.New(g, startedAt)
	svc.config.Cache.Publish(snap)

	svc.failures.Store(0)
	refreshTotal.WithLabelValues(svc.config.Name, outcomeSuccess).Inc()
	consecutiveFailures.WithLabelValues(svc.config.Name).Set(0)
	svc.observeGraph(snap)

	svc.config.Logger.WithFields(logrus.Fields{
		"snapshot_id": snap.ID().String(),
		"releases":    g.Len(),
		"edges":       g.EdgeCount(),
		"elapsed":     elapsed.String(),
	}).Info("published graph")

	if svc.config.Store == nil {
		return
	}

	if err := svc.config.Store.Save(ctx, snap); err != nil {
		svc.config.Logger.WithFields(logrus.Fields{
			"snapshot_id": snap.ID().String(),
			"err":         err,
		}).Warn("unable to persist snapshot")
	}
}

func (svc *Service) observeGraph(snap *snapshot.Snapshot) {
	graphReleases.WithLabelValues(svc.config.Name).Set(float64(snap.Graph().Len()))
	graphEdges.WithLabelValues(svc.config.Name).Set(float64(snap.Graph().EdgeCount()))
}
