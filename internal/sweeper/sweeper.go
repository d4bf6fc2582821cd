// Package sweeper periodically reclaims stale scratch assets and purges
// expired history rows.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// AssetReclaimer removes scratch assets older than the TTL.
type AssetReclaimer interface {
	Reclaim(olderThan time.Duration) (int, error)
}

// HistoryPurger deletes exchanges older than the TTL.
type HistoryPurger interface {
	Purge(olderThan time.Duration) (int64, error)
}

// Worker runs the sweep on an interval.
type Worker struct {
	assets     AssetReclaimer
	history    HistoryPurger // may be nil
	assetTTL   time.Duration
	historyTTL time.Duration
	interval   time.Duration
	stopChan   chan struct{}
	ticker     *time.Ticker
}

// New creates a sweeper. history may be nil to skip purging.
func New(assets AssetReclaimer, history HistoryPurger, assetTTL, historyTTL, interval time.Duration) *Worker {
	return &Worker{
		assets:     assets,
		history:    history,
		assetTTL:   assetTTL,
		historyTTL: historyTTL,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. The first pass runs right
// away so restarts do not wait a full interval to clean up.
func (w *Worker) Start(ctx context.Context) {
	w.ticker = time.NewTicker(w.interval)

	go func() {
		log.Info().Dur("interval", w.interval).Msg("Sweeper started")
		w.sweep()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Sweeper context cancelled, stopping")
				return
			case <-w.stopChan:
				log.Info().Msg("Sweeper stopped")
				return
			case <-w.ticker.C:
				w.sweep()
			}
		}
	}()
}

// Stop stops the sweep loop.
func (w *Worker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopChan)
}

func (w *Worker) sweep() {
	removed, err := w.assets.Reclaim(w.assetTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reclaim assets")
	} else if removed > 0 {
		log.Info().Int("removed", removed).Msg("Reclaimed stale assets")
	}

	if w.history == nil {
		return
	}
	purged, err := w.history.Purge(w.historyTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge history")
	} else if purged > 0 {
		log.Info().Int64("purged", purged).Msg("Purged expired history")
	}
}
