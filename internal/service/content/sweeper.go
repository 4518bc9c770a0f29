package content

import (
	"context"
	"os"
	"time"

	"portfoliogo/internal/logger"
	"portfoliogo/internal/worker"
)

// DefaultAssetSweepInterval is used when config supplies no interval.
const DefaultAssetSweepInterval = 6 * time.Hour

// StartAssetSweeper periodically drops asset records whose stored file no
// longer exists on disk. The sweep itself runs on the shared worker pool.
func (s *Service) StartAssetSweeper(ctx context.Context, interval time.Duration, pool *worker.Pool, log *logger.Logger) {
	if interval <= 0 {
		interval = DefaultAssetSweepInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep := func() { s.sweepAssets(ctx, log) }
				if pool == nil {
					sweep()
				} else if err := pool.Submit(sweep); err != nil {
					return
				}
			}
		}
	}()
}

func (s *Service) sweepAssets(ctx context.Context, log *logger.Logger) {
	assets, err := s.ListAssets(ctx)
	if err != nil {
		log.Warn("asset sweep: list failed", "error", err)
		return
	}
	removed := 0
	for _, asset := range assets {
		if _, err := os.Stat(asset.StoredPath); !os.IsNotExist(err) {
			continue
		}
		if err := s.DeleteAsset(ctx, asset.ID); err != nil {
			log.Warn("asset sweep: delete failed", "asset_id", asset.ID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("asset sweep removed orphaned records", "count", removed)
	}
}
