package utils

import (
	"time"

	"gorm.io/gorm"
)

// Recounter repairs denormalized counters against their source of truth.
// models.RecountLikeCounts satisfies this.
type Recounter func(db *gorm.DB) (int64, error)

// StartLikeReconciler runs fix in a loop so like_count drift from crashes
// mid-write is bounded by the interval. Returns a stop function.
func StartLikeReconciler(db *gorm.DB, interval time.Duration, fix Recounter) func() {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				repaired, err := fix(db)
				if err != nil {
					Sugar.Warnf("like count reconcile failed: %v", err)
					continue
				}
				if repaired > 0 {
					Sugar.Infof("like count reconcile repaired %d posts", repaired)
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
