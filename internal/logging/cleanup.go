package logging

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/models"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than retention.
func StartCleanup(db *gorm.DB, retention time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := PurgeBefore(db, time.Now().Add(-retention))
				if err != nil {
					slog.Error("log cleanup failed", "action", "log_cleanup", "error", err)
				} else if deleted > 0 {
					slog.Info("log cleanup completed", "deleted", deleted)
				}
			case <-done:
				return
			}
		}
	}()
}

func PurgeBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}
