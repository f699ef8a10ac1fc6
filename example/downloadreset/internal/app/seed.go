package app

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// downloadRow is the schema of the example's workload table.
type downloadRow struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	DownloadCount int64
}

func (downloadRow) TableName() string {
	return DownloadsCollection
}

// Seed creates the downloads table and fills it with n records carrying a
// non-zero download count. Existing records are overwritten, so repeated runs
// start from the same state.
func Seed(db *gorm.DB, n int) error {
	if err := db.AutoMigrate(&downloadRow{}); err != nil {
		return fmt.Errorf("failed to create downloads table: %w", err)
	}

	rows := make([]downloadRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, downloadRow{
			ID:            fmt.Sprintf("pkg-%04d", i),
			Name:          fmt.Sprintf("package-%d", i),
			DownloadCount: int64(i%97 + 1),
		})
	}

	err := db.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("failed to seed downloads table: %w", err)
	}
	logger.Infof("Seeded %d download records.", n)
	return nil
}
