// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"

	"huntparty/logger"
	"huntparty/models"

	"gorm.io/gorm"
)

// RunMigrations creates or updates every table the server uses.
func RunMigrations(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Party{},
		&models.Membership{},
		&models.Application{},
		&models.ActivityEvent{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	logger.Success("All migrations completed")
	return nil
}

// createIndexes adds the indexes gorm tags cannot express.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Leaderboard tie-break order
		"CREATE INDEX IF NOT EXISTS idx_users_points ON users(total_points DESC, points_updated_at ASC, id ASC)",
		// Activity feed paging
		"CREATE INDEX IF NOT EXISTS idx_activity_events_party_id_desc ON activity_events(party_id, id DESC)",
		// Member lookups by party
		"CREATE INDEX IF NOT EXISTS idx_memberships_party_active ON memberships(party_id, is_active)",
		// One active party per user
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_one_active ON memberships(user_id) WHERE is_active",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
