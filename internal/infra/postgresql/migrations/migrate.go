package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"dripmail/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createEventsTable(),
		createTemplatesTable(),
		createDripRulesTable(),
		createPendingSendsTable(),
		createAuditRecordsTable(),
	})

	return m.Migrate()
}

func createEventsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_events",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.EventModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events (user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_events_type_occurred ON events (type, occurred_at)`,
				`CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events (occurred_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.EventModel{})
		},
	}
}

func createTemplatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_templates",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.TemplateModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateModel{})
		},
	}
}

func createDripRulesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_drip_rules",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DripRuleModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_drip_rules_event_type ON drip_rules (event_type) WHERE active`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DripRuleModel{})
		},
	}
}

func createPendingSendsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_pending_sends",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PendingSendModel{}); err != nil {
				return err
			}
			indexes := []string{
				// One non-terminal send per (user, template); the scheduler's
				// check-and-create relies on this being atomic.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_sends_user_template_pending ON pending_sends (user_id, template_id) WHERE status = 'PENDING'`,
				// Each (event, rule) pair fires once ever, so lookback passes
				// cannot re-schedule an event whose send already went terminal.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_sends_event_rule ON pending_sends (event_id, rule_id)`,
				`CREATE INDEX IF NOT EXISTS idx_pending_sends_due ON pending_sends (scheduled_for, id) WHERE status = 'PENDING'`,
				`CREATE INDEX IF NOT EXISTS idx_pending_sends_status_created ON pending_sends (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_pending_sends_user_id ON pending_sends (user_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PendingSendModel{})
		},
	}
}

func createAuditRecordsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_audit_records",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AuditRecordModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_audit_records_send_id ON audit_records (send_id)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_records_attempted_at ON audit_records (attempted_at DESC)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AuditRecordModel{})
		},
	}
}
