package migration

import (
	accountdomain "github.com/smallbiznis/faktura/internal/account/domain"
	"github.com/smallbiznis/faktura/internal/config"
	contractdomain "github.com/smallbiznis/faktura/internal/contract/domain"
	"github.com/smallbiznis/faktura/internal/filestore"
	invoicedomain "github.com/smallbiznis/faktura/internal/invoice/domain"
	"github.com/smallbiznis/faktura/internal/position"
	prepaiddomain "github.com/smallbiznis/faktura/internal/prepaid/domain"
	taxdomain "github.com/smallbiznis/faktura/internal/tax/domain"
	trackerdomain "github.com/smallbiznis/faktura/internal/tracker/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		// Versioned migrations are written for postgres; the other
		// dialects are for local setups and derive the schema from
		// the models.
		return AutoMigrate(conn)
	}),
)

// AutoMigrate derives the schema directly from the persistence models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&accountdomain.Account{},
		&taxdomain.Country{},
		&position.Position{},
		&position.ContractPosition{},
		&position.InvoicePosition{},
		&contractdomain.Contract{},
		&invoicedomain.InvoiceType{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceDunning{},
		&invoicedomain.InvoiceReminder{},
		&trackerdomain.Tracker{},
		&trackerdomain.TrackerItem{},
		&trackerdomain.TrackerInstance{},
		&trackerdomain.TrackerSample{},
		&prepaiddomain.PrepaidHistory{},
		&filestore.File{},
	)
}
