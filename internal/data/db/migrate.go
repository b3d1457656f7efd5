package db

import (
	"github.com/yungbote/cartledger/internal/domain/carts"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&carts.Cart{},
		&carts.Item{},
	)
}
