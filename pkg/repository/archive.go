package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/agrimarket/pkg/config"
	"github.com/example/agrimarket/pkg/models"
)

// OrderArchive persists orders that reached a terminal state into MySQL for
// reporting. The in-memory store stays authoritative; the archive is a
// best-effort sink.
type OrderArchive struct {
	db *gorm.DB
}

func NewOrderArchive(cfg *config.MySQLConfig) (*OrderArchive, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.AutoMigrate(&models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &OrderArchive{db: db}, nil
}

// ArchiveOrder upserts a terminal order. Re-archiving the same order id is
// safe; the row is replaced.
func (a *OrderArchive) ArchiveOrder(ctx context.Context, order *models.Order) error {
	if !order.Status.Terminal() {
		return fmt.Errorf("order %s is not terminal (%s)", order.ID, order.Status)
	}
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(order).Error
}

// ListArchivedBySeller returns a seller's archived orders, newest first.
func (a *OrderArchive) ListArchivedBySeller(ctx context.Context, sellerID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := a.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("date DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
