// Package store persists positions, the trade journal and portfolio
// snapshots. SQLite by default, PostgreSQL when handed a postgres:// DSN.
// The in-memory ledger stays authoritative; everything here is durability.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/spellbot/internal/types"
)

type Store struct {
	db *gorm.DB
}

// Models

type PositionRecord struct {
	ID         string `gorm:"primaryKey"`
	Symbol     string `gorm:"index"`
	Side       string
	Quantity   decimal.Decimal `gorm:"type:decimal(20,8)"`
	EntryPrice decimal.Decimal `gorm:"type:decimal(20,8)"`
	EntryTime  time.Time
	ExitPrice  decimal.Decimal `gorm:"type:decimal(20,8)"`
	ExitTime   *time.Time
	PnL        decimal.Decimal `gorm:"type:decimal(20,8)"`
	Status     string          `gorm:"index;default:OPEN"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type TradeRecord struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	PositionID string `gorm:"index"`
	Symbol     string `gorm:"index"`
	Action     string // LONG, SHORT, CLOSE_LONG, CLOSE_SHORT
	Quantity   decimal.Decimal `gorm:"type:decimal(20,8)"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Timestamp  time.Time
	CreatedAt  time.Time
}

type Snapshot struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Cash            decimal.Decimal `gorm:"type:decimal(20,8)"`
	TotalPnL        decimal.Decimal `gorm:"type:decimal(20,8)"`
	TotalPnLPercent decimal.Decimal `gorm:"type:decimal(10,4)"`
	CreatedAt       time.Time
}

// New opens the database and migrates the schema
func New(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&PositionRecord{}, &TradeRecord{}, &Snapshot{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// SavePosition records a newly opened position
func (s *Store) SavePosition(pos *types.Position) error {
	rec := &PositionRecord{
		ID:         pos.ID,
		Symbol:     pos.Symbol,
		Side:       string(pos.Side),
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		Status:     string(types.StatusOpen),
	}
	return s.db.Create(rec).Error
}

// ClosePosition marks a stored position CLOSED with its exit figures
func (s *Store) ClosePosition(id string, exitPrice decimal.Decimal, exitTime time.Time, pnl decimal.Decimal) error {
	return s.db.Model(&PositionRecord{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(types.StatusClosed),
		"exit_price": exitPrice,
		"exit_time":  exitTime,
		"pn_l":       pnl,
	}).Error
}

// LogTrade appends one journal entry
func (s *Store) LogTrade(entry types.TradeLog) error {
	rec := &TradeRecord{
		PositionID: entry.PositionID,
		Symbol:     entry.Symbol,
		Action:     entry.Action,
		Quantity:   entry.Quantity,
		Price:      entry.Price,
		Timestamp:  entry.Timestamp,
	}
	return s.db.Create(rec).Error
}

// LoadOpenPositions returns all OPEN positions, used once at startup to
// rehydrate the ledger
func (s *Store) LoadOpenPositions() ([]types.Position, error) {
	var records []PositionRecord
	err := s.db.Where("status = ?", string(types.StatusOpen)).
		Order("entry_time ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}

	positions := make([]types.Position, 0, len(records))
	for _, rec := range records {
		positions = append(positions, types.Position{
			ID:         rec.ID,
			Symbol:     rec.Symbol,
			Side:       types.Side(rec.Side),
			Quantity:   rec.Quantity,
			EntryPrice: rec.EntryPrice,
			EntryTime:  rec.EntryTime,
			Status:     types.StatusOpen,
		})
	}
	return positions, nil
}

// PositionHistory returns stored positions, newest first. Symbol filters
// when non-empty.
func (s *Store) PositionHistory(symbol string, limit int) ([]PositionRecord, error) {
	q := s.db.Order("entry_time DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}

	var records []PositionRecord
	err := q.Find(&records).Error
	return records, err
}

// TradeHistory returns journal entries, newest first
func (s *Store) TradeHistory(symbol string, limit int) ([]TradeRecord, error) {
	q := s.db.Order("timestamp DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}

	var records []TradeRecord
	err := q.Find(&records).Error
	return records, err
}

// SaveSnapshot records one portfolio valuation point
func (s *Store) SaveSnapshot(totalValue, cash, totalPnL, totalPnLPercent decimal.Decimal) error {
	return s.db.Create(&Snapshot{
		TotalValue:      totalValue,
		Cash:            cash,
		TotalPnL:        totalPnL,
		TotalPnLPercent: totalPnLPercent,
	}).Error
}

// SnapshotHistory returns snapshots since the given time, oldest first
func (s *Store) SnapshotHistory(since time.Time) ([]Snapshot, error) {
	var snapshots []Snapshot
	err := s.db.Where("created_at >= ?", since).Order("created_at ASC").Find(&snapshots).Error
	return snapshots, err
}

// Reset wipes all stored rows. Pairs with the ledger's portfolio reset.
func (s *Store) Reset() error {
	for _, model := range []any{&PositionRecord{}, &TradeRecord{}, &Snapshot{}} {
		if err := s.db.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	log.Info().Msg("🔄 Store reset")
	return nil
}

// Close releases the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
