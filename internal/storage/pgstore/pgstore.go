// Package pgstore is the Postgres storage adapter. Stock mutations run in a
// transaction that takes a SELECT ... FOR UPDATE row lock on the single
// size, which realizes the per-size exclusive lock the ledger requires. A
// partial unique index keeps at most one unexecuted transition per
// (order_id, transition_type).
package pgstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"orderledger/internal/domain"
	"orderledger/internal/storage"
)

type Store struct {
	db *gorm.DB
}

// Open connects, migrates the schema, and creates the partial unique index
// that enforces duplicate-scheduling protection at the storage layer.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&domain.StockRecord{},
		&domain.StockMovement{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.PendingTransition{},
	); err != nil {
		return nil, err
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pending_transition
		 ON pending_transitions (order_id, transition_type)
		 WHERE NOT is_executed`,
	).Error; err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Stock() storage.StockStore            { return &stockStore{db: s.db} }
func (s *Store) Orders() storage.OrderStore           { return &orderStore{db: s.db} }
func (s *Store) Transitions() storage.TransitionStore { return &transitionStore{db: s.db} }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	default:
		return &domain.TransientError{Err: err}
	}
}

type stockStore struct {
	db *gorm.DB
}

var _ storage.StockStore = (*stockStore)(nil)

func (s *stockStore) Get(ctx context.Context, sizeID string) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := s.db.WithContext(ctx).Where("size_id = ?", sizeID).First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *stockStore) Create(ctx context.Context, rec *domain.StockRecord) error {
	return translate(s.db.WithContext(ctx).Create(rec).Error)
}

func (s *stockStore) Update(ctx context.Context, sizeID string, fn storage.StockMutator) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec domain.StockRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("size_id = ?", sizeID).
			First(&rec).Error
		if err != nil {
			return translate(err)
		}

		movement, err := fn(&rec)
		if err != nil {
			// Business failure: abort the transaction, nothing written.
			return err
		}

		if err := tx.Save(&rec).Error; err != nil {
			return translate(err)
		}
		if movement != nil {
			if err := tx.Create(movement).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (s *stockStore) All(ctx context.Context) ([]domain.StockRecord, error) {
	var out []domain.StockRecord
	err := s.db.WithContext(ctx).Order("size_id").Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *stockStore) MovementsByReferencePrefix(ctx context.Context, prefix string) ([]domain.StockMovement, error) {
	var out []domain.StockMovement
	err := s.db.WithContext(ctx).
		Where("reference_number LIKE ?", prefix+"%").
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

type orderStore struct {
	db *gorm.DB
}

var _ storage.OrderStore = (*orderStore)(nil)

func (s *orderStore) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *orderStore) Create(ctx context.Context, order *domain.Order) error {
	return translate(s.db.WithContext(ctx).Create(order).Error)
}

func (s *orderStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	res := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *orderStore) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	res := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type transitionStore struct {
	db *gorm.DB
}

var _ storage.TransitionStore = (*transitionStore)(nil)

func (s *transitionStore) Create(ctx context.Context, t *domain.PendingTransition) error {
	err := s.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateTransition
	}
	return translate(err)
}

func (s *transitionStore) ExistsPending(ctx context.Context, orderID string, tt domain.TransitionType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.PendingTransition{}).
		Where("order_id = ? AND transition_type = ? AND is_executed = ?", orderID, tt, false).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *transitionStore) Due(ctx context.Context, now time.Time) ([]domain.PendingTransition, error) {
	var out []domain.PendingTransition
	err := s.db.WithContext(ctx).
		Where("is_executed = ? AND scheduled_at <= ?", false, now).
		Order("scheduled_at").
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *transitionStore) PendingByOrderAndType(ctx context.Context, orderID string, tt domain.TransitionType) ([]domain.PendingTransition, error) {
	var out []domain.PendingTransition
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND transition_type = ? AND is_executed = ?", orderID, tt, false).
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *transitionStore) MarkExecuted(ctx context.Context, id string, executedAt time.Time, result string) error {
	res := s.db.WithContext(ctx).Model(&domain.PendingTransition{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_executed":      true,
			"executed_at":      executedAt,
			"execution_result": result,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
