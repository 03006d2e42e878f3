// Package stock implements the inventory reservation ledger. Every mutation
// runs under the store's per-size exclusive lock and appends one immutable
// movement, so the movement log replays to the current counters.
package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"orderledger/internal/domain"
	"orderledger/internal/platform/observability"
	"orderledger/internal/storage"
)

const defaultMinStockLevel = 5

// Ledger exposes the stock operations. All methods are safe for concurrent
// use; serialization happens per size inside the store.
type Ledger struct {
	store  storage.StockStore
	logger *zap.Logger
	tracer observability.Tracer
}

func NewLedger(store storage.StockStore, logger *zap.Logger, tracer observability.Tracer) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		tracer: tracer,
	}
}

// Reserve places a hold of qty units on sizeID. It returns the available
// quantity after the hold, or an *domain.InsufficientStockError carrying
// the current availability when the hold cannot be placed. The losing side
// of two concurrent reservations observes the winner's updated counters
// before its own availability check runs.
func (l *Ledger) Reserve(ctx context.Context, sizeID string, qty int, ref string) (int, error) {
	if qty <= 0 {
		return 0, &domain.InvariantError{Msg: fmt.Sprintf("reserve quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("stock.size_id", sizeID),
		attribute.Int("stock.quantity", qty),
	)

	availableAfter := 0
	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		if rec.Available() < qty {
			return nil, &domain.InsufficientStockError{
				SizeID:    sizeID,
				Requested: qty,
				Available: rec.Available(),
			}
		}
		rec.ReservedQuantity += qty
		availableAfter = rec.Available()
		return l.movement(sizeID, domain.MovementReserve, qty, ref, "Reserved for order item"), nil
	})
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			l.logger.Warn("insufficient stock",
				zap.String("size_id", sizeID),
				zap.Int("requested", qty),
				zap.Int("available", insufficient.Available),
			)
		}
		return 0, err
	}

	l.logger.Info("reserved stock",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
		zap.Int("available_after", availableAfter),
	)
	return availableAfter, nil
}

// Release returns qty held units to availability. It is best-effort: the
// reserved counter is clamped at zero rather than failing on over-release,
// and a missing record is not an error. This clamp is the one sanctioned
// exception to the fail-loudly rule, because compensation paths may replay.
func (l *Ledger) Release(ctx context.Context, sizeID string, qty int, ref string) error {
	if qty <= 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("release quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.release")
	defer span.End()

	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		released := qty
		if released > rec.ReservedQuantity {
			released = rec.ReservedQuantity
		}
		rec.ReservedQuantity -= released
		return l.movement(sizeID, domain.MovementRelease, qty, ref, "Released reservation"), nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		l.logger.Warn("release for unknown size", zap.String("size_id", sizeID), zap.String("reference", ref))
		return nil
	}
	if err != nil {
		return err
	}

	l.logger.Info("released stock",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
	)
	return nil
}

// Confirm converts a reservation into a permanent deduction once an order
// is irrevocably fulfilled. Confirming more than is reserved, or more than
// is physically in stock, is a contract violation.
func (l *Ledger) Confirm(ctx context.Context, sizeID string, qty int, ref string) error {
	if qty <= 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("confirm quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.confirm")
	defer span.End()

	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		if rec.ReservedQuantity < qty {
			return nil, &domain.InvariantError{Msg: fmt.Sprintf(
				"confirm %d exceeds reserved %d for size %s", qty, rec.ReservedQuantity, sizeID)}
		}
		if rec.QuantityInStock < qty {
			return nil, &domain.InvariantError{Msg: fmt.Sprintf(
				"confirm %d exceeds stock %d for size %s", qty, rec.QuantityInStock, sizeID)}
		}
		rec.QuantityInStock -= qty
		rec.ReservedQuantity -= qty
		return l.movement(sizeID, domain.MovementConfirm, qty, ref, "Confirmed stock for paid order"), nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("confirmed stock deduction",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
	)
	return nil
}

// Adjust sets the absolute stock quantity for a size, recording the delta.
// The new quantity may not undercut outstanding reservations.
func (l *Ledger) Adjust(ctx context.Context, sizeID string, newQuantity int, note string) error {
	if newQuantity < 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("adjusted quantity must not be negative, got %d", newQuantity)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.adjust")
	defer span.End()

	ref := adjustmentRef("ADJUST", sizeID)
	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		if newQuantity < rec.ReservedQuantity {
			return nil, &domain.InvariantError{Msg: fmt.Sprintf(
				"adjustment to %d undercuts %d reserved units for size %s",
				newQuantity, rec.ReservedQuantity, sizeID)}
		}
		diff := newQuantity - rec.QuantityInStock
		if diff == 0 {
			return nil, nil
		}
		fullNote := fmt.Sprintf("Stock adjustment (%d -> %d)", rec.QuantityInStock, newQuantity)
		if note != "" {
			fullNote += " - " + note
		}
		rec.QuantityInStock = newQuantity
		return l.movement(sizeID, domain.MovementAdjust, abs(diff), ref, fullNote), nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("adjusted stock",
		zap.String("size_id", sizeID),
		zap.Int("new_quantity", newQuantity),
		zap.String("reference", ref),
	)
	return nil
}

// Import adds received units to a size, creating the stock record on first
// import.
func (l *Ledger) Import(ctx context.Context, sizeID string, qty int, note string) error {
	if qty <= 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("import quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.import")
	defer span.End()

	if err := l.ensureRecord(ctx, sizeID); err != nil {
		return err
	}

	ref := adjustmentRef("IMPORT", sizeID)
	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		rec.QuantityInStock += qty
		fullNote := "Stock import"
		if note != "" {
			fullNote += " - " + note
		}
		return l.movement(sizeID, domain.MovementAdjust, qty, ref, fullNote), nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("imported stock",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
	)
	return nil
}

// Export removes units from a size outside the order flow (damage,
// write-off, manual shipment). Reserved units stay untouched, so the
// availability check applies.
func (l *Ledger) Export(ctx context.Context, sizeID string, qty int, note string) error {
	if qty <= 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("export quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.export")
	defer span.End()

	ref := adjustmentRef("EXPORT", sizeID)
	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		if rec.Available() < qty {
			return nil, &domain.InsufficientStockError{
				SizeID:    sizeID,
				Requested: qty,
				Available: rec.Available(),
			}
		}
		rec.QuantityInStock -= qty
		fullNote := "Stock export"
		if note != "" {
			fullNote += " - " + note
		}
		return l.movement(sizeID, domain.MovementAdjust, qty, ref, fullNote), nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("exported stock",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
	)
	return nil
}

// Restock returns units to physical stock after a confirmed deduction was
// reversed, such as a cancellation that fired after the order had been
// confirmed, or a processed return.
func (l *Ledger) Restock(ctx context.Context, sizeID string, qty int, ref, note string) error {
	if qty <= 0 {
		return &domain.InvariantError{Msg: fmt.Sprintf("restock quantity must be positive, got %d", qty)}
	}

	ctx, span := l.tracer.Start(ctx, "ledger.restock")
	defer span.End()

	err := l.store.Update(ctx, sizeID, func(rec *domain.StockRecord) (*domain.StockMovement, error) {
		rec.QuantityInStock += qty
		return l.movement(sizeID, domain.MovementAdjust, qty, ref, note), nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("restocked",
		zap.String("size_id", sizeID),
		zap.Int("quantity", qty),
		zap.String("reference", ref),
	)
	return nil
}

// ReleaseByReferencePrefix releases every reservation whose movement
// reference starts with prefix. Used to free an order's holds when only
// the order reference is known.
func (l *Ledger) ReleaseByReferencePrefix(ctx context.Context, prefix string) error {
	movements, err := l.store.MovementsByReferencePrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, m := range movements {
		if m.Kind != domain.MovementReserve {
			continue
		}
		if err := l.Release(ctx, m.SizeID, m.Quantity, m.ReferenceNumber); err != nil {
			return err
		}
	}
	return nil
}

// AvailableQuantity is an unlocked snapshot read for display purposes. The
// authoritative check always happens inside Reserve. An unknown size reads
// as zero.
func (l *Ledger) AvailableQuantity(ctx context.Context, sizeID string) (int, error) {
	rec, err := l.store.Get(ctx, sizeID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Available(), nil
}

// CheckAvailability reports whether qty units could currently be reserved.
func (l *Ledger) CheckAvailability(ctx context.Context, sizeID string, qty int) (bool, error) {
	available, err := l.AvailableQuantity(ctx, sizeID)
	if err != nil {
		return false, err
	}
	return available >= qty, nil
}

// Stats aggregates counters across all sizes for the reporting surface.
func (l *Ledger) Stats(ctx context.Context) (*domain.StockStats, error) {
	records, err := l.store.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.StockStats{TotalItems: len(records)}
	for _, rec := range records {
		stats.TotalStockQuantity += rec.QuantityInStock
		stats.TotalReservedQuantity += rec.ReservedQuantity
		if rec.IsLowStock() {
			stats.LowStockItems++
		}
		if rec.Available() == 0 {
			stats.OutOfStockItems++
		}
	}
	stats.TotalAvailableQuantity = stats.TotalStockQuantity - stats.TotalReservedQuantity
	if stats.TotalItems > 0 {
		stats.LowStockPercentage = round2(float64(stats.LowStockItems) / float64(stats.TotalItems) * 100)
		stats.OutOfStockPercentage = round2(float64(stats.OutOfStockItems) / float64(stats.TotalItems) * 100)
	}
	return stats, nil
}

// LowStock lists sizes whose availability is under their minimum level.
func (l *Ledger) LowStock(ctx context.Context) ([]domain.StockRecord, error) {
	records, err := l.store.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.StockRecord
	for _, rec := range records {
		if rec.IsLowStock() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *Ledger) ensureRecord(ctx context.Context, sizeID string) error {
	_, err := l.store.Get(ctx, sizeID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return l.store.Create(ctx, &domain.StockRecord{
		SizeID:        sizeID,
		MinStockLevel: defaultMinStockLevel,
	})
}

func (l *Ledger) movement(sizeID string, kind domain.MovementKind, qty int, ref, note string) *domain.StockMovement {
	return &domain.StockMovement{
		ID:              uuid.NewString(),
		SizeID:          sizeID,
		Kind:            kind,
		Quantity:        qty,
		ReferenceNumber: ref,
		Note:            note,
		CreatedAt:       time.Now(),
	}
}

func adjustmentRef(prefix, sizeID string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, sizeID, time.Now().UnixMilli())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
