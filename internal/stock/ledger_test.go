package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"orderledger/internal/domain"
	"orderledger/internal/storage/memorystore"
)

func newTestLedger(t *testing.T) (*Ledger, *memorystore.Store) {
	t.Helper()
	mem := memorystore.New()
	ledger := NewLedger(mem.Stock(), zap.NewNop(), otel.Tracer("test"))
	return ledger, mem
}

func seedStock(t *testing.T, mem *memorystore.Store, sizeID string, inStock, reserved int) {
	t.Helper()
	err := mem.Stock().Create(context.Background(), &domain.StockRecord{
		SizeID:           sizeID,
		QuantityInStock:  inStock,
		ReservedQuantity: reserved,
		MinStockLevel:    5,
	})
	require.NoError(t, err)
}

func TestReserve(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	availableAfter, err := ledger.Reserve(ctx, "size-1", 4, "A")
	require.NoError(t, err)
	assert.Equal(t, 6, availableAfter)

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.QuantityInStock)
	assert.Equal(t, 4, rec.ReservedQuantity)
}

func TestReserve_InsufficientStock(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	_, err := ledger.Reserve(ctx, "size-1", 4, "A")
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, "size-1", 7, "B")
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "size-1", insufficient.SizeID)
	assert.Equal(t, 7, insufficient.Requested)
	assert.Equal(t, 6, insufficient.Available)
	assert.Equal(t, 1, insufficient.Shortfall())

	// Failed reservation mutates nothing and appends no movement.
	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.ReservedQuantity)
	movements := mem.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementReserve, movements[0].Kind)
	assert.Equal(t, "A", movements[0].ReferenceNumber)
}

func TestReserve_UnknownSize(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Reserve(context.Background(), "missing", 1, "A")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	ledger, mem := newTestLedger(t)
	seedStock(t, mem, "size-1", 10, 0)

	var invariant *domain.InvariantError
	_, err := ledger.Reserve(context.Background(), "size-1", 0, "A")
	assert.ErrorAs(t, err, &invariant)
	_, err = ledger.Reserve(context.Background(), "size-1", -3, "A")
	assert.ErrorAs(t, err, &invariant)
}

func TestRelease_RestoresAvailability(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	_, err := ledger.Reserve(ctx, "size-1", 4, "A")
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, "size-1", 4, "A_ROLLBACK"))

	available, err := ledger.AvailableQuantity(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ReservedQuantity)
}

func TestRelease_ClampsAtZero(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 2)

	require.NoError(t, ledger.Release(ctx, "size-1", 5, "over"))

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.Equal(t, 10, rec.QuantityInStock)
}

func TestRelease_UnknownSizeIsNotAnError(t *testing.T) {
	ledger, _ := newTestLedger(t)
	assert.NoError(t, ledger.Release(context.Background(), "missing", 1, "ref"))
}

func TestConfirm(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	_, err := ledger.Reserve(ctx, "size-1", 3, "ORD-1")
	require.NoError(t, err)
	require.NoError(t, ledger.Confirm(ctx, "size-1", 3, "ORD-1"))

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.QuantityInStock)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.Equal(t, 7, rec.Available())
}

func TestConfirm_BeyondReservedFailsLoudly(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 2)

	var invariant *domain.InvariantError
	err := ledger.Confirm(ctx, "size-1", 3, "ORD-1")
	require.ErrorAs(t, err, &invariant)

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.QuantityInStock)
	assert.Equal(t, 2, rec.ReservedQuantity)
}

func TestConcurrentReserves_NeverOversell(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Reserve(ctx, "size-1", 1, "race"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.ReservedQuantity)
	assert.GreaterOrEqual(t, rec.Available(), 0)
}

func TestAdjust(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 4)

	require.NoError(t, ledger.Adjust(ctx, "size-1", 20, "recount"))

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.QuantityInStock)
	assert.Equal(t, 4, rec.ReservedQuantity)

	movements := mem.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementAdjust, movements[0].Kind)
	assert.Equal(t, 10, movements[0].Quantity)
}

func TestAdjust_MayNotUndercutReservations(t *testing.T) {
	ledger, mem := newTestLedger(t)
	seedStock(t, mem, "size-1", 10, 4)

	var invariant *domain.InvariantError
	err := ledger.Adjust(context.Background(), "size-1", 3, "")
	assert.ErrorAs(t, err, &invariant)
}

func TestImport_CreatesRecordOnFirstUse(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Import(ctx, "size-new", 25, "initial delivery"))

	rec, err := mem.Stock().Get(ctx, "size-new")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.QuantityInStock)
	assert.Equal(t, 0, rec.ReservedQuantity)
	assert.Equal(t, 5, rec.MinStockLevel)
}

func TestExport_RespectsReservations(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 6)

	var insufficient *domain.InsufficientStockError
	err := ledger.Export(ctx, "size-1", 5, "")
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 4, insufficient.Available)

	require.NoError(t, ledger.Export(ctx, "size-1", 4, "damaged"))
	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.QuantityInStock)
}

func TestRestock(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 7, 0)

	require.NoError(t, ledger.Restock(ctx, "size-1", 3, "CANCEL-ORD-9-size-1", "returned"))

	rec, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.QuantityInStock)
}

func TestReleaseByReferencePrefix(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)
	seedStock(t, mem, "size-2", 10, 0)

	_, err := ledger.Reserve(ctx, "size-1", 2, "ORD-7-size-1")
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, "size-2", 3, "ORD-7-size-2")
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, "size-1", 1, "ORD-8-size-1")
	require.NoError(t, err)

	require.NoError(t, ledger.ReleaseByReferencePrefix(ctx, "ORD-7"))

	rec1, err := mem.Stock().Get(ctx, "size-1")
	require.NoError(t, err)
	rec2, err := mem.Stock().Get(ctx, "size-2")
	require.NoError(t, err)
	assert.Equal(t, 1, rec1.ReservedQuantity, "the ORD-8 hold stays")
	assert.Equal(t, 0, rec2.ReservedQuantity)
}

func TestMovementLog_MatchesMutationOrder(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 0)

	_, err := ledger.Reserve(ctx, "size-1", 2, "A")
	require.NoError(t, err)
	require.NoError(t, ledger.Confirm(ctx, "size-1", 2, "A"))
	_, err = ledger.Reserve(ctx, "size-1", 1, "B")
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, "size-1", 1, "B_ROLLBACK"))

	movements := mem.Movements()
	require.Len(t, movements, 4)
	kinds := []domain.MovementKind{movements[0].Kind, movements[1].Kind, movements[2].Kind, movements[3].Kind}
	assert.Equal(t, []domain.MovementKind{
		domain.MovementReserve,
		domain.MovementConfirm,
		domain.MovementReserve,
		domain.MovementRelease,
	}, kinds)
}

func TestStats(t *testing.T) {
	ledger, mem := newTestLedger(t)
	ctx := context.Background()
	seedStock(t, mem, "size-1", 10, 2) // available 8
	seedStock(t, mem, "size-2", 3, 0)  // available 3, low
	seedStock(t, mem, "size-3", 4, 4)  // available 0, low and out

	stats, err := ledger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 17, stats.TotalStockQuantity)
	assert.Equal(t, 6, stats.TotalReservedQuantity)
	assert.Equal(t, 11, stats.TotalAvailableQuantity)
	assert.Equal(t, 2, stats.LowStockItems)
	assert.Equal(t, 1, stats.OutOfStockItems)

	low, err := ledger.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
}
