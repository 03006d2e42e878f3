package reservation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"orderledger/internal/domain"
	"orderledger/internal/stock"
	"orderledger/internal/storage/memorystore"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memorystore.Store) {
	t.Helper()
	mem := memorystore.New()
	ledger := stock.NewLedger(mem.Stock(), zap.NewNop(), otel.Tracer("test"))
	return NewCoordinator(ledger, zap.NewNop(), otel.Tracer("test")), mem
}

func seedStock(t *testing.T, mem *memorystore.Store, sizeID string, inStock int) {
	t.Helper()
	err := mem.Stock().Create(context.Background(), &domain.StockRecord{
		SizeID:          sizeID,
		QuantityInStock: inStock,
		MinStockLevel:   5,
	})
	require.NoError(t, err)
}

func reservedOf(t *testing.T, mem *memorystore.Store, sizeID string) int {
	t.Helper()
	rec, err := mem.Stock().Get(context.Background(), sizeID)
	require.NoError(t, err)
	return rec.ReservedQuantity
}

func TestReserveBatch(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)
	seedStock(t, mem, "size-2", 5)

	refs, err := c.ReserveBatch(context.Background(), "ORD-1", []Line{
		{SizeID: "size-1", Quantity: 2},
		{SizeID: "size-2", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-1-size-1", "ORD-1-size-2"}, refs)
	assert.Equal(t, 2, reservedOf(t, mem, "size-1"))
	assert.Equal(t, 3, reservedOf(t, mem, "size-2"))
}

func TestReserveBatch_RollsBackOnFailure(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)
	seedStock(t, mem, "size-2", 5)

	_, err := c.ReserveBatch(context.Background(), "ORD-1", []Line{
		{SizeID: "size-1", Quantity: 2},
		{SizeID: "size-2", Quantity: 100},
	})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "size-2", insufficient.SizeID)

	// The first item's hold was compensated; stock is back where it started.
	assert.Equal(t, 0, reservedOf(t, mem, "size-1"))
	assert.Equal(t, 0, reservedOf(t, mem, "size-2"))

	movements := mem.Movements()
	require.Len(t, movements, 2)
	assert.Equal(t, domain.MovementReserve, movements[0].Kind)
	assert.Equal(t, "ORD-1-size-1", movements[0].ReferenceNumber)
	assert.Equal(t, domain.MovementRelease, movements[1].Kind)
	assert.Equal(t, "ORD-1-size-1"+RollbackSuffix, movements[1].ReferenceNumber)
}

func TestReserveBatch_Empty(t *testing.T) {
	c, _ := newTestCoordinator(t)

	refs, err := c.ReserveBatch(context.Background(), "ORD-1", nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestUpdateHold_Increase(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)

	_, err := c.ReserveBatch(context.Background(), "ORD-1", []Line{{SizeID: "size-1", Quantity: 2}})
	require.NoError(t, err)

	require.NoError(t, c.UpdateHold(context.Background(), "ORD-1", "size-1", 2, 5))
	assert.Equal(t, 5, reservedOf(t, mem, "size-1"))
}

func TestUpdateHold_IncreaseFailureKeepsOriginalHold(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)

	_, err := c.ReserveBatch(context.Background(), "ORD-1", []Line{{SizeID: "size-1", Quantity: 2}})
	require.NoError(t, err)

	var insufficient *domain.InsufficientStockError
	err = c.UpdateHold(context.Background(), "ORD-1", "size-1", 2, 50)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, reservedOf(t, mem, "size-1"))
}

func TestUpdateHold_Decrease(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)

	_, err := c.ReserveBatch(context.Background(), "ORD-1", []Line{{SizeID: "size-1", Quantity: 5}})
	require.NoError(t, err)

	require.NoError(t, c.UpdateHold(context.Background(), "ORD-1", "size-1", 5, 2))
	assert.Equal(t, 2, reservedOf(t, mem, "size-1"))
}

func TestUpdateHold_NoChange(t *testing.T) {
	c, mem := newTestCoordinator(t)
	seedStock(t, mem, "size-1", 10)

	require.NoError(t, c.UpdateHold(context.Background(), "ORD-1", "size-1", 3, 3))
	assert.Empty(t, mem.Movements())
}
