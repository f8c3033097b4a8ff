package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solemart/solemart/internal/ledger"
)

type memoryOrders struct {
	orders map[int64]Order
	nextID int64
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[int64]Order)}
}

func (r *memoryOrders) Create(ctx context.Context, order Order) (Order, error) {
	r.nextID++
	order.ID = r.nextID
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
		order.Lines[i].OrderID = order.ID
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *memoryOrders) Get(ctx context.Context, id int64) (Order, error) {
	if order, ok := r.orders[id]; ok {
		return order, nil
	}
	return Order{}, ErrNotFound
}

func (r *memoryOrders) List(ctx context.Context, customerID string) ([]Order, error) {
	var out []Order
	for _, order := range r.orders {
		if customerID != "" && order.CustomerID != customerID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *memoryOrders) UpdateStatus(ctx context.Context, id int64, status OrderStatus) error {
	order, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}

type stockSpy struct {
	inputs []ledger.AdjustStockInput
	err    error
}

func (s *stockSpy) AdjustStock(ctx context.Context, input ledger.AdjustStockInput) (ledger.AdjustStockResult, error) {
	s.inputs = append(s.inputs, input)
	return ledger.AdjustStockResult{}, s.err
}

type priceStub struct {
	prices map[int64]float64
}

func (p *priceStub) Ref(ctx context.Context, productID int64) (ledger.ProductRef, error) {
	price, ok := p.prices[productID]
	if !ok {
		return ledger.ProductRef{}, ledger.ErrRecordNotFound
	}
	return ledger.ProductRef{ID: productID, Price: price}, nil
}

func TestCreateOrderComputesTotalsAndBooksSales(t *testing.T) {
	repo := newMemoryOrders()
	stock := &stockSpy{}
	prices := &priceStub{prices: map[int64]float64{1: 40, 2: 25}}
	svc := NewService(repo, stock, prices, nil, nil)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderInput{
		CustomerID: "cust-9",
		Lines: []LineInput{
			{ProductID: 1, Size: "42", Quantity: 1},
			{ProductID: 2, Size: "38", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, order.Status)
	require.NotEmpty(t, order.Reference)
	require.InDelta(t, 90, order.Subtotal, 0.001)
	// below the free-shipping threshold
	require.InDelta(t, 9.90, order.Shipping, 0.001)
	require.InDelta(t, 99.90, order.Total, 0.001)

	require.Len(t, stock.inputs, 2)
	require.Equal(t, ledger.ModeRemove, stock.inputs[0].Mode)
	require.Equal(t, ledger.ActionSale, stock.inputs[0].Action)
	require.EqualValues(t, 1, stock.inputs[0].Quantity)
	require.Equal(t, "42", stock.inputs[0].Size)
	require.EqualValues(t, 2, stock.inputs[1].Quantity)
}

func TestCreateOrderFreeShipping(t *testing.T) {
	repo := newMemoryOrders()
	prices := &priceStub{prices: map[int64]float64{1: 60}}
	svc := NewService(repo, nil, prices, nil, nil)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: "cust-1",
		Lines:      []LineInput{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.InDelta(t, 120, order.Subtotal, 0.001)
	require.Zero(t, order.Shipping)
	require.InDelta(t, 120, order.Total, 0.001)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newMemoryOrders()
	prices := &priceStub{prices: map[int64]float64{1: 60}}
	svc := NewService(repo, nil, prices, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateOrderInput{CustomerID: "c"})
	require.ErrorIs(t, err, ErrEmptyOrder)

	_, err = svc.Create(ctx, CreateOrderInput{
		CustomerID: "c",
		Lines:      []LineInput{{ProductID: 1, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// unknown product fails the whole order before anything is written
	_, err = svc.Create(ctx, CreateOrderInput{
		CustomerID: "c",
		Lines:      []LineInput{{ProductID: 404, Quantity: 1}},
	})
	require.Error(t, err)
	require.Empty(t, repo.orders)
}

func TestCreateOrderSurvivesLedgerGap(t *testing.T) {
	repo := newMemoryOrders()
	stock := &stockSpy{err: ledger.ErrRecordNotFound}
	prices := &priceStub{prices: map[int64]float64{1: 60}}
	svc := NewService(repo, stock, prices, nil, nil)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID: "c",
		Lines:      []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.Len(t, stock.inputs, 1)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemoryOrders()
	prices := &priceStub{prices: map[int64]float64{1: 60}}
	svc := NewService(repo, nil, prices, nil, nil)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderInput{CustomerID: "c", Lines: []LineInput{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, order.ID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, updated.Status)

	_, err = svc.UpdateStatus(ctx, order.ID, "lost")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, 999, StatusShipped)
	require.ErrorIs(t, err, ErrNotFound)
}
