package ledger

import "time"

// stockRecordDTO is the JSON shape of a stock record. Status and
// availableStock are derived on the way out, never stored.
type stockRecordDTO struct {
	ID             int64       `json:"id"`
	ProductID      int64       `json:"productId"`
	SKU            string      `json:"sku"`
	TotalStock     int64       `json:"totalStock"`
	ReservedStock  int64       `json:"reservedStock"`
	AvailableStock int64       `json:"availableStock"`
	ReorderLevel   int64       `json:"reorderLevel"`
	Status         StockStatus `json:"status"`
	LastRestocked  *time.Time  `json:"lastRestocked"`
	Version        int64       `json:"version"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func toStockRecordDTO(r StockRecord) stockRecordDTO {
	return stockRecordDTO{
		ID:             r.ID,
		ProductID:      r.ProductID,
		SKU:            r.SKU,
		TotalStock:     r.TotalStock,
		ReservedStock:  r.ReservedStock,
		AvailableStock: r.AvailableStock(),
		ReorderLevel:   r.ReorderLevel,
		Status:         r.Status(),
		LastRestocked:  r.LastRestocked,
		Version:        r.Version,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toStockRecordDTOs(records []StockRecord) []stockRecordDTO {
	out := make([]stockRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toStockRecordDTO(r))
	}
	return out
}

type logEntryDTO struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"productId"`
	ProductName   string    `json:"productName"`
	SKU           string    `json:"sku"`
	Action        LogAction `json:"action"`
	QuantityDelta int64     `json:"quantityDelta"`
	PreviousStock int64     `json:"previousStock"`
	NewStock      int64     `json:"newStock"`
	Reason        string    `json:"reason"`
	Notes         string    `json:"notes,omitempty"`
	Size          string    `json:"size,omitempty"`
	OrderID       int64     `json:"orderId,omitempty"`
	PerformedBy   string    `json:"performedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toLogEntryDTO(e AdjustmentLogEntry) logEntryDTO {
	return logEntryDTO{
		ID:            e.ID,
		ProductID:     e.ProductID,
		ProductName:   e.ProductName,
		SKU:           e.SKU,
		Action:        e.Action,
		QuantityDelta: e.QuantityDelta,
		PreviousStock: e.PreviousStock,
		NewStock:      e.NewStock,
		Reason:        e.Reason,
		Notes:         e.Notes,
		Size:          e.Size,
		OrderID:       e.OrderID,
		PerformedBy:   e.PerformedBy,
		CreatedAt:     e.CreatedAt,
	}
}

func toLogEntryDTOs(entries []AdjustmentLogEntry) []logEntryDTO {
	out := make([]logEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLogEntryDTO(e))
	}
	return out
}

type stockOrderDTO struct {
	ID                int64            `json:"id"`
	ProductID         int64            `json:"productId"`
	ProductName       string           `json:"productName"`
	SKU               string           `json:"sku"`
	Quantity          int64            `json:"quantity"`
	Supplier          string           `json:"supplier"`
	EstimatedDelivery *string          `json:"estimatedDelivery"`
	Notes             string           `json:"notes,omitempty"`
	Status            StockOrderStatus `json:"status"`
	CreatedBy         string           `json:"createdBy"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func toStockOrderDTO(o StockOrder) stockOrderDTO {
	dto := stockOrderDTO{
		ID:          o.ID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		SKU:         o.SKU,
		Quantity:    o.Quantity,
		Supplier:    o.Supplier,
		Notes:       o.Notes,
		Status:      o.Status,
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.EstimatedDelivery != nil {
		eta := o.EstimatedDelivery.Format("2006-01-02")
		dto.EstimatedDelivery = &eta
	}
	return dto
}

func toStockOrderDTOs(orders []StockOrder) []stockOrderDTO {
	out := make([]stockOrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toStockOrderDTO(o))
	}
	return out
}
